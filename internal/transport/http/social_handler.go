package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agenticflow/backend/internal/agent"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage"
)

// SocialHandler 处理社交平台连接、格式化与发布相关的 HTTP 请求
type SocialHandler struct {
	store     domain.Store
	formatter *agent.Formatter
	publisher *social.Publisher
	log       *zap.Logger
}

// NewSocialHandler 创建社交发布处理器
func NewSocialHandler(store domain.Store, formatter *agent.Formatter, publisher *social.Publisher, log *zap.Logger) *SocialHandler {
	return &SocialHandler{
		store:     store,
		formatter: formatter,
		publisher: publisher,
		log:       log,
	}
}

type connectRequest struct {
	Platform    string            `json:"platform" binding:"required"`
	Credentials map[string]string `json:"credentials" binding:"required"`
}

// Connect 连接一个社交平台
func (h *SocialHandler) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.publisher.Connect(req.Platform, req.Credentials); err != nil {
		BadRequest(c, GetErrorMessage(err))
		return
	}

	h.log.Info("platform connected", zap.String("platform", req.Platform))
	Success(c, gin.H{
		"platform":  req.Platform,
		"connected": true,
	})
}

// Disconnect 断开一个社交平台
func (h *SocialHandler) Disconnect(c *gin.Context) {
	platform := c.Param("platform")
	h.publisher.Disconnect(platform)
	NoContent(c)
}

// Platforms 列出已连接的平台
func (h *SocialHandler) Platforms(c *gin.Context) {
	platforms := h.publisher.Platforms()
	Success(c, gin.H{
		"items": platforms,
		"count": len(platforms),
	})
}

type formatRequest struct {
	Article   domain.Article `json:"article" binding:"required"`
	Platforms []string       `json:"platforms" binding:"required"`
	Style     string         `json:"style"`
	Hashtags  bool           `json:"hashtags"`
	Mentions  []string       `json:"mentions"`
	MaxLength int            `json:"maxLength"`
}

// Format 为多个平台格式化一篇文章
func (h *SocialHandler) Format(c *gin.Context) {
	var req formatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	opts := agent.FormatOptions{
		Style:           req.Style,
		IncludeHashtags: req.Hashtags,
		IncludeMentions: len(req.Mentions) > 0,
		Mentions:        req.Mentions,
		MaxLength:       req.MaxLength,
	}

	posts := make([]domain.FormattedPost, 0, len(req.Platforms))
	for _, platform := range req.Platforms {
		post, err := h.formatter.Format(req.Article, platform, opts)
		if err != nil {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		posts = append(posts, post)
	}

	Success(c, gin.H{
		"items": posts,
		"count": len(posts),
	})
}

type publishRequest struct {
	Platform     string   `json:"platform" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	MediaURLs    []string `json:"mediaUrls"`
	ScheduleTime string   `json:"scheduleTime"` // RFC3339,留空立即发布
}

// Publish 发布（或预定）一条内容
func (h *SocialHandler) Publish(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	scheduleTime, ok := parseScheduleTime(c, req.ScheduleTime)
	if !ok {
		return
	}

	result, err := h.publisher.Post(c.Request.Context(), req.Platform, req.Content, req.MediaURLs, scheduleTime)
	if err != nil {
		switch {
		case errors.Is(err, social.ErrNotConnected):
			UnprocessableEntity(c, GetErrorMessage(social.ErrNotConnected))
		case errors.Is(err, social.ErrEmptyContent):
			BadRequest(c, GetErrorMessage(social.ErrEmptyContent))
		default:
			InternalError(c, MsgPublishFailed)
		}
		return
	}

	if err := h.store.SavePublishResult(result); err != nil {
		h.log.Error("failed to save publish result", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Created(c, result)
}

type batchPublishRequest struct {
	Posts        []domain.FormattedPost `json:"posts" binding:"required"`
	ScheduleTime string                 `json:"scheduleTime"`
}

// BatchPublish 批量发布多条内容,结果互相独立
func (h *SocialHandler) BatchPublish(c *gin.Context) {
	var req batchPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	scheduleTime, ok := parseScheduleTime(c, req.ScheduleTime)
	if !ok {
		return
	}

	items := h.publisher.BatchPost(c.Request.Context(), req.Posts, scheduleTime)
	for _, item := range items {
		if item.Result == nil {
			continue
		}
		if err := h.store.SavePublishResult(item.Result); err != nil {
			h.log.Error("failed to save publish result",
				zap.String("platform", item.Platform),
				zap.Error(err),
			)
		}
	}

	Success(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

// GetPublishResult 获取一条发布记录
func (h *SocialHandler) GetPublishResult(c *gin.Context) {
	result, err := h.store.GetPublishResult(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrPublishResultNotFound) {
			NotFound(c, GetErrorMessage(storage.ErrPublishResultNotFound))
			return
		}
		InternalError(c, MsgPublishGetFailed)
		return
	}

	Success(c, result)
}

// parseScheduleTime 解析预定时间,格式错误时写入 400 响应并返回 false
func parseScheduleTime(c *gin.Context, raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		BadRequest(c, MsgInvalidTime)
		return nil, false
	}
	return &t, true
}
