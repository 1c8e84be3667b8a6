package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agenticflow/backend/internal/agent"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/storage"
)

// NewsletterHandler 处理新闻简报提取相关的 HTTP 请求
type NewsletterHandler struct {
	store     domain.Store
	extractor *agent.Extractor
	log       *zap.Logger
}

// NewNewsletterHandler 创建新闻简报处理器
func NewNewsletterHandler(store domain.Store, extractor *agent.Extractor, log *zap.Logger) *NewsletterHandler {
	return &NewsletterHandler{
		store:     store,
		extractor: extractor,
		log:       log,
	}
}

// GetExtraction 获取一封邮件的提取结果
func (h *NewsletterHandler) GetExtraction(c *gin.Context) {
	extraction, err := h.store.GetExtraction(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrExtractionNotFound) {
			NotFound(c, MsgExtractionNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, extraction)
}

// Extract 对一封邮件强制执行新闻简报提取
//
// 不检查分类结果:调用方显式要求提取时直接执行,结果覆盖已有记录。
func (h *NewsletterHandler) Extract(c *gin.Context) {
	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	extraction := h.extractor.Extract(c.Request.Context(), msg)
	if err := h.store.SaveExtraction(extraction); err != nil {
		h.log.Error("failed to save extraction",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		InternalError(c, MsgInternalError)
		return
	}

	// 降级结果也照常返回,Error 字段说明原因
	Created(c, extraction)
}
