package httptransport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/pipeline"
	"agenticflow/backend/internal/storage"
)

// PipelineHandler 处理流水线触发与运行记录相关的 HTTP 请求
type PipelineHandler struct {
	store       domain.Store
	coordinator *pipeline.Coordinator
	log         *zap.Logger
}

// NewPipelineHandler 创建流水线处理器
func NewPipelineHandler(store domain.Store, coordinator *pipeline.Coordinator, log *zap.Logger) *PipelineHandler {
	return &PipelineHandler{
		store:       store,
		coordinator: coordinator,
		log:         log,
	}
}

// Trigger 手动触发一轮邮件拉取与处理
func (h *PipelineHandler) Trigger(c *gin.Context) {
	runs := h.coordinator.FetchAndProcess(c.Request.Context())
	Success(c, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

type submitMessageRequest struct {
	From    string   `json:"from" binding:"required"`
	To      []string `json:"to" binding:"required"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

// Submit 直接投递一封邮件进入流水线（不经过邮件源）
func (h *PipelineHandler) Submit(c *gin.Context) {
	var req submitMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Text == "" && req.HTML == "" {
		BadRequest(c, MsgRequestBodyEmpty)
		return
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		From:      req.From,
		To:        req.To,
		Subject:   req.Subject,
		Date:      time.Now().UTC(),
		Text:      req.Text,
		HTML:      req.HTML,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	}

	if err := h.coordinator.Submit(c.Request.Context(), msg); err != nil {
		h.log.Error("failed to submit message", zap.Error(err))
		InternalError(c, MsgProcessFailed)
		return
	}

	Accepted(c, gin.H{
		"messageId": msg.ID,
	})
}

// Process 同步处理一封已入库的邮件并返回运行记录
func (h *PipelineHandler) Process(c *gin.Context) {
	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	run, err := h.coordinator.Process(c.Request.Context(), msg)
	if err != nil {
		if errors.Is(err, pipeline.ErrAlreadyProcessed) {
			Conflict(c, "邮件已处理过")
			return
		}
		// 分析失败时运行记录仍然可用,一并返回
		if run != nil {
			c.JSON(http.StatusUnprocessableEntity, Response{
				Code: CodeUnprocessableEntity,
				Msg:  MsgProcessFailed,
				Data: run,
			})
			return
		}
		InternalError(c, MsgProcessFailed)
		return
	}

	Success(c, run)
}

// ListRuns 获取最近的运行记录
func (h *PipelineHandler) ListRuns(c *gin.Context) {
	limit := parseLimit(c, 20)

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		InternalError(c, MsgRunListFailed)
		return
	}

	Success(c, gin.H{
		"items": runs,
		"count": len(runs),
	})
}

// GetRun 获取一条运行记录详情
func (h *PipelineHandler) GetRun(c *gin.Context) {
	run, err := h.store.GetRun(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			NotFound(c, MsgRunNotFound)
			return
		}
		InternalError(c, MsgRunListFailed)
		return
	}

	Success(c, run)
}
