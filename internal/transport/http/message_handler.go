package httptransport

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/agent"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/storage"
)

// ReplySender 能把回复投递回邮件源（Gmail 启用时可用）
type ReplySender interface {
	SendReply(ctx context.Context, original *domain.Message, reply *domain.Reply) error
}

// MessageHandler 处理邮件与分析相关的 HTTP 请求
type MessageHandler struct {
	store    domain.Store
	analyzer *agent.Analyzer
	replyGen *agent.ReplyGenerator
	sender   ReplySender // 可为 nil
	log      *zap.Logger
}

// NewMessageHandler 创建邮件处理器
func NewMessageHandler(store domain.Store, analyzer *agent.Analyzer, replyGen *agent.ReplyGenerator, sender ReplySender, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		store:    store,
		analyzer: analyzer,
		replyGen: replyGen,
		sender:   sender,
		log:      log,
	}
}

type messageListResponse struct {
	Items []domain.Message `json:"items"`
	Count int              `json:"count"`
}

// ListMessages 获取邮件列表
func (h *MessageHandler) ListMessages(c *gin.Context) {
	limit := parseLimit(c, 50)

	messages, err := h.store.ListMessages(limit)
	if err != nil {
		h.log.Error("failed to list messages", zap.Error(err))
		InternalError(c, MsgMessageListFailed)
		return
	}

	Success(c, messageListResponse{
		Items: messages,
		Count: len(messages),
	})
}

// GetMessage 获取邮件详情
func (h *MessageHandler) GetMessage(c *gin.Context) {
	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	Success(c, msg)
}

// Analyze 对一封邮件执行分析并落库新版本分类
//
// 重复调用追加新版本,不覆盖历史结果。
func (h *MessageHandler) Analyze(c *gin.Context) {
	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	classification, err := h.analyzer.Analyze(c.Request.Context(), msg)
	if err != nil {
		h.log.Error("analysis failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		UnprocessableEntity(c, MsgAnalyzeFailed)
		return
	}

	if err := h.store.SaveClassification(classification); err != nil {
		h.log.Error("failed to save classification", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Created(c, classification)
}

// GetClassification 获取最新版本的分类结果
func (h *MessageHandler) GetClassification(c *gin.Context) {
	classification, err := h.store.GetLatestClassification(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrClassificationNotFound) {
			NotFound(c, MsgClassificationNotFound)
			return
		}
		InternalError(c, MsgClassificationListFailed)
		return
	}

	Success(c, classification)
}

// ListClassifications 获取一封邮件的全部分类版本历史
func (h *MessageHandler) ListClassifications(c *gin.Context) {
	classifications, err := h.store.ListClassifications(c.Param("id"))
	if err != nil {
		InternalError(c, MsgClassificationListFailed)
		return
	}

	Success(c, gin.H{
		"items": classifications,
		"count": len(classifications),
	})
}

type draftReplyRequest struct {
	Tone string `json:"tone"`
}

// DraftReply 为一封邮件起草回复
func (h *MessageHandler) DraftReply(c *gin.Context) {
	var req draftReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	// 分类结果可选:没有分析过的邮件也可以起草回复
	classification, err := h.store.GetLatestClassification(msg.ID)
	if err != nil && !errors.Is(err, storage.ErrClassificationNotFound) {
		InternalError(c, MsgInternalError)
		return
	}

	reply := h.replyGen.GenerateReply(c.Request.Context(), msg, classification, req.Tone)
	if err := h.store.SaveReply(reply); err != nil {
		h.log.Error("failed to save reply", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Created(c, reply)
}

type suggestRequest struct {
	Count  int      `json:"count"`
	Styles []string `json:"styles"`
}

// SuggestResponses 为一封邮件生成多条不同风格的回复建议
func (h *MessageHandler) SuggestResponses(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 3
	}

	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	classification, err := h.store.GetLatestClassification(msg.ID)
	if err != nil && !errors.Is(err, storage.ErrClassificationNotFound) {
		InternalError(c, MsgInternalError)
		return
	}

	replies := h.replyGen.SuggestResponses(c.Request.Context(), msg, classification, req.Count, req.Styles)
	Success(c, gin.H{
		"items": replies,
		"count": len(replies),
	})
}

// ListReplies 获取一封邮件的全部历史回复
func (h *MessageHandler) ListReplies(c *gin.Context) {
	replies, err := h.store.ListReplies(c.Param("id"))
	if err != nil {
		InternalError(c, MsgReplyListFailed)
		return
	}

	Success(c, gin.H{
		"items": replies,
		"count": len(replies),
	})
}

type sendReplyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body" binding:"required"`
	Tone    string `json:"tone"`
}

// SendReply 把回复通过邮件源发送回原始会话
func (h *MessageHandler) SendReply(c *gin.Context) {
	if h.sender == nil {
		UnprocessableEntity(c, MsgGmailDisabled)
		return
	}

	var req sendReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.store.GetMessage(c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			NotFound(c, MsgMessageNotFound)
			return
		}
		InternalError(c, MsgMessageGetFailed)
		return
	}

	reply := &domain.Reply{
		ID:        uuid.NewString(),
		MessageID: msg.ID,
		Subject:   req.Subject,
		Body:      req.Body,
		Tone:      req.Tone,
	}

	if err := h.sender.SendReply(c.Request.Context(), msg, reply); err != nil {
		h.log.Error("failed to send reply",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		InternalError(c, MsgSendReplyFailed)
		return
	}

	if err := h.store.SaveReply(reply); err != nil {
		h.log.Warn("reply sent but not saved", zap.Error(err))
	}

	Success(c, reply)
}

// parseLimit 解析 limit 查询参数
func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
