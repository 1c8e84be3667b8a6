package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/llm"
)

// fallbackReplyBody 生成调用失败时使用的固定兜底文案。
const fallbackReplyBody = "Thank you for your email. I'll get back to you soon."

// defaultReplyStyles SuggestResponses 未指定风格时的默认列表。
var defaultReplyStyles = []string{"professional", "friendly", "concise"}

// ReplyGenerator 负责为邮件起草回复。
type ReplyGenerator struct {
	generator Generator
	log       *zap.Logger
}

// NewReplyGenerator 创建回复生成器。
func NewReplyGenerator(generator Generator, log *zap.Logger) *ReplyGenerator {
	return &ReplyGenerator{generator: generator, log: log}
}

// GenerateReply 以指定语气为邮件起草回复。
//
// 生成调用失败时返回携带错误信息的兜底回复，绝不向调用方抛错。
func (g *ReplyGenerator) GenerateReply(ctx context.Context, msg *domain.Message, classification *domain.Classification, tone string) *domain.Reply {
	if tone == "" {
		tone = "professional"
	}

	reply := &domain.Reply{
		ID:        uuid.NewString(),
		MessageID: msg.ID,
		Subject:   replySubject(msg.Subject),
		Tone:      tone,
		Length:    "medium",
		CreatedAt: time.Now().UTC(),
	}

	body, err := g.generateBody(ctx, msg, classification, tone)
	if err != nil {
		g.log.Error("reply generation failed, using fallback body",
			zap.String("message_id", msg.ID),
			zap.String("tone", tone),
			zap.Error(err),
		)
		reply.Body = fallbackReplyBody
		reply.Error = err.Error()
	} else {
		reply.Body = body
	}

	reply.SuggestedActions = suggestActions(reply.Body)
	return reply
}

// SuggestResponses 生成多个语气变体，每个风格一条，
// 产出 min(count, len(styles)) 条回复；单个风格失败不影响其余风格。
func (g *ReplyGenerator) SuggestResponses(ctx context.Context, msg *domain.Message, classification *domain.Classification, count int, styles []string) []domain.Reply {
	if len(styles) == 0 {
		styles = defaultReplyStyles
	}
	if count > len(styles) {
		count = len(styles)
	}
	if count < 0 {
		count = 0
	}

	replies := make([]domain.Reply, 0, count)
	for _, style := range styles[:count] {
		replies = append(replies, *g.GenerateReply(ctx, msg, classification, style))
	}
	return replies
}

// GenerateFollowUp 为邮件线程起草跟进邮件。
func (g *ReplyGenerator) GenerateFollowUp(ctx context.Context, thread []domain.Message, tone string) *domain.Reply {
	if len(thread) == 0 {
		return &domain.Reply{
			ID:               uuid.NewString(),
			Body:             fallbackReplyBody,
			Tone:             tone,
			SuggestedActions: []string{domain.ReplyActionNone},
			Error:            "empty thread",
			CreatedAt:        time.Now().UTC(),
		}
	}

	first := thread[0]
	subject := strings.TrimSpace(first.Subject)
	subject = strings.TrimSpace(strings.TrimPrefix(subject, "Re: "))
	subject = strings.TrimSpace(strings.TrimPrefix(subject, "Fw: "))

	reply := g.GenerateReply(ctx, &first, nil, tone)
	reply.Subject = subject
	return reply
}

// generateBody 调用生成服务起草正文。
func (g *ReplyGenerator) generateBody(ctx context.Context, msg *domain.Message, classification *domain.Classification, tone string) (string, error) {
	if g.generator == nil {
		return "", llm.ErrNotConfigured
	}

	body, err := g.generator.Complete(ctx, llm.Request{
		System: "You draft professional email replies. Return only the reply body text.",
		Prompt: buildReplyPrompt(msg, classification, tone),
	})
	if err != nil {
		return "", err
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", llm.ErrEmptyCompletion
	}
	return body, nil
}

// replySubject 生成回复主题。
//
// 原主题已以 "Re:"（不区分大小写）开头时不再叠加前缀，避免出现
// "Re: Re:"。
func replySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}

// suggestActions 对生成的正文做关键词扫描：
// 出现 "follow up" → follow_up；出现 "schedule" → schedule；
// 两者都没有 → 单个动作 none。
func suggestActions(body string) []string {
	lower := strings.ToLower(body)
	actions := make([]string, 0, 2)
	if strings.Contains(lower, "follow up") {
		actions = append(actions, domain.ReplyActionFollowUp)
	}
	if strings.Contains(lower, "schedule") {
		actions = append(actions, domain.ReplyActionSchedule)
	}
	if len(actions) == 0 {
		actions = append(actions, domain.ReplyActionNone)
	}
	return actions
}

// buildReplyPrompt 构造回复提示词。
func buildReplyPrompt(msg *domain.Message, classification *domain.Classification, tone string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a %s reply to the following email.\n\n", tone)
	fmt.Fprintf(&b, "SUBJECT: %s\nFROM: %s\n\n", msg.Subject, msg.From)

	body := msg.Body()
	if runes := []rune(body); len(runes) > analyzeBodyBudget {
		body = string(runes[:analyzeBodyBudget])
	}
	fmt.Fprintf(&b, "EMAIL:\n%s\n", body)

	if classification != nil {
		fmt.Fprintf(&b, "\nCONTEXT: intent=%s, priority=%s, sentiment=%s",
			classification.Intent, classification.Priority, classification.Sentiment)
		if classification.Summary != "" {
			fmt.Fprintf(&b, "\nSUMMARY: %s", classification.Summary)
		}
	}

	b.WriteString("\n\nReturn only the reply body, no subject line.")
	return b.String()
}
