package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/llm"
)

// Generator 是结构化文本生成服务的窄接口，由 llm.Client 实现。
type Generator interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
	Model() string
}

// 分析输入的正文预算，超出部分截断以控制开销。
const analyzeBodyBudget = 8000

// Analyzer 负责对邮件做意图/分类/优先级分析。
//
// 生成模型的输出一律视为不可信：枚举字段经过归一化，未知值回退
// 到文档约定的默认值，绝不让畸形的上游响应进入 Classification。
type Analyzer struct {
	generator Generator
	log       *zap.Logger
}

// NewAnalyzer 创建邮件分析器。generator 为 nil 时使用确定性的
// 关键词启发式分析（开发与测试场景）。
func NewAnalyzer(generator Generator, log *zap.Logger) *Analyzer {
	return &Analyzer{generator: generator, log: log}
}

// rawClassification 生成服务返回的未校验载荷。
type rawClassification struct {
	Intent           string   `json:"intent"`
	Categories       []string `json:"categories"`
	Priority         string   `json:"priority"`
	Sentiment        string   `json:"sentiment"`
	RequiresResponse bool     `json:"requires_response"`
	Summary          string   `json:"summary"`
	ActionItems      []struct {
		Description string `json:"description"`
		DueDate     string `json:"due_date"`
	} `json:"action_items"`
	Confidence int `json:"confidence"`
}

// Analyze 分析一封邮件并返回新的分类记录。
//
// 版本号由存储层在保存时分配；重新分析产生新记录而不是覆盖旧记录。
func (a *Analyzer) Analyze(ctx context.Context, msg *domain.Message) (*domain.Classification, error) {
	if a.generator == nil {
		return a.heuristic(msg), nil
	}

	content, err := a.generator.Complete(ctx, llm.Request{
		System:   "You are an AI that analyzes emails and returns structured classification data.",
		Prompt:   buildAnalyzePrompt(msg),
		JSONMode: true,
	})
	if err != nil {
		if err == llm.ErrNotConfigured {
			a.log.Debug("llm not configured, using heuristic classification",
				zap.String("message_id", msg.ID))
			return a.heuristic(msg), nil
		}
		return nil, fmt.Errorf("analyze message %s: %w", msg.ID, err)
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("analyze message %s: parse classification: %w", msg.ID, err)
	}

	return a.sanitize(msg, &raw), nil
}

// sanitize 把不可信的生成输出转换为合法的 Classification。
func (a *Analyzer) sanitize(msg *domain.Message, raw *rawClassification) *domain.Classification {
	categories := domain.NormalizeCategories(raw.Categories)

	priority := domain.NormalizePriority(raw.Priority)
	if strings.TrimSpace(raw.Priority) == "" {
		// 模型未给出优先级时，按分类标签做确定性映射
		priority = priorityFromCategories(categories)
	}

	intent := strings.ToLower(strings.TrimSpace(raw.Intent))
	if intent == "" {
		intent = "unknown"
	}

	items := make([]domain.ActionItem, 0, len(raw.ActionItems))
	for _, it := range raw.ActionItems {
		description := strings.TrimSpace(it.Description)
		if description == "" {
			continue
		}
		item := domain.ActionItem{Description: description}
		if due, err := time.Parse(time.RFC3339, it.DueDate); err == nil {
			item.DueDate = &due
		}
		items = append(items, item)
	}

	return &domain.Classification{
		ID:               uuid.NewString(),
		MessageID:        msg.ID,
		Intent:           intent,
		Categories:       categories,
		Priority:         priority,
		Sentiment:        domain.NormalizeSentiment(raw.Sentiment),
		RequiresResponse: raw.RequiresResponse,
		Summary:          strings.TrimSpace(raw.Summary),
		ActionItems:      items,
		Confidence:       domain.ClampConfidence(raw.Confidence),
		Model:            a.generator.Model(),
		CreatedAt:        time.Now().UTC(),
	}
}

// heuristic 无模型时的确定性分类：同样的输入总是产生同样的结果。
func (a *Analyzer) heuristic(msg *domain.Message) *domain.Classification {
	text := strings.ToLower(msg.Subject + " " + msg.Body())

	categories := make([]string, 0, 2)
	if strings.Contains(text, "unsubscribe") || strings.Contains(text, "newsletter") {
		categories = append(categories, "newsletter")
	}
	if strings.Contains(text, "invoice") || strings.Contains(text, "payment") {
		categories = append(categories, "finance")
	}
	if strings.Contains(text, "meeting") || strings.Contains(text, "schedule") {
		categories = append(categories, "scheduling")
	}

	requiresResponse := strings.Contains(text, "?") ||
		strings.Contains(text, "please reply") ||
		strings.Contains(text, "let me know")

	return &domain.Classification{
		ID:               uuid.NewString(),
		MessageID:        msg.ID,
		Intent:           "unknown",
		Categories:       categories,
		Priority:         priorityFromCategories(categories),
		Sentiment:        domain.SentimentNeutral,
		RequiresResponse: requiresResponse,
		Summary:          msg.Snippet,
		ActionItems:      []domain.ActionItem{},
		Confidence:       0,
		CreatedAt:        time.Now().UTC(),
	}
}

// categoryPriorities 分类标签到优先级的确定性映射。
var categoryPriorities = map[string]domain.Priority{
	"urgent":     domain.PriorityUrgent,
	"security":   domain.PriorityUrgent,
	"finance":    domain.PriorityHigh,
	"work":       domain.PriorityHigh,
	"scheduling": domain.PriorityHigh,
	"newsletter": domain.PriorityLow,
	"marketing":  domain.PriorityLow,
	"social":     domain.PriorityLow,
}

// priorityFromCategories 取各分类映射到的最高优先级，无匹配时为 normal。
func priorityFromCategories(categories []string) domain.Priority {
	rank := map[domain.Priority]int{
		domain.PriorityLow:    0,
		domain.PriorityNormal: 1,
		domain.PriorityHigh:   2,
		domain.PriorityUrgent: 3,
	}

	best := domain.PriorityNormal
	matched := false
	for _, cat := range categories {
		p, ok := categoryPriorities[cat]
		if !ok {
			continue
		}
		if !matched || rank[p] > rank[best] {
			best = p
			matched = true
		}
	}
	return best
}

// buildAnalyzePrompt 构造分类提示词。
func buildAnalyzePrompt(msg *domain.Message) string {
	body := msg.Body()
	if runes := []rune(body); len(runes) > analyzeBodyBudget {
		body = string(runes[:analyzeBodyBudget])
	}

	return fmt.Sprintf(`Analyze the following email and return a JSON object.

SUBJECT: %s
FROM: %s

CONTENT:
%s

Return a JSON object with these fields:
1. intent: a short free-form tag describing the sender's intent
2. categories: array of lowercase tags (use "newsletter" or "marketing" for bulk mail)
3. priority: one of low, normal, high, urgent
4. sentiment: one of positive, neutral, negative
5. requires_response: boolean, whether the email needs a reply
6. summary: a 1-2 sentence summary
7. action_items: array of {description, due_date (RFC3339, optional)}
8. confidence: integer 0-100`, msg.Subject, msg.From, body)
}
