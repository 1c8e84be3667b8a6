package domain

import "strings"

// 上游生成模型的输出视为不可信输入：枚举字段统一经过本文件的
// 归一化函数，未知取值回退到文档约定的默认值，绝不原样透传。

// NormalizePriority 校验优先级取值，未知值回退 normal。
func NormalizePriority(value string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow
	case PriorityNormal:
		return PriorityNormal
	case PriorityHigh:
		return PriorityHigh
	case PriorityUrgent:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// NormalizeSentiment 校验情感取值，未知值回退 neutral。
func NormalizeSentiment(value string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(value))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	case SentimentNeutral:
		return SentimentNeutral
	default:
		return SentimentNeutral
	}
}

// NormalizeContentType 校验内容类型，未知值回退 other。
func NormalizeContentType(value string) ContentType {
	switch ContentType(strings.ToLower(strings.TrimSpace(value))) {
	case ContentTypeArticle:
		return ContentTypeArticle
	case ContentTypeEvent:
		return ContentTypeEvent
	case ContentTypePromotion:
		return ContentTypePromotion
	case ContentTypeUpdate:
		return ContentTypeUpdate
	default:
		return ContentTypeOther
	}
}

// NormalizeCategories 去除空白、统一小写并去重，保持原有顺序。
func NormalizeCategories(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ClampConfidence 将置信度限制在 [0, 100]。
func ClampConfidence(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
