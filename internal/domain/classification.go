package domain

import "time"

// Priority 邮件优先级（有序枚举）。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Sentiment 情感倾向。
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ActionItem 从邮件中提取的待办事项。
type ActionItem struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// Classification 表示对一封邮件的一次分析结果。
//
// 创建后不可变；重新分析会追加新版本记录，而不是就地修改。
// 读取方总是取 Version 最大的一条。
type Classification struct {
	ID               string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID        string       `json:"messageId" gorm:"type:varchar(128);index:idx_classifications_message_version,unique,composite:message_version"`
	Version          int          `json:"version" gorm:"index:idx_classifications_message_version,unique,composite:message_version"`
	Intent           string       `json:"intent" gorm:"type:varchar(100)"`
	Categories       []string     `json:"categories" gorm:"serializer:json;type:text"`
	Priority         Priority     `json:"priority" gorm:"type:varchar(16)"`
	Sentiment        Sentiment    `json:"sentiment" gorm:"type:varchar(16)"`
	RequiresResponse bool         `json:"requiresResponse"`
	Summary          string       `json:"summary" gorm:"type:text"`
	ActionItems      []ActionItem `json:"actionItems" gorm:"serializer:json;type:text"`
	Confidence       int          `json:"confidence"` // 0-100
	Model            string       `json:"model,omitempty" gorm:"type:varchar(100)"`
	CreatedAt        time.Time    `json:"createdAt"`
}

// HasCategory 判断分类结果是否包含某个标签。
func (c *Classification) HasCategory(category string) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// IsNewsletter 判断是否进入新闻简报分支。
func (c *Classification) IsNewsletter() bool {
	return c.HasCategory("newsletter") || c.HasCategory("marketing")
}
