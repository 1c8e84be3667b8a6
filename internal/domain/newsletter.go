package domain

import "time"

// ContentType 新闻简报内容类型。
type ContentType string

const (
	ContentTypeArticle   ContentType = "article"
	ContentTypeEvent     ContentType = "event"
	ContentTypePromotion ContentType = "promotion"
	ContentTypeUpdate    ContentType = "update"
	ContentTypeOther     ContentType = "other"
)

// Article 从新闻简报中提取的单篇文章。随提取结果整体序列化存储。
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"keyPoints"`
	Category  string    `json:"category"`
	Sentiment Sentiment `json:"sentiment"`
	URL       string    `json:"url,omitempty"`
}

// NewsletterExtraction 表示对一封新闻简报邮件的结构化提取结果。
//
// 每封邮件最多一条；提取失败时产生降级结果：Error 记录原因，
// Articles 为空，ContentType 回退为 other，流水线继续执行。
type NewsletterExtraction struct {
	ID          string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID   string      `json:"messageId" gorm:"type:varchar(128);uniqueIndex"`
	Title       string      `json:"title" gorm:"type:varchar(500)"`
	Summary     string      `json:"summary" gorm:"type:text"`
	ContentType ContentType `json:"contentType" gorm:"type:varchar(16)"`
	Articles    []Article   `json:"articles" gorm:"serializer:json;type:text"`
	Source      string      `json:"source,omitempty" gorm:"type:varchar(255)"`
	Model       string      `json:"model,omitempty" gorm:"type:varchar(100)"`
	Error       string      `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Degraded 判断该提取结果是否为降级结果。
func (e *NewsletterExtraction) Degraded() bool {
	return e.Error != ""
}
