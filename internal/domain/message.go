package domain

import "time"

// Message 表示一封从邮件源拉取的邮件。
//
// 拉取后除已读标志与标签外不可变；Analyzer 与 Extractor 只读引用，不修改。
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(128)"`
	ThreadID  string    `json:"threadId" gorm:"type:varchar(128);index"`
	From      string    `json:"from" gorm:"column:from_address;type:varchar(255)"`
	To        []string  `json:"to" gorm:"column:to_addresses;serializer:json;type:text"`
	Cc        []string  `json:"cc,omitempty" gorm:"serializer:json;type:text"`
	Bcc       []string  `json:"bcc,omitempty" gorm:"serializer:json;type:text"`
	Subject   string    `json:"subject" gorm:"type:varchar(500)"`
	Date      time.Time `json:"date"`
	Text      string    `json:"text,omitempty" gorm:"type:text"`
	HTML      string    `json:"html,omitempty" gorm:"type:text"`
	Snippet   string    `json:"snippet,omitempty" gorm:"type:varchar(500)"`
	Labels    []string  `json:"labels,omitempty" gorm:"serializer:json;type:text"`
	IsRead    bool      `json:"isRead" gorm:"default:false;index"`
	IsStarred bool      `json:"isStarred" gorm:"default:false"`
	Source    string    `json:"source" gorm:"type:varchar(32)"` // "gmail" 或 "smtp"
	CreatedAt time.Time `json:"createdAt"`
}

// Body 返回用于分析的正文：优先纯文本，退回 HTML。
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.HTML
}
