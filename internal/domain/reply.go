package domain

import "time"

// 回复建议动作。
const (
	ReplyActionFollowUp = "follow_up"
	ReplyActionSchedule = "schedule"
	ReplyActionNone     = "none"
)

// Reply 表示为一封邮件起草的回复。
//
// 生成失败时 Body 为固定的兜底文案，Error 记录失败原因，不向调用方抛错。
type Reply struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID        string    `json:"messageId" gorm:"type:varchar(128);index"`
	Subject          string    `json:"subject" gorm:"type:varchar(500)"`
	Body             string    `json:"body" gorm:"type:text"`
	Tone             string    `json:"tone" gorm:"type:varchar(32)"`
	Length           string    `json:"length,omitempty" gorm:"type:varchar(16)"`
	SuggestedActions []string  `json:"suggestedActions" gorm:"serializer:json;type:text"`
	Error            string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt        time.Time `json:"createdAt"`
}
