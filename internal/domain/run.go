package domain

import "time"

// RunStatus 流水线运行的最终状态。
//
// partial 表示分类成功但某个分支记录了失败（降级提取、单条发布失败等），
// 用于与整体失败（error）区分。
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusError   RunStatus = "error"
)

// PostOutcome 一条社交帖子的格式化结果与发布结果的配对。
type PostOutcome struct {
	Post   FormattedPost  `json:"post"`
	Result *PublishResult `json:"result,omitempty"`
}

// PipelineRun 聚合一封邮件经过流水线处理的全部结果。
//
// 运行开始时创建，结束时定稿，之后不再修改。
type PipelineRun struct {
	ID             string                `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID      string                `json:"messageId" gorm:"type:varchar(128);index"`
	Subject        string                `json:"subject" gorm:"type:varchar(500)"`
	From           string                `json:"from" gorm:"column:from_address;type:varchar(255)"`
	Classification *Classification       `json:"classification,omitempty" gorm:"serializer:json;type:text"`
	IsNewsletter   bool                  `json:"isNewsletter"`
	Extraction     *NewsletterExtraction `json:"extraction,omitempty" gorm:"serializer:json;type:text"`
	SocialPosts    []PostOutcome         `json:"socialPosts" gorm:"serializer:json;type:text"`
	Replies        []Reply               `json:"generatedResponses" gorm:"serializer:json;type:text"`
	ActionsTaken   []string              `json:"actionsTaken" gorm:"serializer:json;type:text"`
	Status         RunStatus             `json:"status" gorm:"type:varchar(16);index"`
	Error          string                `json:"error,omitempty" gorm:"type:text"`
	StartedAt      time.Time             `json:"startedAt"`
	FinishedAt     time.Time             `json:"finishedAt"`
}
