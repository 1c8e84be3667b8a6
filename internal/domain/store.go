package domain

import "time"

// Store 聚合所有存储接口
type Store interface {
	// ========== Message Repository ==========
	SaveMessage(message *Message) error
	GetMessage(id string) (*Message, error)
	ListMessages(limit int) ([]Message, error)
	MarkMessageRead(id string) error

	// ========== Classification Repository ==========
	// SaveClassification 追加一条新版本的分类记录；同一 (message, version)
	// 组合由唯一约束保护，并发写入不会产生重复行。
	SaveClassification(c *Classification) error
	GetLatestClassification(messageID string) (*Classification, error)
	ListClassifications(messageID string) ([]Classification, error)

	// ========== Newsletter Repository ==========
	// SaveExtraction 按 MessageID upsert：每封邮件至多一条提取结果。
	SaveExtraction(e *NewsletterExtraction) error
	GetExtraction(messageID string) (*NewsletterExtraction, error)

	// ========== Publish Repository ==========
	SavePublishResult(r *PublishResult) error
	GetPublishResult(id string) (*PublishResult, error)
	// ListDueScheduledPosts 返回预定时间不晚于 before 且仍处于 scheduled
	// 状态的发布记录，供定时清扫解析为 posted/failed。
	ListDueScheduledPosts(before time.Time, limit int) ([]PublishResult, error)
	// ResolveScheduledPost 仅当记录仍为 scheduled 时更新其终态，
	// 保证每条预定发布至多被解析一次。
	ResolveScheduledPost(id string, status PostStatus, postID, url, errMsg string, postedAt time.Time) error

	// ========== Reply Repository ==========
	SaveReply(r *Reply) error
	ListReplies(messageID string) ([]Reply, error)

	// ========== Run Repository ==========
	SaveRun(run *PipelineRun) error
	GetRun(id string) (*PipelineRun, error)
	ListRuns(limit int) ([]PipelineRun, error)

	// ========== Lifecycle ==========
	Health() error
	Close() error
}
