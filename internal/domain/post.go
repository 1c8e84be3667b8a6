package domain

import "time"

// PostStatus 社交发布状态。posted 与 failed 为终态；
// scheduled 在预定时间到达并被后续一次投递解析前为非终态。
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPosted    PostStatus = "posted"
	PostStatusFailed    PostStatus = "failed"
)

// FormattedPost 表示针对某个平台格式化后的帖子。
//
// 不变式：len(Content) <= 平台字符上限；超限内容被硬截断并追加省略号，
// Truncated 置为 true；FormattedLength 永远等于实际输出长度。
type FormattedPost struct {
	Platform        string   `json:"platform"`
	Content         string   `json:"content"`
	Style           string   `json:"style"`
	MaxLength       int      `json:"maxLength"`
	FormattedLength int      `json:"formattedLength"`
	Truncated       bool     `json:"truncated"`
	Hashtags        []string `json:"hashtags"`
	Mentions        []string `json:"mentions"`
}

// PublishResult 表示一次 (平台, 内容) 发布尝试的结果。
type PublishResult struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ArticleID   string     `json:"articleId,omitempty" gorm:"type:varchar(36);index"`
	Platform    string     `json:"platform" gorm:"type:varchar(32);index:idx_publish_results_sweep"`
	Content     string     `json:"content" gorm:"type:text"`
	MediaURLs   []string   `json:"mediaUrls,omitempty" gorm:"serializer:json;type:text"`
	Status      PostStatus `json:"status" gorm:"type:varchar(16);index:idx_publish_results_sweep"`
	PostID      string     `json:"postId,omitempty" gorm:"type:varchar(128)"` // 仅 posted/scheduled 时存在
	URL         string     `json:"url,omitempty" gorm:"type:varchar(500)"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty" gorm:"index:idx_publish_results_sweep"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Terminal 判断发布结果是否处于终态。
func (r *PublishResult) Terminal() bool {
	return r.Status == PostStatusPosted || r.Status == PostStatusFailed
}
