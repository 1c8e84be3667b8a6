package agent

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
)

// 各平台的帖子字符上限；未知平台使用 defaultPlatformLimit。
var platformLimits = map[string]int{
	"twitter":   280,
	"linkedin":  3000,
	"facebook":  63206,
	"instagram": 2200,
}

const (
	defaultPlatformLimit = 1000
	truncationMarker     = "..."
)

// ErrEmptyArticle 表示文章没有可用于组稿的内容。
var ErrEmptyArticle = errors.New("agent: article has no content to format")

// PlatformLimit 返回平台的字符上限。
func PlatformLimit(platform string) int {
	if limit, ok := platformLimits[strings.ToLower(platform)]; ok {
		return limit
	}
	return defaultPlatformLimit
}

// FormatOptions 控制一次格式化的选项。
type FormatOptions struct {
	Style           string   // 文案风格标签，默认 "professional"
	IncludeHashtags bool     // 是否附带话题标签
	IncludeMentions bool     // 是否附带 @ 提及
	Mentions        []string // IncludeMentions 开启时附带的提及列表
	MaxLength       int      // 调用方附加的长度上限，0 表示仅受平台上限约束
}

// Formatter 将文章转换为平台特定的帖子。
//
// 纯函数：同样的 (文章, 平台, 选项) 输入产生完全相同的输出。
type Formatter struct {
	log *zap.Logger
}

// NewFormatter 创建帖子格式化器。
func NewFormatter(log *zap.Logger) *Formatter {
	return &Formatter{log: log}
}

// Format 为指定平台格式化一篇文章。
//
// 有效上限 = min(MaxLength, 平台上限)（MaxLength 为 0 时取平台上限）。
// 组稿内容超过有效上限时截断到 上限-3 个字符并追加省略号。
func (f *Formatter) Format(article domain.Article, platform string, opts FormatOptions) (domain.FormattedPost, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	style := opts.Style
	if style == "" {
		style = "professional"
	}

	limit := PlatformLimit(platform)
	if opts.MaxLength > 0 && opts.MaxLength < limit {
		limit = opts.MaxLength
	}

	var hashtags []string
	if opts.IncludeHashtags {
		hashtags = deriveHashtags(article)
	} else {
		hashtags = []string{}
	}

	var mentions []string
	if opts.IncludeMentions {
		mentions = append(mentions, opts.Mentions...)
	} else {
		mentions = []string{}
	}

	content := composeContent(article, hashtags, mentions)
	if content == "" {
		return domain.FormattedPost{}, ErrEmptyArticle
	}

	truncated := false
	runes := []rune(content)
	if len(runes) > limit {
		content = truncate(runes, limit)
		truncated = true
	}

	return domain.FormattedPost{
		Platform:        platform,
		Content:         content,
		Style:           style,
		MaxLength:       limit,
		FormattedLength: len([]rune(content)),
		Truncated:       truncated,
		Hashtags:        hashtags,
		Mentions:        mentions,
	}, nil
}

// BatchFormat 按输入顺序用同一组选项格式化多篇文章。
//
// 单篇失败不会中止整批：跳过该篇并记录，继续处理其余文章。
func (f *Formatter) BatchFormat(articles []domain.Article, platform string, opts FormatOptions) []domain.FormattedPost {
	posts := make([]domain.FormattedPost, 0, len(articles))
	for i, article := range articles {
		post, err := f.Format(article, platform, opts)
		if err != nil {
			f.log.Warn("skipping article in batch format",
				zap.Int("index", i),
				zap.String("platform", platform),
				zap.Error(err),
			)
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

// truncate 截断到 limit 个字符并尽量附加省略号。
// limit 小于省略号长度时直接硬截断,结果绝不超过 limit。
func truncate(runes []rune, limit int) string {
	cut := limit - len(truncationMarker)
	if cut <= 0 {
		return string(runes[:limit])
	}
	return string(runes[:cut]) + truncationMarker
}

// composeContent 组稿：标题、摘要与可选的标签/提及行。
func composeContent(article domain.Article, hashtags, mentions []string) string {
	parts := make([]string, 0, 3)
	if article.Title != "" && article.Summary != "" {
		parts = append(parts, article.Title+"\n\n"+article.Summary)
	} else if article.Title != "" {
		parts = append(parts, article.Title)
	} else if article.Summary != "" {
		parts = append(parts, article.Summary)
	}

	tail := append(append([]string{}, hashtags...), mentions...)
	if len(tail) > 0 && len(parts) > 0 {
		parts = append(parts, strings.Join(tail, " "))
	}

	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// deriveHashtags 从文章分类派生话题标签。
func deriveHashtags(article domain.Article) []string {
	tags := make([]string, 0, 2)
	if category := hashtagToken(article.Category); category != "" && category != "news" {
		tags = append(tags, "#"+category)
	}
	tags = append(tags, "#news")
	return tags
}

// hashtagToken 将分类名清洗为合法的话题标签主体。
func hashtagToken(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
