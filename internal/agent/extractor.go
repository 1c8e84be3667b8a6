package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/llm"
)

// 预处理后送入提取的内容上限（字符数），用于控制下游开销。
const extractContentBudget = 15000

// 预处理用的模式，按声明顺序依次应用。
var (
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	bracketPattern     = regexp.MustCompile(`(?s)\[.*?\]`)
	urlPattern         = regexp.MustCompile(`https?://\S+`)
	boilerplatePattern = []*regexp.Regexp{
		// 行锚定:只删除到行尾,不吞掉后续文章
		regexp.MustCompile(`(?im)unsubscribe.*$`),
		regexp.MustCompile(`(?im)subscribe.*$`),
		regexp.MustCompile(`(?i)privacy policy`),
		regexp.MustCompile(`(?i)terms of service`),
		regexp.MustCompile(`(?i)all rights reserved`),
	}
)

// FormatRules 对提取出的文章应用的格式化规则。
type FormatRules struct {
	TitleCase        bool // 标题转为 Title Case
	MaxSummaryLength int  // 摘要长度上限，0 表示不限制
}

// Extractor 从新闻简报邮件中提取结构化文章。
type Extractor struct {
	generator Generator
	log       *zap.Logger
}

// NewExtractor 创建新闻简报提取器。
func NewExtractor(generator Generator, log *zap.Logger) *Extractor {
	return &Extractor{generator: generator, log: log}
}

// rawExtraction 生成服务返回的未校验载荷。
type rawExtraction struct {
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	ContentType string       `json:"content_type"`
	Articles    []rawArticle `json:"articles"`
}

type rawArticle struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Category  string   `json:"category"`
	Sentiment string   `json:"sentiment"`
	URL       string   `json:"url"`
}

// Extract 从邮件中提取新闻简报内容。
//
// 提取调用失败或返回不可解析的输出时，产生带错误信息与空文章列表的
// 降级结果，而不是向调用方抛错：流水线以零篇文章继续执行。
func (e *Extractor) Extract(ctx context.Context, msg *domain.Message) *domain.NewsletterExtraction {
	extraction := &domain.NewsletterExtraction{
		ID:          uuid.NewString(),
		MessageID:   msg.ID,
		Title:       msg.Subject,
		ContentType: domain.ContentTypeOther,
		Articles:    []domain.Article{},
		Source:      msg.From,
		CreatedAt:   time.Now().UTC(),
	}

	if e.generator == nil {
		extraction.Error = "extractor: generator not configured"
		return extraction
	}

	body := Preprocess(msg.Body())

	content, err := e.generator.Complete(ctx, llm.Request{
		System:   "You are an AI that extracts structured information from newsletters.",
		Prompt:   buildExtractPrompt(msg.Subject, msg.From, body),
		JSONMode: true,
	})
	if err != nil {
		e.log.Error("newsletter extraction failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		extraction.Error = err.Error()
		return extraction
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		e.log.Error("newsletter extraction returned unparseable output",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		extraction.Error = "parse extraction output: " + err.Error()
		return extraction
	}

	// 必填字段缺失时替换为类型相符的默认值
	if title := strings.TrimSpace(raw.Title); title != "" {
		extraction.Title = title
	}
	extraction.Summary = strings.TrimSpace(raw.Summary)
	extraction.ContentType = domain.NormalizeContentType(raw.ContentType)
	extraction.Model = e.generator.Model()

	articles := make([]domain.Article, 0, len(raw.Articles))
	for _, ra := range raw.Articles {
		title := strings.TrimSpace(ra.Title)
		summary := strings.TrimSpace(ra.Summary)
		if title == "" && summary == "" {
			continue
		}
		keyPoints := ra.KeyPoints
		if keyPoints == nil {
			keyPoints = []string{}
		}
		articles = append(articles, domain.Article{
			ID:        uuid.NewString(),
			Title:     title,
			Summary:   summary,
			KeyPoints: keyPoints,
			Category:  strings.ToLower(strings.TrimSpace(ra.Category)),
			Sentiment: domain.NormalizeSentiment(ra.Sentiment),
			URL:       strings.TrimSpace(ra.URL),
		})
	}
	extraction.Articles = articles

	return extraction
}

// ApplyFormatRules 对文章应用格式化规则，返回新的文章副本。
func ApplyFormatRules(article domain.Article, rules FormatRules) domain.Article {
	out := article
	if rules.TitleCase && out.Title != "" {
		out.Title = titleCase(out.Title)
	}
	if rules.MaxSummaryLength > 0 {
		if runes := []rune(out.Summary); len(runes) > rules.MaxSummaryLength {
			out.Summary = truncate(runes, rules.MaxSummaryLength)
		}
	}
	return out
}

// Preprocess 清洗新闻简报正文，按固定顺序：
// 去 HTML 标签 → 去退订/订阅/隐私条款等模板文案 → 去方括号内容 →
// 去裸 URL → 合并空白 → 截断到固定字符预算。
func Preprocess(content string) string {
	if content == "" {
		return ""
	}

	content = htmlTagPattern.ReplaceAllString(content, " ")
	for _, pattern := range boilerplatePattern {
		content = pattern.ReplaceAllString(content, "")
	}
	content = bracketPattern.ReplaceAllString(content, "")
	content = urlPattern.ReplaceAllString(content, "")
	content = strings.Join(strings.Fields(content), " ")

	if runes := []rune(content); len(runes) > extractContentBudget {
		content = string(runes[:extractContentBudget])
	}
	return content
}

// titleCase 把每个单词的首字母大写。
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		words[i] = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return strings.Join(words, " ")
}

// buildExtractPrompt 构造提取提示词。
func buildExtractPrompt(subject, sender, body string) string {
	var b strings.Builder
	b.WriteString("Analyze the following newsletter and extract structured information.\n\n")
	b.WriteString("SUBJECT: " + subject + "\n")
	b.WriteString("FROM: " + sender + "\n\n")
	b.WriteString("CONTENT:\n" + body + "\n\n")
	b.WriteString(`Extract the following information as a JSON object:
1. title: A clear title for the newsletter
2. summary: A brief 2-3 sentence summary
3. content_type: One of article, event, promotion, update, other
4. articles: Array of articles, each with:
   - title
   - summary
   - key_points: 3-5 bullet points
   - category: Topic/category
   - sentiment: positive/negative/neutral
   - url: relevant link if present

Format the response as a valid JSON object.`)
	return b.String()
}
