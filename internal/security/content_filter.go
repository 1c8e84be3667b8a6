package security

import (
	"regexp"
	"strings"

	"agenticflow/backend/internal/domain"
)

// ContentFilter 入站邮件内容过滤器
//
// 在邮件进入流水线前拦截明显的恶意负载与垃圾邮件,
// 避免把它们送进分析与生成环节。
type ContentFilter struct {
	// 恶意内容模式
	maliciousPatterns []*regexp.Regexp

	// 垃圾邮件关键词
	spamKeywords []string
}

// NewContentFilter 创建内容过滤器
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		maliciousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)onload\s*=`),
			regexp.MustCompile(`(?i)onerror\s*=`),
			regexp.MustCompile(`(?i)eval\s*\(`),
			regexp.MustCompile(`(?i)document\.cookie`),
			regexp.MustCompile(`(?i)<iframe[^>]*>`),
			regexp.MustCompile(`(?i)<object[^>]*>`),
			regexp.MustCompile(`(?i)<embed[^>]*>`),
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
		},
	}
}

// FilterMessage 过滤一封入站邮件
//
// 返回 false 时邮件应被拒收,第二个返回值为拒收原因。
func (cf *ContentFilter) FilterMessage(msg *domain.Message) (bool, string) {
	content := msg.Subject + "\n" + msg.Text + "\n" + msg.HTML

	if malicious, reason := cf.checkMaliciousContent(content); malicious {
		return false, reason
	}

	if spam, reason := cf.checkSpamContent(content); spam {
		return false, reason
	}

	return true, ""
}

// checkMaliciousContent 检查恶意内容
func (cf *ContentFilter) checkMaliciousContent(content string) (bool, string) {
	for _, pattern := range cf.maliciousPatterns {
		if pattern.MatchString(content) {
			return true, "malicious content detected: " + pattern.String()
		}
	}
	return false, ""
}

// checkSpamContent 检查垃圾邮件内容
//
// 单个关键词不足以定性,命中 3 个以上才判为垃圾邮件。
func (cf *ContentFilter) checkSpamContent(content string) (bool, string) {
	contentLower := strings.ToLower(content)

	spamCount := 0
	for _, keyword := range cf.spamKeywords {
		if strings.Contains(contentLower, keyword) {
			spamCount++
		}
	}

	if spamCount >= 3 {
		return true, "spam content detected: multiple spam keywords found"
	}

	return false, ""
}
