package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
)

const gmailUser = "me"

// Source 邮件来源标识。
const Source = "gmail"

// Fetcher 封装 Gmail API，负责拉取、标记与发送邮件。
type Fetcher struct {
	srv *gmailapi.Service
	log *zap.Logger
}

// NewFetcher 用凭据文件与缓存令牌创建 Gmail 客户端。
//
// 令牌文件不存在或失效时返回错误而不是走交互授权，交互授权
// 由 cmd/gmail-auth 完成。
func NewFetcher(ctx context.Context, cfg config.GmailConfig, log *zap.Logger) (*Fetcher, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}

	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail token %s: %w", cfg.TokenFile, err)
	}

	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(oauthConfig.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Fetcher{srv: srv, log: log}, nil
}

// tokenFromFile 从文件加载 OAuth 令牌。
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// SaveToken 把 OAuth 令牌写入文件，供授权命令使用。
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save gmail token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// Fetch 拉取最近的邮件。
//
// unreadOnly 为 true 时只取未读邮件并在拉取成功后顺带标记为已读。
// 拉取失败返回空切片并记录日志，不中断上游流水线。
func (f *Fetcher) Fetch(ctx context.Context, limit int, unreadOnly bool) []domain.Message {
	// limit 小于等于 0 表示本轮不拉取，默认值由配置层负责。
	if limit <= 0 {
		return []domain.Message{}
	}

	call := f.srv.Users.Messages.List(gmailUser).MaxResults(int64(limit)).Q("in:inbox -in:draft")
	if unreadOnly {
		call = call.Q("in:inbox -in:draft is:unread")
	}

	list, err := call.Context(ctx).Do()
	if err != nil {
		f.log.Error("gmail list failed", zap.Error(err))
		return []domain.Message{}
	}

	messages := make([]domain.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := f.srv.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			f.log.Warn("gmail get failed", zap.String("message_id", ref.Id), zap.Error(err))
			continue
		}
		msg := parseMessage(full)
		if unreadOnly {
			if err := f.MarkRead(ctx, msg.ID); err != nil {
				f.log.Warn("gmail mark read failed", zap.String("message_id", msg.ID), zap.Error(err))
			} else {
				msg.IsRead = true
			}
		}
		messages = append(messages, msg)
	}

	f.log.Info("gmail fetch complete",
		zap.Int("count", len(messages)),
		zap.Bool("unread_only", unreadOnly),
	)
	return messages
}

// Get 按 ID 取单封邮件。
func (f *Fetcher) Get(ctx context.Context, id string) (*domain.Message, error) {
	full, err := f.srv.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail get %s: %w", id, err)
	}
	msg := parseMessage(full)
	return &msg, nil
}

// Thread 取一个会话线程内的全部邮件，按时间顺序返回。
func (f *Fetcher) Thread(ctx context.Context, threadID string) ([]domain.Message, error) {
	thread, err := f.srv.Users.Threads.Get(gmailUser, threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail thread %s: %w", threadID, err)
	}
	messages := make([]domain.Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, parseMessage(m))
	}
	return messages, nil
}

// MarkRead 移除 UNREAD 标签。
func (f *Fetcher) MarkRead(ctx context.Context, id string) error {
	_, err := f.srv.Users.Messages.Modify(gmailUser, id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail mark read %s: %w", id, err)
	}
	return nil
}

// SendReply 在原邮件所在线程内发送回复。
func (f *Fetcher) SendReply(ctx context.Context, original *domain.Message, reply *domain.Reply) error {
	var raw strings.Builder
	fmt.Fprintf(&raw, "To: %s\r\n", original.From)
	fmt.Fprintf(&raw, "Subject: %s\r\n", reply.Subject)
	raw.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	raw.WriteString("\r\n")
	raw.WriteString(reply.Body)

	_, err := f.srv.Users.Messages.Send(gmailUser, &gmailapi.Message{
		ThreadId: original.ThreadID,
		Raw:      base64.URLEncoding.EncodeToString([]byte(raw.String())),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send reply: %w", err)
	}

	f.log.Info("reply sent",
		zap.String("message_id", original.ID),
		zap.String("to", original.From),
	)
	return nil
}

// parseMessage 把 Gmail API 报文转换为领域模型。
func parseMessage(full *gmailapi.Message) domain.Message {
	msg := domain.Message{
		ID:        full.Id,
		ThreadID:  full.ThreadId,
		Snippet:   full.Snippet,
		Labels:    full.LabelIds,
		Source:    Source,
		IsRead:    true,
		CreatedAt: time.Now().UTC(),
	}
	for _, label := range full.LabelIds {
		switch label {
		case "UNREAD":
			msg.IsRead = false
		case "STARRED":
			msg.IsStarred = true
		}
	}
	if full.InternalDate > 0 {
		msg.Date = time.UnixMilli(full.InternalDate).UTC()
	}

	if full.Payload == nil {
		return msg
	}
	for _, header := range full.Payload.Headers {
		switch header.Name {
		case "Subject":
			msg.Subject = header.Value
		case "From":
			msg.From = header.Value
		case "To":
			msg.To = splitAddresses(header.Value)
		case "Cc":
			msg.Cc = splitAddresses(header.Value)
		case "Date":
			if t, err := parseDate(header.Value); err == nil {
				msg.Date = t
			}
		}
	}
	msg.Text = partBody(full.Payload, "text/plain")
	msg.HTML = partBody(full.Payload, "text/html")
	return msg
}

// dateLayouts 邮件 Date 头常见格式，按出现频率排序。
var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
}

func parseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func splitAddresses(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// partBody 深度优先查找指定 MIME 类型的正文并做 base64url 解码。
func partBody(part *gmailapi.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return ""
		}
		return string(data)
	}
	for _, child := range part.Parts {
		if body := partBody(child, mimeType); body != "" {
			return body
		}
	}
	return ""
}
