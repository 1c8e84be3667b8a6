package smtp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/security"
)

// Source 邮件来源标识。
const Source = "smtp"

// maxMessageBytes 单封邮件的大小上限。
const maxMessageBytes = 10 << 20

// 连接限流参数。
const (
	maxConcurrentConns = 100
	maxConnsPerSecond  = 20
)

// Ingestor 收到入站邮件后的提交接口，由流水线协调器实现。
type Ingestor interface {
	Submit(ctx context.Context, msg *domain.Message) error
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的入口：入站邮件解析为领域消息后提交给
// 流水线处理，不支持中继或对外发送。
type Backend struct {
	ingestor Ingestor
	filter   *security.ContentFilter
	limiter  *ConnectionLimiter
	log      *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(ingestor Ingestor, log *zap.Logger) *Backend {
	return &Backend{
		ingestor: ingestor,
		filter:   security.NewContentFilter(),
		limiter:  NewConnectionLimiter(maxConcurrentConns, maxConnsPerSecond),
		log:      log,
	}
}

// NewServer 用配置组装 go-smtp 服务器。
func NewServer(cfg config.SMTPConfig, backend *Backend) *gosmtp.Server {
	srv := gosmtp.NewServer(backend)
	srv.Addr = cfg.BindAddr
	srv.Domain = cfg.Domain
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.MaxMessageBytes = maxMessageBytes
	srv.MaxRecipients = 20
	srv.AllowInsecureAuth = true
	return srv
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		b.log.Warn("smtp connection rejected, limiter saturated",
			zap.Int("current", b.limiter.Current()),
		)
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 4, 5},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。收件地址只做格式校验，路由交给流水线。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)
	if !strings.Contains(addr, "@") {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}
	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容：解析 MIME 并提交流水线。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.log.Warn("inbound mail parse failed",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		return fmt.Errorf("parse email: %w", err)
	}

	msg := parsed.ToMessage()
	msg.ID = uuid.NewString()
	if s.fromAddress != "" {
		msg.From = s.fromAddress
	}
	if len(msg.To) == 0 {
		msg.To = s.recipients
	}

	if ok, reason := s.backend.filter.FilterMessage(msg); !ok {
		s.backend.log.Warn("inbound mail rejected",
			zap.String("from", msg.From),
			zap.String("reason", reason),
		)
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "message rejected by content policy",
		}
	}

	if err := s.backend.ingestor.Submit(context.Background(), msg); err != nil {
		s.backend.log.Error("inbound mail submit failed",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
			Message:      "temporary processing failure",
		}
	}

	s.backend.log.Info("inbound mail accepted",
		zap.String("message_id", msg.ID),
		zap.String("from", msg.From),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
