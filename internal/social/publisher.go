package social

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"agenticflow/backend/internal/domain"
)

// 发布器级错误。
var (
	// ErrNotConnected 平台尚未连接。
	ErrNotConnected = errors.New("social: platform not connected")
	// ErrEmptyContent 发布内容为空。
	ErrEmptyContent = errors.New("social: empty content")
	// ErrInvalidCredentials 连接凭据缺失或无效。
	ErrInvalidCredentials = errors.New("social: invalid credentials")
)

// Publisher 管理平台连接并执行发布。
//
// 每个平台独立限速；未连接的平台拒绝发布。批量发布中单个失败
// 不影响其余条目。
type Publisher struct {
	poster    Poster
	log       *zap.Logger
	rateLimit rate.Limit
	rateBurst int

	mu        sync.RWMutex
	connected map[string]map[string]string
	limiters  map[string]*rate.Limiter
}

// NewPublisher 创建发布器。perSecond 为单平台每秒发布上限，
// 0 表示不限速。
func NewPublisher(poster Poster, perSecond float64, burst int, log *zap.Logger) *Publisher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Publisher{
		poster:    poster,
		log:       log,
		rateLimit: limit,
		rateBurst: burst,
		connected: make(map[string]map[string]string),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Connect 连接平台。重复连接是幂等的，凭据以最后一次为准。
func (p *Publisher) Connect(platform string, credentials map[string]string) error {
	if platform == "" {
		return fmt.Errorf("%w: empty platform", ErrInvalidCredentials)
	}
	if len(credentials) == 0 {
		return fmt.Errorf("%w: platform %s", ErrInvalidCredentials, platform)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected[platform] = credentials
	if _, ok := p.limiters[platform]; !ok {
		p.limiters[platform] = rate.NewLimiter(p.rateLimit, p.rateBurst)
	}
	return nil
}

// Disconnect 断开平台连接。
func (p *Publisher) Disconnect(platform string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.connected, platform)
}

// Connected 判断平台是否已连接。
func (p *Publisher) Connected(platform string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.connected[platform]
	return ok
}

// Platforms 返回当前已连接的平台列表。
func (p *Publisher) Platforms() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.connected))
	for platform := range p.connected {
		out = append(out, platform)
	}
	return out
}

// Post 发布一条内容。
//
// scheduleTime 为未来时刻时不触达平台，返回 scheduled 状态的结果，
// 由调度清扫在到期后完成实际投递；否则立即投递。
func (p *Publisher) Post(ctx context.Context, platform, content string, mediaURLs []string, scheduleTime *time.Time) (*domain.PublishResult, error) {
	if !p.Connected(platform) {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, platform)
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	result := &domain.PublishResult{
		ID:        uuid.NewString(),
		Platform:  platform,
		Content:   content,
		MediaURLs: mediaURLs,
		CreatedAt: time.Now().UTC(),
	}

	if scheduleTime != nil && scheduleTime.After(time.Now()) {
		at := scheduleTime.UTC()
		result.Status = domain.PostStatusScheduled
		result.ScheduledAt = &at
		p.log.Info("post scheduled",
			zap.String("platform", platform),
			zap.Time("scheduled_at", at),
		)
		return result, nil
	}

	p.deliver(ctx, result)
	return result, nil
}

// Deliver 对一条已存在的发布记录执行实际投递，就地更新状态字段。
// 调度清扫用它完成到期的 scheduled 记录。
func (p *Publisher) Deliver(ctx context.Context, result *domain.PublishResult) error {
	if !p.Connected(result.Platform) {
		result.Status = domain.PostStatusFailed
		result.Error = ErrNotConnected.Error()
		return fmt.Errorf("%w: %s", ErrNotConnected, result.Platform)
	}
	p.deliver(ctx, result)
	if result.Status == domain.PostStatusFailed {
		return errors.New(result.Error)
	}
	return nil
}

// BatchItem 批量发布中单条内容的结果。
type BatchItem struct {
	Platform string                `json:"platform"`
	Success  bool                  `json:"success"`
	Result   *domain.PublishResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// BatchPost 顺序发布多条内容，结果互相独立。
func (p *Publisher) BatchPost(ctx context.Context, posts []domain.FormattedPost, scheduleTime *time.Time) []BatchItem {
	items := make([]BatchItem, 0, len(posts))
	for _, post := range posts {
		item := BatchItem{Platform: post.Platform}
		result, err := p.Post(ctx, post.Platform, post.Content, nil, scheduleTime)
		if err != nil {
			item.Error = err.Error()
		} else if result.Status == domain.PostStatusFailed {
			item.Result = result
			item.Error = result.Error
		} else {
			item.Success = true
			item.Result = result
		}
		items = append(items, item)
	}
	return items
}

// deliver 执行限速与实际投递，更新 result 的终态字段。
func (p *Publisher) deliver(ctx context.Context, result *domain.PublishResult) {
	if limiter := p.limiter(result.Platform); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			result.Status = domain.PostStatusFailed
			result.Error = fmt.Sprintf("rate limit wait: %v", err)
			return
		}
	}

	resp, err := p.poster.Post(ctx, result.Platform, result.Content, result.MediaURLs)
	if err != nil {
		p.log.Error("post delivery failed",
			zap.String("platform", result.Platform),
			zap.Error(err),
		)
		result.Status = domain.PostStatusFailed
		result.Error = err.Error()
		return
	}

	now := time.Now().UTC()
	result.Status = domain.PostStatusPosted
	result.PostID = resp.PostID
	result.URL = resp.URL
	result.PostedAt = &now
	result.Error = ""
}

func (p *Publisher) limiter(platform string) *rate.Limiter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.limiters[platform]
}
