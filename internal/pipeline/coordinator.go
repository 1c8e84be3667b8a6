package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agenticflow/backend/internal/agent"
	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/monitoring"
	"agenticflow/backend/internal/pool"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/websocket"
)

// ErrAlreadyProcessed 邮件已被处理过（去重标记命中）
var ErrAlreadyProcessed = errors.New("message already processed")

// 分类缓存保留时长
const classificationCacheTTL = time.Hour

// Fetcher 邮件拉取源
type Fetcher interface {
	Fetch(ctx context.Context, limit int, unreadOnly bool) []domain.Message
}

// Cache 去重标记与分类缓存
//
// Redis 启用时由 Redis 实现,否则由进程内缓存实现。
type Cache interface {
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error)
	CacheClassification(ctx context.Context, c *domain.Classification, ttl time.Duration) error
}

// Deps 协调器的依赖集合
type Deps struct {
	Store     domain.Store
	Cache     Cache   // 可为 nil,此时不做去重与分类缓存
	Fetcher   Fetcher // 可为 nil,此时 FetchAndProcess 为空操作
	Analyzer  *agent.Analyzer
	Extractor *agent.Extractor
	Formatter *agent.Formatter
	ReplyGen  *agent.ReplyGenerator
	Publisher *social.Publisher // 可为 nil,此时跳过发布
	Hub       *websocket.Hub    // 可为 nil,此时不推送事件
	Metrics   *monitoring.Metrics
	Pool      *pool.WorkerPool
	Log       *zap.Logger
}

// Coordinator 流水线协调器
//
// 串联 分析 -> 提取 -> 格式化 -> 发布 / 回复 各环节,
// 每封邮件产生一条不可变的 PipelineRun 记录。
type Coordinator struct {
	deps Deps
	cfg  config.PipelineConfig

	mu            sync.Mutex
	failureStreak int
}

// NewCoordinator 创建流水线协调器
func NewCoordinator(deps Deps, cfg config.PipelineConfig) *Coordinator {
	return &Coordinator{
		deps: deps,
		cfg:  cfg,
	}
}

// FailureStreak 返回当前连续失败次数,供告警规则使用
func (c *Coordinator) FailureStreak() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failureStreak
}

// recordOutcome 更新连续失败计数
func (c *Coordinator) recordOutcome(status domain.RunStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == domain.RunStatusError {
		c.failureStreak++
	} else {
		c.failureStreak = 0
	}
}

// Submit 接收一封外部投递的邮件并异步处理
//
// 实现 SMTP 入口的 Ingestor 接口:入库即返回,流水线在工作池中执行。
func (c *Coordinator) Submit(ctx context.Context, msg *domain.Message) error {
	if err := c.deps.Store.SaveMessage(msg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	c.deps.Metrics.RecordMessageIngested(msg.Source)
	if c.deps.Hub != nil {
		c.deps.Hub.NotifyNewMessage(msg)
	}

	// 任务脱离 SMTP 会话的生命周期执行
	taskCtx := context.WithoutCancel(ctx)
	message := *msg
	c.deps.Pool.Submit(func() {
		if _, err := c.Process(taskCtx, &message); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			c.deps.Log.Error("pipeline run failed",
				zap.String("message_id", message.ID),
				zap.Error(err),
			)
		}
	})

	return nil
}

// FetchAndProcess 从邮件源拉取一批未读邮件并逐封处理
func (c *Coordinator) FetchAndProcess(ctx context.Context) []*domain.PipelineRun {
	if c.deps.Fetcher == nil {
		return nil
	}

	messages := c.deps.Fetcher.Fetch(ctx, c.cfg.FetchLimit, true)
	for _, msg := range messages {
		c.deps.Metrics.RecordMessageFetched(msg.Source)
	}

	return c.ProcessBatch(ctx, messages)
}

// ProcessBatch 并发处理一批邮件,并发度受 Workers 配置约束
func (c *Coordinator) ProcessBatch(ctx context.Context, messages []domain.Message) []*domain.PipelineRun {
	if len(messages) == 0 {
		return nil
	}

	runs := make([]*domain.PipelineRun, len(messages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	for i := range messages {
		i := i
		g.Go(func() error {
			run, err := c.Process(gctx, &messages[i])
			if err != nil && !errors.Is(err, ErrAlreadyProcessed) {
				c.deps.Log.Error("pipeline run failed",
					zap.String("message_id", messages[i].ID),
					zap.Error(err),
				)
			}
			runs[i] = run
			// 单封失败不中断整批
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.PipelineRun, 0, len(runs))
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	return out
}

// Process 对一封邮件执行完整的流水线
//
// 分析失败时运行以 error 状态定稿;分支内的降级或单条发布失败
// 记为 partial;全部成功记为 success。运行记录总是落库。
func (c *Coordinator) Process(ctx context.Context, msg *domain.Message) (*domain.PipelineRun, error) {
	// 去重:同一封邮件只处理一次
	if c.deps.Cache != nil {
		fresh, err := c.deps.Cache.MarkProcessed(ctx, msg.ID, c.cfg.DedupTTL)
		if err != nil {
			c.deps.Log.Warn("dedup check failed, continuing",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		} else if !fresh {
			c.deps.Log.Debug("skipping already processed message",
				zap.String("message_id", msg.ID),
			)
			return nil, ErrAlreadyProcessed
		}
	}

	if err := c.deps.Store.SaveMessage(msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	start := time.Now()
	run := &domain.PipelineRun{
		ID:        uuid.NewString(),
		MessageID: msg.ID,
		Subject:   msg.Subject,
		From:      msg.From,
		StartedAt: start,
	}

	c.deps.Log.Info("pipeline run started",
		zap.String("run_id", run.ID),
		zap.String("message_id", msg.ID),
		zap.String("subject", msg.Subject),
	)

	classification, err := c.deps.Analyzer.Analyze(ctx, msg)
	if err != nil {
		run.Status = domain.RunStatusError
		run.Error = fmt.Sprintf("analysis failed: %v", err)
		c.finalize(ctx, run, start)
		return run, fmt.Errorf("analysis failed: %w", err)
	}

	if err := c.deps.Store.SaveClassification(classification); err != nil {
		run.Status = domain.RunStatusError
		run.Error = fmt.Sprintf("failed to save classification: %v", err)
		c.finalize(ctx, run, start)
		return run, fmt.Errorf("failed to save classification: %w", err)
	}

	run.Classification = classification
	run.ActionsTaken = append(run.ActionsTaken, "analyzed")
	c.deps.Metrics.RecordClassification(string(classification.Priority))

	if c.deps.Cache != nil {
		if err := c.deps.Cache.CacheClassification(ctx, classification, classificationCacheTTL); err != nil {
			c.deps.Log.Warn("failed to cache classification", zap.Error(err))
		}
	}

	partial := false

	if classification.IsNewsletter() {
		run.IsNewsletter = true
		if c.runNewsletterBranch(ctx, msg, run) {
			partial = true
		}
	}

	if classification.RequiresResponse {
		if c.runReplyBranch(ctx, msg, classification, run) {
			partial = true
		}
	}

	if partial {
		run.Status = domain.RunStatusPartial
	} else {
		run.Status = domain.RunStatusSuccess
	}

	c.finalize(ctx, run, start)
	return run, nil
}

// runNewsletterBranch 执行新闻简报分支,返回是否发生降级或部分失败
func (c *Coordinator) runNewsletterBranch(ctx context.Context, msg *domain.Message, run *domain.PipelineRun) bool {
	partial := false

	extraction := c.deps.Extractor.Extract(ctx, msg)
	if err := c.deps.Store.SaveExtraction(extraction); err != nil {
		c.deps.Log.Error("failed to save extraction",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		partial = true
	}

	run.Extraction = extraction
	run.ActionsTaken = append(run.ActionsTaken, "extracted_newsletter")

	if extraction.Degraded() {
		c.deps.Log.Warn("newsletter extraction degraded",
			zap.String("message_id", msg.ID),
			zap.String("error", extraction.Error),
		)
		return true
	}

	if len(extraction.Articles) == 0 {
		return partial
	}

	opts := agent.FormatOptions{
		Style:           c.cfg.DefaultTone,
		IncludeHashtags: true,
	}

	var posts []domain.FormattedPost
	for _, platform := range c.cfg.Platforms {
		posts = append(posts, c.deps.Formatter.BatchFormat(extraction.Articles, platform, opts)...)
	}
	if len(posts) > 0 {
		run.ActionsTaken = append(run.ActionsTaken, "formatted_posts")
	}

	if !c.cfg.AutoPublish || c.deps.Publisher == nil {
		for _, post := range posts {
			run.SocialPosts = append(run.SocialPosts, domain.PostOutcome{Post: post})
		}
		return partial
	}

	published := false
	for _, post := range posts {
		outcome := domain.PostOutcome{Post: post}

		result, err := c.deps.Publisher.Post(ctx, post.Platform, post.Content, nil, nil)
		if err != nil {
			c.deps.Log.Warn("publish rejected",
				zap.String("platform", post.Platform),
				zap.Error(err),
			)
			partial = true
			run.SocialPosts = append(run.SocialPosts, outcome)
			continue
		}

		result.ArticleID = articleIDForContent(extraction.Articles, post)
		if err := c.deps.Store.SavePublishResult(result); err != nil {
			c.deps.Log.Error("failed to save publish result",
				zap.String("platform", post.Platform),
				zap.Error(err),
			)
			partial = true
		}

		c.deps.Metrics.RecordPost(result.Platform, string(result.Status))
		if result.Status == domain.PostStatusFailed {
			partial = true
		} else {
			published = true
		}

		if c.deps.Hub != nil {
			c.deps.Hub.NotifyPostPublished(result)
		}

		outcome.Result = result
		run.SocialPosts = append(run.SocialPosts, outcome)
	}

	if published {
		run.ActionsTaken = append(run.ActionsTaken, "published_posts")
	}

	return partial
}

// runReplyBranch 执行回复分支,返回是否发生降级
func (c *Coordinator) runReplyBranch(ctx context.Context, msg *domain.Message, classification *domain.Classification, run *domain.PipelineRun) bool {
	reply := c.deps.ReplyGen.GenerateReply(ctx, msg, classification, c.cfg.DefaultTone)

	if err := c.deps.Store.SaveReply(reply); err != nil {
		c.deps.Log.Error("failed to save reply",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	run.Replies = append(run.Replies, *reply)
	run.ActionsTaken = append(run.ActionsTaken, "generated_reply")

	if reply.Error != "" {
		c.deps.Metrics.RecordReplyGenerated("fallback")
		return true
	}
	c.deps.Metrics.RecordReplyGenerated("success")
	return false
}

// finalize 定稿并落库运行记录
func (c *Coordinator) finalize(ctx context.Context, run *domain.PipelineRun, start time.Time) {
	run.FinishedAt = time.Now()

	if err := c.deps.Store.SaveRun(run); err != nil {
		c.deps.Log.Error("failed to save pipeline run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}

	duration := time.Since(start)
	c.deps.Metrics.RecordRun(string(run.Status), duration)
	c.recordOutcome(run.Status)

	if c.deps.Hub != nil {
		c.deps.Hub.NotifyRunCompleted(run)
	}

	c.deps.Log.Info("pipeline run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("actions", len(run.ActionsTaken)),
		zap.Duration("duration", duration),
	)
}

// articleIDForContent 找回帖子内容对应的文章 ID
func articleIDForContent(articles []domain.Article, post domain.FormattedPost) string {
	for _, article := range articles {
		if article.Title != "" && len(post.Content) >= len(article.Title) {
			if post.Content[:len(article.Title)] == article.Title {
				return article.ID
			}
		}
	}
	if len(articles) == 1 {
		return articles[0].ID
	}
	return ""
}
