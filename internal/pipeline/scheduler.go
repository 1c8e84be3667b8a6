package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/monitoring"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage"
)

// 单轮清扫处理的预定发布上限
const sweepBatchSize = 100

// Scheduler 周期任务调度器
//
// 两个周期任务:到期预定发布的清扫投递,以及(启用邮件源时)未读邮件轮询。
type Scheduler struct {
	store       domain.Store
	publisher   *social.Publisher
	coordinator *Coordinator
	metrics     *monitoring.Metrics
	cfg         config.PipelineConfig
	log         *zap.Logger

	cron *cron.Cron
}

// NewScheduler 创建周期任务调度器
func NewScheduler(store domain.Store, publisher *social.Publisher, coordinator *Coordinator, metrics *monitoring.Metrics, cfg config.PipelineConfig, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:       store,
		publisher:   publisher,
		coordinator: coordinator,
		metrics:     metrics,
		cfg:         cfg,
		log:         log,
		cron:        cron.New(),
	}
}

// Start 注册周期任务并启动调度
func (s *Scheduler) Start(ctx context.Context) error {
	if s.publisher != nil {
		spec := fmt.Sprintf("@every %s", s.cfg.SweepInterval)
		if _, err := s.cron.AddFunc(spec, func() {
			s.SweepScheduled(ctx)
		}); err != nil {
			return fmt.Errorf("failed to register sweep job: %w", err)
		}
	}

	if s.coordinator != nil && s.coordinator.deps.Fetcher != nil {
		spec := fmt.Sprintf("@every %s", s.cfg.PollInterval)
		if _, err := s.cron.AddFunc(spec, func() {
			runs := s.coordinator.FetchAndProcess(ctx)
			if len(runs) > 0 {
				s.log.Info("poll cycle finished", zap.Int("runs", len(runs)))
			}
		}); err != nil {
			return fmt.Errorf("failed to register poll job: %w", err)
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)
	return nil
}

// Stop 停止调度并等待运行中的任务结束
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}

// SweepScheduled 投递所有到期的预定发布并落终态
//
// 每条记录最多解析一次:解析冲突(另一实例抢先)静默跳过。
func (s *Scheduler) SweepScheduled(ctx context.Context) {
	due, err := s.store.ListDueScheduledPosts(time.Now(), sweepBatchSize)
	if err != nil {
		s.log.Error("failed to list due scheduled posts", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.log.Info("sweeping due scheduled posts", zap.Int("count", len(due)))

	for i := range due {
		s.deliverDue(ctx, &due[i])
	}
}

// deliverDue 投递一条到期的预定发布
func (s *Scheduler) deliverDue(ctx context.Context, result *domain.PublishResult) {
	if err := s.publisher.Deliver(ctx, result); err != nil {
		s.log.Warn("scheduled delivery failed",
			zap.String("id", result.ID),
			zap.String("platform", result.Platform),
			zap.Error(err),
		)
	}

	postedAt := time.Now().UTC()
	if result.PostedAt != nil {
		postedAt = *result.PostedAt
	}

	err := s.store.ResolveScheduledPost(result.ID, result.Status, result.PostID, result.URL, result.Error, postedAt)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyResolved) {
			s.log.Debug("scheduled post already resolved elsewhere", zap.String("id", result.ID))
			return
		}
		s.log.Error("failed to resolve scheduled post",
			zap.String("id", result.ID),
			zap.Error(err),
		)
		return
	}

	s.metrics.RecordScheduledResolved(string(result.Status))
	s.metrics.RecordPost(result.Platform, string(result.Status))
}
