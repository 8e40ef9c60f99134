package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultLocalSweepInterval = time.Hour

// Service 异步队列服务
type Service struct {
	name      string
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	consumer  *Consumer
}

// NewService 创建异步队列服务，开启调度时注册周期任务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	svc := &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}
	if cfg.Scheduler.Enabled {
		scheduler, err := buildScheduler(opt, &cfg.Scheduler, consumer.Clock.Now().Location())
		if err != nil {
			return nil, err
		}
		svc.scheduler = scheduler
	}
	return svc, nil
}

func buildScheduler(opt asynq.RedisClientOpt, cfg *config.SchedulerConfig, loc *time.Location) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: loc})
	if spec := strings.TrimSpace(cfg.LoyaltySweepCron); spec != "" {
		if _, err := scheduler.Register(spec, queue.NewLoyaltySweepTask(), asynq.Queue(queue.BatchQueue)); err != nil {
			return nil, err
		}
	}
	if spec := strings.TrimSpace(cfg.MonthlySettleCron); spec != "" {
		task, err := queue.NewMonthlySettleTask(queue.MonthlySettlePayload{})
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(spec, task, asynq.Queue(queue.BatchQueue)); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	s.server.Shutdown()
	return nil
}

// LocalScheduler 队列关闭时的本地周期任务：清扫到期周期，每月 1 日结算上月奖金
type LocalScheduler struct {
	consumer      *Consumer
	interval      time.Duration
	lastSettled   string
	settleMonthly bool
}

// NewLocalScheduler 创建本地调度
func NewLocalScheduler(cfg *config.SchedulerConfig, consumer *Consumer) *LocalScheduler {
	interval := defaultLocalSweepInterval
	settle := true
	if cfg != nil {
		if cfg.LoyaltySweepSeconds > 0 {
			interval = time.Duration(cfg.LoyaltySweepSeconds) * time.Second
		}
		settle = strings.TrimSpace(cfg.MonthlySettleCron) != ""
	}
	return &LocalScheduler{consumer: consumer, interval: interval, settleMonthly: settle}
}

// Name 服务名称
func (s *LocalScheduler) Name() string {
	return "local_scheduler"
}

// Start 启动轮询，直到 ctx 结束
func (s *LocalScheduler) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("local scheduler not initialized")
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop 停止服务
func (s *LocalScheduler) Stop(context.Context) error {
	return nil
}

// RunOnce 执行一轮周期任务
func (s *LocalScheduler) RunOnce(ctx context.Context) {
	if err := s.consumer.sweepLoyaltyCycles(ctx); err != nil {
		logger.Warnw("local_scheduler_sweep_failed", "error", err)
	}
	if !s.settleMonthly {
		return
	}
	now := s.consumer.Clock.Now()
	if now.Day() != 1 {
		return
	}
	period, err := incentive.PreviousMonthPeriod(incentive.MonthPeriod(now))
	if err != nil || period == s.lastSettled {
		return
	}
	if _, err := s.consumer.BonusService.SettleMonthlyBonuses(ctx, period); err != nil {
		logger.Warnw("local_scheduler_monthly_settle_failed", "period", period, "error", err)
		return
	}
	s.lastSettled = period
}
