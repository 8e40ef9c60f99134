package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

// Service 由 Runner 管理生命周期的组件，如资源容器、管理接口、队列消费与本地调度
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并行启动全部组件，任一组件退出后整体关闭
type Runner struct {
	services []Service
}

type serviceExit struct {
	name string
	err  error
}

// NewRunner 创建运行器，services 的注册顺序决定逆序停止的顺序
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts, err := normalizeOptions(opts)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 阻塞到 ctx 结束或某个组件退出，随后在 stopTimeout 内逆序停止全部组件
// 组件的启动错误与停止错误合并返回，ctx 取消视为正常退出
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, log *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if stopTimeout <= 0 {
		stopTimeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go startService(ctx, svc, exits, log)
	}

	var runErr error
	select {
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.Canceled) {
			runErr = ctx.Err()
		}
	case exit := <-exits:
		if exit.err != nil {
			log.Errorw("service_exit", "service", exit.name, "error", exit.err)
			runErr = fmt.Errorf("%s: %w", exit.name, exit.err)
		} else {
			log.Infow("service_exit", "service", exit.name)
		}
	}
	cancel()

	return errors.Join(runErr, r.stopAll(stopTimeout, log))
}

func startService(ctx context.Context, svc Service, exits chan<- serviceExit, log *zap.SugaredLogger) {
	if svc == nil {
		exits <- serviceExit{name: "unknown", err: errors.New("service is nil")}
		return
	}
	name := svc.Name()
	defer func() {
		if p := recover(); p != nil {
			exits <- serviceExit{name: name, err: fmt.Errorf("panic: %v", p)}
		}
	}()
	log.Infow("service_start", "service", name)
	exits <- serviceExit{name: name, err: svc.Start(ctx)}
}

func (r *Runner) stopAll(timeout time.Duration, log *zap.SugaredLogger) error {
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if svc == nil {
			continue
		}
		began := time.Now()
		if err := svc.Stop(stopCtx); err != nil {
			log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.Name(), err))
			continue
		}
		log.Infow("service_stopped", "service", svc.Name(), "elapsed_ms", time.Since(began).Milliseconds())
	}
	return errors.Join(errs...)
}
