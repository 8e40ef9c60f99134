package app

import (
	"context"
	"errors"

	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/provider"
	"github.com/yieldtree/incentive-engine/internal/router"
	"github.com/yieldtree/incentive-engine/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	return buildRunner(cfg, mode, provider.NewContainer(cfg))
}

func buildRunner(cfg *config.Config, mode string, container *provider.Container) (*Runner, error) {
	// 按注册逆序停止，资源最先注册、最后释放
	services := []Service{&containerService{container: container}}

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		services = append(services, NewHTTPService(addr, engine))
	}

	// 初始化 Worker 服务，队列关闭时退化为本地周期任务
	if mode == ModeAll || mode == ModeWorker {
		consumer := worker.NewConsumer(container)
		if cfg.Queue.Enabled {
			workerService, err := worker.NewService(cfg, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else if cfg.Scheduler.Enabled {
			services = append(services, worker.NewLocalScheduler(&cfg.Scheduler, consumer))
		}
	}

	if len(services) == 1 {
		return nil, errors.New("no services initialized (check mode and config)")
	}
	return NewRunner(services...), nil
}

// containerService 持有容器资源直到退出
type containerService struct {
	container *provider.Container
}

func (s *containerService) Name() string {
	return "resources"
}

func (s *containerService) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (s *containerService) Stop(ctx context.Context) error {
	if s.container != nil {
		s.container.Close(ctx)
	}
	return nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return err
	}
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	var runner *Runner
	if opts.Container != nil {
		runner, err = buildRunner(opts.Config, opts.Mode, opts.Container)
	} else {
		runner, err = BuildRunner(opts.Config, opts.Mode)
	}
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "queue", opts.Config.Queue.Enabled, "graph", opts.Config.Graph.Enabled)
	return RunWithOptions(runner, opts)
}
