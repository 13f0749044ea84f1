package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

const defaultStopTimeout = 10 * time.Second

// Service 可由 Runner 管理生命周期的进程内服务（HTTP、asynq worker、定时扫描）
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并行启动服务，任一服务退出即整体收尾
type Runner struct {
	services []Service
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// RunWithOptions 监听系统信号并运行全部服务
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 启动全部服务；ctx 取消视为正常退出，服务自身的错误原样返回。
// 停止顺序与启动顺序相反，先停后台扫描与消费者，最后停 HTTP。
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, logger *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	for i, svc := range r.services {
		if svc == nil {
			return fmt.Errorf("service #%d is nil", i)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	exits := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go r.start(runCtx, svc, exits, logger)
	}

	var runErr error
	select {
	case <-runCtx.Done():
		runErr = runCtx.Err()
	case exit := <-exits:
		runErr = exit.err
		if runErr == nil && logger != nil {
			logger.Warnw("app_service_exited_early", "service", exit.name)
		}
	}
	cancel()

	r.stopAll(stopTimeout, logger)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

type serviceExit struct {
	name string
	err  error
}

func (r *Runner) start(ctx context.Context, svc Service, exits chan<- serviceExit, logger *zap.SugaredLogger) {
	name := svc.Name()
	if logger != nil {
		logger.Infow("app_service_start", "service", name)
	}
	err := svc.Start(ctx)
	if logger != nil {
		logger.Infow("app_service_exit", "service", name, "error", err)
	}
	exits <- serviceExit{name: name, err: err}
}

func (r *Runner) stopAll(timeout time.Duration, logger *zap.SugaredLogger) {
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	defer stopCancel()
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil && logger != nil {
			logger.Errorw("app_service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
}
