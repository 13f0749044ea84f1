package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/license-ledger/internal/cache"
	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/service"
)

const (
	defaultSweepInterval = 5 * time.Minute
	minSweepLockTTL      = time.Minute
)

// SweepJob 周期扫描任务
type SweepJob struct {
	Name     string
	LockKey  string
	Interval time.Duration
	Run      func(ctx context.Context, now time.Time) error
}

// Sweeper 周期扫描服务；多实例部署时由 Redis 锁保证同一时刻只有一个实例执行
type Sweeper struct {
	jobs     []SweepJob
	now      func() time.Time
	done     chan struct{}
	doneOnce sync.Once
}

// NewSweeper 创建扫描服务
func NewSweeper(jobs ...SweepJob) *Sweeper {
	return &Sweeper{jobs: jobs, now: time.Now, done: make(chan struct{})}
}

// NewLedgerSweeper 组装收益发放与佣金解锁两个扫描任务
func NewLedgerSweeper(benefit *service.BenefitService, commission *service.CommissionService, benefitInterval, commissionInterval time.Duration) *Sweeper {
	var jobs []SweepJob
	if benefit != nil {
		jobs = append(jobs, SweepJob{
			Name:     "benefit",
			LockKey:  constants.LockKeyBenefitSweep,
			Interval: benefitInterval,
			Run: func(ctx context.Context, now time.Time) error {
				summary, err := benefit.ReleaseDue(ctx, now)
				if err != nil {
					return err
				}
				logger.Infow("worker_benefit_sweep_done",
					"schedules_scanned", summary.SchedulesScanned,
					"days_released", summary.DaysReleased,
					"days_skipped", summary.DaysSkipped,
					"failures", summary.Failures,
					"amount_released", summary.AmountReleased.String(),
				)
				return nil
			},
		})
	}
	if commission != nil {
		jobs = append(jobs, SweepJob{
			Name:     "commission",
			LockKey:  constants.LockKeyCommissionSweep,
			Interval: commissionInterval,
			Run: func(ctx context.Context, now time.Time) error {
				summary, err := commission.UnlockDue(ctx, now)
				if err != nil {
					return err
				}
				logger.Infow("worker_commission_sweep_done",
					"scanned", summary.Scanned,
					"unlocked", summary.Unlocked,
					"held", summary.Held,
					"failures", summary.Failures,
					"amount_unlocked", summary.AmountUnlocked.String(),
				)
				return nil
			},
		})
	}
	return NewSweeper(jobs...)
}

// Name 服务名称
func (s *Sweeper) Name() string {
	return "sweeper"
}

// Start 启动所有扫描循环，ctx 结束时返回；无论以何种方式返回，Stop 都不会再阻塞
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil {
		return errors.New("sweeper has no jobs")
	}
	defer s.doneOnce.Do(func() { close(s.done) })
	if len(s.jobs) == 0 {
		return errors.New("sweeper has no jobs")
	}
	finished := make(chan struct{}, len(s.jobs))
	for _, job := range s.jobs {
		job := job
		go func() {
			defer func() { finished <- struct{}{} }()
			s.loop(ctx, job)
		}()
	}
	for range s.jobs {
		<-finished
	}
	return nil
}

// Stop 等待扫描循环退出
func (s *Sweeper) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) loop(ctx context.Context, job SweepJob) {
	interval := job.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	s.RunOnce(ctx, job)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce 加锁执行一次扫描，未抢到锁时跳过
func (s *Sweeper) RunOnce(ctx context.Context, job SweepJob) bool {
	ttl := job.Interval
	if ttl < minSweepLockTTL {
		ttl = minSweepLockTTL
	}
	lock, err := cache.TryLock(ctx, job.LockKey, ttl)
	if err != nil {
		logger.Warnw("worker_sweep_lock_failed", "sweep", job.Name, "error", err)
		return false
	}
	if !lock.Held() {
		logger.Debugw("worker_sweep_skip_locked", "sweep", job.Name)
		return false
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			logger.Warnw("worker_sweep_unlock_failed", "sweep", job.Name, "error", err)
		}
	}()

	if err := job.Run(ctx, s.now().UTC()); err != nil {
		logger.Errorw("worker_sweep_failed", "sweep", job.Name, "error", err)
	}
	return true
}
