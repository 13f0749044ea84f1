package service

import (
	"context"
	"errors"
	"time"

	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/metrics"
)

const (
	defaultConflictRetries = 5
	defaultConflictBackoff = 20 * time.Millisecond
)

// RetryPolicy 乐观锁冲突重试策略
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// runWithRetry 在 ErrLedgerConflict 时重新执行整个工作单元，超过上限后返回 ErrTransientConflict
func runWithRetry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	policy = policy.normalized()
	for attempt := 0; ; attempt++ {
		err := fn()
		if !errors.Is(err, ErrLedgerConflict) {
			return err
		}
		if attempt >= policy.MaxRetries {
			logger.Warnw("ledger_conflict_retry_exhausted", "op", op, "attempts", attempt+1)
			return ErrTransientConflict
		}
		metrics.ObserveLedgerConflictRetry()
		logger.Debugw("ledger_conflict_retry", "op", op, "attempt", attempt+1)
		if policy.Backoff > 0 {
			timer := time.NewTimer(policy.Backoff * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}
