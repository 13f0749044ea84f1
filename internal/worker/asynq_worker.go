package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/provider"
	"github.com/license-ledger/internal/queue"
	"github.com/license-ledger/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// 业务上不可能再成功的错误，直接归档不再重试
var permanentPurchaseErrors = []error{
	service.ErrPurchaseInvalid,
	service.ErrPurchaseMismatch,
	service.ErrPackageNotFound,
	service.ErrPackageInactive,
	service.ErrPrincipalTooSmall,
	service.ErrUserNotFound,
	service.ErrInvalidAmount,
	service.ErrInvalidCurrency,
	service.ErrInvalidStateTransition,
}

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPurchaseConfirmed, c.handlePurchaseConfirmed)
	mux.HandleFunc(queue.TaskWithdrawalStateChanged, c.handleWithdrawalStateChanged)
	mux.HandleFunc(queue.TaskOtpDeliver, c.handleOtpDeliver)
}

func (c *Consumer) handlePurchaseConfirmed(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.PurchaseService == nil {
		logger.Debugw("worker_purchase_confirmed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseConfirmedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_confirmed_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	event, err := purchaseEventFromPayload(payload)
	if err != nil {
		logger.Warnw("worker_purchase_confirmed_invalid_payload", "purchase_no", payload.PurchaseNo, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result, err := c.PurchaseService.HandleConfirmed(ctx, event)
	if err != nil {
		if isPermanentPurchaseError(err) {
			logger.Warnw("worker_purchase_confirmed_rejected",
				"purchase_no", payload.PurchaseNo,
				"user_id", payload.UserID,
				"error", err,
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Warnw("worker_purchase_confirmed_failed", "purchase_no", payload.PurchaseNo, "error", err)
		return err
	}
	logger.Infow("worker_purchase_confirmed",
		"purchase_no", payload.PurchaseNo,
		"replayed", result.Replayed,
		"commissions", len(result.Commissions),
	)
	return nil
}

func (c *Consumer) handleWithdrawalStateChanged(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.WithdrawalStateChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_withdrawal_notify_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.RequestNo == "" || payload.UserID == 0 {
		logger.Debugw("worker_withdrawal_notify_skip_invalid_payload", "request_id", payload.RequestID)
		return nil
	}
	if err := c.notifier().WithdrawalStateChanged(ctx, payload); err != nil {
		logger.Warnw("worker_withdrawal_notify_failed", "request_no", payload.RequestNo, "status", payload.Status, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOtpDeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.OtpDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_otp_deliver_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.UserID == 0 || payload.ChallengeID == "" {
		logger.Debugw("worker_otp_deliver_skip_invalid_payload", "user_id", payload.UserID)
		return nil
	}
	if !payload.ExpiresAt.IsZero() && !time.Now().Before(payload.ExpiresAt) {
		logger.Infow("worker_otp_deliver_skip_expired", "user_id", payload.UserID, "challenge_id", payload.ChallengeID)
		return nil
	}
	if err := c.notifier().DeliverPin(ctx, payload); err != nil {
		if finalAttempt(ctx) {
			// 最后一次失败按完成处理，带明文口令的任务不进入归档集合
			logger.Errorw("worker_otp_deliver_abandoned", "user_id", payload.UserID, "challenge_id", payload.ChallengeID, "error", err)
			return nil
		}
		logger.Warnw("worker_otp_deliver_failed", "user_id", payload.UserID, "challenge_id", payload.ChallengeID, "error", err)
		return err
	}
	return nil
}

// finalAttempt 判断当前是否为任务的最后一次执行；非 asynq 上下文返回 false
var finalAttempt = func(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return false
	}
	return retried >= maxRetry
}

func (c *Consumer) notifier() service.Notifier {
	if c.NotificationService == nil {
		return service.LogNotifier{}
	}
	return c.NotificationService.Notifier()
}

func purchaseEventFromPayload(payload queue.PurchaseConfirmedPayload) (service.PurchaseConfirmedEvent, error) {
	purchaseNo := strings.TrimSpace(payload.PurchaseNo)
	if purchaseNo == "" || payload.UserID == 0 {
		return service.PurchaseConfirmedEvent{}, service.ErrPurchaseInvalid
	}
	principal, err := decimal.NewFromString(strings.TrimSpace(payload.Principal))
	if err != nil {
		return service.PurchaseConfirmedEvent{}, service.ErrInvalidAmount
	}
	return service.PurchaseConfirmedEvent{
		PurchaseNo:    purchaseNo,
		UserID:        payload.UserID,
		PackageCode:   strings.TrimSpace(payload.PackageCode),
		Principal:     models.NewMoneyFromDecimal(principal),
		Currency:      payload.Currency,
		ReferralChain: payload.ReferralChain,
		ConfirmedAt:   payload.ConfirmedAt,
	}, nil
}

func isPermanentPurchaseError(err error) bool {
	for _, target := range permanentPurchaseErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
