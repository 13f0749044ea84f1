package service

import (
	"context"
	"time"

	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/queue"
)

// Notifier 下游投递方（邮件、短信、站内信等由外部实现）
type Notifier interface {
	WithdrawalStateChanged(ctx context.Context, payload queue.WithdrawalStateChangedPayload) error
	DeliverPin(ctx context.Context, payload queue.OtpDeliverPayload) error
}

// WithdrawalNotifier 提现状态变更信号
type WithdrawalNotifier interface {
	NotifyWithdrawalStateChanged(ctx context.Context, req *models.WithdrawalRequest)
}

// LogNotifier 仅记录日志的默认投递方（不输出 PIN）
type LogNotifier struct{}

// WithdrawalStateChanged 记录提现状态变更
func (LogNotifier) WithdrawalStateChanged(_ context.Context, payload queue.WithdrawalStateChangedPayload) error {
	logger.Infow("notify_withdrawal_state_changed",
		"request_no", payload.RequestNo,
		"user_id", payload.UserID,
		"status", payload.Status,
		"amount", payload.Amount,
	)
	return nil
}

// DeliverPin 记录口令投递
func (LogNotifier) DeliverPin(_ context.Context, payload queue.OtpDeliverPayload) error {
	logger.Infow("notify_otp_delivered",
		"user_id", payload.UserID,
		"purpose", payload.Purpose,
		"challenge_id", payload.ChallengeID,
		"expires_at", payload.ExpiresAt,
	)
	return nil
}

// NotificationService 通知投递：优先入队，队列关闭时直接交给投递方
type NotificationService struct {
	queueClient *queue.Client
	notifier    Notifier
}

// NewNotificationService 创建通知服务
func NewNotificationService(queueClient *queue.Client, notifier Notifier) *NotificationService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &NotificationService{
		queueClient: queueClient,
		notifier:    notifier,
	}
}

// Notifier 返回下游投递方
func (s *NotificationService) Notifier() Notifier {
	if s == nil || s.notifier == nil {
		return LogNotifier{}
	}
	return s.notifier
}

// NotifyWithdrawalStateChanged 发送提现状态变更信号，失败只记录日志
func (s *NotificationService) NotifyWithdrawalStateChanged(ctx context.Context, req *models.WithdrawalRequest) {
	if s == nil || req == nil {
		return
	}
	payload := queue.WithdrawalStateChangedPayload{
		RequestID:  req.ID,
		RequestNo:  req.RequestNo,
		UserID:     req.UserID,
		Status:     req.Status.External(),
		Amount:     req.Amount.String(),
		Currency:   req.Currency,
		TxHash:     req.TxHash,
		OccurredAt: time.Now().UTC(),
	}
	var err error
	if s.queueClient.Enabled() {
		err = s.queueClient.EnqueueWithdrawalStateChanged(payload)
	} else {
		err = s.Notifier().WithdrawalStateChanged(ctx, payload)
	}
	if err != nil {
		logger.Warnw("withdrawal_state_notify_failed",
			"request_no", req.RequestNo,
			"status", req.Status,
			"error", err,
		)
	}
}

// DeliverPin 投递口令
func (s *NotificationService) DeliverPin(ctx context.Context, userID uint, purpose string, issued *OtpIssueResult) error {
	if s == nil || issued == nil {
		return nil
	}
	payload := queue.OtpDeliverPayload{
		UserID:      userID,
		Purpose:     purpose,
		ChallengeID: issued.ChallengeID,
		Pin:         issued.Pin,
		ExpiresAt:   issued.ExpiresAt,
	}
	if s.queueClient.Enabled() {
		return s.queueClient.EnqueueOtpDeliver(payload)
	}
	return s.Notifier().DeliverPin(ctx, payload)
}
