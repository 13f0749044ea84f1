package queue

import (
	"encoding/json"
	"time"

	"github.com/license-ledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPurchaseConfirmed 购买单确认事件任务
	TaskPurchaseConfirmed = constants.TaskPurchaseConfirmed
	// TaskWithdrawalStateChanged 提现状态变更通知任务
	TaskWithdrawalStateChanged = constants.TaskWithdrawalStateChanged
	// TaskOtpDeliver 口令投递任务
	TaskOtpDeliver = constants.TaskOtpDeliver
)

// PurchaseConfirmedPayload 购买单确认事件载荷
type PurchaseConfirmedPayload struct {
	PurchaseNo    string    `json:"purchase_no"`
	UserID        uint      `json:"user_id"`
	PackageCode   string    `json:"package_code"`
	Principal     string    `json:"principal"`
	Currency      string    `json:"currency"`
	ReferralChain []uint    `json:"referral_chain,omitempty"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// WithdrawalStateChangedPayload 提现状态变更载荷
type WithdrawalStateChangedPayload struct {
	RequestID  uint      `json:"request_id"`
	RequestNo  string    `json:"request_no"`
	UserID     uint      `json:"user_id"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	TxHash     string    `json:"tx_hash,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OtpDeliverPayload 口令投递载荷
type OtpDeliverPayload struct {
	UserID      uint      `json:"user_id"`
	Purpose     string    `json:"purpose"`
	ChallengeID string    `json:"challenge_id"`
	Pin         string    `json:"pin"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewPurchaseConfirmedTask 创建购买单确认任务
func NewPurchaseConfirmedTask(payload PurchaseConfirmedPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPurchaseConfirmed, payload)
}

// NewWithdrawalStateChangedTask 创建提现状态变更任务
func NewWithdrawalStateChangedTask(payload WithdrawalStateChangedPayload) (*asynq.Task, error) {
	return newJSONTask(TaskWithdrawalStateChanged, payload)
}

// NewOtpDeliverTask 创建口令投递任务
func NewOtpDeliverTask(payload OtpDeliverPayload) (*asynq.Task, error) {
	return newJSONTask(TaskOtpDeliver, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
