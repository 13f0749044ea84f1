package models

// PurchaseStatus 购买单状态
type PurchaseStatus string

// 购买单状态取值
const (
	PurchaseStatusPendingPayment PurchaseStatus = "pending_payment"
	PurchaseStatusConfirming     PurchaseStatus = "confirming"
	PurchaseStatusConfirmed      PurchaseStatus = "confirmed"
	PurchaseStatusActive         PurchaseStatus = "active"
	PurchaseStatusCompleted      PurchaseStatus = "completed"
	PurchaseStatusRejected       PurchaseStatus = "rejected"
	PurchaseStatusExpired        PurchaseStatus = "expired"
)

// Valid 是否为已知状态
func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPendingPayment, PurchaseStatusConfirming, PurchaseStatusConfirmed,
		PurchaseStatusActive, PurchaseStatusCompleted, PurchaseStatusRejected, PurchaseStatusExpired:
		return true
	}
	return false
}

// IsPreConfirmation 是否处于确认前阶段
func (s PurchaseStatus) IsPreConfirmation() bool {
	return s == PurchaseStatusPendingPayment || s == PurchaseStatusConfirming
}

// External 对外展示标签
func (s PurchaseStatus) External() string {
	switch s {
	case PurchaseStatusPendingPayment:
		return "awaiting_payment"
	case PurchaseStatusConfirming:
		return "confirming"
	case PurchaseStatusConfirmed:
		return "confirmed"
	case PurchaseStatusActive:
		return "running"
	case PurchaseStatusCompleted:
		return "completed"
	case PurchaseStatusRejected:
		return "rejected"
	case PurchaseStatusExpired:
		return "expired"
	}
	return "unknown"
}

// ScheduleStatus 收益计划状态
type ScheduleStatus string

// 收益计划状态取值
const (
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusPaused    ScheduleStatus = "paused"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// Valid 是否为已知状态
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusActive, ScheduleStatusPaused, ScheduleStatusCompleted, ScheduleStatusCancelled:
		return true
	}
	return false
}

// IsTerminal 是否终态
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCompleted || s == ScheduleStatusCancelled
}

// External 对外展示标签
func (s ScheduleStatus) External() string {
	switch s {
	case ScheduleStatusActive:
		return "running"
	case ScheduleStatusPaused:
		return "paused"
	case ScheduleStatusCompleted:
		return "finished"
	case ScheduleStatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// BenefitDayStatus 收益日状态
type BenefitDayStatus string

// 收益日状态取值
const (
	BenefitDayPending  BenefitDayStatus = "pending"
	BenefitDayReleased BenefitDayStatus = "released"
	BenefitDaySkipped  BenefitDayStatus = "skipped"
)

// External 对外展示标签
func (s BenefitDayStatus) External() string {
	switch s {
	case BenefitDayPending:
		return "pending"
	case BenefitDayReleased:
		return "paid"
	case BenefitDaySkipped:
		return "rest_day"
	}
	return "unknown"
}

// CommissionStatus 佣金状态
type CommissionStatus string

// 佣金状态取值
const (
	CommissionStatusLocked    CommissionStatus = "locked"
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusUnlocked  CommissionStatus = "unlocked"
	CommissionStatusWithdrawn CommissionStatus = "withdrawn" // 保留取值：解锁后的佣金并入可用余额，提现不逐笔追溯到佣金，引擎不写入该状态
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Valid 是否为已知状态
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionStatusLocked, CommissionStatusPending, CommissionStatusUnlocked,
		CommissionStatusWithdrawn, CommissionStatusCancelled:
		return true
	}
	return false
}

// CanUnlock 是否可解锁入账
func (s CommissionStatus) CanUnlock() bool {
	return s == CommissionStatusLocked || s == CommissionStatusPending
}

// External 对外展示标签
func (s CommissionStatus) External() string {
	switch s {
	case CommissionStatusLocked:
		return "locked"
	case CommissionStatusPending:
		return "on_hold"
	case CommissionStatusUnlocked:
		return "available"
	case CommissionStatusWithdrawn:
		return "withdrawn"
	case CommissionStatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

// WithdrawalStatus 提现状态
type WithdrawalStatus string

// 提现状态取值
const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusApproved   WithdrawalStatus = "approved"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusRejected   WithdrawalStatus = "rejected"
)

// InFlightWithdrawalStatuses 处理中的提现状态集合
var InFlightWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusPending,
	WithdrawalStatusApproved,
	WithdrawalStatusProcessing,
}

// Valid 是否为已知状态
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusRejected:
		return true
	}
	return false
}

// IsTerminal 是否终态
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusRejected
}

// External 对外展示标签
func (s WithdrawalStatus) External() string {
	switch s {
	case WithdrawalStatusPending:
		return "in_review"
	case WithdrawalStatusApproved:
		return "approved"
	case WithdrawalStatusProcessing:
		return "sending"
	case WithdrawalStatusCompleted:
		return "paid"
	case WithdrawalStatusRejected:
		return "rejected"
	}
	return "unknown"
}
