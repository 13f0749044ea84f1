package service

import (
	"errors"
	"fmt"
)

// 通用错误
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAccountInactive        = errors.New("account inactive")
	ErrUserNotFound           = errors.New("user not found")
)

// 管理员认证错误
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenGenerate      = errors.New("token generate failed")
)

// 账本错误
var (
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrReservedInsufficient    = errors.New("reserved balance insufficient")
	ErrLedgerConflict          = errors.New("ledger compare-and-set conflict")
	ErrTransientConflict       = errors.New("transient conflict, retry later")
	ErrLedgerReasonInvalid     = errors.New("ledger reason invalid")
	ErrLedgerReferenceRequired = errors.New("ledger reference required")
)

// 一次性口令错误
var (
	ErrOtpPurposeInvalid   = errors.New("otp purpose invalid")
	ErrOtpTooFrequent      = errors.New("otp requested too frequently")
	ErrOtpNotFound         = errors.New("otp challenge not found")
	ErrOtpExpired          = errors.New("otp expired")
	ErrOtpAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrOtpMismatch         = errors.New("otp mismatch")
)

// OtpMismatchError 口令错误，携带剩余可尝试次数
type OtpMismatchError struct {
	RemainingAttempts int
}

func (e *OtpMismatchError) Error() string {
	return fmt.Sprintf("%s, %d attempts left", ErrOtpMismatch.Error(), e.RemainingAttempts)
}

func (e *OtpMismatchError) Unwrap() error {
	return ErrOtpMismatch
}

// 收益计划错误
var (
	ErrBenefitScheduleNotFound = errors.New("benefit schedule not found")
	ErrBenefitPlanInvalid      = errors.New("benefit plan invalid")
	ErrBenefitDayOutOfRange    = errors.New("benefit day out of range")
	ErrBenefitDayNotDue        = errors.New("benefit day not due")
	ErrBenefitDayOutOfOrder    = errors.New("benefit day out of order")
	ErrBenefitSchedulePaused   = errors.New("benefit schedule paused")
	ErrBenefitScheduleClosed   = errors.New("benefit schedule closed")
)

// 推荐佣金错误
var (
	ErrAlreadySettled = errors.New("commission already settled")
)

// 提现错误
var (
	ErrInvalidAddress             = errors.New("invalid withdrawal address")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrPendingWithdrawalExists    = errors.New("pending withdrawal exists")
	ErrWithdrawalNotFound         = errors.New("withdrawal not found")
	ErrWithdrawalOutcomeInvalid   = errors.New("withdrawal outcome invalid")
	ErrWithdrawalCompensateFailed = errors.New("withdrawal reservation compensation failed")
)

// 购买单错误
var (
	ErrPurchaseNotFound  = errors.New("purchase not found")
	ErrPurchaseInvalid   = errors.New("purchase invalid")
	ErrPurchaseMismatch  = errors.New("purchase does not match event")
	ErrPackageNotFound   = errors.New("license package not found")
	ErrPackageInactive   = errors.New("license package inactive")
	ErrPrincipalTooSmall = errors.New("principal below package minimum")
)
