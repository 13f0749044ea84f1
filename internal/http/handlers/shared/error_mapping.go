package shared

import (
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/service"
)

// LedgerErrorRules 账本层通用错误映射
var LedgerErrorRules = []MappedError{
	{Target: service.ErrInvalidAmount, Code: response.CodeBadRequest, Key: "error.invalid_amount"},
	{Target: service.ErrInvalidCurrency, Code: response.CodeBadRequest, Key: "error.invalid_currency"},
	{Target: service.ErrInvalidStateTransition, Code: response.CodeConflict, Key: "error.invalid_state_transition"},
	{Target: service.ErrTransientConflict, Code: response.CodeUnavailable, Key: "error.transient_conflict"},
	{Target: service.ErrInsufficientFunds, Code: response.CodeBadRequest, Key: "error.insufficient_funds"},
	{Target: service.ErrUserNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
	{Target: service.ErrAccountInactive, Code: response.CodeForbidden, Key: "error.account_inactive"},
}

// OtpErrorRules 口令错误映射（口令不匹配需要携带剩余次数，由调用方单独处理）
var OtpErrorRules = []MappedError{
	{Target: service.ErrOtpPurposeInvalid, Code: response.CodeBadRequest, Key: "error.otp_purpose_invalid"},
	{Target: service.ErrOtpTooFrequent, Code: response.CodeTooManyRequests, Key: "error.otp_too_frequent"},
	{Target: service.ErrOtpNotFound, Code: response.CodeBadRequest, Key: "error.otp_not_found"},
	{Target: service.ErrOtpExpired, Code: response.CodeBadRequest, Key: "error.otp_expired"},
	{Target: service.ErrOtpAttemptsExceeded, Code: response.CodeBadRequest, Key: "error.otp_attempts_exceeded"},
}

// BenefitErrorRules 收益计划错误映射
var BenefitErrorRules = []MappedError{
	{Target: service.ErrBenefitScheduleNotFound, Code: response.CodeNotFound, Key: "error.schedule_not_found"},
	{Target: service.ErrBenefitPlanInvalid, Code: response.CodeBadRequest, Key: "error.benefit_plan_invalid"},
	{Target: service.ErrBenefitDayOutOfRange, Code: response.CodeBadRequest, Key: "error.benefit_day_out_of_range"},
	{Target: service.ErrBenefitDayNotDue, Code: response.CodeBadRequest, Key: "error.benefit_day_not_due"},
	{Target: service.ErrBenefitDayOutOfOrder, Code: response.CodeConflict, Key: "error.benefit_day_out_of_order"},
	{Target: service.ErrBenefitSchedulePaused, Code: response.CodeConflict, Key: "error.benefit_schedule_paused"},
	{Target: service.ErrBenefitScheduleClosed, Code: response.CodeConflict, Key: "error.benefit_schedule_closed"},
}

// WithdrawalErrorRules 提现错误映射
var WithdrawalErrorRules = []MappedError{
	{Target: service.ErrWithdrawalCompensateFailed, Code: response.CodeInternal, Key: "error.withdrawal_compensate"},
	{Target: service.ErrInvalidAddress, Code: response.CodeBadRequest, Key: "error.invalid_address"},
	{Target: service.ErrInsufficientBalance, Code: response.CodeBadRequest, Key: "error.insufficient_balance"},
	{Target: service.ErrPendingWithdrawalExists, Code: response.CodeConflict, Key: "error.pending_withdrawal_exists"},
	{Target: service.ErrWithdrawalNotFound, Code: response.CodeNotFound, Key: "error.withdrawal_not_found"},
	{Target: service.ErrWithdrawalOutcomeInvalid, Code: response.CodeBadRequest, Key: "error.withdrawal_outcome_invalid"},
}

// PurchaseErrorRules 购买单错误映射
var PurchaseErrorRules = []MappedError{
	{Target: service.ErrPurchaseNotFound, Code: response.CodeNotFound, Key: "error.purchase_not_found"},
	{Target: service.ErrPurchaseInvalid, Code: response.CodeBadRequest, Key: "error.purchase_invalid"},
	{Target: service.ErrPurchaseMismatch, Code: response.CodeConflict, Key: "error.purchase_mismatch"},
	{Target: service.ErrPackageNotFound, Code: response.CodeNotFound, Key: "error.package_not_found"},
	{Target: service.ErrPackageInactive, Code: response.CodeBadRequest, Key: "error.package_inactive"},
	{Target: service.ErrPrincipalTooSmall, Code: response.CodeBadRequest, Key: "error.principal_too_small"},
	{Target: service.ErrAlreadySettled, Code: response.CodeConflict, Key: "error.already_settled"},
}
