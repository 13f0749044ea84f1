package constants

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 币种与网络常量
const (
	CurrencyUSDT      = "USDT"
	NetworkBEP20      = "BEP20"
	DefaultCurrency   = CurrencyUSDT
	BEP20AddressRegex = `^0x[0-9a-fA-F]{40}$`
)

// 账本变动原因常量
const (
	LedgerReasonDailyBenefit        = "DAILY_BENEFIT"
	LedgerReasonReferralCommission  = "REFERRAL_COMMISSION"
	LedgerReasonWithdrawalReserved  = "WITHDRAWAL_RESERVED"
	LedgerReasonWithdrawalReleased  = "WITHDRAWAL_RELEASED"
	LedgerReasonWithdrawalCompleted = "WITHDRAWAL_COMPLETED"
	LedgerReasonPurchaseConfirmed   = "PURCHASE_CONFIRMED"
	LedgerReasonAdminAdjust         = "ADMIN_ADJUST"
)

// 账本流水方向常量
const (
	LedgerDirectionIn   = "in"
	LedgerDirectionOut  = "out"
	LedgerDirectionHold = "hold"
)

// 一次性口令用途常量
const (
	OtpPurposeWithdrawal = "withdrawal"
)

// 收益计划完成原因常量
const (
	ScheduleCompletedCapReached = "cap_reached"
	ScheduleCompletedAllDays    = "all_days_released"
	ScheduleCompletedSpanEnded  = "span_ended"
)

// 提现终态结果常量
const (
	WithdrawalOutcomeCompleted = "completed"
	WithdrawalOutcomeRejected  = "rejected"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskPurchaseConfirmed      = "purchase:confirmed"
	TaskWithdrawalStateChanged = "withdrawal:state_changed"
	TaskOtpDeliver             = "otp:deliver"
)

// 分布式锁键常量
const (
	LockKeyBenefitSweep    = "sweep:benefit"
	LockKeyCommissionSweep = "sweep:commission"
)

// 站点语言常量
const (
	LocaleZhCN = "zh-CN"
	LocaleEnUS = "en-US"
)

// 支持的站点语言顺序（含回退顺序）
var SupportedLocales = []string{LocaleZhCN, LocaleEnUS}
