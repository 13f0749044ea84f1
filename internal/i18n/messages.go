package i18n

var catalog = map[string]map[string]string{
	LocaleZH: {
		"error.bad_request":                "请求参数错误",
		"error.unauthorized":               "未登录或登录已失效",
		"error.forbidden":                  "无权限执行该操作",
		"error.not_found":                  "资源不存在",
		"error.internal":                   "服务器内部错误",
		"error.too_many_requests":          "请求过于频繁，请稍后再试",
		"error.rate_limited":               "请求过于频繁，请 %d 秒后再试",
		"error.rate_limit_unavailable":     "限流服务暂不可用",
		"error.token_invalid":              "登录凭证无效",
		"error.invalid_credentials":        "账号或密码错误",
		"error.account_inactive":           "账号已被停用",
		"error.user_not_found":             "用户不存在",
		"error.invalid_amount":             "金额不合法",
		"error.invalid_currency":           "不支持的币种",
		"error.invalid_state_transition":   "当前状态不允许该操作",
		"error.transient_conflict":         "系统繁忙，请稍后重试",
		"error.insufficient_funds":         "余额不足",
		"error.otp_purpose_invalid":        "不支持的口令用途",
		"error.otp_too_frequent":           "口令发送过于频繁，请稍后再试",
		"error.otp_not_found":              "请先获取口令",
		"error.otp_expired":                "口令已过期，请重新获取",
		"error.otp_attempts_exceeded":      "口令错误次数过多，请重新获取",
		"error.otp_mismatch":               "口令错误，剩余 %d 次机会",
		"error.schedule_not_found":         "收益计划不存在",
		"error.benefit_plan_invalid":       "收益计划参数不合法",
		"error.benefit_day_out_of_range":   "发放日超出计划范围",
		"error.benefit_day_not_due":        "发放日尚未到期",
		"error.benefit_day_out_of_order":   "发放日需按顺序处理",
		"error.benefit_schedule_paused":    "收益计划已暂停",
		"error.benefit_schedule_closed":    "收益计划已结束",
		"error.already_settled":            "该购买单佣金已结算",
		"error.invalid_address":            "提现地址格式错误",
		"error.insufficient_balance":       "可用余额不足",
		"error.pending_withdrawal_exists":  "已有处理中的提现申请",
		"error.withdrawal_not_found":       "提现申请不存在",
		"error.withdrawal_outcome_invalid": "提现处理结果不合法",
		"error.withdrawal_compensate":      "提现冻结回补失败，请联系客服",
		"error.purchase_not_found":         "购买单不存在",
		"error.purchase_invalid":           "购买单参数不合法",
		"error.purchase_mismatch":          "购买单信息与已登记记录不一致",
		"error.package_not_found":          "套餐不存在",
		"error.package_inactive":           "套餐已下架",
		"error.principal_too_small":        "本金低于套餐最低要求",
		"error.authz_builtin_role":         "预置角色及其内置权限不可修改",
		"error.authz_role_not_found":       "角色不存在",
	},
	LocaleEN: {
		"error.bad_request":                "Invalid request parameters",
		"error.unauthorized":               "Not signed in or session expired",
		"error.forbidden":                  "You are not allowed to perform this action",
		"error.not_found":                  "Resource not found",
		"error.internal":                   "Internal server error",
		"error.too_many_requests":          "Too many requests, please try again later",
		"error.rate_limited":               "Too many requests, retry in %d seconds",
		"error.rate_limit_unavailable":     "Rate limiter unavailable",
		"error.token_invalid":              "Invalid credential",
		"error.invalid_credentials":        "Invalid account or password",
		"error.account_inactive":           "Account is disabled",
		"error.user_not_found":             "User not found",
		"error.invalid_amount":             "Invalid amount",
		"error.invalid_currency":           "Unsupported currency",
		"error.invalid_state_transition":   "This action is not allowed in the current state",
		"error.transient_conflict":         "System busy, please retry",
		"error.insufficient_funds":         "Insufficient funds",
		"error.otp_purpose_invalid":        "Unsupported PIN purpose",
		"error.otp_too_frequent":           "PIN requested too frequently",
		"error.otp_not_found":              "Please request a PIN first",
		"error.otp_expired":                "PIN expired, please request a new one",
		"error.otp_attempts_exceeded":      "Too many wrong PINs, please request a new one",
		"error.otp_mismatch":               "Wrong PIN, %d attempts left",
		"error.schedule_not_found":         "Benefit schedule not found",
		"error.benefit_plan_invalid":       "Invalid benefit plan",
		"error.benefit_day_out_of_range":   "Day index out of range",
		"error.benefit_day_not_due":        "Day is not due yet",
		"error.benefit_day_out_of_order":   "Days must be processed in order",
		"error.benefit_schedule_paused":    "Benefit schedule is paused",
		"error.benefit_schedule_closed":    "Benefit schedule is closed",
		"error.already_settled":            "Commission already settled for this purchase",
		"error.invalid_address":            "Invalid withdrawal address",
		"error.insufficient_balance":       "Insufficient available balance",
		"error.pending_withdrawal_exists":  "A withdrawal is already in progress",
		"error.withdrawal_not_found":       "Withdrawal request not found",
		"error.withdrawal_outcome_invalid": "Invalid withdrawal outcome",
		"error.withdrawal_compensate":      "Failed to release the reserved amount, please contact support",
		"error.purchase_not_found":         "Purchase not found",
		"error.purchase_invalid":           "Invalid purchase",
		"error.purchase_mismatch":          "Purchase does not match the registered record",
		"error.package_not_found":          "License package not found",
		"error.package_inactive":           "License package is no longer available",
		"error.principal_too_small":        "Principal is below the package minimum",
		"error.authz_builtin_role":         "Builtin roles and their builtin permissions cannot be changed",
		"error.authz_role_not_found":       "Role not found",
	},
}
