package public

import (
	"errors"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/i18n"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

var userLoginErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.invalid_credentials"},
	{Target: service.ErrAccountInactive, Code: response.CodeForbidden, Key: "error.account_inactive"},
}

var userQueryErrorRules = handlershared.ConcatMappedErrors(
	handlershared.LedgerErrorRules,
	handlershared.BenefitErrorRules,
	handlershared.WithdrawalErrorRules,
)

var otpIssueErrorRules = handlershared.ConcatMappedErrors(
	handlershared.OtpErrorRules,
	handlershared.LedgerErrorRules,
)

var withdrawalRequestErrorRules = handlershared.ConcatMappedErrors(
	handlershared.WithdrawalErrorRules,
	handlershared.OtpErrorRules,
	handlershared.LedgerErrorRules,
)

func respondWithMappedError(c *gin.Context, err error, rules []handlershared.MappedError, fallbackKey string) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, fallbackKey)
}

// respondWithdrawalError 口令错误需要带上剩余次数
func respondWithdrawalError(c *gin.Context, err error) {
	var mismatch *service.OtpMismatchError
	if errors.As(err, &mismatch) {
		msg := i18n.Sprintf(i18n.ResolveLocale(c), "error.otp_mismatch", mismatch.RemainingAttempts)
		response.ErrorWithData(c, response.CodeBadRequest, msg, gin.H{"remaining_attempts": mismatch.RemainingAttempts})
		return
	}
	respondWithMappedError(c, err, withdrawalRequestErrorRules, "error.internal")
}
