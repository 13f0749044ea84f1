package admin

import (
	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

var adminLoginErrorRules = []handlershared.MappedError{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.invalid_credentials"},
}

var purchaseErrorRules = handlershared.ConcatMappedErrors(
	handlershared.PurchaseErrorRules,
	handlershared.BenefitErrorRules,
	handlershared.LedgerErrorRules,
)

var scheduleErrorRules = handlershared.ConcatMappedErrors(
	handlershared.BenefitErrorRules,
	handlershared.LedgerErrorRules,
)

var withdrawalErrorRules = handlershared.ConcatMappedErrors(
	handlershared.WithdrawalErrorRules,
	handlershared.LedgerErrorRules,
)

func respondWithMappedError(c *gin.Context, err error, rules []handlershared.MappedError) {
	handlershared.RespondMappedError(c, err, rules, response.CodeInternal, "error.internal")
}
