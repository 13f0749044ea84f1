package admin

import (
	"time"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

type sweepPayload struct {
	AsOf *time.Time `json:"as_of"`
}

// resolveSweepTime 读取 as_of：请求体优先，其次查询参数，缺省为当前时间
func resolveSweepTime(c *gin.Context) (time.Time, bool) {
	var req sweepPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return time.Time{}, false
		}
	}
	if req.AsOf != nil {
		return req.AsOf.UTC(), true
	}
	if c.Query("as_of") != "" {
		asOf := handlershared.QueryTime(c, "as_of")
		if asOf == nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", nil)
			return time.Time{}, false
		}
		return asOf.UTC(), true
	}
	return time.Now().UTC(), true
}

// RunBenefitSweep 手动触发收益发放扫描
func (h *Handler) RunBenefitSweep(c *gin.Context) {
	asOf, ok := resolveSweepTime(c)
	if !ok {
		return
	}
	summary, err := h.BenefitService.ReleaseDue(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requestLog(c).Infow("admin_benefit_sweep_triggered",
		"operator_admin_id", currentAdminID(c),
		"as_of", asOf,
		"days_released", summary.DaysReleased,
		"failures", summary.Failures,
	)
	response.Success(c, summary)
}

// RunCommissionSweep 手动触发佣金解锁扫描
func (h *Handler) RunCommissionSweep(c *gin.Context) {
	asOf, ok := resolveSweepTime(c)
	if !ok {
		return
	}
	summary, err := h.CommissionService.UnlockDue(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requestLog(c).Infow("admin_commission_sweep_triggered",
		"operator_admin_id", currentAdminID(c),
		"as_of", asOf,
		"unlocked", summary.Unlocked,
		"failures", summary.Failures,
	)
	response.Success(c, summary)
}
