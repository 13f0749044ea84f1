package public

import (
	"strings"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// ScheduleView 用户侧收益计划视图
type ScheduleView struct {
	models.BenefitSchedule
	StatusLabel string `json:"status_label"`
}

func newScheduleViews(items []models.BenefitSchedule) []ScheduleView {
	views := make([]ScheduleView, 0, len(items))
	for _, item := range items {
		views = append(views, ScheduleView{BenefitSchedule: item, StatusLabel: item.Status.External()})
	}
	return views
}

// GetMySchedules 获取当前用户的收益计划
func (h *Handler) GetMySchedules(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	schedules, total, err := h.BenefitService.ListUserSchedules(c.Request.Context(), repository.BenefitScheduleListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, newScheduleViews(schedules), response.BuildPagination(page, pageSize, total))
}

// GetMyScheduleDays 获取计划的逐日发放记录
func (h *Handler) GetMyScheduleDays(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	scheduleID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	if _, err := h.BenefitService.GetUserSchedule(c.Request.Context(), uid, scheduleID); err != nil {
		respondWithMappedError(c, err, userQueryErrorRules, "error.internal")
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	days, total, err := h.BenefitService.ListDays(c.Request.Context(), repository.BenefitDayListFilter{
		Page:       page,
		PageSize:   pageSize,
		ScheduleID: scheduleID,
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, days, response.BuildPagination(page, pageSize, total))
}

// GetMyCommissions 获取当前用户作为受益人的佣金记录
func (h *Handler) GetMyCommissions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	records, total, err := h.CommissionService.ListUserCommissions(c.Request.Context(), repository.CommissionListFilter{
		Page:          page,
		PageSize:      pageSize,
		BeneficiaryID: uid,
		Status:        strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, records, response.BuildPagination(page, pageSize, total))
}

// GetMyPurchases 获取当前用户的购买单
func (h *Handler) GetMyPurchases(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	purchases, total, err := h.PurchaseService.ListPurchases(c.Request.Context(), repository.PurchaseListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, purchases, response.BuildPagination(page, pageSize, total))
}

// GetPackages 获取可售许可套餐
func (h *Handler) GetPackages(c *gin.Context) {
	packages, err := h.PurchaseService.ListPackages(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, packages)
}
