package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/repository"

	"github.com/gin-gonic/gin"
)

type schedulePausePayload struct {
	Reason string `json:"reason"`
}

type scheduleReleasePayload struct {
	AsOf *time.Time `json:"as_of"`
}

// ListSchedules 收益计划列表
func (h *Handler) ListSchedules(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	purchaseID, err := parseQueryUint(c, "purchase_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	schedules, total, err := h.BenefitService.ListUserSchedules(c.Request.Context(), repository.BenefitScheduleListFilter{
		Page:       page,
		PageSize:   pageSize,
		UserID:     userID,
		PurchaseID: purchaseID,
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, schedules, response.BuildPagination(page, pageSize, total))
}

// GetSchedule 收益计划详情
func (h *Handler) GetSchedule(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	schedule, err := h.BenefitService.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, scheduleErrorRules)
		return
	}
	response.Success(c, schedule)
}

// ListScheduleDays 计划逐日记录
func (h *Handler) ListScheduleDays(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	days, total, err := h.BenefitService.ListDays(c.Request.Context(), repository.BenefitDayListFilter{
		Page:       page,
		PageSize:   pageSize,
		ScheduleID: id,
		Status:     strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, days, response.BuildPagination(page, pageSize, total))
}

// PauseSchedule 暂停收益计划
func (h *Handler) PauseSchedule(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req schedulePausePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	schedule, err := h.BenefitService.Pause(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondWithMappedError(c, err, scheduleErrorRules)
		return
	}
	requestLog(c).Infow("admin_schedule_paused",
		"operator_admin_id", currentAdminID(c),
		"schedule_id", id,
		"reason", req.Reason,
	)
	response.Success(c, schedule)
}

// ResumeSchedule 恢复收益计划
func (h *Handler) ResumeSchedule(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	schedule, err := h.BenefitService.Resume(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, scheduleErrorRules)
		return
	}
	requestLog(c).Infow("admin_schedule_resumed",
		"operator_admin_id", currentAdminID(c),
		"schedule_id", id,
	)
	response.Success(c, schedule)
}

// ReleaseScheduleDay 手动处理单个收益日
func (h *Handler) ReleaseScheduleDay(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	dayIndex, err := strconv.Atoi(strings.TrimSpace(c.Param("day")))
	if err != nil || dayIndex < 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req scheduleReleasePayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "error.bad_request", err)
			return
		}
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}
	result, err := h.BenefitService.ReleaseDay(c.Request.Context(), id, dayIndex, asOf)
	if err != nil {
		respondWithMappedError(c, err, scheduleErrorRules)
		return
	}
	response.Success(c, result)
}
