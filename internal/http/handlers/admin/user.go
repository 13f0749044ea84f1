package admin

import (
	"strings"

	"github.com/license-ledger/internal/constants"
	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// UserStatusRequest 批量更新用户状态
type UserStatusRequest struct {
	UserIDs []uint `json:"user_ids" binding:"required"`
	Status  string `json:"status" binding:"required"`
}

// ListUsers 用户列表
func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	users, total, err := h.UserRepo.List(repository.UserListFilter{
		Page:     page,
		PageSize: pageSize,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, users, response.BuildPagination(page, pageSize, total))
}

// UpdateUserStatus 启用或停用用户，停用会吊销已签发的 Token
func (h *Handler) UpdateUserStatus(c *gin.Context) {
	var req UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != constants.UserStatusActive && status != constants.UserStatusDisabled {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	if err := h.UserRepo.BatchUpdateStatus(req.UserIDs, status); err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requestLog(c).Infow("admin_user_status_updated",
		"operator_admin_id", currentAdminID(c),
		"user_ids", req.UserIDs,
		"status", status,
	)
	response.Success(c, gin.H{"updated": len(req.UserIDs)})
}

// GetUserBalance 查看用户余额
func (h *Handler) GetUserBalance(c *gin.Context) {
	userID, ok := h.loadUserParam(c)
	if !ok {
		return
	}
	account, err := h.LedgerService.GetAccount(c.Request.Context(), userID, strings.TrimSpace(c.Query("currency")))
	if err != nil {
		respondWithMappedError(c, err, handlershared.LedgerErrorRules)
		return
	}
	response.Success(c, account)
}

// GetUserLedger 查看用户账本流水
func (h *Handler) GetUserLedger(c *gin.Context) {
	userID, ok := h.loadUserParam(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	entries, total, err := h.LedgerService.ListEntries(c.Request.Context(), repository.LedgerEntryListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      userID,
		Currency:    strings.TrimSpace(c.Query("currency")),
		Reason:      strings.TrimSpace(c.Query("reason")),
		CreatedFrom: handlershared.QueryTime(c, "created_from"),
		CreatedTo:   handlershared.QueryTime(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, entries, response.BuildPagination(page, pageSize, total))
}

func (h *Handler) loadUserParam(c *gin.Context) (uint, bool) {
	userID, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return 0, false
	}
	user, err := h.UserRepo.GetByID(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return 0, false
	}
	if user == nil {
		respondWithMappedError(c, service.ErrUserNotFound, handlershared.LedgerErrorRules)
		return 0, false
	}
	return userID, true
}
