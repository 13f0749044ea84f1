package public

import (
	"strings"
	"time"

	"github.com/license-ledger/internal/constants"
	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WithdrawalCreateRequest 用户提现请求
type WithdrawalCreateRequest struct {
	Amount  string `json:"amount" binding:"required"`
	Address string `json:"address" binding:"required"`
	Pin     string `json:"pin" binding:"required"`
}

// WithdrawalView 提现申请视图
type WithdrawalView struct {
	models.WithdrawalRequest
	StatusLabel string `json:"status_label"`
}

func newWithdrawalView(req *models.WithdrawalRequest) WithdrawalView {
	return WithdrawalView{WithdrawalRequest: *req, StatusLabel: req.Status.External()}
}

// RequestWithdrawalPin 下发提现口令（PIN 仅经由投递方送达，不在响应中返回）
func (h *Handler) RequestWithdrawalPin(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	issued, err := h.OtpService.Issue(c.Request.Context(), uid, constants.OtpPurposeWithdrawal)
	if err != nil {
		respondWithMappedError(c, err, otpIssueErrorRules, "error.internal")
		return
	}
	if err := h.NotificationService.DeliverPin(c.Request.Context(), uid, constants.OtpPurposeWithdrawal, issued); err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"challenge_id": issued.ChallengeID,
		"expires_at":   issued.ExpiresAt.Format(time.RFC3339),
	})
}

// CreateWithdrawal 发起提现
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req WithdrawalCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_amount", nil)
		return
	}
	created, err := h.WithdrawalService.RequestWithdrawal(c.Request.Context(), service.WithdrawalRequestInput{
		UserID:  uid,
		Amount:  models.NewMoneyFromDecimal(amount),
		Address: req.Address,
		Pin:     req.Pin,
	})
	if err != nil {
		respondWithdrawalError(c, err)
		return
	}
	response.Success(c, newWithdrawalView(created))
}

// GetMyWithdrawals 当前用户提现记录
func (h *Handler) GetMyWithdrawals(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	items, total, err := h.WithdrawalService.ListUserRequests(c.Request.Context(), uid, repository.WithdrawalListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondWithMappedError(c, err, userQueryErrorRules, "error.internal")
		return
	}
	views := make([]WithdrawalView, 0, len(items))
	for i := range items {
		views = append(views, newWithdrawalView(&items[i]))
	}
	response.SuccessWithPage(c, views, response.BuildPagination(page, pageSize, total))
}

// GetMyWithdrawal 当前用户单笔提现详情
func (h *Handler) GetMyWithdrawal(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	item, err := h.WithdrawalService.GetUserRequest(c.Request.Context(), uid, id)
	if err != nil {
		respondWithMappedError(c, err, userQueryErrorRules, "error.internal")
		return
	}
	response.Success(c, newWithdrawalView(item))
}
