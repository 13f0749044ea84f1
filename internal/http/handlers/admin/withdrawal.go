package admin

import (
	"context"
	"strings"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WithdrawalFinalizeRequest 提现终态请求
type WithdrawalFinalizeRequest struct {
	Outcome      string `json:"outcome" binding:"required"`
	TxHash       string `json:"tx_hash"`
	ErrorMessage string `json:"error_message"`
	ActualFee    string `json:"actual_fee"`
}

// ListWithdrawals 提现申请列表
func (h *Handler) ListWithdrawals(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	items, total, err := h.WithdrawalService.ListRequests(c.Request.Context(), repository.WithdrawalListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      userID,
		Status:      strings.TrimSpace(c.Query("status")),
		RequestNo:   strings.TrimSpace(c.Query("request_no")),
		CreatedFrom: handlershared.QueryTime(c, "created_from"),
		CreatedTo:   handlershared.QueryTime(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// GetWithdrawal 提现申请详情
func (h *Handler) GetWithdrawal(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	item, err := h.WithdrawalService.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules)
		return
	}
	response.Success(c, item)
}

// ApproveWithdrawal 审核通过
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	h.advanceWithdrawal(c, h.WithdrawalService.Approve)
}

// MarkWithdrawalProcessing 标记打款中
func (h *Handler) MarkWithdrawalProcessing(c *gin.Context) {
	h.advanceWithdrawal(c, h.WithdrawalService.MarkProcessing)
}

func (h *Handler) advanceWithdrawal(c *gin.Context, step func(ctx context.Context, id uint, adminID uint) (*models.WithdrawalRequest, error)) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	item, err := step(c.Request.Context(), id, adminID)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules)
		return
	}
	response.Success(c, item)
}

// FinalizeWithdrawal 提现终态：完成或驳回
func (h *Handler) FinalizeWithdrawal(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req WithdrawalFinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	fee := decimal.Zero
	if raw := strings.TrimSpace(req.ActualFee); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			respondError(c, response.CodeBadRequest, "error.invalid_amount", nil)
			return
		}
		fee = parsed
	}
	item, err := h.WithdrawalService.Finalize(c.Request.Context(), id, req.Outcome, service.FinalizeDetail{
		TxHash:       strings.TrimSpace(req.TxHash),
		ErrorMessage: strings.TrimSpace(req.ErrorMessage),
		ActualFee:    models.NewMoneyFromDecimal(fee),
		AdminID:      adminID,
	})
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules)
		return
	}
	requestLog(c).Infow("admin_withdrawal_finalized",
		"operator_admin_id", adminID,
		"request_no", item.RequestNo,
		"outcome", req.Outcome,
		"request_id", currentRequestID(c),
	)
	response.Success(c, item)
}
