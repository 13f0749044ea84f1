package admin

import (
	"strings"
	"time"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/queue"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PurchaseConfirmedRequest 购买单确认事件
type PurchaseConfirmedRequest struct {
	PurchaseNo    string     `json:"purchase_no" binding:"required"`
	UserID        uint       `json:"user_id" binding:"required"`
	PackageCode   string     `json:"package_code" binding:"required"`
	Principal     string     `json:"principal" binding:"required"`
	Currency      string     `json:"currency"`
	ReferralChain []uint     `json:"referral_chain"`
	ConfirmedAt   *time.Time `json:"confirmed_at"`
	// Async 为 true 且队列可用时仅入队，由 worker 处理
	Async bool `json:"async"`
}

type purchaseReasonPayload struct {
	Reason string `json:"reason"`
}

// ListPurchases 购买单列表
func (h *Handler) ListPurchases(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	userID, err := parseQueryUint(c, "user_id")
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	purchases, total, err := h.PurchaseService.ListPurchases(c.Request.Context(), repository.PurchaseListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, purchases, response.BuildPagination(page, pageSize, total))
}

// GetPurchase 购买单详情
func (h *Handler) GetPurchase(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	purchase, err := h.PurchaseService.GetPurchase(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, purchaseErrorRules)
		return
	}
	response.Success(c, purchase)
}

// IngestConfirmedPurchase 接收支付确认事件
func (h *Handler) IngestConfirmedPurchase(c *gin.Context) {
	var req PurchaseConfirmedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	principal, err := decimal.NewFromString(strings.TrimSpace(req.Principal))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.invalid_amount", nil)
		return
	}
	confirmedAt := time.Now().UTC()
	if req.ConfirmedAt != nil && !req.ConfirmedAt.IsZero() {
		confirmedAt = req.ConfirmedAt.UTC()
	}

	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueuePurchaseConfirmed(queue.PurchaseConfirmedPayload{
			PurchaseNo:    req.PurchaseNo,
			UserID:        req.UserID,
			PackageCode:   req.PackageCode,
			Principal:     principal.String(),
			Currency:      req.Currency,
			ReferralChain: req.ReferralChain,
			ConfirmedAt:   confirmedAt,
		}); err != nil {
			respondError(c, response.CodeUnavailable, "error.transient_conflict", err)
			return
		}
		response.Success(c, gin.H{"queued": true, "purchase_no": req.PurchaseNo})
		return
	}

	result, err := h.PurchaseService.HandleConfirmed(c.Request.Context(), service.PurchaseConfirmedEvent{
		PurchaseNo:    req.PurchaseNo,
		UserID:        req.UserID,
		PackageCode:   req.PackageCode,
		Principal:     models.NewMoneyFromDecimal(principal),
		Currency:      req.Currency,
		ReferralChain: req.ReferralChain,
		ConfirmedAt:   confirmedAt,
	})
	if err != nil {
		respondWithMappedError(c, err, purchaseErrorRules)
		return
	}
	requestLog(c).Infow("admin_purchase_confirmed",
		"operator_admin_id", currentAdminID(c),
		"purchase_no", req.PurchaseNo,
		"replayed", result.Replayed,
	)
	response.Success(c, result)
}

// ReversePurchase 撤销已确认购买单
func (h *Handler) ReversePurchase(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	var req purchaseReasonPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	purchase, err := h.PurchaseService.Reverse(c.Request.Context(), id, reason)
	if err != nil {
		respondWithMappedError(c, err, purchaseErrorRules)
		return
	}
	requestLog(c).Infow("admin_purchase_reversed",
		"operator_admin_id", currentAdminID(c),
		"purchase_id", id,
		"reason", reason,
	)
	response.Success(c, purchase)
}

// ExpirePurchase 关闭未支付购买单
func (h *Handler) ExpirePurchase(c *gin.Context) {
	id, ok := handlershared.ParamUint(c, "id")
	if !ok {
		return
	}
	purchase, err := h.PurchaseService.Expire(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, purchaseErrorRules)
		return
	}
	response.Success(c, purchase)
}
