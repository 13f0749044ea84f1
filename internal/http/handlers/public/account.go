package public

import (
	"strings"

	handlershared "github.com/license-ledger/internal/http/handlers/shared"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetMyBalance 获取当前用户余额账户
func (h *Handler) GetMyBalance(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	account, err := h.LedgerService.GetAccount(c.Request.Context(), uid, c.Query("currency"))
	if err != nil {
		respondWithMappedError(c, err, userQueryErrorRules, "error.internal")
		return
	}
	response.Success(c, account)
}

// GetMyLedger 获取当前用户账本流水
func (h *Handler) GetMyLedger(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	entries, total, err := h.LedgerService.ListEntries(c.Request.Context(), repository.LedgerEntryListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      uid,
		Currency:    c.Query("currency"),
		Reason:      strings.ToUpper(strings.TrimSpace(c.Query("reason"))),
		CreatedFrom: handlershared.QueryTime(c, "created_from"),
		CreatedTo:   handlershared.QueryTime(c, "created_to"),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, entries, response.BuildPagination(page, pageSize, total))
}
