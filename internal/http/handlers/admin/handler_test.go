package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/provider"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testWithdrawalAddress = "0x52908400098527886E0F7030069857D2E4169EE7"

type adminResponseAssert struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func setupAdminHandlerTest(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:admin_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	ledger := service.NewLedgerService(repository.NewBalanceRepository(db), service.LedgerOptions{Currency: constants.CurrencyUSDT})
	otp := service.NewOtpService(repository.NewOtpRepository(db), service.OtpOptions{HashCost: bcrypt.MinCost})
	notification := service.NewNotificationService(nil, service.LogNotifier{})
	benefit := service.NewBenefitService(repository.NewBenefitRepository(db), purchaseRepo, ledger, service.BenefitOptions{})
	commission := service.NewCommissionService(repository.NewCommissionRepository(db), purchaseRepo, userRepo, ledger, service.CommissionOptions{})

	h := New(&provider.Container{
		UserRepo:            userRepo,
		LedgerService:       ledger,
		OtpService:          otp,
		NotificationService: notification,
		BenefitService:      benefit,
		CommissionService:   commission,
		WithdrawalService: service.NewWithdrawalService(
			repository.NewWithdrawalRepository(db), userRepo, ledger, otp, notification,
			service.WithdrawalOptions{MinAmount: decimal.NewFromInt(10)},
		),
	})

	if err := db.Create(&models.User{
		ID:     1,
		Email:  "admin_handler_user_1@example.com",
		Status: constants.UserStatusActive,
	}).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return h
}

func newAdminContext(method, target, body string, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Locale", "en-US")
	c.Request = req
	c.Params = params
	c.Set("admin_id", uint(99))
	return c, w
}

func decodeAdminResponse(t *testing.T, w *httptest.ResponseRecorder) adminResponseAssert {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp adminResponseAssert
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp
}

func seedPendingWithdrawal(t *testing.T, h *Handler, amount int64) *models.WithdrawalRequest {
	t.Helper()
	ctx := context.Background()
	if _, err := h.LedgerService.Adjust(ctx, service.AdjustInput{
		UserID:    1,
		Delta:     models.NewMoneyFromDecimal(decimal.NewFromInt(500)),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: "admin_handler_seed_1",
	}); err != nil {
		t.Fatalf("seed balance failed: %v", err)
	}
	issued, err := h.OtpService.Issue(ctx, 1, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue pin failed: %v", err)
	}
	req, err := h.WithdrawalService.RequestWithdrawal(ctx, service.WithdrawalRequestInput{
		UserID:  1,
		Amount:  models.NewMoneyFromDecimal(decimal.NewFromInt(amount)),
		Address: testWithdrawalAddress,
		Pin:     issued.Pin,
	})
	if err != nil {
		t.Fatalf("request withdrawal failed: %v", err)
	}
	return req
}

func TestFinalizeWithdrawalRejectReleasesReservation(t *testing.T) {
	h := setupAdminHandlerTest(t)
	req := seedPendingWithdrawal(t, h, 120)
	idParam := gin.Params{{Key: "id", Value: fmt.Sprint(req.ID)}}

	c, w := newAdminContext(http.MethodPost, "/api/v1/admin/withdrawals/1/approve", "", idParam)
	h.ApproveWithdrawal(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 0 {
		t.Fatalf("approve status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}

	c, w = newAdminContext(http.MethodPost, "/api/v1/admin/withdrawals/1/finalize",
		`{"outcome":"rejected","error_message":"address flagged"}`, idParam)
	h.FinalizeWithdrawal(c)
	resp := decodeAdminResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("finalize status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var finalized map[string]interface{}
	if err := json.Unmarshal(resp.Data, &finalized); err != nil {
		t.Fatalf("decode withdrawal failed: %v", err)
	}
	if finalized["status"] != string(models.WithdrawalStatusRejected) || finalized["error_message"] != "address flagged" {
		t.Fatalf("unexpected finalized request: %+v", finalized)
	}

	account, err := h.LedgerService.GetAccount(context.Background(), 1, constants.CurrencyUSDT)
	if err != nil {
		t.Fatalf("load account failed: %v", err)
	}
	if account.Available.String() != "500.00" || account.Reserved.String() != "0.00" {
		t.Fatalf("reservation should be released, got available=%s reserved=%s", account.Available, account.Reserved)
	}

	c, w = newAdminContext(http.MethodPost, "/api/v1/admin/withdrawals/1/finalize", `{"outcome":"completed"}`, idParam)
	h.FinalizeWithdrawal(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 409 {
		t.Fatalf("second finalize status_code want 409 got %d", resp.StatusCode)
	}
}

func TestFinalizeWithdrawalRejectsUnknownOutcome(t *testing.T) {
	h := setupAdminHandlerTest(t)
	req := seedPendingWithdrawal(t, h, 50)

	c, w := newAdminContext(http.MethodPost, "/api/v1/admin/withdrawals/1/finalize", `{"outcome":"refunded"}`,
		gin.Params{{Key: "id", Value: fmt.Sprint(req.ID)}})
	h.FinalizeWithdrawal(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d (%s)", resp.StatusCode, resp.Msg)
	}
}

func TestRunBenefitSweepValidatesAsOf(t *testing.T) {
	h := setupAdminHandlerTest(t)

	c, w := newAdminContext(http.MethodPost, "/api/v1/admin/sweeps/benefit?as_of=yesterday", "", nil)
	h.RunBenefitSweep(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}

	c, w = newAdminContext(http.MethodPost, "/api/v1/admin/sweeps/commission", `{"as_of":"2026-06-01T00:00:00Z"}`, nil)
	h.RunCommissionSweep(c)
	resp := decodeAdminResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	var summary service.CommissionUnlockSummary
	if err := json.Unmarshal(resp.Data, &summary); err != nil {
		t.Fatalf("decode summary failed: %v", err)
	}
	if summary.Scanned != 0 || summary.Unlocked != 0 {
		t.Fatalf("empty ledger should unlock nothing: %+v", summary)
	}
}

func TestGetUserBalanceUnknownUser(t *testing.T) {
	h := setupAdminHandlerTest(t)

	c, w := newAdminContext(http.MethodGet, "/api/v1/admin/users/42/balance", "", gin.Params{{Key: "id", Value: "42"}})
	h.GetUserBalance(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}

	c, w = newAdminContext(http.MethodGet, "/api/v1/admin/users/1/balance", "", gin.Params{{Key: "id", Value: "1"}})
	h.GetUserBalance(c)
	if resp := decodeAdminResponse(t, w); resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
}
