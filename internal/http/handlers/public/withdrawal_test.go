package public

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

type publicResponseAssert struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

func (r publicResponseAssert) object(t *testing.T) map[string]interface{} {
	t.Helper()
	var data map[string]interface{}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		t.Fatalf("data is not an object: %v (%s)", err, string(r.Data))
	}
	return data
}

func (r publicResponseAssert) list(t *testing.T) []map[string]interface{} {
	t.Helper()
	var data []map[string]interface{}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		t.Fatalf("data is not a list: %v (%s)", err, string(r.Data))
	}
	return data
}

func setupPublicHandlerTest(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	ledger := service.NewLedgerService(repository.NewBalanceRepository(db), service.LedgerOptions{Currency: constants.CurrencyUSDT})
	otp := service.NewOtpService(repository.NewOtpRepository(db), service.OtpOptions{HashCost: bcrypt.MinCost})
	notification := service.NewNotificationService(nil, service.LogNotifier{})
	benefitRepo := repository.NewBenefitRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)

	h := New(&provider.Container{
		UserRepo:            userRepo,
		LedgerService:       ledger,
		OtpService:          otp,
		NotificationService: notification,
		BenefitService:      service.NewBenefitService(benefitRepo, purchaseRepo, ledger, service.BenefitOptions{}),
		WithdrawalService: service.NewWithdrawalService(
			repository.NewWithdrawalRepository(db), userRepo, ledger, otp, notification,
			service.WithdrawalOptions{MinAmount: decimal.NewFromInt(10)},
		),
	})

	for _, id := range []uint{1, 2} {
		if err := db.Create(&models.User{
			ID:     id,
			Email:  fmt.Sprintf("public_handler_user_%d@example.com", id),
			Status: constants.UserStatusActive,
		}).Error; err != nil {
			t.Fatalf("create user failed: %v", err)
		}
	}
	return h, db
}

func newUserContext(method, target, body string, userID uint) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Locale", "en-US")
	c.Request = req
	c.Set("user_id", userID)
	return c, w
}

func decodePublicResponse(t *testing.T, w *httptest.ResponseRecorder) publicResponseAssert {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp publicResponseAssert
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp
}

func TestCreateWithdrawalWrongPinReportsRemainingAttempts(t *testing.T) {
	h, _ := setupPublicHandlerTest(t)
	ctx := context.Background()

	if _, err := h.LedgerService.Adjust(ctx, service.AdjustInput{
		UserID:    1,
		Delta:     models.NewMoneyFromDecimal(decimal.NewFromInt(500)),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: "public_handler_seed_1",
	}); err != nil {
		t.Fatalf("seed balance failed: %v", err)
	}
	issued, err := h.OtpService.Issue(ctx, 1, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue pin failed: %v", err)
	}
	wrong := "000000"
	if issued.Pin == wrong {
		wrong = "111111"
	}

	body := fmt.Sprintf(`{"amount":"100","address":"0x52908400098527886E0F7030069857D2E4169EE7","pin":%q}`, wrong)
	c, w := newUserContext(http.MethodPost, "/api/v1/withdrawals", body, 1)
	h.CreateWithdrawal(c)

	resp := decodePublicResponse(t, w)
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
	if resp.Msg != "Wrong PIN, 4 attempts left" {
		t.Fatalf("unexpected message: %s", resp.Msg)
	}
	data := resp.object(t)
	if remaining, _ := data["remaining_attempts"].(float64); remaining != 4 {
		t.Fatalf("remaining_attempts want 4 got %v", data["remaining_attempts"])
	}

	account, err := h.LedgerService.GetAccount(ctx, 1, constants.CurrencyUSDT)
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.Available.String() != "500.00" || account.Reserved.String() != "0.00" {
		t.Fatalf("wrong pin must not touch balance: available=%s reserved=%s", account.Available, account.Reserved)
	}
}

func TestCreateWithdrawalSucceedsWithIssuedPin(t *testing.T) {
	h, _ := setupPublicHandlerTest(t)
	ctx := context.Background()

	if _, err := h.LedgerService.Adjust(ctx, service.AdjustInput{
		UserID:    1,
		Delta:     models.NewMoneyFromDecimal(decimal.NewFromInt(500)),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: "public_handler_seed_2",
	}); err != nil {
		t.Fatalf("seed balance failed: %v", err)
	}
	issued, err := h.OtpService.Issue(ctx, 1, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue pin failed: %v", err)
	}

	body := fmt.Sprintf(`{"amount":"120.5","address":"0x52908400098527886E0F7030069857D2E4169EE7","pin":%q}`, issued.Pin)
	c, w := newUserContext(http.MethodPost, "/api/v1/withdrawals", body, 1)
	h.CreateWithdrawal(c)

	resp := decodePublicResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d (%s)", resp.StatusCode, resp.Msg)
	}
	if label := resp.object(t)["status_label"]; label != "in_review" {
		t.Fatalf("status_label want in_review got %v", label)
	}

	c, w = newUserContext(http.MethodGet, "/api/v1/withdrawals", "", 2)
	h.GetMyWithdrawals(c)
	var list struct {
		StatusCode int           `json:"status_code"`
		Data       []interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal list failed: %v", err)
	}
	if list.StatusCode != 0 || len(list.Data) != 0 {
		t.Fatalf("other users must not see the request, got %+v", list)
	}
}

func TestGetMyScheduleDaysHidesForeignSchedule(t *testing.T) {
	h, db := setupPublicHandlerTest(t)
	schedule := models.BenefitSchedule{
		PurchaseID:   1,
		UserID:       1,
		Currency:     constants.CurrencyUSDT,
		Principal:    models.NewMoneyFromDecimal(decimal.NewFromInt(1000)),
		DailyRate:    decimal.RequireFromString("0.01"),
		DailyAmount:  models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		DaysPerCycle: 10,
		TotalCycles:  1,
		TotalDays:    10,
		SpanDays:     10,
		CapPercent:   models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		CapAmount:    models.NewMoneyFromDecimal(decimal.NewFromInt(2000)),
		StartAt:      time.Now().UTC(),
		Status:       models.ScheduleStatusActive,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	day := models.BenefitDay{
		ScheduleID:  schedule.ID,
		DayIndex:    0,
		Status:      models.BenefitDayReleased,
		Amount:      models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Reference:   fmt.Sprintf("benefit:%d:0", schedule.ID),
		ProcessedAt: time.Now().UTC(),
	}
	if err := db.Create(&day).Error; err != nil {
		t.Fatalf("create day failed: %v", err)
	}

	c, w := newUserContext(http.MethodGet, "/api/v1/schedules/1/days", "", 2)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", schedule.ID)}}
	h.GetMyScheduleDays(c)
	if resp := decodePublicResponse(t, w); resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}

	c, w = newUserContext(http.MethodGet, "/api/v1/schedules/1/days", "", 1)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprintf("%d", schedule.ID)}}
	h.GetMyScheduleDays(c)
	resp := decodePublicResponse(t, w)
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d", resp.StatusCode)
	}
	days := resp.list(t)
	if len(days) != 1 {
		t.Fatalf("day rows want 1 got %d", len(days))
	}
	if days[0]["status"] != string(models.BenefitDayReleased) || days[0]["amount"] != "10.00" {
		t.Fatalf("unexpected day row: %v", days[0])
	}
}
