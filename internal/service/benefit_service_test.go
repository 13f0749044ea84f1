package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type benefitTestPlan struct {
	principal    string
	rate         string
	daysPerCycle int
	pauseDays    int
	cycles       int
	capPercent   string
}

var benefitTestConfirmedAt = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func setupBenefitServiceTest(t *testing.T) (*BenefitService, *LedgerService, *gorm.DB) {
	t.Helper()
	db := openServiceTestDB(t, "benefit_service_test")
	ledger := newTestLedger(db)
	svc := NewBenefitService(
		repository.NewBenefitRepository(db),
		repository.NewPurchaseRepository(db),
		ledger,
		BenefitOptions{BatchSize: 2, MaxDaysPerSweep: 31},
	)
	return svc, ledger, db
}

func createBenefitTestPurchase(t *testing.T, db *gorm.DB, userID uint, plan benefitTestPlan) *models.Purchase {
	t.Helper()
	confirmedAt := benefitTestConfirmedAt
	purchase := &models.Purchase{
		PurchaseNo:        fmt.Sprintf("P-%d-%d", userID, seedReferenceSeq.Add(1)),
		UserID:            userID,
		PackageID:         1,
		PackageCode:       "basic",
		Principal:         testMoney(plan.principal),
		Currency:          constants.CurrencyUSDT,
		DailyRate:         decimal.RequireFromString(plan.rate),
		DaysPerCycle:      plan.daysPerCycle,
		PauseDaysPerCycle: plan.pauseDays,
		TotalCycles:       plan.cycles,
		CapPercent:        testMoney(plan.capPercent),
		Status:            models.PurchaseStatusActive,
		ConfirmedAt:       &confirmedAt,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	return purchase
}

func TestBenefitServiceCreateForPurchaseIsIdempotent(t *testing.T) {
	svc, _, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 1, benefitTestPlan{"500", "0.01", 30, 5, 3, "150"})

	first, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	if first.TotalDays != 90 || first.SpanDays != 105 {
		t.Fatalf("unexpected day counts: total=%d span=%d", first.TotalDays, first.SpanDays)
	}
	if first.DailyAmount.String() != "5.00" || first.CapAmount.String() != "750.00" {
		t.Fatalf("unexpected amounts: daily=%s cap=%s", first.DailyAmount.String(), first.CapAmount.String())
	}
	if !first.StartAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start should be truncated to the day, got %v", first.StartAt)
	}
	second, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same schedule, got %d and %d", first.ID, second.ID)
	}
}

func TestBenefitServiceRejectsInvalidPlan(t *testing.T) {
	svc, _, db := setupBenefitServiceTest(t)
	purchase := createBenefitTestPurchase(t, db, 1, benefitTestPlan{"500", "0.01", 0, 0, 3, "150"})
	if _, err := svc.CreateForPurchase(context.Background(), purchase); !errors.Is(err, ErrBenefitPlanInvalid) {
		t.Fatalf("expected ErrBenefitPlanInvalid, got %v", err)
	}
}

func TestBenefitServiceCapCompletesAtPrincipal(t *testing.T) {
	svc, ledger, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 2, benefitTestPlan{"1000", "0.125", 10, 0, 1, "100"})
	schedule, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}

	summary, err := svc.ReleaseDue(ctx, schedule.StartAt.AddDate(0, 0, 30))
	if err != nil {
		t.Fatalf("release due failed: %v", err)
	}
	if summary.DaysReleased != 8 || summary.SchedulesCompleted != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	reloaded, err := svc.GetSchedule(ctx, schedule.ID)
	if err != nil {
		t.Fatalf("reload schedule failed: %v", err)
	}
	if reloaded.Status != models.ScheduleStatusCompleted || reloaded.CompletedReason != constants.ScheduleCompletedCapReached {
		t.Fatalf("expected cap_reached completion, got %s/%s", reloaded.Status, reloaded.CompletedReason)
	}
	if reloaded.AmountReleased.String() != "1000.00" {
		t.Fatalf("expected 1000.00 released, got %s", reloaded.AmountReleased.String())
	}
	if reloaded.AmountReleased.Decimal.GreaterThan(reloaded.CapAmount.Decimal) || reloaded.DaysReleased > reloaded.TotalDays {
		t.Fatalf("schedule exceeded its bounds: %+v", reloaded)
	}

	account, err := ledger.GetAccount(ctx, 2, "")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.Available.String() != "1000.00" || account.TotalEarned.String() != "1000.00" {
		t.Fatalf("unexpected balance: %s earned %s", account.Available.String(), account.TotalEarned.String())
	}

	var stored models.Purchase
	if err := db.First(&stored, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase failed: %v", err)
	}
	if stored.Status != models.PurchaseStatusCompleted {
		t.Fatalf("purchase should complete with its schedule, got %s", stored.Status)
	}

	// 完结后的计划不再发放
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 8, schedule.StartAt.AddDate(0, 0, 30)); !errors.Is(err, ErrBenefitScheduleClosed) {
		t.Fatalf("expected ErrBenefitScheduleClosed, got %v", err)
	}
}

func TestBenefitServiceReleaseDayIsIdempotent(t *testing.T) {
	svc, ledger, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 3, benefitTestPlan{"200", "0.01", 5, 0, 1, "200"})
	schedule, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}

	asOf := schedule.StartAt.Add(time.Hour)
	first, err := svc.ReleaseDay(ctx, schedule.ID, 0, asOf)
	if err != nil {
		t.Fatalf("release day failed: %v", err)
	}
	if first.Status != models.BenefitDayReleased || first.Amount.String() != "2.00" {
		t.Fatalf("unexpected first result: %+v", first)
	}
	second, err := svc.ReleaseDay(ctx, schedule.ID, 0, asOf)
	if err != nil {
		t.Fatalf("replayed release failed: %v", err)
	}
	if !second.Replayed || second.Amount.String() != "2.00" {
		t.Fatalf("expected replay of prior result, got %+v", second)
	}
	account, _ := ledger.GetAccount(ctx, 3, "")
	if account.Available.String() != "2.00" {
		t.Fatalf("replay must not credit twice, got %s", account.Available.String())
	}
}

func TestBenefitServiceReleaseDayValidation(t *testing.T) {
	svc, _, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 4, benefitTestPlan{"100", "0.01", 5, 2, 1, "200"})
	schedule, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	late := schedule.StartAt.AddDate(0, 0, 30)

	if _, err := svc.ReleaseDay(ctx, 999, 0, late); !errors.Is(err, ErrBenefitScheduleNotFound) {
		t.Fatalf("expected ErrBenefitScheduleNotFound, got %v", err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 7, late); !errors.Is(err, ErrBenefitDayOutOfRange) {
		t.Fatalf("expected ErrBenefitDayOutOfRange, got %v", err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, -1, late); !errors.Is(err, ErrBenefitDayOutOfRange) {
		t.Fatalf("expected ErrBenefitDayOutOfRange for negative index, got %v", err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 1, schedule.StartAt); !errors.Is(err, ErrBenefitDayNotDue) {
		t.Fatalf("expected ErrBenefitDayNotDue, got %v", err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 2, late); !errors.Is(err, ErrBenefitDayOutOfOrder) {
		t.Fatalf("expected ErrBenefitDayOutOfOrder, got %v", err)
	}

	if _, err := svc.Pause(ctx, schedule.ID, "compliance review"); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 0, late); !errors.Is(err, ErrBenefitSchedulePaused) {
		t.Fatalf("expected ErrBenefitSchedulePaused, got %v", err)
	}
	if _, err := svc.Pause(ctx, schedule.ID, "again"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("pausing a paused schedule should fail, got %v", err)
	}
	resumed, err := svc.Resume(ctx, schedule.ID)
	if err != nil || resumed.Status != models.ScheduleStatusActive {
		t.Fatalf("resume failed: %+v err=%v", resumed, err)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 0, late); err != nil {
		t.Fatalf("release after resume failed: %v", err)
	}
}

func TestBenefitServicePauseDaysAreSkipped(t *testing.T) {
	svc, ledger, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 5, benefitTestPlan{"100", "0.01", 2, 1, 2, "200"})
	schedule, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}

	summary, err := svc.ReleaseDue(ctx, schedule.StartAt.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("release due failed: %v", err)
	}
	if summary.DaysReleased != 4 || summary.DaysSkipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	days, _, err := svc.ListDays(ctx, repository.BenefitDayListFilter{ScheduleID: schedule.ID, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list days failed: %v", err)
	}
	if len(days) != 5 || days[2].Status != models.BenefitDaySkipped || days[2].SkipReason != benefitSkipPauseDay {
		t.Fatalf("day 2 should be a skipped pause day, got %+v", days)
	}
	reloaded, _ := svc.GetSchedule(ctx, schedule.ID)
	if reloaded.CompletedReason != constants.ScheduleCompletedAllDays || reloaded.DaysReleased != reloaded.TotalDays {
		t.Fatalf("expected all_days_released, got %s days=%d", reloaded.CompletedReason, reloaded.DaysReleased)
	}
	account, _ := ledger.GetAccount(ctx, 5, "")
	if account.Available.String() != "4.00" {
		t.Fatalf("expected 4.00 credited, got %s", account.Available.String())
	}
}

func TestBenefitServiceSweepIsIncremental(t *testing.T) {
	svc, ledger, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	// 多个计划验证批次游标
	var schedules []*models.BenefitSchedule
	for i := uint(0); i < 3; i++ {
		purchase := createBenefitTestPurchase(t, db, 10+i, benefitTestPlan{"100", "0.02", 10, 0, 1, "300"})
		schedule, err := svc.CreateForPurchase(ctx, purchase)
		if err != nil {
			t.Fatalf("create schedule failed: %v", err)
		}
		schedules = append(schedules, schedule)
	}
	start := schedules[0].StartAt

	first, err := svc.ReleaseDue(ctx, start.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("first sweep failed: %v", err)
	}
	if first.SchedulesScanned != 3 || first.DaysReleased != 9 {
		t.Fatalf("unexpected first sweep: %+v", first)
	}
	again, err := svc.ReleaseDue(ctx, start.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("repeat sweep failed: %v", err)
	}
	if again.DaysReleased != 0 {
		t.Fatalf("repeat sweep must not release again: %+v", again)
	}
	for i := uint(0); i < 3; i++ {
		account, _ := ledger.GetAccount(ctx, 10+i, "")
		if account.Available.String() != "6.00" {
			t.Fatalf("user %d expected 6.00, got %s", 10+i, account.Available.String())
		}
	}
}

func TestBenefitServiceCancelForPurchase(t *testing.T) {
	svc, _, db := setupBenefitServiceTest(t)
	ctx := context.Background()
	purchase := createBenefitTestPurchase(t, db, 6, benefitTestPlan{"100", "0.01", 5, 0, 1, "200"})
	schedule, err := svc.CreateForPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("create schedule failed: %v", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.CancelForPurchaseTx(tx, purchase.ID, "reversed", time.Now().UTC())
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	reloaded, _ := svc.GetSchedule(ctx, schedule.ID)
	if reloaded.Status != models.ScheduleStatusCancelled {
		t.Fatalf("expected cancelled, got %s", reloaded.Status)
	}
	if _, err := svc.ReleaseDay(ctx, schedule.ID, 0, schedule.StartAt.AddDate(0, 0, 1)); !errors.Is(err, ErrBenefitScheduleClosed) {
		t.Fatalf("expected ErrBenefitScheduleClosed, got %v", err)
	}
}
