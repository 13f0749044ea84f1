package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"gorm.io/gorm"
)

func setupLedgerServiceTest(t *testing.T) (*LedgerService, repository.BalanceRepository) {
	t.Helper()
	db := openServiceTestDB(t, "ledger_service_test")
	repo := repository.NewBalanceRepository(db)
	svc := NewLedgerService(repo, LedgerOptions{
		Currency: constants.CurrencyUSDT,
		Retry:    RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond},
	})
	return svc, repo
}

func countEntries(t *testing.T, repo repository.BalanceRepository, userID uint) int64 {
	t.Helper()
	_, total, err := repo.ListEntries(repository.LedgerEntryListFilter{UserID: userID, Page: 1, PageSize: 50})
	if err != nil {
		t.Fatalf("list entries failed: %v", err)
	}
	return total
}

func TestLedgerServiceCreditAndDebit(t *testing.T) {
	svc, repo := setupLedgerServiceTest(t)
	ctx := context.Background()

	res, err := svc.Adjust(ctx, AdjustInput{
		UserID:    1,
		Delta:     testMoney("12.50"),
		Reason:    constants.LedgerReasonDailyBenefit,
		Reference: "benefit:1:0",
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if res.NewAvailable.String() != "12.50" {
		t.Fatalf("expected 12.50 available, got %s", res.NewAvailable.String())
	}
	if res.Account.TotalEarned.String() != "12.50" {
		t.Fatalf("credit should count as earned, got %s", res.Account.TotalEarned.String())
	}

	res, err = svc.Adjust(ctx, AdjustInput{
		UserID:    1,
		Delta:     testMoney("-2.50"),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: "admin:1",
	})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if res.NewAvailable.String() != "10.00" {
		t.Fatalf("expected 10.00 available, got %s", res.NewAvailable.String())
	}
	if res.Entry.Direction != constants.LedgerDirectionOut || res.Entry.AvailableBefore.String() != "12.50" {
		t.Fatalf("unexpected entry: %+v", res.Entry)
	}
	if got := countEntries(t, repo, 1); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}

func TestLedgerServiceInsufficientFundsWritesNothing(t *testing.T) {
	svc, repo := setupLedgerServiceTest(t)
	ctx := context.Background()
	creditTestBalance(t, svc, 2, "5.00")

	_, err := svc.Adjust(ctx, AdjustInput{
		UserID:    2,
		Delta:     testMoney("-5.01"),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: "admin:overdraw",
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	account, err := svc.GetAccount(ctx, 2, "")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.Available.String() != "5.00" {
		t.Fatalf("balance must be untouched, got %s", account.Available.String())
	}
	if got := countEntries(t, repo, 2); got != 1 {
		t.Fatalf("rejected adjust must not write an entry, got %d entries", got)
	}
}

func TestLedgerServiceReplayedReference(t *testing.T) {
	svc, repo := setupLedgerServiceTest(t)
	ctx := context.Background()
	input := AdjustInput{
		UserID:    3,
		Delta:     testMoney("1.25"),
		Reason:    constants.LedgerReasonReferralCommission,
		Reference: "commission:7:unlock",
	}
	first, err := svc.Adjust(ctx, input)
	if err != nil {
		t.Fatalf("first adjust failed: %v", err)
	}
	second, err := svc.Adjust(ctx, input)
	if err != nil {
		t.Fatalf("replayed adjust failed: %v", err)
	}
	if !second.Replayed || second.Entry.ID != first.Entry.ID {
		t.Fatalf("expected replay of entry %d, got %+v", first.Entry.ID, second)
	}
	if second.Account.Available.String() != "1.25" {
		t.Fatalf("replay must not double credit, got %s", second.Account.Available.String())
	}
	if got := countEntries(t, repo, 3); got != 1 {
		t.Fatalf("expected single entry, got %d", got)
	}
}

func TestLedgerServiceRejectsWrongSignAndReason(t *testing.T) {
	svc, _ := setupLedgerServiceTest(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		input  AdjustInput
		expect error
	}{
		{"negative benefit", AdjustInput{UserID: 4, Delta: testMoney("-1"), Reason: constants.LedgerReasonDailyBenefit, Reference: "r1"}, ErrInvalidAmount},
		{"positive reserve", AdjustInput{UserID: 4, Delta: testMoney("1"), Reason: constants.LedgerReasonWithdrawalReserved, Reference: "r2"}, ErrInvalidAmount},
		{"zero admin", AdjustInput{UserID: 4, Delta: testMoney("0"), Reason: constants.LedgerReasonAdminAdjust, Reference: "r3"}, ErrInvalidAmount},
		{"unknown reason", AdjustInput{UserID: 4, Delta: testMoney("1"), Reason: "BONUS", Reference: "r4"}, ErrLedgerReasonInvalid},
		{"missing reference", AdjustInput{UserID: 4, Delta: testMoney("1"), Reason: constants.LedgerReasonAdminAdjust}, ErrLedgerReferenceRequired},
	}
	for _, tc := range cases {
		if _, err := svc.Adjust(ctx, tc.input); !errors.Is(err, tc.expect) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.expect, err)
		}
	}
}

func TestLedgerServiceReserveReleaseAndComplete(t *testing.T) {
	svc, _ := setupLedgerServiceTest(t)
	ctx := context.Background()
	creditTestBalance(t, svc, 5, "100.00")

	if _, err := svc.Adjust(ctx, AdjustInput{
		UserID:    5,
		Delta:     testMoney("-40.00"),
		Reason:    constants.LedgerReasonWithdrawalReserved,
		Reference: "withdrawal:W1:reserve",
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	account, _ := svc.GetAccount(ctx, 5, "")
	if account.Available.String() != "60.00" || account.Reserved.String() != "40.00" {
		t.Fatalf("unexpected buckets after reserve: %s/%s", account.Available.String(), account.Reserved.String())
	}

	// 释放超过冻结金额时非强制路径应拒绝
	_, err := svc.Adjust(ctx, AdjustInput{
		UserID:    5,
		Delta:     testMoney("50.00"),
		Reason:    constants.LedgerReasonWithdrawalReleased,
		Reference: "withdrawal:W1:release",
	})
	if !errors.Is(err, ErrReservedInsufficient) {
		t.Fatalf("expected ErrReservedInsufficient, got %v", err)
	}

	res, err := svc.Adjust(ctx, AdjustInput{
		UserID:    5,
		Delta:     testMoney("40.00"),
		Reason:    constants.LedgerReasonWithdrawalReleased,
		Reference: "withdrawal:W1:release",
	})
	if err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if res.Account.Available.String() != "100.00" || res.Account.Reserved.String() != "0.00" {
		t.Fatalf("round trip should restore balance, got %s/%s", res.Account.Available.String(), res.Account.Reserved.String())
	}

	if _, err := svc.Adjust(ctx, AdjustInput{
		UserID:    5,
		Delta:     testMoney("-30.00"),
		Reason:    constants.LedgerReasonWithdrawalReserved,
		Reference: "withdrawal:W2:reserve",
	}); err != nil {
		t.Fatalf("second reserve failed: %v", err)
	}
	err = svc.RunInTransaction(ctx, "complete", func(tx *gorm.DB) error {
		_, err := svc.ConsumeReservationTx(tx, 5, "", testMoney("30.00"), "withdrawal:W2:complete", "")
		return err
	})
	if err != nil {
		t.Fatalf("consume reservation failed: %v", err)
	}
	account, _ = svc.GetAccount(ctx, 5, "")
	if account.Available.String() != "70.00" || account.Reserved.String() != "0.00" || account.TotalWithdrawn.String() != "30.00" {
		t.Fatalf("unexpected buckets after completion: %+v", account)
	}
}

func TestLedgerServiceForcedReleaseFloorsReserved(t *testing.T) {
	svc, _ := setupLedgerServiceTest(t)
	ctx := context.Background()
	creditTestBalance(t, svc, 6, "10.00")
	if _, err := svc.Adjust(ctx, AdjustInput{
		UserID: 6, Delta: testMoney("-4.00"), Reason: constants.LedgerReasonWithdrawalReserved, Reference: "withdrawal:W3:reserve",
	}); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	res, err := svc.Adjust(ctx, AdjustInput{
		UserID:    6,
		Delta:     testMoney("5.00"),
		Reason:    constants.LedgerReasonWithdrawalReleased,
		Reference: "withdrawal:W3:release",
		Force:     true,
	})
	if err != nil {
		t.Fatalf("forced release failed: %v", err)
	}
	if res.Account.Reserved.String() != "0.00" {
		t.Fatalf("reserved should floor at zero, got %s", res.Account.Reserved.String())
	}
	if res.Account.Available.String() != "11.00" {
		t.Fatalf("available should receive full release, got %s", res.Account.Available.String())
	}
}

func TestLedgerServiceConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, _ := setupLedgerServiceTest(t)
	ctx := context.Background()
	creditTestBalance(t, svc, 7, "5.00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Adjust(ctx, AdjustInput{
				UserID:    7,
				Delta:     testMoney("-1.00"),
				Reason:    constants.LedgerReasonAdminAdjust,
				Reference: fmt.Sprintf("admin:debit:%d", i),
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrTransientConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	account, err := svc.GetAccount(ctx, 7, "")
	if err != nil {
		t.Fatalf("get account failed: %v", err)
	}
	if account.Available.IsNegative() {
		t.Fatalf("available must never be negative, got %s", account.Available.String())
	}
	expected := models.NewMoneyFromDecimal(testMoney("5.00").Decimal.Sub(testMoney(fmt.Sprint(succeeded)).Decimal))
	if account.Available.String() != expected.String() {
		t.Fatalf("balance %s does not match %d successful debits", account.Available.String(), succeeded)
	}
}

func TestRunWithRetryExhaustsToTransientConflict(t *testing.T) {
	calls := 0
	err := runWithRetry(context.Background(), RetryPolicy{MaxRetries: 3}, "test", func() error {
		calls++
		return ErrLedgerConflict
	})
	if !errors.Is(err, ErrTransientConflict) {
		t.Fatalf("expected ErrTransientConflict, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}

	calls = 0
	err = runWithRetry(context.Background(), RetryPolicy{MaxRetries: 3}, "test", func() error {
		calls++
		if calls < 2 {
			return ErrLedgerConflict
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, err=%v calls=%d", err, calls)
	}
}
