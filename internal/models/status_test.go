package models

import (
	"testing"
	"time"
)

func TestWithdrawalStatusExternalMapping(t *testing.T) {
	cases := map[WithdrawalStatus]string{
		WithdrawalStatusPending:    "in_review",
		WithdrawalStatusApproved:   "approved",
		WithdrawalStatusProcessing: "sending",
		WithdrawalStatusCompleted:  "paid",
		WithdrawalStatusRejected:   "rejected",
		WithdrawalStatus("bogus"):  "unknown",
	}
	for status, want := range cases {
		if got := status.External(); got != want {
			t.Fatalf("status %q external want %q got %q", status, want, got)
		}
	}
}

func TestWithdrawalStatusTerminal(t *testing.T) {
	for _, status := range InFlightWithdrawalStatuses {
		if status.IsTerminal() {
			t.Fatalf("in-flight status %q should not be terminal", status)
		}
	}
	if !WithdrawalStatusCompleted.IsTerminal() || !WithdrawalStatusRejected.IsTerminal() {
		t.Fatalf("completed and rejected must be terminal")
	}
}

func TestCommissionStatusCanUnlock(t *testing.T) {
	if !CommissionStatusLocked.CanUnlock() || !CommissionStatusPending.CanUnlock() {
		t.Fatalf("locked and pending commissions should be unlockable")
	}
	for _, status := range []CommissionStatus{CommissionStatusUnlocked, CommissionStatusWithdrawn, CommissionStatusCancelled} {
		if status.CanUnlock() {
			t.Fatalf("status %q should not be unlockable", status)
		}
	}
	if CommissionStatusPending.External() != "on_hold" {
		t.Fatalf("pending commission external label mismatch: %s", CommissionStatusPending.External())
	}
}

func TestScheduleAndPurchaseExternalMapping(t *testing.T) {
	if ScheduleStatusActive.External() != "running" || ScheduleStatusCompleted.External() != "finished" {
		t.Fatalf("unexpected schedule labels")
	}
	if PurchaseStatusActive.External() != "running" || PurchaseStatusPendingPayment.External() != "awaiting_payment" {
		t.Fatalf("unexpected purchase labels")
	}
	if !PurchaseStatusConfirming.IsPreConfirmation() || PurchaseStatusConfirmed.IsPreConfirmation() {
		t.Fatalf("unexpected pre-confirmation classification")
	}
}

func TestBenefitSchedulePauseDays(t *testing.T) {
	schedule := BenefitSchedule{DaysPerCycle: 8, PauseDaysPerCycle: 1}
	pauses := 0
	for idx := 0; idx < 18; idx++ {
		if schedule.IsPauseDay(idx) {
			pauses++
			if idx != 8 && idx != 17 {
				t.Fatalf("unexpected pause day index %d", idx)
			}
		}
	}
	if pauses != 2 {
		t.Fatalf("want 2 pause days in two cycles, got %d", pauses)
	}

	noPause := BenefitSchedule{DaysPerCycle: 8}
	if noPause.IsPauseDay(8) {
		t.Fatalf("schedule without pause days should never pause")
	}
}

func TestBenefitScheduleDueAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	schedule := BenefitSchedule{StartAt: start}
	if got := schedule.DueAt(3); !got.Equal(start.AddDate(0, 0, 3)) {
		t.Fatalf("unexpected due date: %v", got)
	}
}
