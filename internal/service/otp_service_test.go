package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

type otpTestClock struct {
	current time.Time
}

func (c *otpTestClock) now() time.Time {
	return c.current
}

func setupOtpServiceTest(t *testing.T) (*OtpService, *otpTestClock) {
	t.Helper()
	db := openServiceTestDB(t, "otp_service_test")
	svc := NewOtpService(repository.NewOtpRepository(db), OtpOptions{
		Length:       6,
		TTL:          10 * time.Minute,
		MaxAttempts:  5,
		SendInterval: time.Minute,
		HashCost:     bcrypt.MinCost,
	})
	clock := &otpTestClock{current: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = clock.now
	return svc, clock
}

func wrongPin(pin string) string {
	if pin == "000000" {
		return "111111"
	}
	return "000000"
}

func TestOtpServiceIssueAndVerify(t *testing.T) {
	svc, _ := setupOtpServiceTest(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 1, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(issued.Pin) != 6 || issued.ChallengeID == "" {
		t.Fatalf("unexpected issue result: %+v", issued)
	}
	result, err := svc.Verify(ctx, 1, issued.Pin, constants.OtpPurposeWithdrawal)
	if err != nil || !result.Valid {
		t.Fatalf("verify should succeed, result=%+v err=%v", result, err)
	}
	if _, err := svc.Verify(ctx, 1, issued.Pin, constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpNotFound) {
		t.Fatalf("used challenge must not verify twice, got %v", err)
	}
}

func TestOtpServiceRejectsUnknownPurpose(t *testing.T) {
	svc, _ := setupOtpServiceTest(t)
	if _, err := svc.Issue(context.Background(), 1, "login"); !errors.Is(err, ErrOtpPurposeInvalid) {
		t.Fatalf("expected ErrOtpPurposeInvalid, got %v", err)
	}
}

func TestOtpServiceThrottlesReissue(t *testing.T) {
	svc, clock := setupOtpServiceTest(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, 2, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	clock.current = clock.current.Add(30 * time.Second)
	if _, err := svc.Issue(ctx, 2, constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpTooFrequent) {
		t.Fatalf("expected ErrOtpTooFrequent, got %v", err)
	}

	clock.current = clock.current.Add(time.Minute)
	second, err := svc.Issue(ctx, 2, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}
	// 新挑战下发后旧 PIN 失效
	if first.Pin != second.Pin {
		if _, err := svc.Verify(ctx, 2, first.Pin, constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpMismatch) {
			t.Fatalf("superseded pin should not verify, got %v", err)
		}
	}
	if res, err := svc.Verify(ctx, 2, second.Pin, constants.OtpPurposeWithdrawal); err != nil || !res.Valid {
		t.Fatalf("latest pin should verify, res=%+v err=%v", res, err)
	}
}

func TestOtpServiceExpired(t *testing.T) {
	svc, clock := setupOtpServiceTest(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 3, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	clock.current = clock.current.Add(10 * time.Minute)
	if _, err := svc.Verify(ctx, 3, issued.Pin, constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpExpired) {
		t.Fatalf("expected ErrOtpExpired, got %v", err)
	}
}

func TestOtpServiceExhaustedAttemptsRejectCorrectPin(t *testing.T) {
	svc, _ := setupOtpServiceTest(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, 4, constants.OtpPurposeWithdrawal)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	bad := wrongPin(issued.Pin)
	for i := 0; i < 5; i++ {
		res, err := svc.Verify(ctx, 4, bad, constants.OtpPurposeWithdrawal)
		if !errors.Is(err, ErrOtpMismatch) {
			t.Fatalf("attempt %d: expected ErrOtpMismatch, got %v", i, err)
		}
		if res.RemainingAttempts != 4-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, 4-i, res.RemainingAttempts)
		}
	}
	if _, err := svc.Verify(ctx, 4, issued.Pin, constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpAttemptsExceeded) {
		t.Fatalf("correct pin must fail once attempts are exhausted, got %v", err)
	}
}

func TestOtpServiceVerifyWithoutChallenge(t *testing.T) {
	svc, _ := setupOtpServiceTest(t)
	if _, err := svc.Verify(context.Background(), 5, "123456", constants.OtpPurposeWithdrawal); !errors.Is(err, ErrOtpNotFound) {
		t.Fatalf("expected ErrOtpNotFound, got %v", err)
	}
}
