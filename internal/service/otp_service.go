package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/metrics"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OtpOptions 一次性口令参数
type OtpOptions struct {
	Length       int
	TTL          time.Duration
	MaxAttempts  int
	SendInterval time.Duration
	HashCost     int
}

// OtpIssueResult 下发结果（PIN 仅返回给投递方，不落库）
type OtpIssueResult struct {
	Pin         string
	ChallengeID string
	ExpiresAt   time.Time
}

// OtpVerifyResult 验证结果
type OtpVerifyResult struct {
	Valid             bool
	Reason            string
	RemainingAttempts int
}

// OtpService 一次性口令服务
type OtpService struct {
	repo    repository.OtpRepository
	options OtpOptions
	now     func() time.Time
}

// NewOtpService 创建一次性口令服务
func NewOtpService(repo repository.OtpRepository, options OtpOptions) *OtpService {
	if options.Length <= 0 {
		options.Length = 6
	}
	if options.TTL <= 0 {
		options.TTL = 10 * time.Minute
	}
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = 5
	}
	if options.SendInterval < 0 {
		options.SendInterval = 0
	}
	if options.HashCost == 0 {
		options.HashCost = bcrypt.DefaultCost
	}
	return &OtpService{
		repo:    repo,
		options: options,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func isSupportedOtpPurpose(purpose string) bool {
	switch purpose {
	case constants.OtpPurposeWithdrawal:
		return true
	}
	return false
}

// Issue 下发新挑战，并使同一用途下的旧挑战失效
func (s *OtpService) Issue(ctx context.Context, userID uint, purpose string) (*OtpIssueResult, error) {
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	if !isSupportedOtpPurpose(purpose) {
		return nil, ErrOtpPurposeInvalid
	}
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	now := s.now()

	pin, err := generateNumericPin(s.options.Length)
	if err != nil {
		return nil, fmt.Errorf("generate pin: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.options.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	challenge := &models.OtpChallenge{
		ChallengeID:       uuid.NewString(),
		UserID:            userID,
		Purpose:           purpose,
		PinHash:           string(hash),
		ExpiresAt:         now.Add(s.options.TTL),
		RemainingAttempts: s.options.MaxAttempts,
		SentAt:            now,
		CreatedAt:         now,
	}
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		latest, err := repo.GetLatest(userID, purpose)
		if err != nil {
			return err
		}
		if latest != nil && s.options.SendInterval > 0 && now.Sub(latest.SentAt) < s.options.SendInterval {
			return ErrOtpTooFrequent
		}
		if _, err := repo.SupersedeActive(userID, purpose, now); err != nil {
			return err
		}
		return repo.Create(challenge)
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("otp_challenge_issued",
		"user_id", userID,
		"purpose", purpose,
		"challenge_id", challenge.ChallengeID,
		"expires_at", challenge.ExpiresAt,
	)
	return &OtpIssueResult{
		Pin:         pin,
		ChallengeID: challenge.ChallengeID,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

// Verify 校验 PIN；错误 PIN 扣减剩余次数，成功后挑战立即失效
func (s *OtpService) Verify(_ context.Context, userID uint, pin, purpose string) (*OtpVerifyResult, error) {
	result, err := s.verify(userID, strings.TrimSpace(pin), strings.ToLower(strings.TrimSpace(purpose)))
	metrics.ObserveOtpVerify(otpOutcome(err))
	return result, err
}

func (s *OtpService) verify(userID uint, pin, purpose string) (*OtpVerifyResult, error) {
	if !isSupportedOtpPurpose(purpose) {
		return nil, ErrOtpPurposeInvalid
	}
	challenge, err := s.repo.GetActive(userID, purpose)
	if err != nil {
		return nil, err
	}
	if challenge == nil {
		return &OtpVerifyResult{Reason: "not_found"}, ErrOtpNotFound
	}
	now := s.now()
	if !now.Before(challenge.ExpiresAt) {
		return &OtpVerifyResult{Reason: "expired"}, ErrOtpExpired
	}
	if challenge.RemainingAttempts <= 0 {
		return &OtpVerifyResult{Reason: "attempts_exceeded"}, ErrOtpAttemptsExceeded
	}

	if bcrypt.CompareHashAndPassword([]byte(challenge.PinHash), []byte(pin)) != nil {
		consumed, err := s.repo.ConsumeAttempt(challenge.ID)
		if err != nil {
			return nil, err
		}
		if !consumed {
			return &OtpVerifyResult{Reason: "attempts_exceeded"}, ErrOtpAttemptsExceeded
		}
		remaining := challenge.RemainingAttempts - 1
		logger.Infow("otp_challenge_mismatch",
			"user_id", userID,
			"purpose", purpose,
			"challenge_id", challenge.ChallengeID,
			"remaining_attempts", remaining,
		)
		return &OtpVerifyResult{Reason: "mismatch", RemainingAttempts: remaining}, &OtpMismatchError{RemainingAttempts: remaining}
	}

	used, err := s.repo.MarkUsed(challenge.ID, now)
	if err != nil {
		return nil, err
	}
	if !used {
		// 并发验证已消费该挑战
		return &OtpVerifyResult{Reason: "not_found"}, ErrOtpNotFound
	}
	return &OtpVerifyResult{Valid: true, RemainingAttempts: challenge.RemainingAttempts}, nil
}

func otpOutcome(err error) string {
	switch {
	case err == nil:
		return "valid"
	case errors.Is(err, ErrOtpMismatch):
		return "mismatch"
	case errors.Is(err, ErrOtpExpired):
		return "expired"
	case errors.Is(err, ErrOtpAttemptsExceeded):
		return "attempts_exceeded"
	case errors.Is(err, ErrOtpNotFound):
		return "not_found"
	default:
		return metrics.ResultError
	}
}

func generateNumericPin(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
