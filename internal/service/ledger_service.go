package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/metrics"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService 余额账本服务（余额账户的唯一写入口）
type LedgerService struct {
	repo     repository.BalanceRepository
	currency string
	retry    RetryPolicy
}

// LedgerOptions 账本服务配置
type LedgerOptions struct {
	Currency string
	Retry    RetryPolicy
}

// AdjustInput 余额调整输入
type AdjustInput struct {
	UserID    uint
	Currency  string
	Delta     models.Money
	Reason    string
	Reference string
	Remark    string
	// Force 仅用于冻结释放的对账路径：冻结桶不足时归零并记录差异
	Force bool
}

// AdjustResult 余额调整结果
type AdjustResult struct {
	NewAvailable models.Money
	AppliedAt    time.Time
	Account      *models.BalanceAccount
	Entry        *models.LedgerEntry
	Replayed     bool
}

type bucketEffect struct {
	available decimal.Decimal
	reserved  decimal.Decimal
	invested  decimal.Decimal
	earned    decimal.Decimal
	withdrawn decimal.Decimal
	direction string
}

// NewLedgerService 创建账本服务
func NewLedgerService(repo repository.BalanceRepository, options LedgerOptions) *LedgerService {
	currency := strings.ToUpper(strings.TrimSpace(options.Currency))
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	retry := options.Retry
	if retry.MaxRetries == 0 && retry.Backoff == 0 {
		retry = RetryPolicy{MaxRetries: defaultConflictRetries, Backoff: defaultConflictBackoff}
	}
	return &LedgerService{
		repo:     repo,
		currency: currency,
		retry:    retry,
	}
}

// Currency 账本默认币种
func (s *LedgerService) Currency() string {
	return s.currency
}

// RunInTransaction 在事务内执行工作单元，CAS 冲突时整体重试
func (s *LedgerService) RunInTransaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	return runWithRetry(ctx, s.retry, op, func() error {
		return s.repo.Transaction(ctx, fn)
	})
}

// Adjust 原子调整余额并写入一条不可变流水
func (s *LedgerService) Adjust(ctx context.Context, input AdjustInput) (*AdjustResult, error) {
	var result *AdjustResult
	err := s.RunInTransaction(ctx, "ledger_adjust", func(tx *gorm.DB) error {
		res, err := s.AdjustTx(tx, input)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	s.observeAdjust(input.Reason, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdjustTx 在调用方事务内执行余额调整，CAS 失败返回 ErrLedgerConflict 由调用方整体重试
func (s *LedgerService) AdjustTx(tx *gorm.DB, input AdjustInput) (*AdjustResult, error) {
	if tx == nil {
		return nil, errors.New("ledger adjust requires a transaction")
	}
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, ErrLedgerReferenceRequired
	}
	currency := s.normalizeCurrency(input.Currency)
	delta := input.Delta.Decimal.Round(2)
	effect, err := resolveBucketEffect(input.Reason, delta)
	if err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.GetEntryByReference(reference)
	if err != nil {
		return nil, fmt.Errorf("load ledger entry by reference: %w", err)
	}
	if existing != nil {
		account, err := repo.GetAccount(existing.UserID, existing.Currency)
		if err != nil {
			return nil, fmt.Errorf("load balance account: %w", err)
		}
		return &AdjustResult{
			NewAvailable: existing.AvailableAfter,
			AppliedAt:    existing.CreatedAt,
			Account:      account,
			Entry:        existing,
			Replayed:     true,
		}, nil
	}

	now := time.Now()
	account, err := s.ensureAccount(repo, input.UserID, currency, now)
	if err != nil {
		return nil, err
	}
	expectedVersion := account.Version
	before := account.Available.Decimal.Round(2)

	available := before.Add(effect.available)
	if available.LessThan(decimal.Zero) {
		return nil, ErrInsufficientFunds
	}
	reserved := account.Reserved.Decimal.Round(2).Add(effect.reserved)
	if reserved.LessThan(decimal.Zero) {
		if !input.Force {
			return nil, ErrReservedInsufficient
		}
		logger.Warnw("ledger_reserved_drift",
			"user_id", input.UserID,
			"currency", currency,
			"reference", reference,
			"reserved_before", account.Reserved.String(),
			"delta", delta.StringFixed(2),
			"drift", reserved.Abs().StringFixed(2),
		)
		reserved = decimal.Zero
	}

	account.Available = models.NewMoneyFromDecimal(available)
	account.Reserved = models.NewMoneyFromDecimal(reserved)
	account.TotalInvested = models.NewMoneyFromDecimal(account.TotalInvested.Decimal.Add(effect.invested))
	account.TotalEarned = models.NewMoneyFromDecimal(account.TotalEarned.Decimal.Add(effect.earned))
	account.TotalWithdrawn = models.NewMoneyFromDecimal(account.TotalWithdrawn.Decimal.Add(effect.withdrawn))

	swapped, err := repo.CompareAndSwapAccount(account, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update balance account: %w", err)
	}
	if !swapped {
		return nil, ErrLedgerConflict
	}

	entry := &models.LedgerEntry{
		UserID:          input.UserID,
		AccountID:       account.ID,
		Currency:        currency,
		Reason:          input.Reason,
		Direction:       effect.direction,
		Amount:          models.NewMoneyFromDecimal(delta.Abs()),
		Delta:           models.NewMoneyFromDecimal(delta),
		AvailableBefore: models.NewMoneyFromDecimal(before),
		AvailableAfter:  account.Available,
		ReservedAfter:   account.Reserved,
		Reference:       reference,
		Remark:          strings.TrimSpace(input.Remark),
		CreatedAt:       now,
	}
	if err := repo.CreateEntry(entry); err != nil {
		if repository.IsUniqueViolation(err) {
			// 并发的同参考号调整已提交，重试时走重放分支
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}

	return &AdjustResult{
		NewAvailable: account.Available,
		AppliedAt:    now,
		Account:      account,
		Entry:        entry,
	}, nil
}

// ConsumeReservationTx 提现完成时扣减冻结桶并累计已提现金额，可用余额不变
func (s *LedgerService) ConsumeReservationTx(tx *gorm.DB, userID uint, currency string, amount models.Money, reference, remark string) (*AdjustResult, error) {
	return s.AdjustTx(tx, AdjustInput{
		UserID:    userID,
		Currency:  currency,
		Delta:     amount,
		Reason:    constants.LedgerReasonWithdrawalCompleted,
		Reference: reference,
		Remark:    remark,
	})
}

// GetAccount 获取余额账户（不存在时创建零余额账户）
func (s *LedgerService) GetAccount(ctx context.Context, userID uint, currency string) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	currency = s.normalizeCurrency(currency)
	account, err := s.repo.GetAccount(userID, currency)
	if err != nil {
		return nil, fmt.Errorf("load balance account: %w", err)
	}
	if account != nil {
		return account, nil
	}
	var created *models.BalanceAccount
	err = s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		acc, err := s.ensureAccount(s.repo.WithTx(tx), userID, currency, time.Now())
		if err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		// 并发创建时唯一索引冲突，回读即可
		account, readErr := s.repo.GetAccount(userID, currency)
		if readErr == nil && account != nil {
			return account, nil
		}
		return nil, err
	}
	return created, nil
}

// ListEntries 查询账本流水
func (s *LedgerService) ListEntries(_ context.Context, filter repository.LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	if filter.Currency != "" {
		filter.Currency = s.normalizeCurrency(filter.Currency)
	}
	return s.repo.ListEntries(filter)
}

func (s *LedgerService) ensureAccount(repo repository.BalanceRepository, userID uint, currency string, now time.Time) (*models.BalanceAccount, error) {
	account, err := repo.GetAccount(userID, currency)
	if err != nil {
		return nil, fmt.Errorf("load balance account: %w", err)
	}
	if account != nil {
		return account, nil
	}
	account = &models.BalanceAccount{
		UserID:         userID,
		Currency:       currency,
		Available:      models.ZeroMoney(),
		Reserved:       models.ZeroMoney(),
		TotalInvested:  models.ZeroMoney(),
		TotalEarned:    models.ZeroMoney(),
		TotalWithdrawn: models.ZeroMoney(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.CreateAccount(account); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("create balance account: %w", err)
	}
	return account, nil
}

func (s *LedgerService) normalizeCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))
	if normalized == "" {
		return s.currency
	}
	return normalized
}

func (s *LedgerService) observeAdjust(reason string, result *AdjustResult, err error) {
	switch {
	case err == nil && result != nil && result.Replayed:
		metrics.ObserveLedgerAdjust(reason, metrics.ResultReplayed)
	case err == nil:
		metrics.ObserveLedgerAdjust(reason, metrics.ResultOK)
	case errors.Is(err, ErrTransientConflict):
		metrics.ObserveLedgerAdjust(reason, metrics.ResultConflict)
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrReservedInsufficient), errors.Is(err, ErrInvalidAmount):
		metrics.ObserveLedgerAdjust(reason, metrics.ResultRejected)
	default:
		metrics.ObserveLedgerAdjust(reason, metrics.ResultError)
	}
}

// resolveBucketEffect 按变动原因计算各余额桶的增量
func resolveBucketEffect(reason string, delta decimal.Decimal) (bucketEffect, error) {
	effect := bucketEffect{
		available: decimal.Zero,
		reserved:  decimal.Zero,
		invested:  decimal.Zero,
		earned:    decimal.Zero,
		withdrawn: decimal.Zero,
	}
	positive := delta.GreaterThan(decimal.Zero)
	switch reason {
	case constants.LedgerReasonDailyBenefit, constants.LedgerReasonReferralCommission:
		if !positive {
			return effect, ErrInvalidAmount
		}
		effect.available = delta
		effect.earned = delta
		effect.direction = constants.LedgerDirectionIn
	case constants.LedgerReasonPurchaseConfirmed:
		if !positive {
			return effect, ErrInvalidAmount
		}
		effect.invested = delta
		effect.direction = constants.LedgerDirectionIn
	case constants.LedgerReasonWithdrawalReserved:
		if !delta.LessThan(decimal.Zero) {
			return effect, ErrInvalidAmount
		}
		effect.available = delta
		effect.reserved = delta.Neg()
		effect.direction = constants.LedgerDirectionHold
	case constants.LedgerReasonWithdrawalReleased:
		if !positive {
			return effect, ErrInvalidAmount
		}
		effect.available = delta
		effect.reserved = delta.Neg()
		effect.direction = constants.LedgerDirectionIn
	case constants.LedgerReasonWithdrawalCompleted:
		if !positive {
			return effect, ErrInvalidAmount
		}
		effect.reserved = delta.Neg()
		effect.withdrawn = delta
		effect.direction = constants.LedgerDirectionOut
	case constants.LedgerReasonAdminAdjust:
		if delta.IsZero() {
			return effect, ErrInvalidAmount
		}
		effect.available = delta
		effect.direction = constants.LedgerDirectionIn
		if delta.LessThan(decimal.Zero) {
			effect.direction = constants.LedgerDirectionOut
		}
	default:
		return effect, ErrLedgerReasonInvalid
	}
	return effect, nil
}
