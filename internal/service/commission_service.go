package service

import (
	"context"
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

const commissionHoldBeneficiaryInactive = "beneficiary_inactive"

// CommissionLevel 单层佣金配置
type CommissionLevel struct {
	RatePercent decimal.Decimal
	UnlockDelay time.Duration
}

// CommissionOptions 佣金引擎参数
type CommissionOptions struct {
	MaxDepth  int
	Levels    []CommissionLevel
	BatchSize int
}

// CommissionUnlockSummary 佣金解锁扫描汇总
type CommissionUnlockSummary struct {
	Scanned        int          `json:"scanned"`
	Unlocked       int          `json:"unlocked"`
	Held           int          `json:"held"`
	Failures       int          `json:"failures"`
	AmountUnlocked models.Money `json:"amount_unlocked"`
}

// CommissionService 推荐佣金引擎
type CommissionService struct {
	repo         repository.CommissionRepository
	purchaseRepo repository.PurchaseRepository
	userRepo     repository.UserRepository
	ledger       *LedgerService
	options      CommissionOptions
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	repo repository.CommissionRepository,
	purchaseRepo repository.PurchaseRepository,
	userRepo repository.UserRepository,
	ledger *LedgerService,
	options CommissionOptions,
) *CommissionService {
	if options.BatchSize <= 0 {
		options.BatchSize = 200
	}
	return &CommissionService{
		repo:         repo,
		purchaseRepo: purchaseRepo,
		userRepo:     userRepo,
		ledger:       ledger,
		options:      options,
	}
}

func (s *CommissionService) maxDepth() int {
	depth := len(s.options.Levels)
	if s.options.MaxDepth > 0 && s.options.MaxDepth < depth {
		depth = s.options.MaxDepth
	}
	return depth
}

// SettleForPurchase 为购买单结算推荐佣金（每个购买单至多一次）
func (s *CommissionService) SettleForPurchase(ctx context.Context, purchase *models.Purchase, chain []uint) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	err := s.ledger.RunInTransaction(ctx, "commission_settle", func(tx *gorm.DB) error {
		created, err := s.SettleForPurchaseTx(tx, purchase, chain, time.Now().UTC())
		if err != nil {
			return err
		}
		records = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SettleForPurchaseTx 在调用方事务内结算佣金；已结算返回 ErrAlreadySettled
func (s *CommissionService) SettleForPurchaseTx(tx *gorm.DB, purchase *models.Purchase, chain []uint, now time.Time) ([]models.CommissionRecord, error) {
	if purchase == nil || purchase.ID == 0 {
		return nil, ErrPurchaseNotFound
	}
	marked, err := s.purchaseRepo.WithTx(tx).MarkCommissionSettled(purchase.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark commission settled: %w", err)
	}
	if !marked {
		existing, err := s.purchaseRepo.WithTx(tx).GetByID(purchase.ID)
		if err != nil {
			return nil, fmt.Errorf("load purchase: %w", err)
		}
		if existing == nil {
			return nil, ErrPurchaseNotFound
		}
		return nil, ErrAlreadySettled
	}

	beneficiaries, err := s.resolveChain(tx, purchase.UserID, chain)
	if err != nil {
		return nil, err
	}
	principal := purchase.Principal.Decimal.Round(2)
	currency := s.ledger.normalizeCurrency(purchase.Currency)
	hundred := decimal.NewFromInt(100)
	records := make([]models.CommissionRecord, 0, len(beneficiaries))
	for idx, beneficiaryID := range beneficiaries {
		level := s.options.Levels[idx]
		amount := principal.Mul(level.RatePercent).Div(hundred).Round(2)
		if !amount.GreaterThan(decimal.Zero) {
			continue
		}
		records = append(records, models.CommissionRecord{
			PurchaseID:    purchase.ID,
			Level:         idx + 1,
			BeneficiaryID: beneficiaryID,
			SourceUserID:  purchase.UserID,
			BaseAmount:    models.NewMoneyFromDecimal(principal),
			RatePercent:   models.NewMoneyFromDecimal(level.RatePercent),
			Amount:        models.NewMoneyFromDecimal(amount),
			Currency:      currency,
			Status:        models.CommissionStatusLocked,
			UnlockAt:      now.Add(level.UnlockDelay),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := s.repo.WithTx(tx).CreateRecords(records); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrAlreadySettled
		}
		return nil, fmt.Errorf("create commission records: %w", err)
	}
	metrics.ObserveCommission("created", len(records))
	logger.Infow("commission_settled",
		"purchase_id", purchase.ID,
		"source_user_id", purchase.UserID,
		"levels", len(records),
	)
	return records, nil
}

// resolveChain 解析推荐链：优先使用事件携带的链，否则沿 referred_by_id 向上查找
func (s *CommissionService) resolveChain(tx *gorm.DB, purchaserID uint, explicit []uint) ([]uint, error) {
	depth := s.maxDepth()
	if depth <= 0 {
		return nil, nil
	}
	userRepo := s.userRepo.WithTx(tx)
	seen := map[uint]struct{}{purchaserID: {}}
	chain := make([]uint, 0, depth)

	if len(explicit) > 0 {
		for _, id := range explicit {
			if len(chain) >= depth {
				break
			}
			if id == 0 {
				break
			}
			if _, dup := seen[id]; dup {
				break
			}
			user, err := userRepo.GetByID(id)
			if err != nil {
				return nil, fmt.Errorf("load referrer: %w", err)
			}
			if user == nil {
				break
			}
			seen[id] = struct{}{}
			chain = append(chain, id)
		}
		return chain, nil
	}

	current, err := userRepo.GetByID(purchaserID)
	if err != nil {
		return nil, fmt.Errorf("load purchaser: %w", err)
	}
	for current != nil && len(chain) < depth {
		if current.ReferredByID == nil || *current.ReferredByID == 0 {
			break
		}
		referrerID := *current.ReferredByID
		if _, dup := seen[referrerID]; dup {
			break
		}
		referrer, err := userRepo.GetByID(referrerID)
		if err != nil {
			return nil, fmt.Errorf("load referrer: %w", err)
		}
		if referrer == nil {
			break
		}
		seen[referrerID] = struct{}{}
		chain = append(chain, referrerID)
		current = referrer
	}
	return chain, nil
}

// UnlockDue 解锁到期佣金并入账，受益人不可用时挂起待后续扫描
func (s *CommissionService) UnlockDue(ctx context.Context, now time.Time) (CommissionUnlockSummary, error) {
	startedAt := time.Now()
	defer metrics.ObserveSweep("commission", startedAt)

	now = now.UTC()
	summary := CommissionUnlockSummary{AmountUnlocked: models.ZeroMoney()}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		records, err := s.repo.ListDueForUnlock(now, afterID, s.options.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("list due commissions: %w", err)
		}
		for i := range records {
			record := records[i]
			afterID = record.ID
			summary.Scanned++
			unlocked, err := s.unlockOne(ctx, record.ID, now)
			switch {
			case err != nil:
				summary.Failures++
				logger.Errorw("commission_unlock_failed",
					"commission_id", record.ID,
					"beneficiary_id", record.BeneficiaryID,
					"error", err,
				)
			case unlocked:
				summary.Unlocked++
				summary.AmountUnlocked = summary.AmountUnlocked.Add(record.Amount)
			default:
				summary.Held++
			}
		}
		if len(records) < s.options.BatchSize {
			break
		}
	}
	metrics.ObserveCommission("unlocked", summary.Unlocked)
	metrics.ObserveCommission("held", summary.Held)
	logger.Infow("commission_unlock_sweep_finished",
		"as_of", now,
		"scanned", summary.Scanned,
		"unlocked", summary.Unlocked,
		"held", summary.Held,
		"failures", summary.Failures,
		"amount_unlocked", summary.AmountUnlocked.String(),
	)
	return summary, nil
}

// unlockOne 单条佣金解锁：状态条件更新与入账在同一事务
func (s *CommissionService) unlockOne(ctx context.Context, recordID uint, now time.Time) (bool, error) {
	unlocked := false
	err := s.ledger.RunInTransaction(ctx, "commission_unlock", func(tx *gorm.DB) error {
		unlocked = false
		repo := s.repo.WithTx(tx)
		record, err := repo.GetByID(recordID)
		if err != nil {
			return err
		}
		if record == nil || !record.Status.CanUnlock() || record.UnlockAt.After(now) {
			return nil
		}
		beneficiary, err := s.userRepo.WithTx(tx).GetByID(record.BeneficiaryID)
		if err != nil {
			return err
		}
		if beneficiary == nil || strings.ToLower(beneficiary.Status) != constants.UserStatusActive {
			if record.Status == models.CommissionStatusLocked {
				_, err := repo.TransitionStatus(record.ID,
					[]models.CommissionStatus{models.CommissionStatusLocked},
					models.CommissionStatusPending,
					map[string]interface{}{"hold_reason": commissionHoldBeneficiaryInactive},
				)
				return err
			}
			return nil
		}
		ok, err := repo.TransitionStatus(record.ID,
			[]models.CommissionStatus{models.CommissionStatusLocked, models.CommissionStatusPending},
			models.CommissionStatusUnlocked,
			map[string]interface{}{"unlocked_at": now, "hold_reason": ""},
		)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := s.ledger.AdjustTx(tx, AdjustInput{
			UserID:    record.BeneficiaryID,
			Currency:  record.Currency,
			Delta:     record.Amount,
			Reason:    constants.LedgerReasonReferralCommission,
			Reference: fmt.Sprintf("commission:%d:unlock", record.ID),
		}); err != nil {
			return err
		}
		unlocked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return unlocked, nil
}

// CancelForPurchaseTx 取消购买单下尚未入账的佣金，已入账的保留
func (s *CommissionService) CancelForPurchaseTx(tx *gorm.DB, purchaseID uint, reason string, at time.Time) (int64, error) {
	affected, err := s.repo.WithTx(tx).CancelByPurchase(purchaseID, strings.TrimSpace(reason), at)
	if err != nil {
		return 0, err
	}
	metrics.ObserveCommission("cancelled", int(affected))
	return affected, nil
}

// ListUserCommissions 查询佣金记录
func (s *CommissionService) ListUserCommissions(_ context.Context, filter repository.CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	return s.repo.List(filter)
}

// ListByPurchase 查询购买单的佣金记录
func (s *CommissionService) ListByPurchase(_ context.Context, purchaseID uint) ([]models.CommissionRecord, error) {
	if purchaseID == 0 {
		return nil, ErrPurchaseNotFound
	}
	records, err := s.repo.ListByPurchase(purchaseID)
	if err != nil {
		return nil, err
	}
	return records, nil
}
