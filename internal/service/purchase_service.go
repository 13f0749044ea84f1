package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"gorm.io/gorm"
)

// PurchaseRegisterInput 登记待支付购买单
type PurchaseRegisterInput struct {
	PurchaseNo  string
	UserID      uint
	PackageCode string
	Principal   models.Money
	Currency    string
}

// PurchaseConfirmedEvent 外部支付确认事件
type PurchaseConfirmedEvent struct {
	PurchaseNo    string
	UserID        uint
	PackageCode   string
	Principal     models.Money
	Currency      string
	ReferralChain []uint
	ConfirmedAt   time.Time
}

// PurchaseConfirmResult 确认处理结果
type PurchaseConfirmResult struct {
	Purchase    *models.Purchase          `json:"purchase"`
	Schedule    *models.BenefitSchedule   `json:"schedule"`
	Commissions []models.CommissionRecord `json:"commissions"`
	Replayed    bool                      `json:"replayed"`
}

// PurchaseService 购买单入口：确认后串联账本、收益计划与推荐佣金
type PurchaseService struct {
	repo        repository.PurchaseRepository
	packageRepo repository.LicensePackageRepository
	userRepo    repository.UserRepository
	ledger      *LedgerService
	benefit     *BenefitService
	commission  *CommissionService
}

// NewPurchaseService 创建购买单服务
func NewPurchaseService(
	repo repository.PurchaseRepository,
	packageRepo repository.LicensePackageRepository,
	userRepo repository.UserRepository,
	ledger *LedgerService,
	benefit *BenefitService,
	commission *CommissionService,
) *PurchaseService {
	return &PurchaseService{
		repo:        repo,
		packageRepo: packageRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		benefit:     benefit,
		commission:  commission,
	}
}

// Register 登记待支付购买单，同一单号重复登记返回已有记录
func (s *PurchaseService) Register(ctx context.Context, input PurchaseRegisterInput) (*models.Purchase, error) {
	var purchase *models.Purchase
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		created, err := s.loadOrCreate(tx, input, time.Now().UTC())
		if err != nil {
			return err
		}
		purchase = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// HandleConfirmed 处理支付确认事件；重复投递不会重复入账
func (s *PurchaseService) HandleConfirmed(ctx context.Context, event PurchaseConfirmedEvent) (*PurchaseConfirmResult, error) {
	confirmedAt := event.ConfirmedAt.UTC()
	if event.ConfirmedAt.IsZero() {
		confirmedAt = time.Now().UTC()
	}
	input := PurchaseRegisterInput{
		PurchaseNo:  event.PurchaseNo,
		UserID:      event.UserID,
		PackageCode: event.PackageCode,
		Principal:   event.Principal,
		Currency:    event.Currency,
	}

	var result *PurchaseConfirmResult
	err := s.ledger.RunInTransaction(ctx, "purchase_confirm", func(tx *gorm.DB) error {
		result = nil
		now := time.Now().UTC()
		purchase, err := s.loadOrCreate(tx, input, now)
		if err != nil {
			return err
		}
		repo := s.repo.WithTx(tx)

		switch purchase.Status {
		case models.PurchaseStatusActive, models.PurchaseStatusCompleted:
			schedule, err := s.benefit.repo.WithTx(tx).GetScheduleByPurchaseID(purchase.ID)
			if err != nil {
				return err
			}
			records, err := s.commission.repo.WithTx(tx).ListByPurchase(purchase.ID)
			if err != nil {
				return err
			}
			result = &PurchaseConfirmResult{Purchase: purchase, Schedule: schedule, Commissions: records, Replayed: true}
			return nil
		case models.PurchaseStatusRejected, models.PurchaseStatusExpired:
			return ErrInvalidStateTransition
		}

		if purchase.Status.IsPreConfirmation() {
			ok, err := repo.TransitionStatus(purchase.ID,
				[]models.PurchaseStatus{models.PurchaseStatusPendingPayment, models.PurchaseStatusConfirming},
				models.PurchaseStatusConfirmed,
				map[string]interface{}{"confirmed_at": confirmedAt},
			)
			if err != nil {
				return err
			}
			if !ok {
				return ErrLedgerConflict
			}
			purchase.Status = models.PurchaseStatusConfirmed
			purchase.ConfirmedAt = &confirmedAt
		}

		if _, err := s.ledger.AdjustTx(tx, AdjustInput{
			UserID:    purchase.UserID,
			Currency:  purchase.Currency,
			Delta:     purchase.Principal,
			Reason:    constants.LedgerReasonPurchaseConfirmed,
			Reference: fmt.Sprintf("purchase:%d:invested", purchase.ID),
			Remark:    "purchase " + purchase.PurchaseNo,
		}); err != nil {
			return err
		}

		schedule, err := s.benefit.CreateForPurchaseTx(tx, purchase, now)
		if err != nil {
			return err
		}

		records, err := s.commission.SettleForPurchaseTx(tx, purchase, event.ReferralChain, now)
		if errors.Is(err, ErrAlreadySettled) {
			records, err = s.commission.repo.WithTx(tx).ListByPurchase(purchase.ID)
		}
		if err != nil {
			return err
		}

		ok, err := repo.TransitionStatus(purchase.ID,
			[]models.PurchaseStatus{models.PurchaseStatusConfirmed},
			models.PurchaseStatusActive,
			nil,
		)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLedgerConflict
		}
		current, err := repo.GetByID(purchase.ID)
		if err != nil {
			return err
		}
		result = &PurchaseConfirmResult{Purchase: current, Schedule: schedule, Commissions: records}
		return nil
	})
	if err != nil {
		logger.Warnw("purchase_confirm_failed",
			"purchase_no", event.PurchaseNo,
			"user_id", event.UserID,
			"error", err,
		)
		return nil, err
	}

	if result.Replayed {
		logger.Infow("purchase_confirm_replayed",
			"purchase_no", result.Purchase.PurchaseNo,
			"purchase_id", result.Purchase.ID,
		)
		return result, nil
	}
	logger.Infow("purchase_confirmed",
		"purchase_no", result.Purchase.PurchaseNo,
		"purchase_id", result.Purchase.ID,
		"user_id", result.Purchase.UserID,
		"principal", result.Purchase.Principal.String(),
		"schedule_id", result.Schedule.ID,
		"commission_levels", len(result.Commissions),
	)
	return result, nil
}

// loadOrCreate 按单号查找购买单，不存在时按套餐快照创建
func (s *PurchaseService) loadOrCreate(tx *gorm.DB, input PurchaseRegisterInput, now time.Time) (*models.Purchase, error) {
	purchaseNo := strings.TrimSpace(input.PurchaseNo)
	if purchaseNo == "" || input.UserID == 0 {
		return nil, ErrPurchaseInvalid
	}
	principal := input.Principal.Decimal.Round(2)
	if !principal.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := s.ledger.normalizeCurrency(input.Currency)
	if currency != s.ledger.Currency() {
		return nil, ErrInvalidCurrency
	}

	repo := s.repo.WithTx(tx)
	existing, err := repo.GetByPurchaseNo(purchaseNo)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if existing != nil {
		if existing.UserID != input.UserID || !existing.Principal.Decimal.Equal(principal) {
			return nil, ErrPurchaseMismatch
		}
		code := strings.TrimSpace(input.PackageCode)
		if code != "" && !strings.EqualFold(code, existing.PackageCode) {
			return nil, ErrPurchaseMismatch
		}
		return existing, nil
	}

	user, err := s.userRepo.WithTx(tx).GetByID(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	pkg, err := s.packageRepo.WithTx(tx).GetByCode(input.PackageCode)
	if err != nil {
		return nil, fmt.Errorf("load license package: %w", err)
	}
	if pkg == nil {
		return nil, ErrPackageNotFound
	}
	if !pkg.IsActive {
		return nil, ErrPackageInactive
	}
	if principal.LessThan(pkg.MinPrincipal.Decimal) {
		return nil, ErrPrincipalTooSmall
	}

	purchase := &models.Purchase{
		PurchaseNo:        purchaseNo,
		UserID:            input.UserID,
		PackageID:         pkg.ID,
		PackageCode:       pkg.Code,
		Principal:         models.NewMoneyFromDecimal(principal),
		Currency:          currency,
		DailyRate:         pkg.DailyRate,
		DaysPerCycle:      pkg.DaysPerCycle,
		PauseDaysPerCycle: pkg.PauseDaysPerCycle,
		TotalCycles:       pkg.TotalCycles,
		CapPercent:        pkg.CapPercent,
		Status:            models.PurchaseStatusPendingPayment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.Create(purchase); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	logger.Infow("purchase_registered",
		"purchase_no", purchaseNo,
		"purchase_id", purchase.ID,
		"user_id", input.UserID,
		"package_code", pkg.Code,
	)
	return purchase, nil
}

// MarkConfirming 支付已提交，等待链上确认
func (s *PurchaseService) MarkConfirming(ctx context.Context, id uint) (*models.Purchase, error) {
	return s.advance(ctx, id, []models.PurchaseStatus{models.PurchaseStatusPendingPayment}, models.PurchaseStatusConfirming, nil)
}

// Reject 确认前驳回
func (s *PurchaseService) Reject(ctx context.Context, id uint, reason string) (*models.Purchase, error) {
	return s.advance(ctx, id,
		[]models.PurchaseStatus{models.PurchaseStatusPendingPayment, models.PurchaseStatusConfirming},
		models.PurchaseStatusRejected,
		map[string]interface{}{"reversed_reason": strings.TrimSpace(reason)},
	)
}

// Expire 支付超时
func (s *PurchaseService) Expire(ctx context.Context, id uint) (*models.Purchase, error) {
	return s.advance(ctx, id,
		[]models.PurchaseStatus{models.PurchaseStatusPendingPayment, models.PurchaseStatusConfirming},
		models.PurchaseStatusExpired,
		nil,
	)
}

func (s *PurchaseService) advance(ctx context.Context, id uint, from []models.PurchaseStatus, to models.PurchaseStatus, updates map[string]interface{}) (*models.Purchase, error) {
	var purchase *models.Purchase
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionStatus(id, from, to, updates)
		if err != nil {
			return err
		}
		current, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPurchaseNotFound
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		purchase = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("purchase_status_changed",
		"purchase_no", purchase.PurchaseNo,
		"to", to,
	)
	return purchase, nil
}

// Reverse 撤销已确认购买单：计划取消、未入账佣金取消，已入账金额保留
func (s *PurchaseService) Reverse(ctx context.Context, id uint, reason string) (*models.Purchase, error) {
	reason = strings.TrimSpace(reason)
	var purchase *models.Purchase
	var cancelledCommissions int64
	err := s.ledger.RunInTransaction(ctx, "purchase_reverse", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		ok, err := repo.TransitionStatus(id,
			[]models.PurchaseStatus{models.PurchaseStatusConfirmed, models.PurchaseStatusActive},
			models.PurchaseStatusRejected,
			map[string]interface{}{"reversed_reason": reason},
		)
		if err != nil {
			return err
		}
		current, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPurchaseNotFound
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		if err := s.benefit.CancelForPurchaseTx(tx, id, reason, now); err != nil {
			return err
		}
		cancelled, err := s.commission.CancelForPurchaseTx(tx, id, reason, now)
		if err != nil {
			return err
		}
		cancelledCommissions = cancelled
		purchase = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Warnw("purchase_reversed",
		"purchase_no", purchase.PurchaseNo,
		"purchase_id", purchase.ID,
		"reason", reason,
		"cancelled_commissions", cancelledCommissions,
	)
	return purchase, nil
}

// GetPurchase 获取购买单
func (s *PurchaseService) GetPurchase(_ context.Context, id uint) (*models.Purchase, error) {
	purchase, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrPurchaseNotFound
	}
	return purchase, nil
}

// ListPurchases 购买单列表
func (s *PurchaseService) ListPurchases(_ context.Context, filter repository.PurchaseListFilter) ([]models.Purchase, int64, error) {
	return s.repo.List(filter)
}

// ListPackages 可售套餐
func (s *PurchaseService) ListPackages(_ context.Context) ([]models.LicensePackage, error) {
	return s.packageRepo.List(true)
}
