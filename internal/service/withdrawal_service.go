package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/metrics"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var bep20AddressPattern = regexp.MustCompile(constants.BEP20AddressRegex)

// WithdrawalOptions 提现参数
type WithdrawalOptions struct {
	Currency  string
	Network   string
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// WithdrawalRequestInput 用户提现申请输入
type WithdrawalRequestInput struct {
	UserID  uint
	Amount  models.Money
	Address string
	Pin     string
}

// FinalizeDetail 提现终态附加信息
type FinalizeDetail struct {
	TxHash       string
	ErrorMessage string
	ActualFee    models.Money
	AdminID      uint
}

// WithdrawalService 提现引擎
type WithdrawalService struct {
	repo     repository.WithdrawalRepository
	userRepo repository.UserRepository
	ledger   *LedgerService
	otp      *OtpService
	notifier WithdrawalNotifier
	options  WithdrawalOptions
}

// NewWithdrawalService 创建提现服务
func NewWithdrawalService(
	repo repository.WithdrawalRepository,
	userRepo repository.UserRepository,
	ledger *LedgerService,
	otp *OtpService,
	notifier WithdrawalNotifier,
	options WithdrawalOptions,
) *WithdrawalService {
	options.Currency = strings.ToUpper(strings.TrimSpace(options.Currency))
	if options.Currency == "" {
		options.Currency = constants.CurrencyUSDT
	}
	options.Network = strings.ToUpper(strings.TrimSpace(options.Network))
	if options.Network == "" {
		options.Network = constants.NetworkBEP20
	}
	return &WithdrawalService{
		repo:     repo,
		userRepo: userRepo,
		ledger:   ledger,
		otp:      otp,
		notifier: notifier,
		options:  options,
	}
}

// RequestWithdrawal 发起提现：校验、口令、冻结、建单；建单失败时回补冻结
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, input WithdrawalRequestInput) (*models.WithdrawalRequest, error) {
	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if strings.ToLower(user.Status) != constants.UserStatusActive {
		return nil, ErrAccountInactive
	}

	amount := input.Amount.Decimal.Round(2)
	if err := s.validateAmount(amount); err != nil {
		return nil, err
	}
	address := strings.TrimSpace(input.Address)
	if !bep20AddressPattern.MatchString(address) {
		return nil, ErrInvalidAddress
	}

	inflight, err := s.repo.GetInflightByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("load in-flight withdrawal: %w", err)
	}
	if inflight != nil {
		return nil, ErrPendingWithdrawalExists
	}

	account, err := s.ledger.GetAccount(ctx, user.ID, s.options.Currency)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(account.Available.Decimal) {
		return nil, ErrInsufficientBalance
	}

	if _, err := s.otp.Verify(ctx, user.ID, input.Pin, constants.OtpPurposeWithdrawal); err != nil {
		return nil, err
	}

	requestNo := generateWithdrawalNo()
	reserved, err := s.ledger.Adjust(ctx, AdjustInput{
		UserID:    user.ID,
		Currency:  s.options.Currency,
		Delta:     models.NewMoneyFromDecimal(amount.Neg()),
		Reason:    constants.LedgerReasonWithdrawalReserved,
		Reference: withdrawalReference(requestNo, "reserve"),
		Remark:    "withdrawal " + requestNo,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	now := time.Now().UTC()
	userID := user.ID
	req := &models.WithdrawalRequest{
		RequestNo:      requestNo,
		UserID:         user.ID,
		Amount:         models.NewMoneyFromDecimal(amount),
		Currency:       s.options.Currency,
		Address:        address,
		Network:        s.options.Network,
		Status:         models.WithdrawalStatusPending,
		BalanceBefore:  reserved.Entry.AvailableBefore,
		InflightUserID: &userID,
		ActualFee:      models.ZeroMoney(),
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if createErr := s.repo.Create(req); createErr != nil {
		return nil, s.compensateReservation(ctx, req, createErr)
	}

	metrics.ObserveWithdrawalTransition(string(models.WithdrawalStatusPending))
	logger.Infow("withdrawal_requested",
		"request_no", requestNo,
		"user_id", user.ID,
		"amount", req.Amount.String(),
		"balance_before", req.BalanceBefore.String(),
	)
	s.notify(ctx, req)
	return req, nil
}

// compensateReservation 建单失败后释放已冻结金额
func (s *WithdrawalService) compensateReservation(ctx context.Context, req *models.WithdrawalRequest, createErr error) error {
	_, compErr := s.ledger.Adjust(ctx, AdjustInput{
		UserID:    req.UserID,
		Currency:  req.Currency,
		Delta:     req.Amount,
		Reason:    constants.LedgerReasonWithdrawalReleased,
		Reference: withdrawalReference(req.RequestNo, "compensate"),
		Remark:    "withdrawal create failed",
		Force:     true,
	})
	if compErr != nil {
		logger.Errorw("withdrawal_compensate_failed",
			"request_no", req.RequestNo,
			"user_id", req.UserID,
			"amount", req.Amount.String(),
			"create_error", createErr,
			"error", compErr,
		)
		return errors.Join(ErrWithdrawalCompensateFailed, createErr, compErr)
	}
	logger.Warnw("withdrawal_reservation_compensated",
		"request_no", req.RequestNo,
		"user_id", req.UserID,
		"amount", req.Amount.String(),
		"create_error", createErr,
	)
	if repository.IsUniqueViolation(createErr) {
		return ErrPendingWithdrawalExists
	}
	return fmt.Errorf("create withdrawal request: %w", createErr)
}

func (s *WithdrawalService) validateAmount(amount decimal.Decimal) error {
	if !amount.GreaterThan(decimal.Zero) {
		return ErrInvalidAmount
	}
	if s.options.MinAmount.GreaterThan(decimal.Zero) && amount.LessThan(s.options.MinAmount) {
		return ErrInvalidAmount
	}
	if s.options.MaxAmount.GreaterThan(decimal.Zero) && amount.GreaterThan(s.options.MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Approve 审核通过
func (s *WithdrawalService) Approve(ctx context.Context, id uint, adminID uint) (*models.WithdrawalRequest, error) {
	now := time.Now().UTC()
	return s.advance(ctx, id,
		models.WithdrawalStatusPending,
		models.WithdrawalStatusApproved,
		withProcessedBy(map[string]interface{}{"approved_at": now}, adminID),
	)
}

// MarkProcessing 标记开始打款
func (s *WithdrawalService) MarkProcessing(ctx context.Context, id uint, adminID uint) (*models.WithdrawalRequest, error) {
	now := time.Now().UTC()
	return s.advance(ctx, id,
		models.WithdrawalStatusApproved,
		models.WithdrawalStatusProcessing,
		withProcessedBy(map[string]interface{}{"processing_at": now}, adminID),
	)
}

func (s *WithdrawalService) advance(ctx context.Context, id uint, from, to models.WithdrawalStatus, updates map[string]interface{}) (*models.WithdrawalRequest, error) {
	var req *models.WithdrawalRequest
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionStatus(id, []models.WithdrawalStatus{from}, to, updates)
		if err != nil {
			return err
		}
		current, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrWithdrawalNotFound
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		req = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveWithdrawalTransition(string(to))
	logger.Infow("withdrawal_status_changed",
		"request_no", req.RequestNo,
		"from", from,
		"to", to,
	)
	s.notify(ctx, req)
	return req, nil
}

// Finalize 提现终态：完成时核销冻结，驳回时释放冻结；状态与账本在同一事务
func (s *WithdrawalService) Finalize(ctx context.Context, id uint, outcome string, detail FinalizeDetail) (*models.WithdrawalRequest, error) {
	var target models.WithdrawalStatus
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case constants.WithdrawalOutcomeCompleted:
		target = models.WithdrawalStatusCompleted
	case constants.WithdrawalOutcomeRejected:
		target = models.WithdrawalStatusRejected
	default:
		return nil, ErrWithdrawalOutcomeInvalid
	}

	var result *models.WithdrawalRequest
	var from models.WithdrawalStatus
	err := s.ledger.RunInTransaction(ctx, "withdrawal_finalize", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrWithdrawalNotFound
		}
		if req.Status.IsTerminal() {
			return ErrInvalidStateTransition
		}
		from = req.Status
		now := time.Now().UTC()

		updates := map[string]interface{}{}
		if target == models.WithdrawalStatusCompleted {
			updates["completed_at"] = now
			updates["tx_hash"] = strings.TrimSpace(detail.TxHash)
			updates["actual_fee"] = models.NewMoneyFromDecimal(detail.ActualFee.Decimal)
		} else {
			updates["rejected_at"] = now
			updates["error_message"] = strings.TrimSpace(detail.ErrorMessage)
		}
		ok, err := repo.TransitionStatus(req.ID, []models.WithdrawalStatus{req.Status}, target, withProcessedBy(updates, detail.AdminID))
		if err != nil {
			return err
		}
		if !ok {
			return ErrLedgerConflict
		}

		if target == models.WithdrawalStatusCompleted {
			_, err = s.ledger.ConsumeReservationTx(tx, req.UserID, req.Currency, req.Amount,
				withdrawalReference(req.RequestNo, "complete"), "withdrawal paid "+req.RequestNo)
		} else {
			_, err = s.ledger.AdjustTx(tx, AdjustInput{
				UserID:    req.UserID,
				Currency:  req.Currency,
				Delta:     req.Amount,
				Reason:    constants.LedgerReasonWithdrawalReleased,
				Reference: withdrawalReference(req.RequestNo, "release"),
				Remark:    "withdrawal rejected " + req.RequestNo,
				Force:     true,
			})
		}
		if err != nil {
			return err
		}

		result, err = repo.GetByID(req.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveWithdrawalTransition(string(target))
	logger.Infow("withdrawal_finalized",
		"request_no", result.RequestNo,
		"user_id", result.UserID,
		"from", from,
		"to", target,
		"amount", result.Amount.String(),
	)
	s.notify(ctx, result)
	return result, nil
}

// GetRequest 获取提现申请
func (s *WithdrawalService) GetRequest(_ context.Context, id uint) (*models.WithdrawalRequest, error) {
	req, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrWithdrawalNotFound
	}
	return req, nil
}

// GetUserRequest 获取属于用户的提现申请
func (s *WithdrawalService) GetUserRequest(ctx context.Context, userID, id uint) (*models.WithdrawalRequest, error) {
	req, err := s.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrWithdrawalNotFound
	}
	return req, nil
}

// ListUserRequests 用户提现记录
func (s *WithdrawalService) ListUserRequests(_ context.Context, userID uint, filter repository.WithdrawalListFilter) ([]models.WithdrawalRequest, int64, error) {
	if userID == 0 {
		return nil, 0, ErrUserNotFound
	}
	filter.UserID = userID
	return s.repo.List(filter)
}

// ListRequests 管理端提现列表
func (s *WithdrawalService) ListRequests(_ context.Context, filter repository.WithdrawalListFilter) ([]models.WithdrawalRequest, int64, error) {
	return s.repo.List(filter)
}

func (s *WithdrawalService) notify(ctx context.Context, req *models.WithdrawalRequest) {
	if s.notifier == nil || req == nil {
		return
	}
	s.notifier.NotifyWithdrawalStateChanged(ctx, req)
}

func withProcessedBy(updates map[string]interface{}, adminID uint) map[string]interface{} {
	if adminID != 0 {
		updates["processed_by"] = adminID
	}
	return updates
}

func withdrawalReference(requestNo, step string) string {
	return fmt.Sprintf("withdrawal:%s:%s", requestNo, step)
}

func generateWithdrawalNo() string {
	return uuid.NewString()
}
