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

const (
	benefitSkipPauseDay   = "pause_day"
	benefitSkipCapReached = "cap_reached"
)

// BenefitOptions 收益发放参数
type BenefitOptions struct {
	BatchSize       int
	MaxDaysPerSweep int
}

// BenefitDayResult 单日处理结果
type BenefitDayResult struct {
	ScheduleID     uint                    `json:"schedule_id"`
	DayIndex       int                     `json:"day_index"`
	Status         models.BenefitDayStatus `json:"status"`
	Amount         models.Money            `json:"amount"`
	SkipReason     string                  `json:"skip_reason,omitempty"`
	Replayed       bool                    `json:"replayed"`
	ScheduleStatus models.ScheduleStatus   `json:"schedule_status"`
	Completed      bool                    `json:"completed"`
}

// BenefitSweepSummary 收益扫描汇总
type BenefitSweepSummary struct {
	SchedulesScanned   int          `json:"schedules_scanned"`
	DaysReleased       int          `json:"days_released"`
	DaysSkipped        int          `json:"days_skipped"`
	DaysReplayed       int          `json:"days_replayed"`
	SchedulesCompleted int          `json:"schedules_completed"`
	Failures           int          `json:"failures"`
	AmountReleased     models.Money `json:"amount_released"`
}

// BenefitService 收益计划引擎
type BenefitService struct {
	repo         repository.BenefitRepository
	purchaseRepo repository.PurchaseRepository
	ledger       *LedgerService
	options      BenefitOptions
}

// NewBenefitService 创建收益计划服务
func NewBenefitService(repo repository.BenefitRepository, purchaseRepo repository.PurchaseRepository, ledger *LedgerService, options BenefitOptions) *BenefitService {
	if options.BatchSize <= 0 {
		options.BatchSize = 200
	}
	if options.MaxDaysPerSweep <= 0 {
		options.MaxDaysPerSweep = 31
	}
	return &BenefitService{
		repo:         repo,
		purchaseRepo: purchaseRepo,
		ledger:       ledger,
		options:      options,
	}
}

// CreateForPurchase 为已确认购买单创建收益计划（同一购买单重复调用返回已有计划）
func (s *BenefitService) CreateForPurchase(ctx context.Context, purchase *models.Purchase) (*models.BenefitSchedule, error) {
	var schedule *models.BenefitSchedule
	err := s.ledger.RunInTransaction(ctx, "benefit_create_schedule", func(tx *gorm.DB) error {
		created, err := s.CreateForPurchaseTx(tx, purchase, time.Now().UTC())
		if err != nil {
			return err
		}
		schedule = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// CreateForPurchaseTx 在调用方事务内创建收益计划
func (s *BenefitService) CreateForPurchaseTx(tx *gorm.DB, purchase *models.Purchase, now time.Time) (*models.BenefitSchedule, error) {
	if purchase == nil || purchase.ID == 0 {
		return nil, ErrPurchaseNotFound
	}
	if err := validateBenefitPlan(purchase); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.GetScheduleByPurchaseID(purchase.ID)
	if err != nil {
		return nil, fmt.Errorf("load benefit schedule: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	confirmedAt := now
	if purchase.ConfirmedAt != nil {
		confirmedAt = *purchase.ConfirmedAt
	}
	principal := purchase.Principal.Decimal.Round(2)
	totalDays := purchase.DaysPerCycle * purchase.TotalCycles
	spanDays := (purchase.DaysPerCycle + purchase.PauseDaysPerCycle) * purchase.TotalCycles
	schedule := &models.BenefitSchedule{
		PurchaseID:        purchase.ID,
		UserID:            purchase.UserID,
		Currency:          s.ledger.normalizeCurrency(purchase.Currency),
		Principal:         models.NewMoneyFromDecimal(principal),
		DailyRate:         purchase.DailyRate,
		DailyAmount:       models.NewMoneyFromDecimal(principal.Mul(purchase.DailyRate)),
		DaysPerCycle:      purchase.DaysPerCycle,
		PauseDaysPerCycle: purchase.PauseDaysPerCycle,
		TotalCycles:       purchase.TotalCycles,
		TotalDays:         totalDays,
		SpanDays:          spanDays,
		CapPercent:        purchase.CapPercent,
		CapAmount:         models.NewMoneyFromDecimal(principal.Mul(purchase.CapPercent.Decimal).Div(decimal.NewFromInt(100))),
		AmountReleased:    models.ZeroMoney(),
		StartAt:           confirmedAt.UTC().Truncate(24 * time.Hour),
		Status:            models.ScheduleStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repo.CreateSchedule(schedule); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("create benefit schedule: %w", err)
	}
	logger.Infow("benefit_schedule_created",
		"schedule_id", schedule.ID,
		"purchase_id", purchase.ID,
		"user_id", purchase.UserID,
		"daily_amount", schedule.DailyAmount.String(),
		"cap_amount", schedule.CapAmount.String(),
		"total_days", totalDays,
		"span_days", spanDays,
	)
	return schedule, nil
}

func validateBenefitPlan(purchase *models.Purchase) error {
	if !purchase.Principal.IsPositive() {
		return ErrBenefitPlanInvalid
	}
	if purchase.DaysPerCycle <= 0 || purchase.TotalCycles <= 0 || purchase.PauseDaysPerCycle < 0 {
		return ErrBenefitPlanInvalid
	}
	if !purchase.DailyRate.GreaterThan(decimal.Zero) || !purchase.CapPercent.IsPositive() {
		return ErrBenefitPlanInvalid
	}
	return nil
}

// ReleaseDay 处理单个收益日；已处理的日序号返回原结果且不重复入账
func (s *BenefitService) ReleaseDay(ctx context.Context, scheduleID uint, dayIndex int, asOf time.Time) (*BenefitDayResult, error) {
	var result *BenefitDayResult
	err := s.ledger.RunInTransaction(ctx, "benefit_release_day", func(tx *gorm.DB) error {
		res, err := s.releaseDayTx(tx, scheduleID, dayIndex, asOf.UTC())
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	switch {
	case err != nil:
		metrics.ObserveBenefitDay("failed")
		return nil, err
	case result.Replayed:
		metrics.ObserveBenefitDay("replayed")
	default:
		metrics.ObserveBenefitDay(string(result.Status))
	}
	if result.Completed && !result.Replayed {
		logger.Infow("benefit_schedule_completed",
			"schedule_id", scheduleID,
			"day_index", dayIndex,
		)
	}
	return result, nil
}

func (s *BenefitService) releaseDayTx(tx *gorm.DB, scheduleID uint, dayIndex int, asOf time.Time) (*BenefitDayResult, error) {
	repo := s.repo.WithTx(tx)
	schedule, err := repo.GetScheduleByID(scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load benefit schedule: %w", err)
	}
	if schedule == nil {
		return nil, ErrBenefitScheduleNotFound
	}
	if dayIndex < 0 || dayIndex >= schedule.SpanDays {
		return nil, ErrBenefitDayOutOfRange
	}
	existing, err := repo.GetDay(scheduleID, dayIndex)
	if err != nil {
		return nil, fmt.Errorf("load benefit day: %w", err)
	}
	if existing != nil {
		return &BenefitDayResult{
			ScheduleID:     scheduleID,
			DayIndex:       dayIndex,
			Status:         existing.Status,
			Amount:         existing.Amount,
			SkipReason:     existing.SkipReason,
			Replayed:       true,
			ScheduleStatus: schedule.Status,
			Completed:      schedule.Status == models.ScheduleStatusCompleted,
		}, nil
	}
	switch schedule.Status {
	case models.ScheduleStatusPaused:
		return nil, ErrBenefitSchedulePaused
	case models.ScheduleStatusCompleted, models.ScheduleStatusCancelled:
		return nil, ErrBenefitScheduleClosed
	}
	if schedule.DueAt(dayIndex).After(asOf) {
		return nil, ErrBenefitDayNotDue
	}
	if dayIndex != schedule.NextDayIndex {
		return nil, ErrBenefitDayOutOfOrder
	}

	now := time.Now().UTC()
	expectedVersion := schedule.Version
	day := &models.BenefitDay{
		ScheduleID:  scheduleID,
		DayIndex:    dayIndex,
		Status:      models.BenefitDaySkipped,
		Amount:      models.ZeroMoney(),
		ProcessedAt: now,
		CreatedAt:   now,
	}

	if schedule.IsPauseDay(dayIndex) {
		day.SkipReason = benefitSkipPauseDay
	} else {
		remaining := schedule.CapAmount.Decimal.Sub(schedule.AmountReleased.Decimal)
		candidate := decimal.Min(schedule.DailyAmount.Decimal, remaining).Round(2)
		if !candidate.GreaterThan(decimal.Zero) {
			day.SkipReason = benefitSkipCapReached
			completeSchedule(schedule, constants.ScheduleCompletedCapReached, now)
		} else {
			reference := fmt.Sprintf("benefit:%d:%d", scheduleID, dayIndex)
			if _, err := s.ledger.AdjustTx(tx, AdjustInput{
				UserID:    schedule.UserID,
				Currency:  schedule.Currency,
				Delta:     models.NewMoneyFromDecimal(candidate),
				Reason:    constants.LedgerReasonDailyBenefit,
				Reference: reference,
			}); err != nil {
				return nil, err
			}
			day.Status = models.BenefitDayReleased
			day.Amount = models.NewMoneyFromDecimal(candidate)
			day.Reference = reference
			schedule.DaysReleased++
			schedule.AmountReleased = schedule.AmountReleased.Add(day.Amount)
		}
	}
	schedule.NextDayIndex = dayIndex + 1

	if schedule.Status == models.ScheduleStatusActive {
		switch {
		case schedule.DaysReleased >= schedule.TotalDays:
			completeSchedule(schedule, constants.ScheduleCompletedAllDays, now)
		case !schedule.AmountReleased.Decimal.LessThan(schedule.CapAmount.Decimal):
			completeSchedule(schedule, constants.ScheduleCompletedCapReached, now)
		case dayIndex >= schedule.SpanDays-1:
			completeSchedule(schedule, constants.ScheduleCompletedSpanEnded, now)
		}
	}

	swapped, err := repo.CompareAndSwapSchedule(schedule, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update benefit schedule: %w", err)
	}
	if !swapped {
		return nil, ErrLedgerConflict
	}
	if err := repo.CreateDay(day); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrLedgerConflict
		}
		return nil, fmt.Errorf("create benefit day: %w", err)
	}

	completed := schedule.Status == models.ScheduleStatusCompleted
	if completed {
		if _, err := s.purchaseRepo.WithTx(tx).TransitionStatus(schedule.PurchaseID,
			[]models.PurchaseStatus{models.PurchaseStatusActive, models.PurchaseStatusConfirmed},
			models.PurchaseStatusCompleted,
			map[string]interface{}{"completed_at": now},
		); err != nil {
			return nil, fmt.Errorf("complete purchase: %w", err)
		}
	}

	return &BenefitDayResult{
		ScheduleID:     scheduleID,
		DayIndex:       dayIndex,
		Status:         day.Status,
		Amount:         day.Amount,
		SkipReason:     day.SkipReason,
		ScheduleStatus: schedule.Status,
		Completed:      completed,
	}, nil
}

func completeSchedule(schedule *models.BenefitSchedule, reason string, at time.Time) {
	schedule.Status = models.ScheduleStatusCompleted
	schedule.CompletedReason = reason
	completedAt := at
	schedule.CompletedAt = &completedAt
}

// ReleaseDue 扫描进行中的计划并发放截至 asOf 的全部到期日
func (s *BenefitService) ReleaseDue(ctx context.Context, asOf time.Time) (BenefitSweepSummary, error) {
	startedAt := time.Now()
	defer metrics.ObserveSweep("benefit", startedAt)

	asOf = asOf.UTC()
	summary := BenefitSweepSummary{AmountReleased: models.ZeroMoney()}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		schedules, err := s.repo.ListActiveSchedules(afterID, asOf, s.options.BatchSize)
		if err != nil {
			return summary, fmt.Errorf("list active schedules: %w", err)
		}
		for i := range schedules {
			afterID = schedules[i].ID
			summary.SchedulesScanned++
			s.releaseScheduleDue(ctx, &schedules[i], asOf, &summary)
		}
		if len(schedules) < s.options.BatchSize {
			break
		}
	}
	logger.Infow("benefit_sweep_finished",
		"as_of", asOf,
		"schedules_scanned", summary.SchedulesScanned,
		"days_released", summary.DaysReleased,
		"days_skipped", summary.DaysSkipped,
		"schedules_completed", summary.SchedulesCompleted,
		"failures", summary.Failures,
		"amount_released", summary.AmountReleased.String(),
	)
	return summary, nil
}

func (s *BenefitService) releaseScheduleDue(ctx context.Context, schedule *models.BenefitSchedule, asOf time.Time, summary *BenefitSweepSummary) {
	next := schedule.NextDayIndex
	for processed := 0; processed < s.options.MaxDaysPerSweep; processed++ {
		if ctx.Err() != nil || next >= schedule.SpanDays || schedule.DueAt(next).After(asOf) {
			return
		}
		result, err := s.ReleaseDay(ctx, schedule.ID, next, asOf)
		if err != nil {
			if errors.Is(err, ErrBenefitSchedulePaused) || errors.Is(err, ErrBenefitScheduleClosed) {
				return
			}
			summary.Failures++
			logger.Errorw("benefit_release_failed",
				"schedule_id", schedule.ID,
				"day_index", next,
				"error", err,
			)
			return
		}
		switch {
		case result.Replayed:
			summary.DaysReplayed++
		case result.Status == models.BenefitDayReleased:
			summary.DaysReleased++
			summary.AmountReleased = summary.AmountReleased.Add(result.Amount)
		default:
			summary.DaysSkipped++
		}
		if result.Completed {
			if !result.Replayed {
				summary.SchedulesCompleted++
			}
			return
		}
		next++
	}
}

// Pause 暂停计划
func (s *BenefitService) Pause(ctx context.Context, scheduleID uint, reason string) (*models.BenefitSchedule, error) {
	return s.transition(ctx, scheduleID,
		[]models.ScheduleStatus{models.ScheduleStatusActive},
		models.ScheduleStatusPaused,
		map[string]interface{}{"paused_reason": strings.TrimSpace(reason)},
	)
}

// Resume 恢复计划
func (s *BenefitService) Resume(ctx context.Context, scheduleID uint) (*models.BenefitSchedule, error) {
	return s.transition(ctx, scheduleID,
		[]models.ScheduleStatus{models.ScheduleStatusPaused},
		models.ScheduleStatusActive,
		map[string]interface{}{"paused_reason": ""},
	)
}

func (s *BenefitService) transition(ctx context.Context, scheduleID uint, from []models.ScheduleStatus, to models.ScheduleStatus, updates map[string]interface{}) (*models.BenefitSchedule, error) {
	var schedule *models.BenefitSchedule
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.TransitionScheduleStatus(scheduleID, from, to, updates)
		if err != nil {
			return err
		}
		current, err := repo.GetScheduleByID(scheduleID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrBenefitScheduleNotFound
		}
		if !ok {
			return ErrInvalidStateTransition
		}
		schedule = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("benefit_schedule_status_changed",
		"schedule_id", scheduleID,
		"status", to,
	)
	return schedule, nil
}

// CancelForPurchaseTx 购买单撤销时取消未完结的计划，已发放的收益保留
func (s *BenefitService) CancelForPurchaseTx(tx *gorm.DB, purchaseID uint, reason string, at time.Time) error {
	repo := s.repo.WithTx(tx)
	schedule, err := repo.GetScheduleByPurchaseID(purchaseID)
	if err != nil {
		return fmt.Errorf("load benefit schedule: %w", err)
	}
	if schedule == nil {
		return nil
	}
	_, err = repo.TransitionScheduleStatus(schedule.ID,
		[]models.ScheduleStatus{models.ScheduleStatusActive, models.ScheduleStatusPaused},
		models.ScheduleStatusCancelled,
		map[string]interface{}{
			"completed_reason": strings.TrimSpace(reason),
			"completed_at":     at,
		},
	)
	return err
}

// GetSchedule 获取计划
func (s *BenefitService) GetSchedule(_ context.Context, scheduleID uint) (*models.BenefitSchedule, error) {
	schedule, err := s.repo.GetScheduleByID(scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrBenefitScheduleNotFound
	}
	return schedule, nil
}

// GetUserSchedule 获取用户自己的计划
func (s *BenefitService) GetUserSchedule(ctx context.Context, userID, scheduleID uint) (*models.BenefitSchedule, error) {
	schedule, err := s.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule.UserID != userID {
		return nil, ErrBenefitScheduleNotFound
	}
	return schedule, nil
}

// ListDays 查询计划的日处理记录
func (s *BenefitService) ListDays(_ context.Context, filter repository.BenefitDayListFilter) ([]models.BenefitDay, int64, error) {
	return s.repo.ListDays(filter)
}

// ListUserSchedules 查询计划列表
func (s *BenefitService) ListUserSchedules(_ context.Context, filter repository.BenefitScheduleListFilter) ([]models.BenefitSchedule, int64, error) {
	return s.repo.ListSchedules(filter)
}
