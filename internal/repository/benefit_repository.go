package repository

import (
	"context"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// BenefitRepository 收益计划数据访问接口
type BenefitRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) BenefitRepository

	GetScheduleByID(id uint) (*models.BenefitSchedule, error)
	GetScheduleByPurchaseID(purchaseID uint) (*models.BenefitSchedule, error)
	CreateSchedule(schedule *models.BenefitSchedule) error
	CompareAndSwapSchedule(schedule *models.BenefitSchedule, expectedVersion uint64) (bool, error)
	TransitionScheduleStatus(id uint, from []models.ScheduleStatus, to models.ScheduleStatus, updates map[string]interface{}) (bool, error)
	ListActiveSchedules(afterID uint, startedBefore time.Time, limit int) ([]models.BenefitSchedule, error)
	ListSchedules(filter BenefitScheduleListFilter) ([]models.BenefitSchedule, int64, error)

	GetDay(scheduleID uint, dayIndex int) (*models.BenefitDay, error)
	CreateDay(day *models.BenefitDay) error
	ListDays(filter BenefitDayListFilter) ([]models.BenefitDay, int64, error)
}

// GormBenefitRepository GORM 实现
type GormBenefitRepository struct {
	db *gorm.DB
}

// NewBenefitRepository 创建收益计划仓库
func NewBenefitRepository(db *gorm.DB) *GormBenefitRepository {
	return &GormBenefitRepository{db: db}
}

// Transaction 执行事务
func (r *GormBenefitRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormBenefitRepository) WithTx(tx *gorm.DB) BenefitRepository {
	if tx == nil {
		return r
	}
	return &GormBenefitRepository{db: tx}
}

// GetScheduleByID 根据 ID 获取收益计划
func (r *GormBenefitRepository) GetScheduleByID(id uint) (*models.BenefitSchedule, error) {
	if id == 0 {
		return nil, nil
	}
	var schedule models.BenefitSchedule
	if err := r.db.First(&schedule, id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// GetScheduleByPurchaseID 根据购买单获取收益计划
func (r *GormBenefitRepository) GetScheduleByPurchaseID(purchaseID uint) (*models.BenefitSchedule, error) {
	if purchaseID == 0 {
		return nil, nil
	}
	var schedule models.BenefitSchedule
	if err := r.db.Where("purchase_id = ?", purchaseID).First(&schedule).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// CreateSchedule 创建收益计划
func (r *GormBenefitRepository) CreateSchedule(schedule *models.BenefitSchedule) error {
	return r.db.Create(schedule).Error
}

// CompareAndSwapSchedule 按版本号条件写回计划进度，版本不匹配时返回 false
func (r *GormBenefitRepository) CompareAndSwapSchedule(schedule *models.BenefitSchedule, expectedVersion uint64) (bool, error) {
	if schedule == nil || schedule.ID == 0 {
		return false, nil
	}
	now := time.Now()
	result := r.db.Model(&models.BenefitSchedule{}).
		Where("id = ? AND version = ?", schedule.ID, expectedVersion).
		Updates(map[string]interface{}{
			"days_released":    schedule.DaysReleased,
			"amount_released":  schedule.AmountReleased,
			"next_day_index":   schedule.NextDayIndex,
			"status":           schedule.Status,
			"completed_reason": schedule.CompletedReason,
			"completed_at":     schedule.CompletedAt,
			"version":          expectedVersion + 1,
			"updated_at":       now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	schedule.Version = expectedVersion + 1
	schedule.UpdatedAt = now
	return true, nil
}

// TransitionScheduleStatus 条件推进计划状态，返回是否命中
func (r *GormBenefitRepository) TransitionScheduleStatus(id uint, from []models.ScheduleStatus, to models.ScheduleStatus, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+3)
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = to
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now()
	result := r.db.Model(&models.BenefitSchedule{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListActiveSchedules 按 ID 游标分批获取已开始的进行中计划
func (r *GormBenefitRepository) ListActiveSchedules(afterID uint, startedBefore time.Time, limit int) ([]models.BenefitSchedule, error) {
	if limit <= 0 {
		limit = 100
	}
	var schedules []models.BenefitSchedule
	if err := r.db.Where("id > ? AND status = ? AND start_at <= ?", afterID, models.ScheduleStatusActive, startedBefore).
		Order("id asc").
		Limit(limit).
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// ListSchedules 分页查询收益计划
func (r *GormBenefitRepository) ListSchedules(filter BenefitScheduleListFilter) ([]models.BenefitSchedule, int64, error) {
	query := r.db.Model(&models.BenefitSchedule{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PurchaseID != 0 {
		query = query.Where("purchase_id = ?", filter.PurchaseID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var schedules []models.BenefitSchedule
	if err := query.Order("id desc").Find(&schedules).Error; err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// GetDay 获取某计划某日序号的处理记录
func (r *GormBenefitRepository) GetDay(scheduleID uint, dayIndex int) (*models.BenefitDay, error) {
	var day models.BenefitDay
	if err := r.db.Where("schedule_id = ? AND day_index = ?", scheduleID, dayIndex).First(&day).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &day, nil
}

// CreateDay 写入收益日处理记录
func (r *GormBenefitRepository) CreateDay(day *models.BenefitDay) error {
	return r.db.Create(day).Error
}

// ListDays 分页查询收益日记录（按日序号升序）
func (r *GormBenefitRepository) ListDays(filter BenefitDayListFilter) ([]models.BenefitDay, int64, error) {
	query := r.db.Model(&models.BenefitDay{}).Where("schedule_id = ?", filter.ScheduleID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var days []models.BenefitDay
	if err := query.Order("day_index asc").Find(&days).Error; err != nil {
		return nil, 0, err
	}
	return days, total, nil
}
