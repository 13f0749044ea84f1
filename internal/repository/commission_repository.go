package repository

import (
	"context"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// CommissionRepository 推荐佣金数据访问接口
type CommissionRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	GetByID(id uint) (*models.CommissionRecord, error)
	CreateRecords(records []models.CommissionRecord) error
	ListByPurchase(purchaseID uint) ([]models.CommissionRecord, error)
	ListDueForUnlock(now time.Time, afterID uint, limit int) ([]models.CommissionRecord, error)
	TransitionStatus(id uint, from []models.CommissionStatus, to models.CommissionStatus, updates map[string]interface{}) (bool, error)
	CancelByPurchase(purchaseID uint, reason string, at time.Time) (int64, error)
	List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error)
}

// GormCommissionRepository GORM 实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓库
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// GetByID 根据 ID 获取佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var record models.CommissionRecord
	if err := r.db.First(&record, id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// CreateRecords 批量写入佣金记录
func (r *GormCommissionRepository) CreateRecords(records []models.CommissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.Create(&records).Error
}

// ListByPurchase 获取购买单下的全部佣金记录
func (r *GormCommissionRepository) ListByPurchase(purchaseID uint) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	if err := r.db.Where("purchase_id = ?", purchaseID).Order("level asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListDueForUnlock 按 ID 游标分批获取到期待解锁的佣金
func (r *GormCommissionRepository) ListDueForUnlock(now time.Time, afterID uint, limit int) ([]models.CommissionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.CommissionRecord
	if err := r.db.Where("id > ? AND status IN ? AND unlock_at <= ?", afterID,
		[]models.CommissionStatus{models.CommissionStatusLocked, models.CommissionStatusPending}, now).
		Order("id asc").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// TransitionStatus 条件推进佣金状态，返回是否命中
func (r *GormCommissionRepository) TransitionStatus(id uint, from []models.CommissionStatus, to models.CommissionStatus, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+2)
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = to
	values["updated_at"] = time.Now()
	result := r.db.Model(&models.CommissionRecord{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CancelByPurchase 取消购买单下尚未入账的佣金
func (r *GormCommissionRepository) CancelByPurchase(purchaseID uint, reason string, at time.Time) (int64, error) {
	result := r.db.Model(&models.CommissionRecord{}).
		Where("purchase_id = ? AND status IN ?", purchaseID,
			[]models.CommissionStatus{models.CommissionStatusLocked, models.CommissionStatusPending}).
		Updates(map[string]interface{}{
			"status":        models.CommissionStatusCancelled,
			"cancel_reason": reason,
			"updated_at":    at,
		})
	return result.RowsAffected, result.Error
}

// List 分页查询佣金记录
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	query := r.db.Model(&models.CommissionRecord{})
	if filter.BeneficiaryID != 0 {
		query = query.Where("beneficiary_id = ?", filter.BeneficiaryID)
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

	var records []models.CommissionRecord
	if err := query.Order("id desc").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
