package repository

import (
	"context"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// OtpRepository 一次性口令挑战数据访问接口
type OtpRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) OtpRepository

	Create(challenge *models.OtpChallenge) error
	GetLatest(userID uint, purpose string) (*models.OtpChallenge, error)
	GetActive(userID uint, purpose string) (*models.OtpChallenge, error)
	SupersedeActive(userID uint, purpose string, at time.Time) (int64, error)
	ConsumeAttempt(id uint) (bool, error)
	MarkUsed(id uint, at time.Time) (bool, error)
}

// GormOtpRepository GORM 实现
type GormOtpRepository struct {
	db *gorm.DB
}

// NewOtpRepository 创建一次性口令仓库
func NewOtpRepository(db *gorm.DB) *GormOtpRepository {
	return &GormOtpRepository{db: db}
}

// Transaction 执行事务
func (r *GormOtpRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormOtpRepository) WithTx(tx *gorm.DB) OtpRepository {
	if tx == nil {
		return r
	}
	return &GormOtpRepository{db: tx}
}

// Create 创建挑战记录
func (r *GormOtpRepository) Create(challenge *models.OtpChallenge) error {
	return r.db.Create(challenge).Error
}

// GetLatest 获取最近一次下发的挑战（无论状态）
func (r *GormOtpRepository) GetLatest(userID uint, purpose string) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.Where("user_id = ? AND purpose = ?", userID, purpose).
		Order("sent_at desc, id desc").
		First(&challenge).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

// GetActive 获取当前有效挑战（未使用、未被替代）
func (r *GormOtpRepository) GetActive(userID uint, purpose string) (*models.OtpChallenge, error) {
	var challenge models.OtpChallenge
	if err := r.db.Where("user_id = ? AND purpose = ? AND used_at IS NULL AND superseded_at IS NULL", userID, purpose).
		Order("id desc").
		First(&challenge).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &challenge, nil
}

// SupersedeActive 使同一用户同一用途下所有有效挑战失效
func (r *GormOtpRepository) SupersedeActive(userID uint, purpose string, at time.Time) (int64, error) {
	result := r.db.Model(&models.OtpChallenge{}).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL AND superseded_at IS NULL", userID, purpose).
		Update("superseded_at", at)
	return result.RowsAffected, result.Error
}

// ConsumeAttempt 扣减一次剩余尝试次数，次数已耗尽时返回 false
func (r *GormOtpRepository) ConsumeAttempt(id uint) (bool, error) {
	result := r.db.Model(&models.OtpChallenge{}).
		Where("id = ? AND remaining_attempts > 0", id).
		UpdateColumn("remaining_attempts", gorm.Expr("remaining_attempts - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkUsed 标记挑战已使用，仅对仍有效的挑战生效
func (r *GormOtpRepository) MarkUsed(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.OtpChallenge{}).
		Where("id = ? AND used_at IS NULL AND superseded_at IS NULL AND remaining_attempts > 0", id).
		Update("used_at", at)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
