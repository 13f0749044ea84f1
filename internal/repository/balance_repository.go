package repository

import (
	"context"
	"strings"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// BalanceRepository 余额账户与账本流水数据访问接口
type BalanceRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) BalanceRepository

	GetAccount(userID uint, currency string) (*models.BalanceAccount, error)
	CreateAccount(account *models.BalanceAccount) error
	CompareAndSwapAccount(account *models.BalanceAccount, expectedVersion uint64) (bool, error)
	CreateEntry(entry *models.LedgerEntry) error
	GetEntryByReference(reference string) (*models.LedgerEntry, error)
	ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error)
}

// GormBalanceRepository GORM 余额仓储实现
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewBalanceRepository 创建余额仓储
func NewBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// Transaction 执行事务
func (r *GormBalanceRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormBalanceRepository) WithTx(tx *gorm.DB) BalanceRepository {
	if tx == nil {
		return r
	}
	return &GormBalanceRepository{db: tx}
}

// GetAccount 按用户与币种获取余额账户
func (r *GormBalanceRepository) GetAccount(userID uint, currency string) (*models.BalanceAccount, error) {
	if userID == 0 {
		return nil, nil
	}
	var account models.BalanceAccount
	if err := r.db.Where("user_id = ? AND currency = ?", userID, currency).First(&account).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount 创建余额账户
func (r *GormBalanceRepository) CreateAccount(account *models.BalanceAccount) error {
	return r.db.Create(account).Error
}

// CompareAndSwapAccount 按版本号条件更新各余额桶，版本不匹配时返回 false
func (r *GormBalanceRepository) CompareAndSwapAccount(account *models.BalanceAccount, expectedVersion uint64) (bool, error) {
	if account == nil || account.ID == 0 {
		return false, nil
	}
	now := time.Now()
	result := r.db.Model(&models.BalanceAccount{}).
		Where("id = ? AND version = ?", account.ID, expectedVersion).
		Updates(map[string]interface{}{
			"available":       account.Available,
			"reserved":        account.Reserved,
			"total_invested":  account.TotalInvested,
			"total_earned":    account.TotalEarned,
			"total_withdrawn": account.TotalWithdrawn,
			"version":         expectedVersion + 1,
			"updated_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	account.Version = expectedVersion + 1
	account.UpdatedAt = now
	return true, nil
}

// CreateEntry 写入账本流水
func (r *GormBalanceRepository) CreateEntry(entry *models.LedgerEntry) error {
	return r.db.Create(entry).Error
}

// GetEntryByReference 按幂等参考号获取流水
func (r *GormBalanceRepository) GetEntryByReference(reference string) (*models.LedgerEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var entry models.LedgerEntry
	if err := r.db.Where("reference = ?", reference).First(&entry).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries 分页查询账本流水
func (r *GormBalanceRepository) ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	query := r.db.Model(&models.LedgerEntry{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}
	if filter.Reason != "" {
		query = query.Where("reason = ?", filter.Reason)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.LedgerEntry
	if err := query.Order("id desc").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
