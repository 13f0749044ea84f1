package repository

import (
	"context"
	"strings"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// LicensePackageRepository 许可套餐数据访问接口
type LicensePackageRepository interface {
	WithTx(tx *gorm.DB) LicensePackageRepository
	GetByID(id uint) (*models.LicensePackage, error)
	GetByCode(code string) (*models.LicensePackage, error)
	Create(pkg *models.LicensePackage) error
	List(onlyActive bool) ([]models.LicensePackage, error)
}

// GormLicensePackageRepository GORM 实现
type GormLicensePackageRepository struct {
	db *gorm.DB
}

// NewLicensePackageRepository 创建套餐仓库
func NewLicensePackageRepository(db *gorm.DB) *GormLicensePackageRepository {
	return &GormLicensePackageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormLicensePackageRepository) WithTx(tx *gorm.DB) LicensePackageRepository {
	if tx == nil {
		return r
	}
	return &GormLicensePackageRepository{db: tx}
}

// GetByID 根据 ID 获取套餐
func (r *GormLicensePackageRepository) GetByID(id uint) (*models.LicensePackage, error) {
	if id == 0 {
		return nil, nil
	}
	var pkg models.LicensePackage
	if err := r.db.First(&pkg, id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByCode 根据编码获取套餐
func (r *GormLicensePackageRepository) GetByCode(code string) (*models.LicensePackage, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var pkg models.LicensePackage
	if err := r.db.Where("code = ?", code).First(&pkg).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// Create 创建套餐
func (r *GormLicensePackageRepository) Create(pkg *models.LicensePackage) error {
	return r.db.Create(pkg).Error
}

// List 套餐列表
func (r *GormLicensePackageRepository) List(onlyActive bool) ([]models.LicensePackage, error) {
	query := r.db.Model(&models.LicensePackage{})
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	var pkgs []models.LicensePackage
	if err := query.Order("id asc").Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// PurchaseRepository 购买单数据访问接口
type PurchaseRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PurchaseRepository

	GetByID(id uint) (*models.Purchase, error)
	GetByPurchaseNo(purchaseNo string) (*models.Purchase, error)
	Create(purchase *models.Purchase) error
	TransitionStatus(id uint, from []models.PurchaseStatus, to models.PurchaseStatus, updates map[string]interface{}) (bool, error)
	MarkCommissionSettled(id uint, at time.Time) (bool, error)
	List(filter PurchaseListFilter) ([]models.Purchase, int64, error)
}

// GormPurchaseRepository GORM 实现
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository 创建购买单仓库
func NewPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// Transaction 执行事务
func (r *GormPurchaseRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormPurchaseRepository) WithTx(tx *gorm.DB) PurchaseRepository {
	if tx == nil {
		return r
	}
	return &GormPurchaseRepository{db: tx}
}

// GetByID 根据 ID 获取购买单
func (r *GormPurchaseRepository) GetByID(id uint) (*models.Purchase, error) {
	if id == 0 {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.First(&purchase, id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// GetByPurchaseNo 根据外部单号获取购买单
func (r *GormPurchaseRepository) GetByPurchaseNo(purchaseNo string) (*models.Purchase, error) {
	purchaseNo = strings.TrimSpace(purchaseNo)
	if purchaseNo == "" {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.Where("purchase_no = ?", purchaseNo).First(&purchase).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// Create 创建购买单
func (r *GormPurchaseRepository) Create(purchase *models.Purchase) error {
	return r.db.Create(purchase).Error
}

// TransitionStatus 条件推进状态：仅当当前状态属于 from 时更新，返回是否命中
func (r *GormPurchaseRepository) TransitionStatus(id uint, from []models.PurchaseStatus, to models.PurchaseStatus, updates map[string]interface{}) (bool, error) {
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
	result := r.db.Model(&models.Purchase{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCommissionSettled 写入佣金结算标记，已结算时返回 false
func (r *GormPurchaseRepository) MarkCommissionSettled(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.Purchase{}).
		Where("id = ? AND commission_settled_at IS NULL", id).
		Updates(map[string]interface{}{
			"commission_settled_at": at,
			"updated_at":            at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 购买单列表
func (r *GormPurchaseRepository) List(filter PurchaseListFilter) ([]models.Purchase, int64, error) {
	query := r.db.Model(&models.Purchase{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var purchases []models.Purchase
	if err := query.Order("id desc").Find(&purchases).Error; err != nil {
		return nil, 0, err
	}
	return purchases, total, nil
}
