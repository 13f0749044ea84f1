package repository

import (
	"context"
	"strings"
	"time"

	"github.com/license-ledger/internal/models"

	"gorm.io/gorm"
)

// WithdrawalRepository 提现申请数据访问接口
type WithdrawalRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) WithdrawalRepository

	Create(req *models.WithdrawalRequest) error
	GetByID(id uint) (*models.WithdrawalRequest, error)
	GetByRequestNo(requestNo string) (*models.WithdrawalRequest, error)
	GetInflightByUser(userID uint) (*models.WithdrawalRequest, error)
	TransitionStatus(id uint, from []models.WithdrawalStatus, to models.WithdrawalStatus, updates map[string]interface{}) (bool, error)
	List(filter WithdrawalListFilter) ([]models.WithdrawalRequest, int64, error)
}

// GormWithdrawalRepository GORM 实现
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓库
func NewWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// Transaction 执行事务
func (r *GormWithdrawalRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

// WithTx 绑定事务
func (r *GormWithdrawalRepository) WithTx(tx *gorm.DB) WithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawalRepository{db: tx}
}

// Create 创建提现申请
func (r *GormWithdrawalRepository) Create(req *models.WithdrawalRequest) error {
	return r.db.Create(req).Error
}

// GetByID 根据 ID 获取提现申请
func (r *GormWithdrawalRepository) GetByID(id uint) (*models.WithdrawalRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var req models.WithdrawalRequest
	if err := r.db.First(&req, id).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// GetByRequestNo 根据申请单号获取提现申请
func (r *GormWithdrawalRepository) GetByRequestNo(requestNo string) (*models.WithdrawalRequest, error) {
	requestNo = strings.TrimSpace(requestNo)
	if requestNo == "" {
		return nil, nil
	}
	var req models.WithdrawalRequest
	if err := r.db.Where("request_no = ?", requestNo).First(&req).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// GetInflightByUser 获取用户处理中的提现申请
func (r *GormWithdrawalRepository) GetInflightByUser(userID uint) (*models.WithdrawalRequest, error) {
	if userID == 0 {
		return nil, nil
	}
	var req models.WithdrawalRequest
	if err := r.db.Where("user_id = ? AND status IN ?", userID, models.InFlightWithdrawalStatuses).
		Order("id desc").
		First(&req).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// TransitionStatus 条件推进提现状态，返回是否命中；进入终态时释放处理中占位
func (r *GormWithdrawalRepository) TransitionStatus(id uint, from []models.WithdrawalStatus, to models.WithdrawalStatus, updates map[string]interface{}) (bool, error) {
	if id == 0 || len(from) == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+3)
	for key, value := range updates {
		values[key] = value
	}
	values["status"] = to
	values["updated_at"] = time.Now()
	if to.IsTerminal() {
		values["inflight_user_id"] = nil
	}
	result := r.db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 分页查询提现申请
func (r *GormWithdrawalRepository) List(filter WithdrawalListFilter) ([]models.WithdrawalRequest, int64, error) {
	query := r.db.Model(&models.WithdrawalRequest{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RequestNo != "" {
		query = query.Where("request_no LIKE ?", "%"+filter.RequestNo+"%")
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

	var reqs []models.WithdrawalRequest
	if err := query.Order("id desc").Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
