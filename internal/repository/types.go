package repository

import "time"

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page     int
	PageSize int
	Keyword  string
	Status   string
}

// PurchaseListFilter 查询购买单列表的过滤条件
type PurchaseListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Status   string
}

// LedgerEntryListFilter 查询账本流水的过滤条件
type LedgerEntryListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Currency    string
	Reason      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// BenefitScheduleListFilter 查询收益计划的过滤条件
type BenefitScheduleListFilter struct {
	Page       int
	PageSize   int
	UserID     uint
	PurchaseID uint
	Status     string
}

// BenefitDayListFilter 查询收益日记录的过滤条件
type BenefitDayListFilter struct {
	Page       int
	PageSize   int
	ScheduleID uint
	Status     string
}

// CommissionListFilter 查询佣金记录的过滤条件
type CommissionListFilter struct {
	Page          int
	PageSize      int
	BeneficiaryID uint
	PurchaseID    uint
	Status        string
}

// WithdrawalListFilter 查询提现申请的过滤条件
type WithdrawalListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	RequestNo   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
