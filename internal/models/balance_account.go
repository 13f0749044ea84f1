package models

import "time"

// BalanceAccount 用户余额账户（所有变动只允许经由账本原子调整）
type BalanceAccount struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	UserID         uint      `gorm:"not null;uniqueIndex:idx_balance_account_user_currency" json:"user_id"`    // 用户ID
	Currency       string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_balance_account_user_currency" json:"currency"` // 币种
	Available      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available"`                  // 可用余额
	Reserved       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"reserved"`                   // 提现冻结
	TotalInvested  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_invested"`             // 累计投入
	TotalEarned    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earned"`               // 累计收益（含佣金）
	TotalWithdrawn Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_withdrawn"`            // 累计提现
	Version        uint64    `gorm:"not null;default:0" json:"version"`                                       // 乐观锁版本
	CreatedAt      time.Time `json:"created_at"`                                                              // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                              // 更新时间
}

// TableName 指定表名
func (BalanceAccount) TableName() string {
	return "balance_accounts"
}

// LedgerEntry 账本流水（写入后不可修改）
type LedgerEntry struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                          // 主键
	UserID          uint      `gorm:"not null;index" json:"user_id"`                                 // 用户ID
	AccountID       uint      `gorm:"not null;index" json:"account_id"`                              // 账户ID
	Currency        string    `gorm:"type:varchar(16);not null" json:"currency"`                     // 币种
	Reason          string    `gorm:"type:varchar(32);not null;index" json:"reason"`                 // 变动原因
	Direction       string    `gorm:"type:varchar(8);not null" json:"direction"`                     // 方向
	Amount          Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 变动金额（绝对值）
	Delta           Money     `gorm:"type:decimal(20,2);not null" json:"delta"`                      // 可用余额带符号变动
	AvailableBefore Money     `gorm:"type:decimal(20,2);not null" json:"available_before"`           // 变动前可用余额
	AvailableAfter  Money     `gorm:"type:decimal(20,2);not null" json:"available_after"`            // 变动后可用余额
	ReservedAfter   Money     `gorm:"type:decimal(20,2);not null" json:"reserved_after"`             // 变动后冻结余额
	Reference       string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference"`       // 幂等参考号
	Remark          string    `gorm:"type:varchar(255);not null;default:''" json:"remark"`           // 备注
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                       // 记账时间
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
