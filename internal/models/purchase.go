package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase 许可购买单（确认后仅允许推进状态）
type Purchase struct {
	ID                  uint            `gorm:"primarykey" json:"id"`                                                  // 主键
	PurchaseNo          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"purchase_no"`              // 外部购买单号
	UserID              uint            `gorm:"not null;index" json:"user_id"`                                         // 购买用户
	PackageID           uint            `gorm:"not null;index" json:"package_id"`                                      // 套餐ID
	PackageCode         string          `gorm:"type:varchar(64);not null" json:"package_code"`                         // 套餐编码快照
	Principal           Money           `gorm:"type:decimal(20,2);not null" json:"principal"`                          // 本金
	Currency            string          `gorm:"type:varchar(16);not null" json:"currency"`                             // 币种
	DailyRate           decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"daily_rate"`               // 日收益率快照
	DaysPerCycle        int             `gorm:"not null;default:0" json:"days_per_cycle"`                              // 每周期发放天数快照
	PauseDaysPerCycle   int             `gorm:"not null;default:0" json:"pause_days_per_cycle"`                        // 每周期暂停天数快照
	TotalCycles         int             `gorm:"not null;default:0" json:"total_cycles"`                                // 总周期数快照
	CapPercent          Money           `gorm:"type:decimal(10,2);not null;default:0" json:"cap_percent"`              // 收益封顶快照
	Status              PurchaseStatus  `gorm:"type:varchar(32);not null;index" json:"status"`                         // 状态
	ConfirmedAt         *time.Time      `gorm:"index" json:"confirmed_at,omitempty"`                                   // 确认时间
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`                                                // 完成时间
	CommissionSettledAt *time.Time      `gorm:"index" json:"commission_settled_at,omitempty"`                          // 佣金结算标记
	ReversedReason      string          `gorm:"type:varchar(255);not null;default:''" json:"reversed_reason,omitempty"` // 撤销原因
	Version             uint64          `gorm:"not null;default:0" json:"-"`                                           // 乐观锁版本
	CreatedAt           time.Time       `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt           time.Time       `json:"updated_at"`                                                            // 更新时间
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchases"
}
