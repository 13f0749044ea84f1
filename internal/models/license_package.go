package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LicensePackage 许可套餐（定义日收益率、周期结构与收益封顶）
type LicensePackage struct {
	ID                uint            `gorm:"primarykey" json:"id"`                                           // 主键
	Code              string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`              // 套餐编码
	Name              string          `gorm:"type:varchar(128);not null;default:''" json:"name"`              // 套餐名称
	DailyRate         decimal.Decimal `gorm:"type:decimal(12,6);not null;default:0" json:"daily_rate"`        // 日收益率（小数，如 0.0125）
	DaysPerCycle      int             `gorm:"not null;default:0" json:"days_per_cycle"`                       // 每周期发放天数
	PauseDaysPerCycle int             `gorm:"not null;default:0" json:"pause_days_per_cycle"`                 // 每周期暂停天数
	TotalCycles       int             `gorm:"not null;default:0" json:"total_cycles"`                         // 总周期数
	CapPercent        Money           `gorm:"type:decimal(10,2);not null;default:0" json:"cap_percent"`       // 收益封顶（本金百分比）
	MinPrincipal      Money           `gorm:"type:decimal(20,2);not null;default:0" json:"min_principal"`     // 最低本金
	Currency          string          `gorm:"type:varchar(16);not null;default:'USDT'" json:"currency"`       // 币种
	IsActive          bool            `gorm:"not null;default:true;index" json:"is_active"`                   // 是否可售
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt         time.Time       `json:"updated_at"`                                                     // 更新时间
}

// TableName 指定表名
func (LicensePackage) TableName() string {
	return "license_packages"
}

// CycleLength 单周期日历天数
func (p LicensePackage) CycleLength() int {
	return p.DaysPerCycle + p.PauseDaysPerCycle
}
