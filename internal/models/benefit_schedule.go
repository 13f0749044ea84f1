package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BenefitSchedule 收益发放计划（每个已确认购买单一条）
type BenefitSchedule struct {
	ID                uint            `gorm:"primarykey" json:"id"`                                              // 主键
	PurchaseID        uint            `gorm:"not null;uniqueIndex" json:"purchase_id"`                           // 购买单ID
	UserID            uint            `gorm:"not null;index" json:"user_id"`                                     // 收益用户
	Currency          string          `gorm:"type:varchar(16);not null" json:"currency"`                         // 币种
	Principal         Money           `gorm:"type:decimal(20,2);not null" json:"principal"`                      // 本金
	DailyRate         decimal.Decimal `gorm:"type:decimal(12,6);not null" json:"daily_rate"`                     // 日收益率
	DailyAmount       Money           `gorm:"type:decimal(20,2);not null" json:"daily_amount"`                   // 每日收益
	DaysPerCycle      int             `gorm:"not null" json:"days_per_cycle"`                                    // 每周期发放天数
	PauseDaysPerCycle int             `gorm:"not null;default:0" json:"pause_days_per_cycle"`                    // 每周期暂停天数
	TotalCycles       int             `gorm:"not null" json:"total_cycles"`                                      // 总周期数
	TotalDays         int             `gorm:"not null" json:"total_days"`                                        // 发放日总数
	SpanDays          int             `gorm:"not null" json:"span_days"`                                         // 日历跨度天数（含暂停日）
	CapPercent        Money           `gorm:"type:decimal(10,2);not null" json:"cap_percent"`                    // 收益封顶百分比
	CapAmount         Money           `gorm:"type:decimal(20,2);not null" json:"cap_amount"`                     // 收益封顶金额
	DaysReleased      int             `gorm:"not null;default:0" json:"days_released"`                           // 已发放天数
	AmountReleased    Money           `gorm:"type:decimal(20,2);not null;default:0" json:"amount_released"`      // 已发放金额
	NextDayIndex      int             `gorm:"not null;default:0;index" json:"next_day_index"`                    // 下一个待处理日序号
	StartAt           time.Time       `gorm:"not null;index" json:"start_at"`                                    // 第 0 日起算时间
	Status            ScheduleStatus  `gorm:"type:varchar(32);not null;index" json:"status"`                     // 状态
	PausedReason      string          `gorm:"type:varchar(255);not null;default:''" json:"paused_reason"`        // 暂停原因
	CompletedReason   string          `gorm:"type:varchar(64);not null;default:''" json:"completed_reason"`      // 完结原因
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`                                            // 完结时间
	Version           uint64          `gorm:"not null;default:0" json:"-"`                                       // 乐观锁版本
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt         time.Time       `json:"updated_at"`                                                        // 更新时间
}

// TableName 指定表名
func (BenefitSchedule) TableName() string {
	return "benefit_schedules"
}

// CycleLength 单周期日历天数
func (s BenefitSchedule) CycleLength() int {
	return s.DaysPerCycle + s.PauseDaysPerCycle
}

// IsPauseDay 判断日序号是否落在周期内的暂停日
func (s BenefitSchedule) IsPauseDay(dayIndex int) bool {
	cycle := s.CycleLength()
	if cycle <= 0 || s.PauseDaysPerCycle <= 0 {
		return false
	}
	return dayIndex%cycle >= s.DaysPerCycle
}

// DueAt 日序号的到期时间
func (s BenefitSchedule) DueAt(dayIndex int) time.Time {
	return s.StartAt.AddDate(0, 0, dayIndex)
}

// BenefitDay 收益日处理记录（每个日序号至多一条）
type BenefitDay struct {
	ID          uint             `gorm:"primarykey" json:"id"`                                                       // 主键
	ScheduleID  uint             `gorm:"not null;uniqueIndex:idx_benefit_day_unique" json:"schedule_id"`             // 计划ID
	DayIndex    int              `gorm:"not null;uniqueIndex:idx_benefit_day_unique" json:"day_index"`               // 日序号（从 0 开始）
	Status      BenefitDayStatus `gorm:"type:varchar(32);not null" json:"status"`                                    // 状态
	Amount      Money            `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                        // 发放金额
	Reference   string           `gorm:"type:varchar(128);not null;default:''" json:"reference"`                     // 账本参考号
	SkipReason  string           `gorm:"type:varchar(64);not null;default:''" json:"skip_reason"`                    // 跳过原因
	ProcessedAt time.Time        `gorm:"not null" json:"processed_at"`                                               // 处理时间
	CreatedAt   time.Time        `json:"created_at"`                                                                 // 创建时间
}

// TableName 指定表名
func (BenefitDay) TableName() string {
	return "benefit_days"
}
