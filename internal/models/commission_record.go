package models

import "time"

// CommissionRecord 推荐佣金记录（每个购买单每个层级一条）
type CommissionRecord struct {
	ID            uint             `gorm:"primarykey" json:"id"`                                                         // 主键
	PurchaseID    uint             `gorm:"not null;index;uniqueIndex:idx_commission_purchase_level" json:"purchase_id"`  // 购买单ID
	Level         int              `gorm:"not null;uniqueIndex:idx_commission_purchase_level" json:"level"`              // 推荐层级（从 1 开始）
	BeneficiaryID uint             `gorm:"not null;index" json:"beneficiary_id"`                                         // 佣金受益人
	SourceUserID  uint             `gorm:"not null;index" json:"source_user_id"`                                         // 购买用户
	BaseAmount    Money            `gorm:"type:decimal(20,2);not null" json:"base_amount"`                               // 佣金基数（本金）
	RatePercent   Money            `gorm:"type:decimal(10,2);not null" json:"rate_percent"`                              // 佣金比例（百分比）
	Amount        Money            `gorm:"type:decimal(20,2);not null" json:"amount"`                                    // 佣金金额（创建后不可变）
	Currency      string           `gorm:"type:varchar(16);not null" json:"currency"`                                    // 币种
	Status        CommissionStatus `gorm:"type:varchar(32);not null;index" json:"status"`                                // 状态
	UnlockAt      time.Time        `gorm:"not null;index" json:"unlock_at"`                                              // 解锁时间
	UnlockedAt    *time.Time       `json:"unlocked_at,omitempty"`                                                        // 实际解锁时间
	HoldReason    string           `gorm:"type:varchar(255);not null;default:''" json:"hold_reason"`                     // 挂起原因
	CancelReason  string           `gorm:"type:varchar(255);not null;default:''" json:"cancel_reason"`                   // 取消原因
	CreatedAt     time.Time        `gorm:"index" json:"created_at"`                                                      // 创建时间
	UpdatedAt     time.Time        `json:"updated_at"`                                                                   // 更新时间
}

// TableName 指定表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}
