package models

import "time"

// WithdrawalRequest 提现申请
type WithdrawalRequest struct {
	ID             uint             `gorm:"primarykey" json:"id"`                                              // 主键
	RequestNo      string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`           // 申请单号
	UserID         uint             `gorm:"not null;index" json:"user_id"`                                     // 用户ID
	Amount         Money            `gorm:"type:decimal(20,2);not null" json:"amount"`                         // 提现金额
	Currency       string           `gorm:"type:varchar(16);not null" json:"currency"`                         // 币种（固定 USDT）
	Address        string           `gorm:"type:varchar(128);not null" json:"address"`                         // 收款地址
	Network        string           `gorm:"type:varchar(16);not null" json:"network"`                          // 网络（固定 BEP20）
	Status         WithdrawalStatus `gorm:"type:varchar(32);not null;index" json:"status"`                     // 状态
	BalanceBefore  Money            `gorm:"type:decimal(20,2);not null;default:0" json:"balance_before"`       // 冻结前可用余额
	InflightUserID *uint            `gorm:"uniqueIndex" json:"-"`                                              // 处理中占位（终态置空）
	TxHash         string           `gorm:"type:varchar(128);not null;default:''" json:"tx_hash"`              // 链上交易哈希
	ErrorMessage   string           `gorm:"type:varchar(500);not null;default:''" json:"error_message"`        // 失败说明
	ActualFee      Money            `gorm:"type:decimal(20,2);not null;default:0" json:"actual_fee"`           // 实际手续费
	ProcessedBy    *uint            `gorm:"index" json:"processed_by,omitempty"`                               // 最后处理的管理员
	RequestedAt    time.Time        `gorm:"not null;index" json:"requested_at"`                                // 申请时间
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`                                             // 审核通过时间
	ProcessingAt   *time.Time       `json:"processing_at,omitempty"`                                           // 开始打款时间
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`                                            // 完成时间
	RejectedAt     *time.Time       `json:"rejected_at,omitempty"`                                             // 驳回时间
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt      time.Time        `json:"updated_at"`                                                        // 更新时间
}

// TableName 指定表名
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
