package models

import "time"

// OtpChallenge 一次性口令挑战（同一用户同一用途仅保留一个有效挑战）
type OtpChallenge struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                  // 主键
	ChallengeID       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"challenge_id"` // 对外挑战ID
	UserID            uint       `gorm:"not null;index:idx_otp_user_purpose" json:"user_id"`    // 用户ID
	Purpose           string     `gorm:"type:varchar(32);not null;index:idx_otp_user_purpose" json:"purpose"` // 用途
	PinHash           string     `gorm:"type:varchar(255);not null" json:"-"`                   // PIN 哈希
	ExpiresAt         time.Time  `gorm:"not null;index" json:"expires_at"`                      // 过期时间
	RemainingAttempts int        `gorm:"not null" json:"remaining_attempts"`                    // 剩余尝试次数
	UsedAt            *time.Time `json:"used_at,omitempty"`                                     // 使用时间
	SupersededAt      *time.Time `json:"superseded_at,omitempty"`                               // 被新挑战替代时间
	SentAt            time.Time  `gorm:"not null" json:"sent_at"`                               // 下发时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                               // 创建时间
}

// TableName 指定表名
func (OtpChallenge) TableName() string {
	return "otp_challenges"
}

// IsActive 挑战是否仍可验证（未使用、未被替代）
func (c OtpChallenge) IsActive() bool {
	return c.UsedAt == nil && c.SupersededAt == nil
}
