package models

import (
	"time"
)

// Purchase 购买记录（purchase_no 作为幂等键）
type Purchase struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                     // 主键
	PurchaseNo  string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"purchase_no"` // 外部购买单号
	UserID      uint      `gorm:"not null;index" json:"user_id"`                            // 购买用户
	Amount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`      // 购买金额
	PackageType string    `gorm:"type:varchar(32);not null;index" json:"package_type"`      // 套餐类型
	Status      string    `gorm:"type:varchar(20);not null;index" json:"status"`            // 购买状态
	OccurredAt  time.Time `gorm:"not null;index" json:"occurred_at"`                        // 发生时间
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                  // 创建时间
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchases"
}
