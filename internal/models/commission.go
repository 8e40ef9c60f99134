package models

import (
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
)

// Commission 佣金/奖金账本记录，只追加不删除
type Commission struct {
	ID             uint                       `gorm:"primarykey" json:"id"`                                          // 主键
	EarnerID       uint                       `gorm:"not null;index" json:"earner_id"`                               // 获得者
	SourceID       uint                       `gorm:"not null;index" json:"source_id"`                               // 来源用户
	PurchaseID     *uint                      `gorm:"index" json:"purchase_id,omitempty"`                            // 关联购买
	Level          int                        `gorm:"not null;default:0" json:"level"`                               // 推荐层级（非推荐佣金为 0）
	BaseAmount     Money                      `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`      // 计算基数
	RatePercent    Money                      `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`     // 比例（百分比）
	Amount         Money                      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`           // 佣金金额
	Type           constants.CommissionType   `gorm:"type:varchar(20);not null;index" json:"type"`                   // 佣金类型
	Status         constants.CommissionStatus `gorm:"type:varchar(20);not null;index" json:"status"`                 // 佣金状态
	Period         string                     `gorm:"type:varchar(16);index" json:"period,omitempty"`                // 结算周期（月度奖金）
	IdempotencyKey string                     `gorm:"type:varchar(128);not null;uniqueIndex" json:"idempotency_key"` // 幂等键
	Remark         string                     `gorm:"type:varchar(255)" json:"remark"`                               // 备注/取消原因
	EarnedAt       time.Time                  `gorm:"not null;index" json:"earned_at"`                               // 产生时间
	PaidAt         *time.Time                 `json:"paid_at,omitempty"`                                             // 支付时间
	CancelledAt    *time.Time                 `json:"cancelled_at,omitempty"`                                        // 取消时间
	CreatedAt      time.Time                  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time                  `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}
