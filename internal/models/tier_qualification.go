package models

import (
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
)

// TierQualification 月度等级资格快照
type TierQualification struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                                              // 主键
	UserID            uint           `gorm:"not null;index;index:idx_tier_qualification_period,unique" json:"user_id"`          // 用户ID
	Period            string         `gorm:"type:varchar(7);not null;index:idx_tier_qualification_period,unique" json:"period"` // 统计月份 YYYY-MM
	Tier              constants.Tier `gorm:"type:varchar(20);not null" json:"tier"`                                             // 当月等级
	ActiveReferrals   int            `gorm:"not null;default:0" json:"active_referrals"`                                        // 有效直推人数
	TeamVolume        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume"`                          // 团队业绩
	Qualifies         bool           `gorm:"not null;default:false" json:"qualifies"`                                           // 是否满足当前等级门槛
	ConsecutiveMonths int            `gorm:"not null;default:0" json:"consecutive_months"`                                      // 连续达标月数
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                                           // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                                           // 更新时间
}

// TableName 指定表名
func (TierQualification) TableName() string {
	return "tier_qualifications"
}
