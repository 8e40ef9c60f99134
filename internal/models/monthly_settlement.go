package models

import "time"

// MonthlyBonusSettlement 月度奖金结算记录，每个月份一行，累计已发放的奖池额度
type MonthlyBonusSettlement struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                // 主键
	Period            string     `gorm:"type:varchar(7);not null;uniqueIndex" json:"period"`                  // 结算月份 YYYY-MM
	Pool              Money      `gorm:"type:decimal(20,2);not null;default:0" json:"pool"`                   // 最近一次执行时的奖池上限
	TeamVolumeGranted Money      `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume_granted"`    // 已发放团队业绩奖
	LeadershipGranted Money      `gorm:"type:decimal(20,2);not null;default:0" json:"leadership_granted"`     // 已发放领导奖
	Members           int        `gorm:"not null;default:0" json:"members"`                                   // 已结算会员数
	Runs              int        `gorm:"not null;default:0" json:"runs"`                                      // 执行次数
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`                                               // 最近执行时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                             // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (MonthlyBonusSettlement) TableName() string {
	return "monthly_bonus_settlements"
}
