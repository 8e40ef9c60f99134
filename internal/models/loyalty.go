package models

import (
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
)

// LoyaltyGrowthCycle 忠诚成长周期
type LoyaltyGrowthCycle struct {
	ID             uint                  `gorm:"primarykey" json:"id"`                                                                        // 主键
	UserID         uint                  `gorm:"not null;index;index:idx_loyalty_cycle_active,unique,where:status = 'active'" json:"user_id"` // 用户ID
	StartDate      time.Time             `gorm:"not null" json:"start_date"`                                                                  // 开始日期
	EndDate        time.Time             `gorm:"not null;index" json:"end_date"`                                                              // 结束日期
	Status         constants.CycleStatus `gorm:"type:varchar(20);not null;index" json:"status"`                                               // 周期状态
	ActiveDays     int                   `gorm:"not null;default:0" json:"active_days"`                                                       // 活跃天数
	TotalEarnedLGC Money                 `gorm:"type:decimal(20,2);not null;default:0" json:"total_earned_lgc"`                               // 累计获得 LGC
	StatusReason   string                `gorm:"type:varchar(255)" json:"status_reason"`                                                      // 状态变更原因
	ClosedAt       *time.Time            `json:"closed_at,omitempty"`                                                                         // 结束时间
	CreatedAt      time.Time             `gorm:"index" json:"created_at"`                                                                     // 创建时间
	UpdatedAt      time.Time             `gorm:"index" json:"updated_at"`                                                                     // 更新时间
}

// TableName 指定表名
func (LoyaltyGrowthCycle) TableName() string {
	return "loyalty_cycles"
}

// LgrActivity 周期内已计入的每日活动
type LgrActivity struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                                                // 主键
	UserID       uint      `gorm:"not null;index;index:idx_lgr_activity_unique,unique" json:"user_id"`                  // 用户ID
	ActivityDate string    `gorm:"type:varchar(10);not null;index:idx_lgr_activity_unique,unique" json:"activity_date"` // 活动日期 YYYY-MM-DD
	ActivityType string    `gorm:"type:varchar(32);not null;index:idx_lgr_activity_unique,unique" json:"activity_type"` // 活动类型
	LgrCycleID   uint      `gorm:"not null;index" json:"lgr_cycle_id"`                                                  // 所属周期
	LGCEarned    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"lgc_earned"`                             // 获得 LGC
	Verified     bool      `gorm:"not null;default:true" json:"verified"`                                               // 是否已核验
	Description  string    `gorm:"type:varchar(255)" json:"description"`                                                // 描述
	Metadata     JSON      `gorm:"type:json" json:"metadata"`                                                           // 附加信息
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                                             // 创建时间
}

// TableName 指定表名
func (LgrActivity) TableName() string {
	return "lgr_activities"
}

// ActivityLog 原始每日活动日志（资格判定用）
type ActivityLog struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                                                // 主键
	UserID       uint      `gorm:"not null;index;index:idx_activity_log_unique,unique" json:"user_id"`                  // 用户ID
	ActivityDate string    `gorm:"type:varchar(10);not null;index:idx_activity_log_unique,unique" json:"activity_date"` // 活动日期
	ActivityType string    `gorm:"type:varchar(32);not null;index:idx_activity_log_unique,unique" json:"activity_type"` // 活动类型
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                                             // 创建时间
}

// TableName 指定表名
func (ActivityLog) TableName() string {
	return "activity_logs"
}
