package models

import (
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"

	"gorm.io/gorm"
)

// Member 会员快照（推荐关系、订阅、业绩）
type Member struct {
	ID                  uint                         `gorm:"primarykey" json:"id"`                                                        // 主键
	ReferrerID          *uint                        `gorm:"index" json:"referrer_id,omitempty"`                                          // 推荐人ID
	DisplayName         string                       `gorm:"type:varchar(120);default:''" json:"display_name"`                            // 昵称
	SubscriptionStatus  constants.SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"subscription_status"` // 订阅状态
	ProfessionalLevel   int                          `gorm:"not null;default:1" json:"professional_level"`                                // 专业等级
	BusinessPoints      Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"business_points"`                // 业务积分 BP
	TeamVolume          Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume"`                    // 累计团队业绩
	MonthlyTeamVolume   Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_team_volume"`            // 当月团队业绩
	CurrentTier         constants.Tier               `gorm:"type:varchar(20);not null;default:'bronze';index" json:"current_tier"`        // 当前等级
	TrainingCompletedAt *time.Time                   `json:"training_completed_at,omitempty"`                                             // 培训完成时间
	LastLoginAt         *time.Time                   `gorm:"index" json:"last_login_at,omitempty"`                                        // 最后登录时间
	CreatedAt           time.Time                    `gorm:"index" json:"created_at"`                                                     // 创建时间
	UpdatedAt           time.Time                    `gorm:"index" json:"updated_at"`                                                     // 更新时间
	DeletedAt           gorm.DeletedAt               `gorm:"index" json:"-"`                                                              // 软删除时间
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

// IsSubscriptionActive 订阅是否有效
func (m *Member) IsSubscriptionActive() bool {
	return m != nil && m.SubscriptionStatus == constants.SubscriptionStatusActive
}
