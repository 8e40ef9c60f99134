package models

import (
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
)

// QuarterlyProfitShare 季度利润分红批次
type QuarterlyProfitShare struct {
	ID                 uint                         `gorm:"primarykey" json:"id"`                                              // 主键
	Year               int                          `gorm:"not null;index:idx_profit_share_quarter,unique" json:"year"`        // 年份
	Quarter            int                          `gorm:"not null;index:idx_profit_share_quarter,unique" json:"quarter"`     // 季度 1-4
	TotalProjectProfit Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"total_project_profit"` // 项目总利润
	MemberShareAmount  Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"member_share_amount"`  // 会员分红总额
	CompanyRetained    Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"company_retained"`     // 公司留存
	RoundingResidual   Money                        `gorm:"type:decimal(20,2);not null;default:0" json:"rounding_residual"`    // 舍入差额（计入公司留存）
	TotalActiveMembers int                          `gorm:"not null;default:0" json:"total_active_members"`                    // 参与会员数
	TotalBPPool        *Money                       `gorm:"type:decimal(20,2)" json:"total_bp_pool,omitempty"`                 // BP 总池（仅 BP 分配）
	DistributionMethod constants.DistributionMethod `gorm:"type:varchar(20);not null" json:"distribution_method"`              // 分配方式
	Status             constants.ProfitShareStatus  `gorm:"type:varchar(20);not null;index" json:"status"`                     // 批次状态
	Notes              string                       `gorm:"type:text" json:"notes"`                                            // 备注
	CreatedBy          string                       `gorm:"type:varchar(64)" json:"created_by"`                                // 创建人
	ApprovedBy         string                       `gorm:"type:varchar(64)" json:"approved_by"`                               // 审批人
	ApprovedAt         *time.Time                   `json:"approved_at,omitempty"`                                             // 审批时间
	DistributedAt      *time.Time                   `json:"distributed_at,omitempty"`                                          // 发放时间
	CreatedAt          time.Time                    `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt          time.Time                    `gorm:"index" json:"updated_at"`                                           // 更新时间
}

// TableName 指定表名
func (QuarterlyProfitShare) TableName() string {
	return "quarterly_profit_shares"
}

// MemberProfitShare 会员季度分红明细
type MemberProfitShare struct {
	ID                     uint                        `gorm:"primarykey" json:"id"`                                                                 // 主键
	QuarterlyProfitShareID uint                        `gorm:"not null;index;index:idx_member_profit_share,unique" json:"quarterly_profit_share_id"` // 批次ID
	UserID                 uint                        `gorm:"not null;index;index:idx_member_profit_share,unique" json:"user_id"`                   // 会员ID
	ProfessionalLevel      int                         `gorm:"not null;default:1" json:"professional_level"`                                         // 专业等级
	LevelMultiplier        Money                       `gorm:"type:decimal(10,2);not null;default:0" json:"level_multiplier"`                        // 等级系数
	MemberBP               Money                       `gorm:"type:decimal(20,2);not null;default:0" json:"member_bp"`                               // 会员 BP
	ShareAmount            Money                       `gorm:"type:decimal(20,2);not null;default:0" json:"share_amount"`                            // 分红金额
	Status                 constants.MemberShareStatus `gorm:"type:varchar(20);not null;index" json:"status"`                                        // 状态
	PaidAt                 *time.Time                  `json:"paid_at,omitempty"`                                                                    // 发放时间
	CreatedAt              time.Time                   `gorm:"index" json:"created_at"`                                                              // 创建时间
	UpdatedAt              time.Time                   `gorm:"index" json:"updated_at"`                                                              // 更新时间
}

// TableName 指定表名
func (MemberProfitShare) TableName() string {
	return "member_profit_shares"
}
