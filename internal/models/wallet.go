package models

import (
	"time"
)

// WalletAccount 会员钱包账户（按资产区分）
type WalletAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                                         // 主键
	UserID    uint      `gorm:"not null;index:idx_wallet_account_asset,unique" json:"user_id"`                // 用户ID
	Asset     string    `gorm:"type:varchar(10);not null;index:idx_wallet_account_asset,unique" json:"asset"` // 资产 USD/LGC
	Balance   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`                         // 余额
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                                      // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                                      // 更新时间
}

// TableName 指定表名
func (WalletAccount) TableName() string {
	return "wallet_accounts"
}

// WalletTransaction 钱包流水
type WalletTransaction struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                        // 主键
	UserID        uint      `gorm:"not null;index" json:"user_id"`                               // 用户ID
	Asset         string    `gorm:"type:varchar(10);not null;index" json:"asset"`                // 资产
	Type          string    `gorm:"type:varchar(32);not null;index" json:"type"`                 // 交易类型
	Direction     string    `gorm:"type:varchar(8);not null" json:"direction"`                   // 方向 in/out
	Amount        Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`         // 交易金额
	BalanceBefore Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_before"` // 交易前余额
	BalanceAfter  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`  // 交易后余额
	Reference     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`     // 业务幂等引用
	Remark        string    `gorm:"type:varchar(255)" json:"remark"`                             // 备注
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                     // 创建时间
}

// TableName 指定表名
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
