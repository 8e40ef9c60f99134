package repository

import "time"

// MemberListFilter 查询会员列表的过滤条件
type MemberListFilter struct {
	Page               int
	PageSize           int
	ReferrerID         uint
	SubscriptionStatus string
	Tier               string
	Keyword            string // 昵称模糊匹配
}

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	EarnerID    uint
	SourceID    uint
	PurchaseID  uint
	Type        string
	Status      string
	Period      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ProfitShareListFilter 查询季度分红批次的过滤条件
type ProfitShareListFilter struct {
	Page     int
	PageSize int
	Year     int
	Status   string
}

// MemberShareListFilter 查询会员分红明细的过滤条件
type MemberShareListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Status   string
}

// CycleListFilter 查询忠诚周期的过滤条件
type CycleListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Status   string
}

// WalletTransactionListFilter 查询钱包流水的过滤条件
type WalletTransactionListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Asset    string
	Type     string
}
