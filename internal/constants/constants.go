package constants

// CommissionStatus 佣金状态
type CommissionStatus string

// 佣金状态常量
const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Valid 判断佣金状态是否合法
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusPaid, CommissionStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo 仅允许 pending -> paid / pending -> cancelled
func (s CommissionStatus) CanTransitionTo(next CommissionStatus) bool {
	if s != CommissionStatusPending {
		return false
	}
	return next == CommissionStatusPaid || next == CommissionStatusCancelled
}

// CommissionType 佣金类型
type CommissionType string

// 佣金类型常量
const (
	CommissionTypeReferral    CommissionType = "REFERRAL"
	CommissionTypeAchievement CommissionType = "ACHIEVEMENT"
	CommissionTypeLeadership  CommissionType = "LEADERSHIP"
	CommissionTypeTeamVolume  CommissionType = "TEAM_VOLUME"
	CommissionTypeProfitBoost CommissionType = "PROFIT_BOOST"
)

// Valid 判断佣金类型是否合法
func (t CommissionType) Valid() bool {
	switch t {
	case CommissionTypeReferral, CommissionTypeAchievement, CommissionTypeLeadership,
		CommissionTypeTeamVolume, CommissionTypeProfitBoost:
		return true
	}
	return false
}

// ProfitShareStatus 季度分红批次状态
type ProfitShareStatus string

// 季度分红状态常量
const (
	ProfitShareStatusDraft       ProfitShareStatus = "draft"
	ProfitShareStatusCalculated  ProfitShareStatus = "calculated"
	ProfitShareStatusApproved    ProfitShareStatus = "approved"
	ProfitShareStatusDistributed ProfitShareStatus = "distributed"
)

// CanTransitionTo 批次状态只能沿 draft -> calculated -> approved -> distributed 前进一步
func (s ProfitShareStatus) CanTransitionTo(next ProfitShareStatus) bool {
	switch s {
	case ProfitShareStatusDraft:
		return next == ProfitShareStatusCalculated
	case ProfitShareStatusCalculated:
		return next == ProfitShareStatusApproved
	case ProfitShareStatusApproved:
		return next == ProfitShareStatusDistributed
	}
	return false
}

// MemberShareStatus 会员分红状态
type MemberShareStatus string

// 会员分红状态常量
const (
	MemberShareStatusPending MemberShareStatus = "pending"
	MemberShareStatusPaid    MemberShareStatus = "paid"
)

// DistributionMethod 分红分配方式
type DistributionMethod string

// 分配方式常量
const (
	DistributionMethodBPBased    DistributionMethod = "bp_based"
	DistributionMethodLevelBased DistributionMethod = "level_based"
)

// Valid 判断分配方式是否合法
func (m DistributionMethod) Valid() bool {
	return m == DistributionMethodBPBased || m == DistributionMethodLevelBased
}

// CycleStatus 忠诚成长周期状态
type CycleStatus string

// 周期状态常量
const (
	CycleStatusActive     CycleStatus = "active"
	CycleStatusCompleted  CycleStatus = "completed"
	CycleStatusSuspended  CycleStatus = "suspended"
	CycleStatusTerminated CycleStatus = "terminated"
)

// CanTransitionTo 只有 active 周期可以流转，终态不可复活
func (s CycleStatus) CanTransitionTo(next CycleStatus) bool {
	if s != CycleStatusActive {
		return false
	}
	switch next {
	case CycleStatusCompleted, CycleStatusSuspended, CycleStatusTerminated:
		return true
	}
	return false
}

// SubscriptionStatus 会员订阅状态
type SubscriptionStatus string

// 订阅状态常量
const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// 购买状态常量
const (
	PurchaseStatusCompleted = "completed"
)

// 套餐类型常量
const (
	PackageTypeStarter = "starter"
	PackageTypeGrowth  = "growth"
	PackageTypePremium = "premium"
)

// 忠诚周期活动类型常量
const (
	ActivityTypeDailyLogin     = "daily_login"
	ActivityTypeLearning       = "learning"
	ActivityTypeSocialShare    = "social_share"
	ActivityTypeCommunityEvent = "community_event"
	ActivityTypeReferralMeetup = "referral_meetup"
)

// 钱包资产常量
const (
	WalletAssetUSD = "USD"
	WalletAssetLGC = "LGC"
)

// 钱包交易类型常量
const (
	WalletTxnTypeProfitShare = "profit_share"
	WalletTxnTypeLoyaltyLGC  = "loyalty_lgc"
	WalletTxnTypeAdminAdjust = "admin_adjust"
)

// 钱包交易方向常量
const (
	WalletTxnDirectionIn  = "in"
	WalletTxnDirectionOut = "out"
)

// 推荐关系来源
const (
	ReferralSourceDatabase = "database"
	ReferralSourceGraph    = "graph"
)

// 设置键常量
const (
	SettingKeyIncentiveConfig = "incentive_config"
)

// Tier 会员等级
type Tier string

// 会员等级常量，按晋升顺序排列
const (
	TierBronze  Tier = "bronze"
	TierSilver  Tier = "silver"
	TierGold    Tier = "gold"
	TierDiamond Tier = "diamond"
	TierElite   Tier = "elite"
)

var tierLadder = []Tier{TierBronze, TierSilver, TierGold, TierDiamond, TierElite}

// Rank 返回等级序号，未知等级返回 -1
func (t Tier) Rank() int {
	for i, item := range tierLadder {
		if item == t {
			return i
		}
	}
	return -1
}

// Next 返回下一等级，已是最高等级时 ok 为 false
func (t Tier) Next() (Tier, bool) {
	rank := t.Rank()
	if rank < 0 || rank+1 >= len(tierLadder) {
		return "", false
	}
	return tierLadder[rank+1], true
}

// Valid 判断等级是否合法
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// TierLadder 按晋升顺序返回全部等级
func TierLadder() []Tier {
	return append([]Tier(nil), tierLadder...)
}

// 队列名称
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueBatch    = "batch"
)

// 异步任务类型
const (
	TaskPurchaseCommission    = "incentive:purchase_commission"
	TaskTierEvaluate          = "incentive:tier_evaluate"
	TaskLoyaltyActivity       = "incentive:loyalty_activity"
	TaskProfitShareDistribute = "incentive:profit_share_distribute"
	TaskMonthlySettle         = "incentive:monthly_settle"
	TaskLoyaltySweep          = "incentive:loyalty_sweep"
)
