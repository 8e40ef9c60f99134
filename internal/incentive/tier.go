package incentive

import (
	"github.com/shopspring/decimal"
	"github.com/yieldtree/incentive-engine/internal/constants"
)

// TierRequirement 晋升到某等级的门槛与成就奖金
type TierRequirement struct {
	Tier               constants.Tier
	RequiredReferrals  int
	RequiredTeamVolume decimal.Decimal
	AchievementBonus   decimal.Decimal
	Leadership         LeadershipLevel
}

// TierProgress 判定晋升所需的实时聚合
type TierProgress struct {
	CurrentTier     constants.Tier
	ActiveReferrals int
	TeamVolume      decimal.Decimal
}

var defaultTierRequirements = map[constants.Tier]TierRequirement{
	constants.TierBronze: {Tier: constants.TierBronze},
	constants.TierSilver: {
		Tier:               constants.TierSilver,
		RequiredReferrals:  3,
		RequiredTeamVolume: decimal.NewFromInt(10000),
		AchievementBonus:   decimal.NewFromInt(100),
		Leadership:         LeadershipDeveloping,
	},
	constants.TierGold: {
		Tier:               constants.TierGold,
		RequiredReferrals:  5,
		RequiredTeamVolume: decimal.NewFromInt(25000),
		AchievementBonus:   decimal.NewFromInt(250),
		Leadership:         LeadershipGold,
	},
	constants.TierDiamond: {
		Tier:               constants.TierDiamond,
		RequiredReferrals:  10,
		RequiredTeamVolume: decimal.NewFromInt(50000),
		AchievementBonus:   decimal.NewFromInt(500),
		Leadership:         LeadershipDiamond,
	},
	constants.TierElite: {
		Tier:               constants.TierElite,
		RequiredReferrals:  20,
		RequiredTeamVolume: decimal.NewFromInt(100000),
		AchievementBonus:   decimal.NewFromInt(1000),
		Leadership:         LeadershipElite,
	},
}

// RequirementFor 返回等级门槛，未知等级 ok 为 false
func RequirementFor(tier constants.Tier) (TierRequirement, bool) {
	req, ok := defaultTierRequirements[tier]
	return req, ok
}

// Meets 判断聚合数据是否满足门槛（人数与业绩同时满足）
func (r TierRequirement) Meets(activeReferrals int, teamVolume decimal.Decimal) bool {
	return activeReferrals >= r.RequiredReferrals && teamVolume.GreaterThanOrEqual(r.RequiredTeamVolume)
}

// NextTier 返回可晋升的下一等级；已是最高等级或不满足门槛时 ok 为 false
// 每次只判定相邻的下一级，不跳级
func NextTier(progress TierProgress) (TierRequirement, bool) {
	current := progress.CurrentTier
	if current == "" {
		current = constants.TierBronze
	}
	next, ok := current.Next()
	if !ok {
		return TierRequirement{}, false
	}
	req, ok := RequirementFor(next)
	if !ok || !req.Meets(progress.ActiveReferrals, progress.TeamVolume) {
		return TierRequirement{}, false
	}
	return req, true
}

// LeadershipLevelFor 等级对应的领导奖级别，Bronze 没有领导奖
func LeadershipLevelFor(tier constants.Tier) LeadershipLevel {
	req, ok := RequirementFor(tier)
	if !ok {
		return ""
	}
	return req.Leadership
}
