package incentive

import "github.com/shopspring/decimal"

// MaxUplineDepth 推荐佣金最多追溯的层级
const MaxUplineDepth = 5

var hundred = decimal.NewFromInt(100)

// levelRates 各层级推荐佣金比例（百分比）
var levelRates = map[int]decimal.Decimal{
	1: decimal.NewFromInt(12),
	2: decimal.NewFromInt(6),
	3: decimal.NewFromInt(4),
	4: decimal.NewFromInt(2),
	5: decimal.NewFromInt(1),
}

type volumeBreakpoint struct {
	threshold decimal.Decimal
	percent   decimal.Decimal
}

// teamVolumeBreakpoints 从高到低排列
var teamVolumeBreakpoints = []volumeBreakpoint{
	{threshold: decimal.NewFromInt(100000), percent: decimal.NewFromInt(10)},
	{threshold: decimal.NewFromInt(50000), percent: decimal.NewFromInt(7)},
	{threshold: decimal.NewFromInt(25000), percent: decimal.NewFromInt(5)},
	{threshold: decimal.NewFromInt(10000), percent: decimal.NewFromInt(2)},
}

// LeadershipLevel 领导奖级别
type LeadershipLevel string

// 领导奖级别常量
const (
	LeadershipElite      LeadershipLevel = "elite"
	LeadershipDiamond    LeadershipLevel = "diamond"
	LeadershipGold       LeadershipLevel = "gold"
	LeadershipDeveloping LeadershipLevel = "developing"
)

var leadershipRates = map[LeadershipLevel]decimal.Decimal{
	LeadershipElite:      decimal.RequireFromString("3"),
	LeadershipDiamond:    decimal.RequireFromString("2.5"),
	LeadershipGold:       decimal.RequireFromString("2"),
	LeadershipDeveloping: decimal.RequireFromString("1"),
}

// RateForLevel 返回层级推荐佣金百分比，超出 1-5 返回 0
func RateForLevel(level int) decimal.Decimal {
	if rate, ok := levelRates[level]; ok {
		return rate
	}
	return decimal.Zero
}

// TeamVolumeBonusRate 按团队业绩返回奖金百分比
func TeamVolumeBonusRate(volume decimal.Decimal) decimal.Decimal {
	for _, bp := range teamVolumeBreakpoints {
		if volume.GreaterThanOrEqual(bp.threshold) {
			return bp.percent
		}
	}
	return decimal.Zero
}

// LeadershipRate 返回领导奖百分比，未知级别返回 0
func LeadershipRate(level LeadershipLevel) decimal.Decimal {
	if rate, ok := leadershipRates[level]; ok {
		return rate
	}
	return decimal.Zero
}

// ApplyPercent base * percent / 100，不做舍入
func ApplyPercent(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(hundred)
}
