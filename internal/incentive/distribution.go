package incentive

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yieldtree/incentive-engine/internal/constants"
)

// ErrZeroBPPool BP 总池为 0
var ErrZeroBPPool = errors.New("total business points pool is zero")

// ShareCandidate 参与分红的会员
type ShareCandidate struct {
	UserID            uint
	ProfessionalLevel int
	BusinessPoints    decimal.Decimal
}

// MemberShare 会员分红计算结果
type MemberShare struct {
	UserID            uint            `json:"user_id"`
	ProfessionalLevel int             `json:"professional_level"`
	LevelMultiplier   decimal.Decimal `json:"level_multiplier"`
	MemberBP          decimal.Decimal `json:"member_bp"`
	ShareAmount       decimal.Decimal `json:"share_amount"`
}

// ProfitDistribution 季度分红计算结果
type ProfitDistribution struct {
	Shares      []MemberShare   `json:"shares"`
	TotalBPPool decimal.Decimal `json:"total_bp_pool"`
	Distributed decimal.Decimal `json:"distributed"`
	Residual    decimal.Decimal `json:"residual"`
}

// DefaultLevelMultipliers 专业等级默认系数
func DefaultLevelMultipliers() map[int]decimal.Decimal {
	return map[int]decimal.Decimal{
		1: decimal.RequireFromString("1"),
		2: decimal.RequireFromString("1.25"),
		3: decimal.RequireFromString("1.5"),
		4: decimal.RequireFromString("2"),
		5: decimal.RequireFromString("3"),
	}
}

// SplitMemberShare 按百分比拆分会员分红总额与公司留存
func SplitMemberShare(totalProfit, memberSharePercent decimal.Decimal) (memberShare, companyRetained decimal.Decimal) {
	memberShare = ApplyPercent(totalProfit, memberSharePercent).RoundBank(2)
	return memberShare, totalProfit.Sub(memberShare)
}

// DistributeProfit 将 memberShareAmount 按 BP 或等级系数分给候选会员
// BP 分配时总池只计算一次，为 0 直接失败
func DistributeProfit(memberShareAmount decimal.Decimal, candidates []ShareCandidate, method constants.DistributionMethod, multipliers map[int]decimal.Decimal) (ProfitDistribution, error) {
	if len(candidates) == 0 {
		return ProfitDistribution{}, ErrEmptyWeightPool
	}
	if multipliers == nil {
		multipliers = DefaultLevelMultipliers()
	}

	weights := make([]WeightedShare, len(candidates))
	shares := make([]MemberShare, len(candidates))
	bpPool := decimal.Zero
	for i, c := range candidates {
		multiplier := multipliers[c.ProfessionalLevel]
		shares[i] = MemberShare{
			UserID:            c.UserID,
			ProfessionalLevel: c.ProfessionalLevel,
			LevelMultiplier:   multiplier,
			MemberBP:          c.BusinessPoints,
		}
		bpPool = bpPool.Add(c.BusinessPoints)
		switch method {
		case constants.DistributionMethodBPBased:
			weights[i] = WeightedShare{ID: c.UserID, Weight: c.BusinessPoints}
		case constants.DistributionMethodLevelBased:
			weights[i] = WeightedShare{ID: c.UserID, Weight: multiplier}
		default:
			return ProfitDistribution{}, fmt.Errorf("unknown distribution method %q", method)
		}
	}
	if method == constants.DistributionMethodBPBased && !bpPool.IsPositive() {
		return ProfitDistribution{}, ErrZeroBPPool
	}

	results, err := DistributeByWeight(memberShareAmount, weights)
	if err != nil {
		return ProfitDistribution{}, err
	}
	distributed := decimal.Zero
	for i, r := range results {
		shares[i].ShareAmount = r.Amount
		distributed = distributed.Add(r.Amount)
	}
	return ProfitDistribution{
		Shares:      shares,
		TotalBPPool: bpPool,
		Distributed: distributed,
		Residual:    memberShareAmount.Sub(distributed),
	}, nil
}
