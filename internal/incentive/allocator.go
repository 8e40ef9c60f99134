package incentive

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyWeightPool 权重总和为 0，无法按比例分配
	ErrEmptyWeightPool = errors.New("weight pool is empty")
	// ErrNegativeAmount 金额或权重为负数
	ErrNegativeAmount = errors.New("amount must not be negative")
)

// AllocationRequest 奖池申请
type AllocationRequest struct {
	ID     uint
	Amount decimal.Decimal
}

// AllocationItem 单个申请的分配结果
type AllocationItem struct {
	ID        uint            `json:"id"`
	Requested decimal.Decimal `json:"requested"`
	Allocated decimal.Decimal `json:"allocated"`
}

// Allocation 分配结果
// Residual = pool - Σallocated，未超额申请时为剩余奖池
type Allocation struct {
	Items     []AllocationItem `json:"items"`
	Allocated decimal.Decimal  `json:"allocated"`
	Residual  decimal.Decimal  `json:"residual"`
}

// WeightedShare 按权重分配的输入
type WeightedShare struct {
	ID     uint
	Weight decimal.Decimal
}

// ShareResult 按权重分配的结果
type ShareResult struct {
	ID     uint            `json:"id"`
	Weight decimal.Decimal `json:"weight"`
	Amount decimal.Decimal `json:"amount"`
}

// AllocateProportional 奖池按申请额比例分配
// Σ申请 <= 奖池时全额满足；否则按 申请 * 奖池/Σ申请 分配，分位差额按最大余数法补齐，
// 保证 Σ分配 == 奖池 且每项不超过申请额
func AllocateProportional(requests []AllocationRequest, pool decimal.Decimal) (Allocation, error) {
	if pool.IsNegative() {
		return Allocation{}, fmt.Errorf("%w: pool %s", ErrNegativeAmount, pool.String())
	}
	total := decimal.Zero
	weights := make([]WeightedShare, 0, len(requests))
	for _, req := range requests {
		if req.Amount.IsNegative() {
			return Allocation{}, fmt.Errorf("%w: request %d amount %s", ErrNegativeAmount, req.ID, req.Amount.String())
		}
		total = total.Add(req.Amount)
		weights = append(weights, WeightedShare{ID: req.ID, Weight: req.Amount})
	}

	result := Allocation{Items: make([]AllocationItem, len(requests))}
	if total.LessThanOrEqual(pool) {
		for i, req := range requests {
			result.Items[i] = AllocationItem{ID: req.ID, Requested: req.Amount, Allocated: req.Amount}
		}
		result.Allocated = total
		result.Residual = pool.Sub(total)
		return result, nil
	}

	shares, err := DistributeByWeight(pool, weights)
	if err != nil {
		return Allocation{}, err
	}
	allocated := decimal.Zero
	for i, share := range shares {
		result.Items[i] = AllocationItem{ID: share.ID, Requested: requests[i].Amount, Allocated: share.Amount}
		allocated = allocated.Add(share.Amount)
	}
	result.Allocated = allocated
	result.Residual = pool.Sub(allocated)
	return result, nil
}

// DistributeByWeight 将 total（按分截断）按权重拆分，结果顺序与输入一致
// 各项之和恒等于截断到分后的 total
func DistributeByWeight(total decimal.Decimal, weights []WeightedShare) ([]ShareResult, error) {
	if total.IsNegative() {
		return nil, fmt.Errorf("%w: total %s", ErrNegativeAmount, total.String())
	}
	scale := int32(0)
	for _, w := range weights {
		if w.Weight.IsNegative() {
			return nil, fmt.Errorf("%w: weight of %d is %s", ErrNegativeAmount, w.ID, w.Weight.String())
		}
		if exp := w.Weight.Exponent(); -exp > scale {
			scale = -exp
		}
	}
	// 按输入中最多的小数位放大，整数化不丢精度
	scaled := make([]*big.Int, len(weights))
	sum := new(big.Int)
	for i, w := range weights {
		scaled[i] = w.Weight.Shift(scale).BigInt()
		sum.Add(sum, scaled[i])
	}
	if sum.Sign() == 0 {
		return nil, ErrEmptyWeightPool
	}

	cents := total.Shift(2).BigInt()
	floors := make([]*big.Int, len(weights))
	remainders := make([]*big.Int, len(weights))
	assigned := new(big.Int)
	for i := range weights {
		product := new(big.Int).Mul(cents, scaled[i])
		quo, rem := new(big.Int).QuoRem(product, sum, new(big.Int))
		floors[i] = quo
		remainders[i] = rem
		assigned.Add(assigned, quo)
	}

	leftover := new(big.Int).Sub(cents, assigned).Int64()
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].Cmp(remainders[order[b]]) > 0
	})
	for k := int64(0); k < leftover && int(k) < len(order); k++ {
		idx := order[k]
		floors[idx].Add(floors[idx], big.NewInt(1))
	}

	results := make([]ShareResult, len(weights))
	for i, w := range weights {
		results[i] = ShareResult{
			ID:     w.ID,
			Weight: w.Weight,
			Amount: decimal.NewFromBigInt(floors[i], -2),
		}
	}
	return results, nil
}
