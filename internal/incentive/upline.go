package incentive

import (
	"context"
)

// ReferrerLookup 查询用户的直接推荐人
// 返回 0 表示没有推荐人
type ReferrerLookup interface {
	ReferrerOf(ctx context.Context, userID uint) (uint, error)
}

// ReferrerLookupFunc 函数适配器
type ReferrerLookupFunc func(ctx context.Context, userID uint) (uint, error)

// ReferrerOf 实现 ReferrerLookup
func (f ReferrerLookupFunc) ReferrerOf(ctx context.Context, userID uint) (uint, error) {
	return f(ctx, userID)
}

// UplineLevel 上线某一层的结果，EarnerID 为 0 表示该层不存在
type UplineLevel struct {
	Level    int  `json:"level"`
	EarnerID uint `json:"earner_id"`
}

// Empty 该层是否没有上线
func (l UplineLevel) Empty() bool {
	return l.EarnerID == 0
}

// ResolveUpline 沿推荐链向上查找 maxDepth 层上线
// 结果长度恒为 maxDepth（上限 MaxUplineDepth），断链或出现环时后续层级为空
func ResolveUpline(ctx context.Context, lookup ReferrerLookup, userID uint, maxDepth int) ([]UplineLevel, error) {
	if maxDepth <= 0 {
		return []UplineLevel{}, nil
	}
	if maxDepth > MaxUplineDepth {
		maxDepth = MaxUplineDepth
	}
	levels := make([]UplineLevel, maxDepth)
	for i := range levels {
		levels[i].Level = i + 1
	}
	if lookup == nil || userID == 0 {
		return levels, nil
	}

	visited := map[uint]struct{}{userID: {}}
	current := userID
	for depth := 0; depth < maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		referrerID, err := lookup.ReferrerOf(ctx, current)
		if err != nil {
			return nil, err
		}
		if referrerID == 0 {
			break
		}
		if _, seen := visited[referrerID]; seen {
			break
		}
		visited[referrerID] = struct{}{}
		levels[depth].EarnerID = referrerID
		current = referrerID
	}
	return levels, nil
}
