package graph

import (
	"context"
	"fmt"
)

const referrerOfCypher = `MATCH (m:Member {id: $id})-[:REFERRED_BY]->(r:Member) RETURN r.id AS referrer_id LIMIT 1`

const linkReferrerCypher = `MERGE (m:Member {id: $id})
WITH m
OPTIONAL MATCH (m)-[old:REFERRED_BY]->()
DELETE old
WITH m
MERGE (r:Member {id: $referrer_id})
MERGE (m)-[:REFERRED_BY]->(r)`

const upsertMemberCypher = `MERGE (m:Member {id: $id})`

// ReferralGraph 基于图数据库的推荐关系
// 实现 incentive.ReferrerLookup，可替代关系库逐层查询
type ReferralGraph struct {
	client Client
}

// NewReferralGraph 创建推荐关系图
func NewReferralGraph(client Client) *ReferralGraph {
	return &ReferralGraph{client: client}
}

// ReferrerOf 查询直接推荐人，没有时返回 0
func (g *ReferralGraph) ReferrerOf(ctx context.Context, userID uint) (uint, error) {
	if g == nil || g.client == nil || userID == 0 {
		return 0, nil
	}
	res, err := g.client.ExecuteRead(ctx, referrerOfCypher, map[string]any{"id": int64(userID)})
	if err != nil {
		return 0, fmt.Errorf("query referrer of %d: %w", userID, err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	return toUint(res.Records[0]["referrer_id"])
}

// LinkReferrer 同步会员及其推荐关系，referrerID 为 0 时只写入节点
func (g *ReferralGraph) LinkReferrer(ctx context.Context, userID, referrerID uint) error {
	if g == nil || g.client == nil || userID == 0 {
		return nil
	}
	if referrerID == 0 {
		_, err := g.client.ExecuteWrite(ctx, upsertMemberCypher, map[string]any{"id": int64(userID)})
		return err
	}
	_, err := g.client.ExecuteWrite(ctx, linkReferrerCypher, map[string]any{
		"id":          int64(userID),
		"referrer_id": int64(referrerID),
	})
	return err
}

func toUint(value any) (uint, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("negative member id %d", v)
		}
		return uint(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("negative member id %d", v)
		}
		return uint(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative member id %v", v)
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unexpected member id type %T", value)
	}
}
