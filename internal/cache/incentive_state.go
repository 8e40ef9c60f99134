package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	tierSnapshotTTL = 10 * time.Minute
	purchaseLockTTL = 30 * time.Second
)

// TierSnapshot 会员等级与业绩快照
// 仅用于查询加速，判定晋升时始终以数据库为准
type TierSnapshot struct {
	UserID          uint   `json:"user_id"`
	Tier            string `json:"tier"`
	ActiveReferrals int    `json:"active_referrals"`
	TeamVolume      string `json:"team_volume"`
	UpdatedAt       int64  `json:"updated_at"`
}

func tierSnapshotKey(userID uint) string {
	return fmt.Sprintf("tier:member:%d", userID)
}

func purchaseLockKey(purchaseNo string) string {
	return fmt.Sprintf("lock:purchase:%s", purchaseNo)
}

func settlementLockKey(period string) string {
	return fmt.Sprintf("lock:settlement:%s", period)
}

// GetTierSnapshot 读取等级快照
func GetTierSnapshot(ctx context.Context, userID uint) (*TierSnapshot, bool, error) {
	var snapshot TierSnapshot
	hit, err := GetJSON(ctx, tierSnapshotKey(userID), &snapshot)
	if err != nil || !hit {
		return nil, false, err
	}
	return &snapshot, true, nil
}

// SetTierSnapshot 写入等级快照
func SetTierSnapshot(ctx context.Context, snapshot *TierSnapshot) error {
	if snapshot == nil || snapshot.UserID == 0 {
		return nil
	}
	return SetJSON(ctx, tierSnapshotKey(snapshot.UserID), snapshot, tierSnapshotTTL)
}

// InvalidateTierSnapshot 删除等级快照
func InvalidateTierSnapshot(ctx context.Context, userID uint) error {
	return Del(ctx, tierSnapshotKey(userID))
}

// AcquirePurchaseLock 抢占购买单处理权，防止重复投递并发进入事务
func AcquirePurchaseLock(ctx context.Context, purchaseNo string) (string, bool, error) {
	return AcquireLock(ctx, purchaseLockKey(purchaseNo), purchaseLockTTL)
}

// ReleasePurchaseLock 释放购买单处理权，锁过期后被他人抢占时不会误删
func ReleasePurchaseLock(ctx context.Context, purchaseNo, token string) error {
	return ReleaseLock(ctx, purchaseLockKey(purchaseNo), token)
}

// AcquireSettlementLock 月度结算互斥，同一月份同时只允许一个结算
func AcquireSettlementLock(ctx context.Context, period string, ttl time.Duration) (string, bool, error) {
	return AcquireLock(ctx, settlementLockKey(period), ttl)
}

// ReleaseSettlementLock 释放月度结算锁
func ReleaseSettlementLock(ctx context.Context, period, token string) error {
	return ReleaseLock(ctx, settlementLockKey(period), token)
}
