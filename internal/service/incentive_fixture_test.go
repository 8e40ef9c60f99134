package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type incentiveTestEnv struct {
	db    *gorm.DB
	clock *clock.Fixed

	memberRepo      *repository.GormMemberRepository
	commissionRepo  *repository.GormCommissionRepository
	tierRepo        *repository.GormTierRepository
	profitShareRepo *repository.GormProfitShareRepository
	cycleRepo       *repository.GormCycleRepository
	walletRepo      *repository.GormWalletRepository

	settings    *SettingService
	wallet      *WalletService
	commission  *CommissionService
	tier        *TierService
	profitShare *ProfitShareService
	loyalty     *LoyaltyService
	bonus       *BonusService
}

func setupIncentiveServiceTest(t *testing.T, name string) *incentiveTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateModels(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	cache.UseClient(nil, "")

	env := &incentiveTestEnv{
		db:              db,
		clock:           clock.NewFixed(time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)),
		memberRepo:      repository.NewMemberRepository(db),
		commissionRepo:  repository.NewCommissionRepository(db),
		tierRepo:        repository.NewTierRepository(db),
		profitShareRepo: repository.NewProfitShareRepository(db),
		cycleRepo:       repository.NewCycleRepository(db),
		walletRepo:      repository.NewWalletRepository(db),
	}
	env.settings = NewSettingService(repository.NewSettingRepository(db), IncentiveDefaultSetting())
	env.wallet = NewWalletService(env.walletRepo, env.clock)
	env.commission = NewCommissionService(env.commissionRepo, env.memberRepo, nil, 5, env.clock)
	env.tier = NewTierService(env.memberRepo, env.tierRepo, env.commissionRepo, env.clock)
	env.profitShare = NewProfitShareService(env.profitShareRepo, env.memberRepo, env.wallet, env.settings, env.clock)
	env.loyalty = NewLoyaltyService(env.cycleRepo, env.memberRepo, env.commissionRepo, env.wallet, env.settings, env.clock)
	env.bonus = NewBonusService(env.commissionRepo, env.memberRepo, env.tier, env.settings, env.clock)
	return env
}

func (env *incentiveTestEnv) createMember(t *testing.T, referrerID *uint, mutate ...func(*models.Member)) *models.Member {
	t.Helper()
	now := env.clock.Now()
	member := &models.Member{
		ReferrerID:         referrerID,
		SubscriptionStatus: constants.SubscriptionStatusActive,
		ProfessionalLevel:  1,
		CurrentTier:        constants.TierBronze,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, fn := range mutate {
		fn(member)
	}
	if err := env.db.Create(member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return member
}

// createChain 创建 depth 层的推荐链，返回自顶向下的会员
func (env *incentiveTestEnv) createChain(t *testing.T, depth int) []*models.Member {
	t.Helper()
	chain := make([]*models.Member, 0, depth)
	var parent *uint
	for i := 0; i < depth; i++ {
		member := env.createMember(t, parent)
		chain = append(chain, member)
		id := member.ID
		parent = &id
	}
	return chain
}

func (env *incentiveTestEnv) reloadMember(t *testing.T, id uint) *models.Member {
	t.Helper()
	member, err := env.memberRepo.GetByID(id)
	if err != nil || member == nil {
		t.Fatalf("reload member %d failed: %v", id, err)
	}
	return member
}

func (env *incentiveTestEnv) setMemberColumns(t *testing.T, id uint, values map[string]interface{}) {
	t.Helper()
	if err := env.db.Model(&models.Member{}).Where("id = ?", id).Updates(values).Error; err != nil {
		t.Fatalf("update member %d failed: %v", id, err)
	}
}

func (env *incentiveTestEnv) createCompletedPurchase(t *testing.T, userID uint, purchaseNo, packageType string) {
	t.Helper()
	purchase := &models.Purchase{
		PurchaseNo:  purchaseNo,
		UserID:      userID,
		Amount:      models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		PackageType: packageType,
		Status:      constants.PurchaseStatusCompleted,
		OccurredAt:  env.clock.Now(),
		CreatedAt:   env.clock.Now(),
	}
	if err := env.db.Create(purchase).Error; err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
}

func (env *incentiveTestEnv) walletBalance(t *testing.T, userID uint, asset string) decimal.Decimal {
	t.Helper()
	var account models.WalletAccount
	err := env.db.Where("user_id = ? AND asset = ?", userID, asset).First(&account).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero
	}
	if err != nil {
		t.Fatalf("load wallet failed: %v", err)
	}
	return account.Balance.Decimal
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %s failed: %v", raw, err)
	}
	return d
}

func uintPtr(v uint) *uint {
	return &v
}

func timePtr(v time.Time) *time.Time {
	return &v
}

// memoryCacheHook 在 go-redis 钩子内以内存 map 应答 GET/SET/DEL，不访问网络
type memoryCacheHook struct {
	mu     sync.Mutex
	values map[string]string
}

func (h *memoryCacheHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *memoryCacheHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *memoryCacheHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		args := cmd.Args()
		switch c := cmd.(type) {
		case *redis.StringCmd:
			if value, ok := h.values[fmt.Sprint(args[1])]; ok {
				c.SetVal(value)
				return nil
			}
			c.SetErr(redis.Nil)
			return redis.Nil
		case *redis.StatusCmd:
			h.values[fmt.Sprint(args[1])] = cacheArgString(args[2])
			c.SetVal("OK")
			return nil
		case *redis.BoolCmd:
			key := fmt.Sprint(args[1])
			if _, exists := h.values[key]; exists {
				c.SetVal(false)
				return nil
			}
			h.values[key] = cacheArgString(args[2])
			c.SetVal(true)
			return nil
		case *redis.IntCmd:
			var deleted int64
			for _, arg := range args[1:] {
				key := fmt.Sprint(arg)
				if _, ok := h.values[key]; ok {
					delete(h.values, key)
					deleted++
				}
			}
			c.SetVal(deleted)
			return nil
		}
		return fmt.Errorf("unexpected command %s", cmd.Name())
	}
}

func cacheArgString(arg interface{}) string {
	switch v := arg.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// useMemoryCache 为当前测试启用内存缓存，结束后恢复为禁用
func useMemoryCache(t *testing.T) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(&memoryCacheHook{values: map[string]string{}})
	cache.UseClient(client, "test")
	t.Cleanup(func() {
		cache.UseClient(nil, "")
		_ = client.Close()
	})
}
