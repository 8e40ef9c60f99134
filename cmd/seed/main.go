package main

import (
	"context"
	"flag"
	"time"

	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/provider"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type seedMember struct {
	name     string
	referrer string
	level    int
	bp       string
	trained  bool
}

type seedPurchase struct {
	buyer       string
	amount      string
	packageType string
}

// 演示推荐树：alice 为根，bob..frank 为五层链路，其余挂在 alice 名下
var seedMembers = []seedMember{
	{name: "alice", level: 4, bp: "1200", trained: true},
	{name: "bob", referrer: "alice", level: 3, bp: "800", trained: true},
	{name: "carol", referrer: "bob", level: 2, bp: "400", trained: true},
	{name: "dave", referrer: "carol", level: 2, bp: "250"},
	{name: "erin", referrer: "dave", level: 1, bp: "100"},
	{name: "frank", referrer: "erin", level: 1, bp: "50"},
	{name: "grace", referrer: "alice", level: 1, bp: "90", trained: true},
	{name: "heidi", referrer: "alice", level: 1, bp: "60"},
	{name: "ivan", referrer: "alice", level: 1, bp: "30"},
}

var seedPurchases = []seedPurchase{
	{buyer: "alice", amount: "499", packageType: constants.PackageTypeStarter},
	{buyer: "bob", amount: "499", packageType: constants.PackageTypeStarter},
	{buyer: "grace", amount: "499", packageType: constants.PackageTypeStarter},
	{buyer: "heidi", amount: "1500", packageType: constants.PackageTypeGrowth},
	{buyer: "ivan", amount: "499", packageType: constants.PackageTypeStarter},
	{buyer: "frank", amount: "1000", packageType: constants.PackageTypeStarter},
	{buyer: "carol", amount: "5000", packageType: constants.PackageTypePremium},
}

func main() {
	var withPurchases bool
	flag.BoolVar(&withPurchases, "purchases", true, "是否写入示例购买")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, models.ParseLogLevel(cfg.Database.LogLevel)); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 种子数据只走同步路径
	cfg.Queue.Enabled = false
	container := provider.NewContainer(cfg)
	ctx := context.Background()
	defer container.Close(ctx)

	ids := make(map[string]uint, len(seedMembers))
	now := container.Clock.Now()
	for _, item := range seedMembers {
		var existing models.Member
		if err := models.DB.Where("display_name = ?", item.name).First(&existing).Error; err == nil {
			ids[item.name] = existing.ID
			stdLog.Printf("Member already exists: %s (#%d)", item.name, existing.ID)
			continue
		}

		var referrerID uint
		if item.referrer != "" {
			id, ok := ids[item.referrer]
			if !ok {
				stdLog.Fatalf("Referrer %s must be seeded before %s", item.referrer, item.name)
			}
			referrerID = id
		}
		member, err := container.MemberService.CreateMember(ctx, service.CreateMemberInput{
			DisplayName:       item.name,
			ReferrerID:        referrerID,
			ProfessionalLevel: item.level,
			BusinessPoints:    decimal.RequireFromString(item.bp),
			TrainingCompleted: item.trained,
		})
		if err != nil {
			stdLog.Fatalf("Failed to create member %s: %v", item.name, err)
		}
		// 满足分红登录窗口
		if err := container.MemberService.TouchLogin(member.ID, now); err != nil {
			stdLog.Printf("Failed to touch login for %s: %v", item.name, err)
		}
		ids[item.name] = member.ID
		stdLog.Printf("Created member: %s (#%d)", item.name, member.ID)
	}

	if !withPurchases {
		stdLog.Printf("Seed completed without purchases")
		return
	}

	for _, item := range seedPurchases {
		result, err := container.CommissionService.ProcessPurchase(ctx, service.PurchaseInput{
			PurchaseNo:  "SEED-" + uuid.NewString(),
			UserID:      ids[item.buyer],
			Amount:      decimal.RequireFromString(item.amount),
			PackageType: item.packageType,
			OccurredAt:  time.Now(),
		})
		if err != nil {
			stdLog.Printf("Failed to process purchase for %s: %v", item.buyer, err)
			continue
		}
		stdLog.Printf("Processed purchase %s for %s: %d commissions", result.Purchase.PurchaseNo, item.buyer, len(result.Commissions))
	}

	// alice 满足培训、入门包与直推条件后，补两类活动即可开启忠诚周期
	aliceID := ids["alice"]
	for _, activity := range []string{constants.ActivityTypeDailyLogin, constants.ActivityTypeLearning} {
		if _, err := container.LoyaltyService.RecordActivity(ctx, service.ActivityInput{
			UserID:       aliceID,
			ActivityType: activity,
			Description:  "seed",
		}); err != nil {
			stdLog.Printf("Failed to record %s for alice: %v", activity, err)
		}
	}
	if cycle, err := container.LoyaltyService.StartCycle(ctx, aliceID); err != nil {
		stdLog.Printf("Loyalty cycle not started for alice: %v", err)
	} else {
		stdLog.Printf("Started loyalty cycle #%d for alice until %s", cycle.ID, cycle.EndDate.Format("2006-01-02"))
	}

	stdLog.Printf("Seed completed: %d members", len(ids))
}
