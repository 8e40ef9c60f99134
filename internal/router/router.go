package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/config"
	adminhandlers "github.com/yieldtree/incentive-engine/internal/http/handlers/admin"
	"github.com/yieldtree/incentive-engine/internal/http/response"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/provider"

	"github.com/gin-gonic/gin"
)

const adminRoutePrefix = "/api/v1/admin/"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "incentive"
	}
	apiRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:admin_api", redisPrefix),
		WindowSeconds: cfg.Security.APIRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.APIRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.APIRateLimit.BlockSeconds,
	}
	purchaseRule := apiRule
	purchaseRule.Prefix = fmt.Sprintf("%s:rate:purchase", redisPrefix)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(OperatorMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok", "redis": cache.Enabled()})
	})

	apiV1 := r.Group("/api/v1")
	admin := apiV1.Group("/admin")
	admin.Use(RateLimitMiddleware(cache.Client(), apiRule, KeyByIP))
	{
		admin.POST("/purchases", RateLimitMiddleware(cache.Client(), purchaseRule, KeyByIPAndJSONField("purchase_no")), adminHandler.CreatePurchase)

		admin.GET("/members", adminHandler.ListMembers)
		admin.POST("/members", adminHandler.CreateMember)
		admin.GET("/members/:id", adminHandler.GetMember)
		admin.PATCH("/members/:id", adminHandler.UpdateMember)
		admin.GET("/members/:id/upline", adminHandler.GetMemberUpline)
		admin.GET("/members/:id/tier", adminHandler.GetMemberTier)
		admin.POST("/members/:id/tier/evaluate", adminHandler.EvaluateMemberTier)
		admin.GET("/members/:id/loyalty", adminHandler.GetMemberLoyalty)
		admin.GET("/members/:id/wallet", adminHandler.GetMemberWallet)
		admin.GET("/members/:id/wallet/transactions", adminHandler.GetMemberWalletTransactions)

		admin.GET("/commissions", adminHandler.ListCommissions)
		admin.POST("/commissions/:id/pay", adminHandler.PayCommission)
		admin.POST("/commissions/:id/cancel", adminHandler.CancelCommission)
		admin.POST("/bonuses/monthly", adminHandler.SettleMonthlyBonuses)
		admin.GET("/bonuses/monthly/:period", adminHandler.GetMonthlySettlement)

		admin.POST("/profit-shares", adminHandler.CreateProfitShare)
		admin.GET("/profit-shares", adminHandler.ListProfitShares)
		admin.GET("/profit-shares/:id", adminHandler.GetProfitShare)
		admin.GET("/profit-shares/:id/members", adminHandler.ListProfitShareMembers)
		admin.POST("/profit-shares/:id/approve", adminHandler.ApproveProfitShare)
		admin.POST("/profit-shares/:id/distribute", adminHandler.DistributeProfitShare)

		admin.GET("/loyalty/cycles", adminHandler.ListLoyaltyCycles)
		admin.POST("/loyalty/cycles", adminHandler.StartLoyaltyCycle)
		admin.POST("/loyalty/cycles/sweep", adminHandler.SweepLoyaltyCycles)
		admin.GET("/loyalty/cycles/:id/activities", adminHandler.ListLoyaltyCycleActivities)
		admin.POST("/loyalty/cycles/:id/suspend", adminHandler.SuspendLoyaltyCycle)
		admin.POST("/loyalty/cycles/:id/terminate", adminHandler.TerminateLoyaltyCycle)
		admin.POST("/loyalty/activities", adminHandler.RecordLoyaltyActivity)

		admin.GET("/settings/incentive", adminHandler.GetIncentiveSetting)
		admin.PUT("/settings/incentive", adminHandler.UpdateIncentiveSetting)
	}

	// 路由目录在全部注册完成后生成
	catalog := buildAdminRouteCatalog(r)
	admin.GET("/routes", func(c *gin.Context) {
		response.Success(c, catalog)
	})

	return r
}

type adminRouteCatalogItem struct {
	Module string `json:"module"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

func buildAdminRouteCatalog(engine *gin.Engine) []adminRouteCatalogItem {
	if engine == nil {
		return []adminRouteCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminRouteCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, adminRoutePrefix) {
			continue
		}
		key := method + ":" + item.Path
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, adminRouteCatalogItem{
			Module: deriveAdminRouteModule(item.Path),
			Method: method,
			Path:   item.Path,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Path == items[j].Path {
				return items[i].Method < items[j].Method
			}
			return items[i].Path < items[j].Path
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminRouteModule(path string) string {
	normalized := strings.Trim(strings.TrimPrefix(strings.TrimSpace(path), adminRoutePrefix), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	switch segments[0] {
	case "bonuses", "commissions":
		return "commission"
	case "members":
		if len(segments) >= 3 {
			return segments[2]
		}
		return "members"
	}
	return segments[0]
}
