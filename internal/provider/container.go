package provider

import (
	"context"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/graph"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/repository"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const graphConnectTimeout = 10 * time.Second

// Container 依赖注入容器
type Container struct {
	Config        *config.Config
	Clock         clock.Clock
	QueueClient   *queue.Client
	GraphClient   graph.Client
	ReferralGraph *graph.ReferralGraph

	// Repositories
	MemberRepo      repository.MemberRepository
	CommissionRepo  repository.CommissionRepository
	TierRepo        repository.TierRepository
	ProfitShareRepo repository.ProfitShareRepository
	CycleRepo       repository.CycleRepository
	WalletRepo      repository.WalletRepository
	SettingRepo     repository.SettingRepository

	// Services
	SettingService     *service.SettingService
	MemberService      *service.MemberService
	WalletService      *service.WalletService
	CommissionService  *service.CommissionService
	TierService        *service.TierService
	ProfitShareService *service.ProfitShareService
	LoyaltyService     *service.LoyaltyService
	BonusService       *service.BonusService
}

// NewContainer 初始化容器（Redis、队列、图数据库与全局数据库连接）
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		Clock:       clock.System{Location: loadLocation(cfg.Server.Timezone)},
		QueueClient: queueClient,
		GraphClient: initGraphClient(&cfg.Graph),
	}
	c.assemble(models.DB)
	return c
}

// NewContainerWithDB 使用指定数据库、时钟与图客户端组装容器，不连接 Redis 与队列
func NewContainerWithDB(cfg *config.Config, db *gorm.DB, clk clock.Clock, graphClient graph.Client) *Container {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	c := &Container{Config: cfg, Clock: clk, GraphClient: graphClient}
	c.assemble(db)
	return c
}

func (c *Container) assemble(db *gorm.DB) {
	if c.GraphClient != nil {
		c.ReferralGraph = graph.NewReferralGraph(c.GraphClient)
	}
	// 1. 初始化 Repositories
	c.initRepositories(db)
	// 2. 初始化 Services
	c.initServices()
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.MemberRepo = repository.NewMemberRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.TierRepo = repository.NewTierRepository(db)
	c.ProfitShareRepo = repository.NewProfitShareRepository(db)
	c.CycleRepo = repository.NewCycleRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	c.SettingService = service.NewSettingService(c.SettingRepo, IncentiveDefaultsFromConfig(c.Config.Incentive))
	c.MemberService = service.NewMemberService(c.MemberRepo, c.Clock, c.SyncReferral)
	c.WalletService = service.NewWalletService(c.WalletRepo, c.Clock)
	c.CommissionService = service.NewCommissionService(
		c.CommissionRepo,
		c.MemberRepo,
		c.referrerLookup(),
		c.Config.Referral.MaxUplineDepth,
		c.Clock,
	)
	c.TierService = service.NewTierService(c.MemberRepo, c.TierRepo, c.CommissionRepo, c.Clock)
	c.ProfitShareService = service.NewProfitShareService(c.ProfitShareRepo, c.MemberRepo, c.WalletService, c.SettingService, c.Clock)
	c.LoyaltyService = service.NewLoyaltyService(c.CycleRepo, c.MemberRepo, c.CommissionRepo, c.WalletService, c.SettingService, c.Clock)
	c.BonusService = service.NewBonusService(c.CommissionRepo, c.MemberRepo, c.TierService, c.SettingService, c.Clock)

	c.CommissionService.SetTeamVolumeListener(service.TeamVolumeListenerFunc(c.onTeamVolumeChanged))
}

// referrerLookup 推荐关系来源为 graph 且图数据库可用时使用图查询，否则返回 nil 走会员表
func (c *Container) referrerLookup() incentive.ReferrerLookup {
	source := strings.ToLower(strings.TrimSpace(c.Config.Referral.Source))
	if source != constants.ReferralSourceGraph {
		return nil
	}
	if c.ReferralGraph == nil {
		logger.Warnw("provider_referral_graph_unavailable", "fallback", constants.ReferralSourceDatabase)
		return nil
	}
	return c.ReferralGraph
}

// onTeamVolumeChanged 队列可用时异步评估等级，否则在当前请求内直接评估
func (c *Container) onTeamVolumeChanged(ctx context.Context, userIDs []uint) {
	if len(userIDs) == 0 {
		return
	}
	if c.QueueClient.Enabled() {
		err := c.QueueClient.EnqueueTierEvaluate(queue.TierEvaluatePayload{UserIDs: userIDs})
		if err == nil {
			return
		}
		logger.Warnw("provider_enqueue_tier_evaluate_failed", "user_ids", userIDs, "error", err)
	}
	if err := c.TierService.EvaluateTiers(ctx, userIDs); err != nil {
		logger.Warnw("provider_evaluate_tiers_failed", "user_ids", userIDs, "error", err)
	}
}

// SyncReferral 同步会员推荐关系到图数据库，未开启同步时跳过
func (c *Container) SyncReferral(ctx context.Context, userID, referrerID uint) error {
	if c.ReferralGraph == nil || !c.Config.Referral.SyncToGraph {
		return nil
	}
	return c.ReferralGraph.LinkReferrer(ctx, userID, referrerID)
}

// Close 释放外部连接
func (c *Container) Close(ctx context.Context) {
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if c.GraphClient != nil {
		if err := c.GraphClient.Close(ctx); err != nil {
			logger.Warnw("provider_close_graph_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

// IncentiveDefaultsFromConfig 将配置文件中的激励参数转换为默认设置
func IncentiveDefaultsFromConfig(cfg config.IncentiveConfig) service.IncentiveSetting {
	setting := service.IncentiveDefaultSetting()
	if value, ok := parseConfigDecimal(cfg.MemberSharePercent); ok {
		setting.MemberSharePercent = models.NewMoneyFromDecimal(value)
	}
	if value, ok := parseConfigDecimal(cfg.LoyaltyDailyLGC); ok {
		setting.LoyaltyDailyLGC = models.NewMoneyFromDecimal(value)
	}
	if value, ok := parseConfigDecimal(cfg.MonthlyBonusPool); ok {
		setting.MonthlyBonusPool = models.NewMoneyFromDecimal(value)
	}
	if cfg.LoginWindowDays > 0 {
		setting.LoginWindowDays = cfg.LoginWindowDays
	}
	if cfg.LoyaltyCycleDays > 0 {
		setting.LoyaltyCycleDays = cfg.LoyaltyCycleDays
	}
	if cfg.LoyaltyDailyCap > 0 {
		setting.LoyaltyDailyCap = cfg.LoyaltyDailyCap
	}
	if cfg.LoyaltyMinReferrals > 0 {
		setting.LoyaltyMinReferrals = cfg.LoyaltyMinReferrals
	}
	if cfg.LoyaltyMinActivities > 0 {
		setting.LoyaltyMinActivities = cfg.LoyaltyMinActivities
	}
	if len(cfg.ActivityTypes) > 0 {
		setting.ActivityTypes = append([]string(nil), cfg.ActivityTypes...)
	}
	normalized := service.NormalizeIncentiveSetting(setting)
	if err := service.ValidateIncentiveSetting(normalized); err != nil {
		logger.Warnw("provider_incentive_config_invalid", "error", err, "fallback", "builtin_defaults")
		return service.IncentiveDefaultSetting()
	}
	return normalized
}

func parseConfigDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warnw("provider_parse_incentive_decimal_failed", "value", raw, "error", err)
		return decimal.Zero, false
	}
	return value, true
}

func initGraphClient(cfg *config.GraphConfig) graph.Client {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), graphConnectTimeout)
	defer cancel()
	client, err := graph.NewNeo4jClient(ctx, graph.Options{
		URI:            cfg.URI,
		Database:       cfg.Database,
		Username:       cfg.Username,
		Password:       cfg.Password,
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		logger.Warnw("provider_init_graph_failed", "uri", cfg.URI, "error", err)
		return nil
	}
	return client
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnw("provider_load_timezone_failed", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}
