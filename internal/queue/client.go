package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/config"
	"github.com/yieldtree/incentive-engine/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// CriticalQueue 资金相关任务队列
	CriticalQueue = constants.QueueCritical
	// BatchQueue 批量结算任务队列
	BatchQueue = constants.QueueBatch
)

const (
	purchaseMaxRetry = 10
	batchMaxRetry    = 3
)

// Client 队列客户端封装
type Client struct {
	client  *asynq.Client
	enabled bool
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false}, nil
	}
	opt := BuildRedisOpt(cfg)
	return &Client{
		client:  asynq.NewClient(opt),
		enabled: true,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueuePurchaseCommission 推送购买佣金任务，同一购买单在队列中只保留一个
func (c *Client) EnqueuePurchaseCommission(payload PurchaseCommissionPayload) error {
	task, err := NewPurchaseCommissionTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task,
		asynq.Queue(CriticalQueue),
		asynq.MaxRetry(purchaseMaxRetry),
		asynq.TaskID("purchase:"+strings.TrimSpace(payload.PurchaseNo)),
	)
}

// EnqueueTierEvaluate 推送等级评估任务
func (c *Client) EnqueueTierEvaluate(payload TierEvaluatePayload) error {
	if len(payload.UserIDs) == 0 {
		return nil
	}
	task, err := NewTierEvaluateTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, asynq.Queue(DefaultQueue))
}

// EnqueueLoyaltyActivity 推送忠诚活动任务
func (c *Client) EnqueueLoyaltyActivity(payload LoyaltyActivityPayload) error {
	task, err := NewLoyaltyActivityTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, asynq.Queue(DefaultQueue))
}

// EnqueueProfitShareDistribute 推送分红发放任务
func (c *Client) EnqueueProfitShareDistribute(payload ProfitShareDistributePayload) error {
	task, err := NewProfitShareDistributeTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task,
		asynq.Queue(CriticalQueue),
		asynq.TaskID(fmt.Sprintf("profit_share:%d", payload.ProfitShareID)),
	)
}

// EnqueueMonthlySettle 推送月度结算任务
func (c *Client) EnqueueMonthlySettle(payload MonthlySettlePayload) error {
	task, err := NewMonthlySettleTask(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(BatchQueue), asynq.MaxRetry(batchMaxRetry)}
	if period := strings.TrimSpace(payload.Period); period != "" {
		opts = append(opts, asynq.TaskID("monthly_settle:"+period))
	}
	return c.enqueue(task, opts...)
}

// EnqueueLoyaltySweep 推送周期清扫任务
func (c *Client) EnqueueLoyaltySweep() error {
	return c.enqueue(NewLoyaltySweepTask(), asynq.Queue(BatchQueue), asynq.MaxRetry(batchMaxRetry))
}

func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) error {
	if !c.Enabled() {
		return nil
	}
	_, err := c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := BuildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{CriticalQueue: 6, DefaultQueue: 3, BatchQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

// BuildRedisOpt 生成队列 Redis 连接配置
func BuildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}
