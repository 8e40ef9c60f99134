package queue

import (
	"encoding/json"
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPurchaseCommission 购买事件佣金计算任务
	TaskPurchaseCommission = constants.TaskPurchaseCommission
	// TaskTierEvaluate 团队业绩变化后的等级评估任务
	TaskTierEvaluate = constants.TaskTierEvaluate
	// TaskLoyaltyActivity 忠诚周期活动记录任务
	TaskLoyaltyActivity = constants.TaskLoyaltyActivity
	// TaskProfitShareDistribute 季度分红发放任务
	TaskProfitShareDistribute = constants.TaskProfitShareDistribute
	// TaskMonthlySettle 月度团队奖金结算任务
	TaskMonthlySettle = constants.TaskMonthlySettle
	// TaskLoyaltySweep 到期忠诚周期清扫任务
	TaskLoyaltySweep = constants.TaskLoyaltySweep
)

// PurchaseCommissionPayload 购买事件载荷，金额使用字符串避免精度丢失
type PurchaseCommissionPayload struct {
	PurchaseNo  string    `json:"purchase_no"`
	UserID      uint      `json:"user_id"`
	Amount      string    `json:"amount"`
	PackageType string    `json:"package_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// TierEvaluatePayload 等级评估任务载荷
type TierEvaluatePayload struct {
	UserIDs []uint `json:"user_ids"`
}

// LoyaltyActivityPayload 忠诚活动任务载荷
type LoyaltyActivityPayload struct {
	UserID       uint                   `json:"user_id"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Date         time.Time              `json:"date"`
}

// ProfitShareDistributePayload 分红发放任务载荷
type ProfitShareDistributePayload struct {
	ProfitShareID uint `json:"profit_share_id"`
}

// MonthlySettlePayload 月度结算任务载荷，Period 为空时结算上一个自然月
type MonthlySettlePayload struct {
	Period string `json:"period"`
}

// NewPurchaseCommissionTask 创建购买佣金任务
func NewPurchaseCommissionTask(payload PurchaseCommissionPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPurchaseCommission, payload)
}

// NewTierEvaluateTask 创建等级评估任务
func NewTierEvaluateTask(payload TierEvaluatePayload) (*asynq.Task, error) {
	return newJSONTask(TaskTierEvaluate, payload)
}

// NewLoyaltyActivityTask 创建忠诚活动任务
func NewLoyaltyActivityTask(payload LoyaltyActivityPayload) (*asynq.Task, error) {
	return newJSONTask(TaskLoyaltyActivity, payload)
}

// NewProfitShareDistributeTask 创建分红发放任务
func NewProfitShareDistributeTask(payload ProfitShareDistributePayload) (*asynq.Task, error) {
	return newJSONTask(TaskProfitShareDistribute, payload)
}

// NewMonthlySettleTask 创建月度结算任务
func NewMonthlySettleTask(payload MonthlySettlePayload) (*asynq.Task, error) {
	return newJSONTask(TaskMonthlySettle, payload)
}

// NewLoyaltySweepTask 创建周期清扫任务
func NewLoyaltySweepTask() *asynq.Task {
	return asynq.NewTask(TaskLoyaltySweep, nil)
}

func newJSONTask(typename string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body), nil
}
