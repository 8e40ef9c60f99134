package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/provider"
	"github.com/yieldtree/incentive-engine/internal/queue"
	"github.com/yieldtree/incentive-engine/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPurchaseCommission, c.handlePurchaseCommission)
	mux.HandleFunc(queue.TaskTierEvaluate, c.handleTierEvaluate)
	mux.HandleFunc(queue.TaskLoyaltyActivity, c.handleLoyaltyActivity)
	mux.HandleFunc(queue.TaskProfitShareDistribute, c.handleProfitShareDistribute)
	mux.HandleFunc(queue.TaskMonthlySettle, c.handleMonthlySettle)
	mux.HandleFunc(queue.TaskLoyaltySweep, c.handleLoyaltySweep)
}

func (c *Consumer) handlePurchaseCommission(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_purchase_commission_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseCommissionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_commission_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
	if err != nil {
		logger.Warnw("worker_purchase_commission_invalid_amount", "purchase_no", payload.PurchaseNo, "amount", payload.Amount)
		return nil
	}
	result, err := c.CommissionService.ProcessPurchase(ctx, service.PurchaseInput{
		PurchaseNo:  payload.PurchaseNo,
		UserID:      payload.UserID,
		Amount:      amount,
		PackageType: payload.PackageType,
		OccurredAt:  payload.OccurredAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPurchase):
			logger.Warnw("worker_purchase_commission_skip_invalid", "purchase_no", payload.PurchaseNo, "error", err)
			return nil
		case errors.Is(err, service.ErrMemberNotFound):
			logger.Warnw("worker_purchase_commission_skip_member_not_found", "purchase_no", payload.PurchaseNo, "user_id", payload.UserID)
			return nil
		default:
			// 包括 ErrPurchaseInProgress，交给 asynq 重试
			logger.Warnw("worker_purchase_commission_failed", "purchase_no", payload.PurchaseNo, "error", err)
			return err
		}
	}
	logger.Debugw("worker_purchase_commission_done",
		"purchase_no", payload.PurchaseNo,
		"commissions", len(result.Commissions),
		"duplicate", result.Duplicate,
	)
	return nil
}

func (c *Consumer) handleTierEvaluate(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.TierEvaluatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_tier_evaluate_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if len(payload.UserIDs) == 0 {
		return nil
	}
	if err := c.TierService.EvaluateTiers(ctx, payload.UserIDs); err != nil {
		logger.Warnw("worker_tier_evaluate_failed", "user_ids", payload.UserIDs, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleLoyaltyActivity(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.LoyaltyActivityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_loyalty_activity_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result, err := c.LoyaltyService.RecordActivity(ctx, service.ActivityInput{
		UserID:       payload.UserID,
		ActivityType: payload.ActivityType,
		Description:  payload.Description,
		Metadata:     models.JSON(payload.Metadata),
		Date:         payload.Date,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidActivityType) || errors.Is(err, service.ErrMemberNotFound) {
			logger.Debugw("worker_loyalty_activity_skip", "user_id", payload.UserID, "activity_type", payload.ActivityType, "error", err)
			return nil
		}
		logger.Warnw("worker_loyalty_activity_failed", "user_id", payload.UserID, "error", err)
		return err
	}
	if !result.Credited {
		logger.Debugw("worker_loyalty_activity_not_credited", "user_id", payload.UserID, "reason", result.SkipReason)
	}
	return nil
}

func (c *Consumer) handleProfitShareDistribute(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.ProfitShareDistributePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_profit_share_distribute_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.ProfitShareID == 0 {
		return nil
	}
	_, err := c.ProfitShareService.DistributeQuarterlyProfitShare(ctx, payload.ProfitShareID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProfitShareNotFound):
			logger.Debugw("worker_profit_share_distribute_skip_not_found", "profit_share_id", payload.ProfitShareID)
			return nil
		case errors.Is(err, service.ErrProfitShareStatusConflict):
			logger.Debugw("worker_profit_share_distribute_skip_status", "profit_share_id", payload.ProfitShareID, "error", err)
			return nil
		default:
			logger.Warnw("worker_profit_share_distribute_failed", "profit_share_id", payload.ProfitShareID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleMonthlySettle(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.MonthlySettlePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_monthly_settle_unmarshal_failed", "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}
	period, err := c.resolveSettlePeriod(payload.Period)
	if err != nil {
		logger.Warnw("worker_monthly_settle_invalid_period", "period", payload.Period, "error", err)
		return nil
	}
	summary, err := c.BonusService.SettleMonthlyBonuses(ctx, period)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPeriod) {
			return nil
		}
		logger.Warnw("worker_monthly_settle_failed", "period", period, "error", err)
		return err
	}
	logger.Infow("worker_monthly_settle_done",
		"period", period,
		"members", summary.Members,
		"team_volume_total", summary.TeamVolumeTotal.String(),
		"leadership_total", summary.LeadershipTotal.String(),
	)
	return nil
}

func (c *Consumer) handleLoyaltySweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	return c.sweepLoyaltyCycles(ctx)
}

func (c *Consumer) sweepLoyaltyCycles(ctx context.Context) error {
	completed, err := c.LoyaltyService.CompleteExpiredCycles(ctx)
	if err != nil {
		logger.Warnw("worker_loyalty_sweep_failed", "completed", completed, "error", err)
		return err
	}
	if completed > 0 {
		logger.Infow("worker_loyalty_sweep_done", "completed", completed)
	}
	return nil
}

// resolveSettlePeriod 未指定结算月份时取当前时间的上一个自然月
func (c *Consumer) resolveSettlePeriod(period string) (string, error) {
	period = strings.TrimSpace(period)
	if period != "" {
		if !incentive.ValidMonthPeriod(period) {
			return "", service.ErrInvalidPeriod
		}
		return period, nil
	}
	return incentive.PreviousMonthPeriod(incentive.MonthPeriod(c.Clock.Now()))
}
