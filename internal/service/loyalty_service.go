package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"gorm.io/gorm"
)

const expiredCycleBatchSize = 100

// 活动未入账原因
const (
	ActivitySkipNoActiveCycle = "no_active_cycle"
	ActivitySkipOutsideCycle  = "outside_cycle"
	ActivitySkipDailyCap      = "daily_cap_reached"
	ActivitySkipDuplicate     = "duplicate"
)

// LoyaltyService 忠诚成长周期
type LoyaltyService struct {
	cycleRepo      repository.CycleRepository
	memberRepo     repository.MemberRepository
	commissionRepo repository.CommissionRepository
	walletService  *WalletService
	settingService *SettingService
	clock          clock.Clock
}

// ActivityInput 会员活动
type ActivityInput struct {
	UserID       uint
	ActivityType string
	Description  string
	Metadata     models.JSON
	Date         time.Time
}

// ActivityResult 活动处理结果，Credited=false 时 SkipReason 说明原因
type ActivityResult struct {
	Logged     bool                       `json:"logged"`
	Credited   bool                       `json:"credited"`
	SkipReason string                     `json:"skip_reason,omitempty"`
	Activity   *models.LgrActivity        `json:"activity,omitempty"`
	Cycle      *models.LoyaltyGrowthCycle `json:"cycle,omitempty"`
}

// LoyaltyEligibility 开启周期的资格明细
type LoyaltyEligibility struct {
	UserID                uint                             `json:"user_id"`
	HasStarterPackage     bool                             `json:"has_starter_package"`
	TrainingCompleted     bool                             `json:"training_completed"`
	ActiveDirectReferrals int                              `json:"active_direct_referrals"`
	DistinctActivityTypes int                              `json:"distinct_activity_types"`
	Missing               []incentive.LoyaltyIneligibility `json:"missing"`
}

// Qualified 是否满足全部条件
func (e *LoyaltyEligibility) Qualified() bool {
	return e != nil && len(e.Missing) == 0
}

// NewLoyaltyService 创建忠诚周期服务
func NewLoyaltyService(
	cycleRepo repository.CycleRepository,
	memberRepo repository.MemberRepository,
	commissionRepo repository.CommissionRepository,
	walletService *WalletService,
	settingService *SettingService,
	clk clock.Clock,
) *LoyaltyService {
	if clk == nil {
		clk = clock.System{}
	}
	return &LoyaltyService{
		cycleRepo:      cycleRepo,
		memberRepo:     memberRepo,
		commissionRepo: commissionRepo,
		walletService:  walletService,
		settingService: settingService,
		clock:          clk,
	}
}

// CheckEligibility 计算会员开启周期的资格
func (s *LoyaltyService) CheckEligibility(ctx context.Context, userID uint) (*LoyaltyEligibility, error) {
	member, err := s.memberRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	setting, err := s.settingService.GetIncentiveSetting()
	if err != nil {
		return nil, err
	}

	hasStarter, err := s.commissionRepo.HasCompletedPurchaseOfPackage(userID, constants.PackageTypeStarter)
	if err != nil {
		return nil, err
	}
	referrals, err := s.memberRepo.CountActiveDirectReferralsWithPurchases(userID)
	if err != nil {
		return nil, err
	}
	activityTypes, err := s.cycleRepo.CountDistinctActivityTypes(userID, setting.ActivityTypes)
	if err != nil {
		return nil, err
	}

	profile := incentive.LoyaltyProfile{
		HasStarterPackage:     hasStarter,
		TrainingCompleted:     member.TrainingCompletedAt != nil,
		ActiveDirectReferrals: int(referrals),
		DistinctActivityTypes: int(activityTypes),
	}
	return &LoyaltyEligibility{
		UserID:                userID,
		HasStarterPackage:     profile.HasStarterPackage,
		TrainingCompleted:     profile.TrainingCompleted,
		ActiveDirectReferrals: profile.ActiveDirectReferrals,
		DistinctActivityTypes: profile.DistinctActivityTypes,
		Missing:               incentive.CheckLoyaltyQualification(profile, setting.LoyaltyRequirement()),
	}, nil
}

// StartCycle 为满足条件的会员开启新周期
func (s *LoyaltyService) StartCycle(ctx context.Context, userID uint) (*models.LoyaltyGrowthCycle, error) {
	eligibility, err := s.CheckEligibility(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Qualified() {
		reasons := make([]string, 0, len(eligibility.Missing))
		for _, item := range eligibility.Missing {
			reasons = append(reasons, string(item))
		}
		return nil, fmt.Errorf("%w: %s", ErrLoyaltyNotQualified, strings.Join(reasons, ","))
	}
	setting, err := s.settingService.GetIncentiveSetting()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := incentive.StartOfDay(now)
	cycle := &models.LoyaltyGrowthCycle{
		UserID:         userID,
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, setting.LoyaltyCycleDays),
		Status:         constants.CycleStatusActive,
		TotalEarnedLGC: models.NewMoney("0"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.cycleRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.cycleRepo.WithTx(tx)
		active, err := repo.GetActiveByUserForUpdate(userID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrLoyaltyCycleExists
		}
		return repo.Create(cycle)
	})
	if err != nil {
		return nil, err
	}
	logger.Component("loyalty", "user_id", userID).Infow("loyalty_cycle_started",
		"cycle_id", cycle.ID,
		"end_date", incentive.ActivityDate(cycle.EndDate),
	)
	return cycle, nil
}

// RecordActivity 记录会员活动并按日计入当前周期
// 原始活动总是记录；无有效周期、超出周期、达到当日上限或重复时不入账也不报错
func (s *LoyaltyService) RecordActivity(ctx context.Context, input ActivityInput) (*ActivityResult, error) {
	if input.UserID == 0 {
		return nil, ErrMemberNotFound
	}
	setting, err := s.settingService.GetIncentiveSetting()
	if err != nil {
		return nil, err
	}
	activityType := strings.ToLower(strings.TrimSpace(input.ActivityType))
	if !setting.AllowsActivity(activityType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidActivityType, activityType)
	}
	member, err := s.memberRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	now := s.clock.Now()
	occurredAt := input.Date
	if occurredAt.IsZero() {
		occurredAt = now
	}
	day := incentive.StartOfDay(occurredAt.In(now.Location()))
	activityDate := incentive.ActivityDate(day)

	logged, err := s.cycleRepo.LogActivity(&models.ActivityLog{
		UserID:       input.UserID,
		ActivityDate: activityDate,
		ActivityType: activityType,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	result := &ActivityResult{Logged: logged}

	lgc := setting.DailyLGCDecimal()
	err = s.cycleRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.cycleRepo.WithTx(tx)
		cycle, err := repo.GetActiveByUserForUpdate(input.UserID)
		if err != nil {
			return err
		}
		if cycle == nil {
			result.SkipReason = ActivitySkipNoActiveCycle
			return nil
		}
		result.Cycle = cycle
		if day.Before(incentive.StartOfDay(cycle.StartDate)) || !day.Before(cycle.EndDate) {
			result.SkipReason = ActivitySkipOutsideCycle
			return nil
		}

		creditedToday, err := repo.CountActivitiesOnDate(cycle.ID, activityDate)
		if err != nil {
			return err
		}
		if int(creditedToday) >= setting.LoyaltyDailyCap {
			result.SkipReason = ActivitySkipDailyCap
			return nil
		}

		activity := &models.LgrActivity{
			UserID:       input.UserID,
			ActivityDate: activityDate,
			ActivityType: activityType,
			LgrCycleID:   cycle.ID,
			LGCEarned:    models.NewMoneyFromDecimal(lgc),
			Verified:     true,
			Description:  strings.TrimSpace(input.Description),
			Metadata:     input.Metadata,
			CreatedAt:    now,
		}
		created, err := repo.CreateActivityIfAbsent(activity)
		if err != nil {
			return err
		}
		if !created {
			result.SkipReason = ActivitySkipDuplicate
			return nil
		}

		activeDays := 0
		if creditedToday == 0 {
			activeDays = 1
		}
		if err := repo.AddProgress(cycle.ID, activeDays, lgc); err != nil {
			return err
		}
		if lgc.IsPositive() {
			if _, err := s.walletService.CreditInTx(tx, WalletCreditInput{
				UserID:    input.UserID,
				Asset:     constants.WalletAssetLGC,
				Amount:    lgc,
				TxnType:   constants.WalletTxnTypeLoyaltyLGC,
				Reference: buildLoyaltyReference(input.UserID, activityDate, activityType),
				Remark:    "忠诚周期每日奖励",
			}); err != nil {
				return err
			}
		}

		refreshed, err := repo.GetByID(cycle.ID)
		if err != nil {
			return err
		}
		if refreshed != nil {
			result.Cycle = refreshed
		}
		result.Activity = activity
		result.Credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.Component("loyalty", "user_id", input.UserID, "activity_date", activityDate)
	if result.Credited {
		log.Infow("loyalty_activity_credited", "activity_type", activityType, "lgc", lgc.StringFixed(models.MoneyScale))
	} else {
		log.Debugw("loyalty_activity_skipped", "activity_type", activityType, "reason", result.SkipReason)
	}
	return result, nil
}

// CompleteExpiredCycles 将所有已到期的 active 周期标记为 completed，返回处理数量
func (s *LoyaltyService) CompleteExpiredCycles(ctx context.Context) (int, error) {
	asOf := s.clock.Now()
	completed := 0
	for {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		ids, err := s.cycleRepo.ListExpiredActiveIDs(asOf, expiredCycleBatchSize)
		if err != nil {
			return completed, err
		}
		if len(ids) == 0 {
			break
		}
		batch := 0
		for _, id := range ids {
			done, err := s.completeCycle(ctx, id, asOf)
			if err != nil {
				return completed, err
			}
			if done {
				batch++
			}
		}
		completed += batch
		if batch == 0 || len(ids) < expiredCycleBatchSize {
			break
		}
	}
	if completed > 0 {
		logger.Component("loyalty").Infow("loyalty_cycles_completed", "count", completed, "as_of", asOf)
	}
	return completed, nil
}

func (s *LoyaltyService) completeCycle(ctx context.Context, id uint, asOf time.Time) (bool, error) {
	done := false
	err := s.cycleRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.cycleRepo.WithTx(tx)
		cycle, err := repo.GetByIDForUpdate(id)
		if err != nil || cycle == nil {
			return err
		}
		if cycle.Status != constants.CycleStatusActive || cycle.EndDate.After(asOf) {
			return nil
		}
		cycle.Status = constants.CycleStatusCompleted
		cycle.ClosedAt = &asOf
		cycle.UpdatedAt = asOf
		done = true
		return repo.Update(cycle)
	})
	return done, err
}

// SuspendCycle active -> suspended
func (s *LoyaltyService) SuspendCycle(ctx context.Context, id uint, reason string) (*models.LoyaltyGrowthCycle, error) {
	return s.closeCycle(ctx, id, constants.CycleStatusSuspended, reason)
}

// TerminateCycle active -> terminated
func (s *LoyaltyService) TerminateCycle(ctx context.Context, id uint, reason string) (*models.LoyaltyGrowthCycle, error) {
	return s.closeCycle(ctx, id, constants.CycleStatusTerminated, reason)
}

func (s *LoyaltyService) closeCycle(ctx context.Context, id uint, next constants.CycleStatus, reason string) (*models.LoyaltyGrowthCycle, error) {
	var updated *models.LoyaltyGrowthCycle
	err := s.cycleRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.cycleRepo.WithTx(tx)
		cycle, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if cycle == nil {
			return ErrCycleNotFound
		}
		if !cycle.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrCycleStatusConflict, cycle.Status, next)
		}
		now := s.clock.Now()
		cycle.Status = next
		cycle.StatusReason = strings.TrimSpace(reason)
		cycle.ClosedAt = &now
		cycle.UpdatedAt = now
		if err := repo.Update(cycle); err != nil {
			return err
		}
		updated = cycle
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Component("loyalty", "user_id", updated.UserID).Infow("loyalty_cycle_closed", "cycle_id", id, "status", next)
	return updated, nil
}

// GetActiveCycle 获取会员当前周期
func (s *LoyaltyService) GetActiveCycle(ctx context.Context, userID uint) (*models.LoyaltyGrowthCycle, error) {
	cycle, err := s.cycleRepo.GetActiveByUser(userID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, ErrCycleNotFound
	}
	return cycle, nil
}

// ListCycles 分页查询周期
func (s *LoyaltyService) ListCycles(filter repository.CycleListFilter) ([]models.LoyaltyGrowthCycle, int64, error) {
	return s.cycleRepo.List(filter)
}

// ListCycleActivities 周期内已入账活动
func (s *LoyaltyService) ListCycleActivities(cycleID uint) ([]models.LgrActivity, error) {
	cycle, err := s.cycleRepo.GetByID(cycleID)
	if err != nil {
		return nil, err
	}
	if cycle == nil {
		return nil, ErrCycleNotFound
	}
	return s.cycleRepo.ListActivities(cycleID)
}
