package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const monthlySettleBatchSize = 200

// BonusService 月度团队业绩奖与领导奖结算
type BonusService struct {
	commissionRepo repository.CommissionRepository
	memberRepo     repository.MemberRepository
	tierService    *TierService
	settingService *SettingService
	clock          clock.Clock
}

// MonthlySettlement 月度结算汇总
type MonthlySettlement struct {
	Period            string       `json:"period"`
	Members           int          `json:"members"`
	TeamVolumeBonuses int          `json:"team_volume_bonuses"`
	LeadershipBonuses int          `json:"leadership_bonuses"`
	TeamVolumeTotal   models.Money `json:"team_volume_total"`
	LeadershipTotal   models.Money `json:"leadership_total"`
	PoolCapped        bool         `json:"pool_capped"`
}

type monthlyCandidate struct {
	userID    uint
	volume    decimal.Decimal
	requested decimal.Decimal
}

// NewBonusService 创建月度奖金服务
func NewBonusService(
	commissionRepo repository.CommissionRepository,
	memberRepo repository.MemberRepository,
	tierService *TierService,
	settingService *SettingService,
	clk clock.Clock,
) *BonusService {
	if clk == nil {
		clk = clock.System{}
	}
	return &BonusService{
		commissionRepo: commissionRepo,
		memberRepo:     memberRepo,
		tierService:    tierService,
		settingService: settingService,
		clock:          clk,
	}
}

// SettleMonthlyBonuses 结算某月奖金：团队业绩奖、领导奖、月度资格快照，最后扣减已结算的当月业绩
// 同一月份重复执行只结算尚未结算的会员，团队业绩奖只从奖池剩余额度中分配
func (s *BonusService) SettleMonthlyBonuses(ctx context.Context, period string) (*MonthlySettlement, error) {
	if !incentive.ValidMonthPeriod(period) {
		return nil, ErrInvalidPeriod
	}
	lockToken, acquired, err := cache.AcquireSettlementLock(ctx, period, 30*time.Minute)
	if err != nil {
		logger.Component("bonus", "period", period).Warnw("monthly_settle_lock_failed", "error", err)
	} else if !acquired {
		return nil, ErrSettlementInProgress
	} else {
		defer func() {
			if err := cache.ReleaseSettlementLock(context.Background(), period, lockToken); err != nil {
				logger.Component("bonus", "period", period).Warnw("monthly_settle_unlock_failed", "error", err)
			}
		}()
	}

	setting, err := s.settingService.GetIncentiveSetting()
	if err != nil {
		return nil, err
	}
	record, err := s.commissionRepo.EnsureMonthlySettlement(period, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("monthly settlement record %s missing", period)
	}
	candidates, err := s.collectCandidates(ctx, period)
	if err != nil {
		return nil, err
	}

	granted := make(map[uint]decimal.Decimal, len(candidates))
	requests := make([]incentive.AllocationRequest, 0, len(candidates))
	for _, c := range candidates {
		granted[c.userID] = c.requested
		requests = append(requests, incentive.AllocationRequest{ID: c.userID, Amount: c.requested})
	}
	summary := &MonthlySettlement{Period: period}
	pool := setting.MonthlyBonusPoolDecimal()
	if pool.IsPositive() && len(requests) > 0 {
		remaining := pool.Sub(record.TeamVolumeGranted.Decimal)
		if remaining.IsPositive() {
			allocation, err := incentive.AllocateProportional(requests, remaining)
			if err != nil {
				return nil, err
			}
			for _, item := range allocation.Items {
				granted[item.ID] = item.Allocated
				if item.Allocated.LessThan(item.Requested) {
					summary.PoolCapped = true
				}
			}
		} else {
			for _, c := range candidates {
				granted[c.userID] = decimal.Zero
				if c.requested.IsPositive() {
					summary.PoolCapped = true
				}
			}
		}
	}

	teamTotal := decimal.Zero
	leadershipTotal := decimal.Zero
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.settleMember(ctx, c, period, granted[c.userID])
		if err != nil {
			return nil, fmt.Errorf("settle monthly bonus for user %d: %w", c.userID, err)
		}
		if result == nil {
			continue
		}
		summary.Members++
		if result.teamVolume != nil {
			summary.TeamVolumeBonuses++
			teamTotal = teamTotal.Add(result.teamVolume.Amount.Decimal)
		}
		if result.leadership != nil {
			summary.LeadershipBonuses++
			leadershipTotal = leadershipTotal.Add(result.leadership.Amount.Decimal)
		}
		if err := cache.InvalidateTierSnapshot(ctx, c.userID); err != nil {
			logger.Component("bonus").Warnw("tier_snapshot_invalidate_failed", "user_id", c.userID, "error", err)
		}
	}
	summary.TeamVolumeTotal = models.NewMoneyFromDecimal(teamTotal)
	summary.LeadershipTotal = models.NewMoneyFromDecimal(leadershipTotal)
	if err := s.commissionRepo.MarkMonthlySettlementRun(period, pool, s.clock.Now()); err != nil {
		return nil, err
	}

	logger.Component("bonus", "period", period).Infow("monthly_bonus_settled",
		"members", summary.Members,
		"team_volume_total", summary.TeamVolumeTotal.String(),
		"leadership_total", summary.LeadershipTotal.String(),
		"pool_granted_before", record.TeamVolumeGranted.String(),
		"pool_capped", summary.PoolCapped,
	)
	return summary, nil
}

// GetMonthlySettlement 查询某月已累计的结算记录
func (s *BonusService) GetMonthlySettlement(period string) (*models.MonthlyBonusSettlement, error) {
	if !incentive.ValidMonthPeriod(period) {
		return nil, ErrInvalidPeriod
	}
	record, err := s.commissionRepo.GetMonthlySettlement(period)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrMonthlySettlementNotFound
	}
	return record, nil
}

func (s *BonusService) collectCandidates(ctx context.Context, period string) ([]monthlyCandidate, error) {
	var candidates []monthlyCandidate
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids, err := s.memberRepo.ListIDsWithMonthlyVolume(afterID, monthlySettleBatchSize)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			settled, err := s.alreadySettled(id, period)
			if err != nil {
				return nil, err
			}
			if settled {
				continue
			}
			member, err := s.memberRepo.GetByID(id)
			if err != nil {
				return nil, err
			}
			if member == nil {
				continue
			}
			volume := member.MonthlyTeamVolume.Decimal
			requested := models.RoundMoney(incentive.ApplyPercent(volume, incentive.TeamVolumeBonusRate(volume)))
			candidates = append(candidates, monthlyCandidate{userID: id, volume: volume, requested: requested})
		}
		if len(ids) < monthlySettleBatchSize {
			return candidates, nil
		}
		afterID = ids[len(ids)-1]
	}
}

// alreadySettled 该月已发过团队业绩奖或领导奖的会员不再参与，业绩留到下月
func (s *BonusService) alreadySettled(userID uint, period string) (bool, error) {
	for _, keyName := range []string{"team_volume", "leadership"} {
		existing, err := s.commissionRepo.GetByIdempotencyKey(monthlyBonusKey(keyName, userID, period))
		if err != nil {
			return false, err
		}
		if existing != nil {
			return true, nil
		}
	}
	return false, nil
}

type memberSettlement struct {
	teamVolume *models.Commission
	leadership *models.Commission
}

func (s *BonusService) settleMember(ctx context.Context, candidate monthlyCandidate, period string, teamVolumeBonus decimal.Decimal) (*memberSettlement, error) {
	userID := candidate.userID
	var result *memberSettlement
	err := s.commissionRepo.Transaction(ctx, func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		commissionRepo := s.commissionRepo.WithTx(tx)
		if _, err := commissionRepo.GetMonthlySettlementForUpdate(period); err != nil {
			return err
		}
		member, err := memberRepo.GetByIDForUpdate(userID)
		if err != nil {
			return err
		}
		if member == nil || !member.MonthlyTeamVolume.IsPositive() {
			return nil
		}
		// 只结算统计时的业绩，之后新增的部分留给下次结算
		volume := decimal.Min(candidate.volume, member.MonthlyTeamVolume.Decimal)
		now := s.clock.Now()
		result = &memberSettlement{}

		teamRate := incentive.TeamVolumeBonusRate(volume)
		teamAmount := models.RoundMoney(teamVolumeBonus)
		if teamAmount.IsPositive() {
			result.teamVolume, err = s.createMonthlyBonus(commissionRepo, monthlyBonus{
				userID:  userID,
				period:  period,
				kind:    constants.CommissionTypeTeamVolume,
				base:    volume,
				rate:    teamRate,
				amount:  teamAmount,
				keyName: "team_volume",
				now:     now,
			})
			if err != nil {
				return err
			}
		}

		leadershipRate := incentive.LeadershipRate(incentive.LeadershipLevelFor(member.CurrentTier))
		leadershipAmount := models.RoundMoney(incentive.ApplyPercent(volume, leadershipRate))
		if leadershipAmount.IsPositive() {
			result.leadership, err = s.createMonthlyBonus(commissionRepo, monthlyBonus{
				userID:  userID,
				period:  period,
				kind:    constants.CommissionTypeLeadership,
				base:    volume,
				rate:    leadershipRate,
				amount:  leadershipAmount,
				keyName: "leadership",
				now:     now,
			})
			if err != nil {
				return err
			}
		}

		if _, err := s.tierService.recordQualificationTx(tx, member, period); err != nil {
			return err
		}
		paidTeam, paidLeadership := decimal.Zero, decimal.Zero
		if result.teamVolume != nil {
			paidTeam = result.teamVolume.Amount.Decimal
		}
		if result.leadership != nil {
			paidLeadership = result.leadership.Amount.Decimal
		}
		if err := commissionRepo.AddMonthlySettlementGrant(period, paidTeam, paidLeadership); err != nil {
			return err
		}
		return memberRepo.DeductMonthlyTeamVolume(userID, volume)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type monthlyBonus struct {
	userID  uint
	period  string
	kind    constants.CommissionType
	base    decimal.Decimal
	rate    decimal.Decimal
	amount  decimal.Decimal
	keyName string
	now     time.Time
}

func (s *BonusService) createMonthlyBonus(repo repository.CommissionRepository, bonus monthlyBonus) (*models.Commission, error) {
	commission := &models.Commission{
		EarnerID:       bonus.userID,
		SourceID:       bonus.userID,
		Level:          0,
		BaseAmount:     models.NewMoneyFromDecimal(bonus.base),
		RatePercent:    models.NewMoneyFromDecimal(bonus.rate),
		Amount:         models.NewMoneyFromDecimal(bonus.amount),
		Type:           bonus.kind,
		Status:         constants.CommissionStatusPending,
		Period:         bonus.period,
		IdempotencyKey: monthlyBonusKey(bonus.keyName, bonus.userID, bonus.period),
		EarnedAt:       bonus.now,
		CreatedAt:      bonus.now,
		UpdatedAt:      bonus.now,
	}
	created, err := repo.CreateIfAbsent(commission)
	if err != nil {
		return nil, err
	}
	if !created {
		return repo.GetByIdempotencyKey(commission.IdempotencyKey)
	}
	return commission, nil
}

func monthlyBonusKey(keyName string, userID uint, period string) string {
	return fmt.Sprintf("%s:%d:%s", keyName, userID, period)
}
