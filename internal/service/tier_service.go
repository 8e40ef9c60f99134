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

var hundredPercent = decimal.NewFromInt(100)

// TierService 等级晋升引擎
type TierService struct {
	memberRepo     repository.MemberRepository
	tierRepo       repository.TierRepository
	commissionRepo repository.CommissionRepository
	clock          clock.Clock
}

// TierAdvancement 一次晋升结果
type TierAdvancement struct {
	UserID          uint                      `json:"user_id"`
	From            constants.Tier            `json:"from"`
	To              constants.Tier            `json:"to"`
	ActiveReferrals int                       `json:"active_referrals"`
	TeamVolume      models.Money              `json:"team_volume"`
	Bonus           *models.Commission        `json:"bonus,omitempty"`
	Qualification   *models.TierQualification `json:"qualification"`
}

// TierProgressView 会员等级进度
type TierProgressView struct {
	UserID             uint           `json:"user_id"`
	CurrentTier        constants.Tier `json:"current_tier"`
	ActiveReferrals    int            `json:"active_referrals"`
	TeamVolume         string         `json:"team_volume"`
	NextTier           constants.Tier `json:"next_tier,omitempty"`
	RequiredReferrals  int            `json:"required_referrals,omitempty"`
	RequiredTeamVolume string         `json:"required_team_volume,omitempty"`
	Cached             bool           `json:"cached"`
}

// NewTierService 创建等级服务
func NewTierService(
	memberRepo repository.MemberRepository,
	tierRepo repository.TierRepository,
	commissionRepo repository.CommissionRepository,
	clk clock.Clock,
) *TierService {
	if clk == nil {
		clk = clock.System{}
	}
	return &TierService{
		memberRepo:     memberRepo,
		tierRepo:       tierRepo,
		commissionRepo: commissionRepo,
		clock:          clk,
	}
}

// AdvanceTier 尝试晋升到相邻的下一等级
// 已是 Elite 或未达门槛时返回 nil, nil
func (s *TierService) AdvanceTier(ctx context.Context, userID uint) (*TierAdvancement, error) {
	var advancement *TierAdvancement
	err := s.commissionRepo.Transaction(ctx, func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		member, err := memberRepo.GetByIDForUpdate(userID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		from := member.CurrentTier
		if from == "" {
			from = constants.TierBronze
		}
		if _, ok := from.Next(); !ok {
			return nil
		}

		activeReferrals, err := memberRepo.CountActiveDirectReferrals(userID)
		if err != nil {
			return err
		}
		req, ok := incentive.NextTier(incentive.TierProgress{
			CurrentTier:     from,
			ActiveReferrals: int(activeReferrals),
			TeamVolume:      member.TeamVolume.Decimal,
		})
		if !ok {
			return nil
		}
		swapped, err := memberRepo.CompareAndSetTier(userID, from, req.Tier)
		if err != nil {
			return err
		}
		if !swapped {
			return nil
		}

		now := s.clock.Now()
		period := incentive.MonthPeriod(now)
		qualification := &models.TierQualification{
			UserID:            userID,
			Period:            period,
			Tier:              req.Tier,
			ActiveReferrals:   int(activeReferrals),
			TeamVolume:        member.TeamVolume,
			Qualifies:         true,
			ConsecutiveMonths: 1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.tierRepo.WithTx(tx).UpsertQualification(qualification); err != nil {
			return err
		}

		bonus, err := s.createAchievementBonus(s.commissionRepo.WithTx(tx), userID, req, period, now)
		if err != nil {
			return err
		}
		advancement = &TierAdvancement{
			UserID:          userID,
			From:            from,
			To:              req.Tier,
			ActiveReferrals: int(activeReferrals),
			TeamVolume:      member.TeamVolume,
			Bonus:           bonus,
			Qualification:   qualification,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if advancement == nil {
		return nil, nil
	}

	logger.Component("tier", "user_id", userID).Infow("tier_advanced",
		"from", advancement.From,
		"to", advancement.To,
		"active_referrals", advancement.ActiveReferrals,
		"team_volume", advancement.TeamVolume.String(),
	)
	s.storeSnapshot(ctx, userID, advancement.To, advancement.ActiveReferrals, advancement.TeamVolume.Decimal)
	return advancement, nil
}

// EvaluateTier 逐级晋升直到不再满足下一等级门槛，每一级都会单独发放成就奖金
func (s *TierService) EvaluateTier(ctx context.Context, userID uint) ([]TierAdvancement, error) {
	advancements := make([]TierAdvancement, 0)
	for i := 0; i < len(constants.TierLadder()); i++ {
		if err := ctx.Err(); err != nil {
			return advancements, err
		}
		advancement, err := s.AdvanceTier(ctx, userID)
		if err != nil {
			return advancements, err
		}
		if advancement == nil {
			break
		}
		advancements = append(advancements, *advancement)
	}
	return advancements, nil
}

// EvaluateTiers 批量评估（团队业绩变化后的上级链路）
func (s *TierService) EvaluateTiers(ctx context.Context, userIDs []uint) error {
	for _, userID := range userIDs {
		if _, err := s.EvaluateTier(ctx, userID); err != nil {
			return fmt.Errorf("evaluate tier for user %d: %w", userID, err)
		}
	}
	return nil
}

// RecordMonthlyQualification 记录会员某月是否仍满足当前等级门槛
// 连续达标月数 = 上月连续月数 + 1，不达标归零
func (s *TierService) RecordMonthlyQualification(ctx context.Context, userID uint, period string) (*models.TierQualification, error) {
	if !incentive.ValidMonthPeriod(period) {
		return nil, ErrInvalidPeriod
	}
	var row *models.TierQualification
	err := s.commissionRepo.Transaction(ctx, func(tx *gorm.DB) error {
		member, err := s.memberRepo.WithTx(tx).GetByID(userID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		row, err = s.recordQualificationTx(tx, member, period)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ListQualifications 最近的月度资格快照
func (s *TierService) ListQualifications(userID uint, limit int) ([]models.TierQualification, error) {
	return s.tierRepo.ListQualificationsByUser(userID, limit)
}

// GetTierProgress 查询等级进度，优先读取缓存快照
func (s *TierService) GetTierProgress(ctx context.Context, userID uint) (*TierProgressView, error) {
	if snapshot, hit, err := cache.GetTierSnapshot(ctx, userID); err == nil && hit {
		teamVolume, parseErr := decimal.NewFromString(snapshot.TeamVolume)
		if parseErr == nil {
			view := buildTierProgressView(userID, constants.Tier(snapshot.Tier), snapshot.ActiveReferrals, teamVolume)
			view.Cached = true
			return view, nil
		}
	}

	member, err := s.memberRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	activeReferrals, err := s.memberRepo.CountActiveDirectReferrals(userID)
	if err != nil {
		return nil, err
	}
	s.storeSnapshot(ctx, userID, member.CurrentTier, int(activeReferrals), member.TeamVolume.Decimal)
	return buildTierProgressView(userID, member.CurrentTier, int(activeReferrals), member.TeamVolume.Decimal), nil
}

func (s *TierService) recordQualificationTx(tx *gorm.DB, member *models.Member, period string) (*models.TierQualification, error) {
	activeReferrals, err := s.memberRepo.WithTx(tx).CountActiveDirectReferrals(member.ID)
	if err != nil {
		return nil, err
	}
	tier := member.CurrentTier
	if tier == "" {
		tier = constants.TierBronze
	}
	req, ok := incentive.RequirementFor(tier)
	if !ok {
		return nil, fmt.Errorf("unknown tier %q for user %d", tier, member.ID)
	}
	qualifies := req.Meets(int(activeReferrals), member.TeamVolume.Decimal)

	tierRepo := s.tierRepo.WithTx(tx)
	consecutive := 0
	if qualifies {
		consecutive = 1
		prevPeriod, err := incentive.PreviousMonthPeriod(period)
		if err != nil {
			return nil, ErrInvalidPeriod
		}
		prev, err := tierRepo.GetQualification(member.ID, prevPeriod)
		if err != nil {
			return nil, err
		}
		if prev != nil && prev.Qualifies {
			consecutive = prev.ConsecutiveMonths + 1
		}
	}

	now := s.clock.Now()
	row := &models.TierQualification{
		UserID:            member.ID,
		Period:            period,
		Tier:              tier,
		ActiveReferrals:   int(activeReferrals),
		TeamVolume:        member.TeamVolume,
		Qualifies:         qualifies,
		ConsecutiveMonths: consecutive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tierRepo.UpsertQualification(row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *TierService) createAchievementBonus(repo repository.CommissionRepository, userID uint, req incentive.TierRequirement, period string, now time.Time) (*models.Commission, error) {
	bonus := models.RoundMoney(req.AchievementBonus)
	if !bonus.IsPositive() {
		return nil, nil
	}
	commission := &models.Commission{
		EarnerID:       userID,
		SourceID:       userID,
		Level:          0,
		BaseAmount:     models.NewMoneyFromDecimal(bonus),
		RatePercent:    models.NewMoneyFromDecimal(hundredPercent),
		Amount:         models.NewMoneyFromDecimal(bonus),
		Type:           constants.CommissionTypeAchievement,
		Status:         constants.CommissionStatusPending,
		Period:         period,
		IdempotencyKey: fmt.Sprintf("achievement:%d:%s", userID, req.Tier),
		Remark:         fmt.Sprintf("晋升 %s 成就奖金", req.Tier),
		EarnedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
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

func (s *TierService) storeSnapshot(ctx context.Context, userID uint, tier constants.Tier, activeReferrals int, teamVolume decimal.Decimal) {
	err := cache.SetTierSnapshot(ctx, &cache.TierSnapshot{
		UserID:          userID,
		Tier:            string(tier),
		ActiveReferrals: activeReferrals,
		TeamVolume:      models.RoundMoney(teamVolume).StringFixed(models.MoneyScale),
		UpdatedAt:       s.clock.Now().Unix(),
	})
	if err != nil {
		logger.Component("tier").Warnw("tier_snapshot_store_failed", "user_id", userID, "error", err)
	}
}

func buildTierProgressView(userID uint, tier constants.Tier, activeReferrals int, teamVolume decimal.Decimal) *TierProgressView {
	if tier == "" {
		tier = constants.TierBronze
	}
	view := &TierProgressView{
		UserID:          userID,
		CurrentTier:     tier,
		ActiveReferrals: activeReferrals,
		TeamVolume:      models.RoundMoney(teamVolume).StringFixed(models.MoneyScale),
	}
	if next, ok := tier.Next(); ok {
		if req, ok := incentive.RequirementFor(next); ok {
			view.NextTier = next
			view.RequiredReferrals = req.RequiredReferrals
			view.RequiredTeamVolume = req.RequiredTeamVolume.StringFixed(models.MoneyScale)
		}
	}
	return view
}
