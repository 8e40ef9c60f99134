package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

// TeamVolumeListener 团队业绩变化后的回调，在事务提交后调用
type TeamVolumeListener interface {
	TeamVolumeChanged(ctx context.Context, userIDs []uint)
}

// TeamVolumeListenerFunc 函数形式的 TeamVolumeListener
type TeamVolumeListenerFunc func(ctx context.Context, userIDs []uint)

// TeamVolumeChanged 实现 TeamVolumeListener
func (f TeamVolumeListenerFunc) TeamVolumeChanged(ctx context.Context, userIDs []uint) {
	f(ctx, userIDs)
}

// CommissionService 推荐佣金引擎
type CommissionService struct {
	commissionRepo repository.CommissionRepository
	memberRepo     repository.MemberRepository
	referrers      incentive.ReferrerLookup
	maxDepth       int
	clock          clock.Clock
	listener       TeamVolumeListener
}

// PurchaseInput 购买事件
type PurchaseInput struct {
	PurchaseNo  string
	UserID      uint
	Amount      decimal.Decimal
	PackageType string
	OccurredAt  time.Time
}

// PurchaseResult 购买处理结果，Duplicate 表示购买单已处理过
type PurchaseResult struct {
	Purchase    *models.Purchase    `json:"purchase"`
	Commissions []models.Commission `json:"commissions"`
	Duplicate   bool                `json:"duplicate"`
}

// NewCommissionService 创建佣金服务
// referrers 为空时在事务内使用会员表查询推荐关系
func NewCommissionService(
	commissionRepo repository.CommissionRepository,
	memberRepo repository.MemberRepository,
	referrers incentive.ReferrerLookup,
	maxDepth int,
	clk clock.Clock,
) *CommissionService {
	if maxDepth <= 0 || maxDepth > incentive.MaxUplineDepth {
		maxDepth = incentive.MaxUplineDepth
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &CommissionService{
		commissionRepo: commissionRepo,
		memberRepo:     memberRepo,
		referrers:      referrers,
		maxDepth:       maxDepth,
		clock:          clk,
	}
}

// SetTeamVolumeListener 设置团队业绩变化回调
func (s *CommissionService) SetTeamVolumeListener(listener TeamVolumeListener) {
	s.listener = listener
}

// ResolveUpline 查询会员的上级链路
func (s *CommissionService) ResolveUpline(ctx context.Context, userID uint) ([]incentive.UplineLevel, error) {
	member, err := s.memberRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return incentive.ResolveUpline(ctx, s.lookup(s.memberRepo), userID, s.maxDepth)
}

// ProcessPurchase 处理一笔购买：写入购买记录、逐级生成推荐佣金并累加团队业绩
// 整个过程在一个事务内完成，purchase_no 重复时返回已有佣金且不做任何写入
func (s *CommissionService) ProcessPurchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	purchaseNo := strings.TrimSpace(input.PurchaseNo)
	packageType := strings.ToLower(strings.TrimSpace(input.PackageType))
	amount := models.RoundMoney(input.Amount)
	if purchaseNo == "" || input.UserID == 0 || packageType == "" {
		return nil, ErrInvalidPurchase
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidPurchase)
	}

	lockToken, acquired, err := cache.AcquirePurchaseLock(ctx, purchaseNo)
	if err != nil {
		logger.Component("commission").Warnw("commission_purchase_lock_failed", "purchase_no", purchaseNo, "error", err)
	} else if !acquired {
		return nil, ErrPurchaseInProgress
	} else {
		defer func() {
			if err := cache.ReleasePurchaseLock(context.Background(), purchaseNo, lockToken); err != nil {
				logger.Component("commission").Warnw("commission_purchase_unlock_failed", "purchase_no", purchaseNo, "error", err)
			}
		}()
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock.Now()
	}

	result := &PurchaseResult{}
	var earners []uint
	err = s.commissionRepo.Transaction(ctx, func(tx *gorm.DB) error {
		commissionRepo := s.commissionRepo.WithTx(tx)
		memberRepo := s.memberRepo.WithTx(tx)

		member, err := memberRepo.GetByID(input.UserID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		purchase := &models.Purchase{
			PurchaseNo:  purchaseNo,
			UserID:      input.UserID,
			Amount:      models.NewMoneyFromDecimal(amount),
			PackageType: packageType,
			Status:      constants.PurchaseStatusCompleted,
			OccurredAt:  occurredAt,
			CreatedAt:   s.clock.Now(),
		}
		created, err := commissionRepo.CreatePurchaseIfAbsent(purchase)
		if err != nil {
			return err
		}
		if !created {
			existing, err := commissionRepo.GetPurchaseByNo(purchaseNo)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("purchase %s vanished after conflict", purchaseNo)
			}
			rows, err := commissionRepo.ListByPurchase(existing.ID)
			if err != nil {
				return err
			}
			result.Purchase = existing
			result.Commissions = rows
			result.Duplicate = true
			return nil
		}
		result.Purchase = purchase

		upline, err := incentive.ResolveUpline(ctx, s.lookup(memberRepo), input.UserID, s.maxDepth)
		if err != nil {
			return err
		}
		for _, level := range upline {
			if level.Empty() {
				continue
			}
			if err := memberRepo.IncrementTeamVolume(level.EarnerID, amount); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: level %d user %d", ErrUplineMemberMissing, level.Level, level.EarnerID)
				}
				return err
			}
			commission, err := s.createReferralCommission(commissionRepo, purchase, level)
			if err != nil {
				return err
			}
			if commission != nil {
				result.Commissions = append(result.Commissions, *commission)
			}
			earners = append(earners, level.EarnerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.Component("commission", "purchase_no", purchaseNo, "user_id", input.UserID)
	if result.Duplicate {
		log.Infow("commission_purchase_duplicate", "commissions", len(result.Commissions))
		return result, nil
	}
	log.Infow("commission_purchase_processed",
		"amount", amount.StringFixed(models.MoneyScale),
		"commissions", len(result.Commissions),
		"upline", len(earners),
	)
	for _, earnerID := range earners {
		if err := cache.InvalidateTierSnapshot(ctx, earnerID); err != nil {
			log.Warnw("tier_snapshot_invalidate_failed", "earner_id", earnerID, "error", err)
		}
	}
	if s.listener != nil && len(earners) > 0 {
		s.listener.TeamVolumeChanged(ctx, earners)
	}
	return result, nil
}

func (s *CommissionService) createReferralCommission(repo repository.CommissionRepository, purchase *models.Purchase, level incentive.UplineLevel) (*models.Commission, error) {
	rate := incentive.RateForLevel(level.Level)
	base := purchase.Amount.Decimal
	amount := models.RoundMoney(incentive.ApplyPercent(base, rate))
	now := s.clock.Now()
	purchaseID := purchase.ID
	commission := &models.Commission{
		EarnerID:       level.EarnerID,
		SourceID:       purchase.UserID,
		PurchaseID:     &purchaseID,
		Level:          level.Level,
		BaseAmount:     models.NewMoneyFromDecimal(base),
		RatePercent:    models.NewMoneyFromDecimal(rate),
		Amount:         models.NewMoneyFromDecimal(amount),
		Type:           constants.CommissionTypeReferral,
		Status:         constants.CommissionStatusPending,
		IdempotencyKey: referralIdempotencyKey(purchase.PurchaseNo, level.Level),
		EarnedAt:       purchase.OccurredAt,
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

// MarkCommissionPaid pending -> paid
func (s *CommissionService) MarkCommissionPaid(ctx context.Context, id uint) (*models.Commission, error) {
	return s.transition(ctx, id, constants.CommissionStatusPaid, "")
}

// CancelCommission pending -> cancelled
func (s *CommissionService) CancelCommission(ctx context.Context, id uint, reason string) (*models.Commission, error) {
	return s.transition(ctx, id, constants.CommissionStatusCancelled, reason)
}

func (s *CommissionService) transition(ctx context.Context, id uint, next constants.CommissionStatus, reason string) (*models.Commission, error) {
	var updated *models.Commission
	err := s.commissionRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		commission, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if commission == nil {
			return ErrCommissionNotFound
		}
		if !commission.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrCommissionStatusConflict, commission.Status, next)
		}
		now := s.clock.Now()
		commission.Status = next
		commission.UpdatedAt = now
		switch next {
		case constants.CommissionStatusPaid:
			commission.PaidAt = &now
		case constants.CommissionStatusCancelled:
			commission.CancelledAt = &now
			if trimmed := strings.TrimSpace(reason); trimmed != "" {
				commission.Remark = trimmed
			}
		}
		if err := repo.Update(commission); err != nil {
			return err
		}
		updated = commission
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Component("commission").Infow("commission_status_changed", "commission_id", id, "status", next)
	return updated, nil
}

// GetCommission 获取佣金
func (s *CommissionService) GetCommission(id uint) (*models.Commission, error) {
	commission, err := s.commissionRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrCommissionNotFound
	}
	return commission, nil
}

// ListCommissions 分页查询佣金
func (s *CommissionService) ListCommissions(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	return s.commissionRepo.List(filter)
}

func (s *CommissionService) lookup(memberRepo repository.MemberRepository) incentive.ReferrerLookup {
	if s.referrers != nil {
		return s.referrers
	}
	return memberRepo
}

func referralIdempotencyKey(purchaseNo string, level int) string {
	return fmt.Sprintf("purchase:%s:L%d", purchaseNo, level)
}
