package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProfitShareService 季度利润分红
type ProfitShareService struct {
	profitShareRepo repository.ProfitShareRepository
	memberRepo      repository.MemberRepository
	walletService   *WalletService
	settingService  *SettingService
	clock           clock.Clock
}

// QuarterInput 创建季度分红的输入
type QuarterInput struct {
	Year               int
	Quarter            int
	TotalProjectProfit decimal.Decimal
	Method             constants.DistributionMethod
	Notes              string
	CreatedBy          string
}

// NewProfitShareService 创建季度分红服务
func NewProfitShareService(
	profitShareRepo repository.ProfitShareRepository,
	memberRepo repository.MemberRepository,
	walletService *WalletService,
	settingService *SettingService,
	clk clock.Clock,
) *ProfitShareService {
	if clk == nil {
		clk = clock.System{}
	}
	return &ProfitShareService{
		profitShareRepo: profitShareRepo,
		memberRepo:      memberRepo,
		walletService:   walletService,
		settingService:  settingService,
		clock:           clk,
	}
}

// CreateQuarterlyProfitShare 计算季度分红：筛选有效会员、拆分会员分红池、逐人分配并落库
// 批次与明细在一个事务内写入，完成后状态为 calculated
func (s *ProfitShareService) CreateQuarterlyProfitShare(ctx context.Context, input QuarterInput) (*models.QuarterlyProfitShare, error) {
	if input.Quarter < 1 || input.Quarter > 4 {
		return nil, ErrInvalidQuarter
	}
	profit := models.RoundMoney(input.TotalProjectProfit)
	if !profit.IsPositive() {
		return nil, ErrInvalidProfitAmount
	}
	method := input.Method
	if method == "" {
		method = constants.DistributionMethodBPBased
	}
	if !method.Valid() {
		return nil, ErrInvalidDistributionMethod
	}
	setting, err := s.settingService.GetIncentiveSetting()
	if err != nil {
		return nil, err
	}
	_, quarterEnd, err := incentive.QuarterBounds(input.Year, input.Quarter, s.clock.Now().Location())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuarter, err)
	}

	existing, err := s.profitShareRepo.GetByYearQuarter(input.Year, input.Quarter)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrQuarterExists
	}

	loginSince := quarterEnd.AddDate(0, 0, -setting.LoginWindowDays)
	eligible, err := s.memberRepo.ListProfitShareEligible(loginSince, quarterEnd)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleMembers
	}

	memberShare, companyRetained := incentive.SplitMemberShare(profit, setting.MemberSharePercentDecimal())
	candidates := make([]incentive.ShareCandidate, 0, len(eligible))
	for _, member := range eligible {
		candidates = append(candidates, incentive.ShareCandidate{
			UserID:            member.ID,
			ProfessionalLevel: member.ProfessionalLevel,
			BusinessPoints:    member.BusinessPoints.Decimal,
		})
	}
	distribution, err := incentive.DistributeProfit(memberShare, candidates, method, setting.Multipliers())
	if err != nil {
		if errors.Is(err, incentive.ErrEmptyWeightPool) && method == constants.DistributionMethodLevelBased {
			return nil, fmt.Errorf("%w: level multipliers sum to zero", ErrIncentiveConfigInvalid)
		}
		return nil, err
	}

	now := s.clock.Now()
	share := &models.QuarterlyProfitShare{
		Year:               input.Year,
		Quarter:            input.Quarter,
		TotalProjectProfit: models.NewMoneyFromDecimal(profit),
		MemberShareAmount:  models.NewMoneyFromDecimal(memberShare),
		CompanyRetained:    models.NewMoneyFromDecimal(companyRetained.Add(distribution.Residual)),
		RoundingResidual:   models.NewMoneyFromDecimal(distribution.Residual),
		TotalActiveMembers: len(eligible),
		DistributionMethod: method,
		Status:             constants.ProfitShareStatusDraft,
		Notes:              strings.TrimSpace(input.Notes),
		CreatedBy:          strings.TrimSpace(input.CreatedBy),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if method == constants.DistributionMethodBPBased {
		pool := models.NewMoneyFromDecimal(distribution.TotalBPPool)
		share.TotalBPPool = &pool
	}

	err = s.profitShareRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.profitShareRepo.WithTx(tx)
		dup, err := repo.GetByYearQuarter(input.Year, input.Quarter)
		if err != nil {
			return err
		}
		if dup != nil {
			return ErrQuarterExists
		}
		if err := repo.Create(share); err != nil {
			return err
		}

		rows := make([]models.MemberProfitShare, 0, len(distribution.Shares))
		for _, item := range distribution.Shares {
			rows = append(rows, models.MemberProfitShare{
				QuarterlyProfitShareID: share.ID,
				UserID:                 item.UserID,
				ProfessionalLevel:      item.ProfessionalLevel,
				LevelMultiplier:        models.NewMoneyFromDecimal(item.LevelMultiplier),
				MemberBP:               models.NewMoneyFromDecimal(item.MemberBP),
				ShareAmount:            models.NewMoneyFromDecimal(item.ShareAmount),
				Status:                 constants.MemberShareStatusPending,
				CreatedAt:              now,
				UpdatedAt:              now,
			})
		}
		if err := repo.CreateMemberShares(rows); err != nil {
			return err
		}

		if !share.Status.CanTransitionTo(constants.ProfitShareStatusCalculated) {
			return ErrProfitShareStatusConflict
		}
		share.Status = constants.ProfitShareStatusCalculated
		return repo.Update(share)
	})
	if err != nil {
		return nil, err
	}

	logger.Component("profit_share", "year", input.Year, "quarter", input.Quarter).Infow("profit_share_calculated",
		"profit_share_id", share.ID,
		"method", method,
		"members", share.TotalActiveMembers,
		"member_share", share.MemberShareAmount.String(),
		"residual", share.RoundingResidual.String(),
	)
	return share, nil
}

// ApproveQuarterlyProfitShare calculated -> approved
func (s *ProfitShareService) ApproveQuarterlyProfitShare(ctx context.Context, id uint, approvedBy string) (*models.QuarterlyProfitShare, error) {
	var share *models.QuarterlyProfitShare
	err := s.profitShareRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.profitShareRepo.WithTx(tx)
		row, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrProfitShareNotFound
		}
		if !row.Status.CanTransitionTo(constants.ProfitShareStatusApproved) {
			return fmt.Errorf("%w: %s -> %s", ErrProfitShareStatusConflict, row.Status, constants.ProfitShareStatusApproved)
		}
		now := s.clock.Now()
		row.Status = constants.ProfitShareStatusApproved
		row.ApprovedBy = strings.TrimSpace(approvedBy)
		row.ApprovedAt = &now
		row.UpdatedAt = now
		if err := repo.Update(row); err != nil {
			return err
		}
		share = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Component("profit_share").Infow("profit_share_approved", "profit_share_id", id, "approved_by", share.ApprovedBy)
	return share, nil
}

// DistributeQuarterlyProfitShare approved -> distributed
// 逐个会员入账 USD 钱包并标记明细已发放，最后标记批次已发放，不可逆
func (s *ProfitShareService) DistributeQuarterlyProfitShare(ctx context.Context, id uint) (*models.QuarterlyProfitShare, error) {
	var share *models.QuarterlyProfitShare
	credited := decimal.Zero
	paidCount := 0
	err := s.profitShareRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.profitShareRepo.WithTx(tx)
		row, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrProfitShareNotFound
		}
		if !row.Status.CanTransitionTo(constants.ProfitShareStatusDistributed) {
			return fmt.Errorf("%w: %s -> %s", ErrProfitShareStatusConflict, row.Status, constants.ProfitShareStatusDistributed)
		}

		members, err := repo.ListMemberSharesForUpdate(row.ID, string(constants.MemberShareStatusPending))
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for i := range members {
			item := &members[i]
			amount := models.RoundMoney(item.ShareAmount.Decimal)
			if amount.IsPositive() {
				_, err := s.walletService.CreditInTx(tx, WalletCreditInput{
					UserID:    item.UserID,
					Asset:     constants.WalletAssetUSD,
					Amount:    amount,
					TxnType:   constants.WalletTxnTypeProfitShare,
					Reference: buildProfitShareReference(item.ID),
					Remark:    fmt.Sprintf("%dQ%d 季度分红", row.Year, row.Quarter),
				})
				if err != nil {
					return err
				}
				credited = credited.Add(amount)
			}
			item.Status = constants.MemberShareStatusPaid
			item.PaidAt = &now
			item.UpdatedAt = now
			if err := repo.UpdateMemberShare(item); err != nil {
				return err
			}
			paidCount++
		}

		row.Status = constants.ProfitShareStatusDistributed
		row.DistributedAt = &now
		row.UpdatedAt = now
		if err := repo.Update(row); err != nil {
			return err
		}
		share = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Component("profit_share").Infow("profit_share_distributed",
		"profit_share_id", id,
		"members", paidCount,
		"credited", credited.StringFixed(models.MoneyScale),
	)
	return share, nil
}

// GetQuarterlyProfitShare 获取批次
func (s *ProfitShareService) GetQuarterlyProfitShare(id uint) (*models.QuarterlyProfitShare, error) {
	share, err := s.profitShareRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrProfitShareNotFound
	}
	return share, nil
}

// ListQuarterlyProfitShares 分页查询批次
func (s *ProfitShareService) ListQuarterlyProfitShares(filter repository.ProfitShareListFilter) ([]models.QuarterlyProfitShare, int64, error) {
	return s.profitShareRepo.List(filter)
}

// ListMemberShares 分页查询批次下的会员明细
func (s *ProfitShareService) ListMemberShares(shareID uint, filter repository.MemberShareListFilter) ([]models.MemberProfitShare, int64, error) {
	if _, err := s.GetQuarterlyProfitShare(shareID); err != nil {
		return nil, 0, err
	}
	return s.profitShareRepo.ListMemberShares(shareID, filter)
}
