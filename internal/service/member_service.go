package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/cache"
	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/logger"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
)

// ReferralSyncFunc 会员推荐关系写入后的同步回调
type ReferralSyncFunc func(ctx context.Context, userID, referrerID uint) error

// MemberService 会员快照维护
type MemberService struct {
	memberRepo   repository.MemberRepository
	clock        clock.Clock
	referralSync ReferralSyncFunc
}

// CreateMemberInput 创建会员参数
type CreateMemberInput struct {
	DisplayName        string
	ReferrerID         uint
	SubscriptionStatus string
	ProfessionalLevel  int
	BusinessPoints     decimal.Decimal
	TrainingCompleted  bool
}

// UpdateMemberInput 更新会员参数，nil 字段保持不变
type UpdateMemberInput struct {
	DisplayName        *string
	SubscriptionStatus *string
	ProfessionalLevel  *int
	BusinessPoints     *decimal.Decimal
	TrainingCompleted  *bool
	TouchLogin         bool
}

// NewMemberService 创建会员服务
func NewMemberService(memberRepo repository.MemberRepository, clk clock.Clock, referralSync ReferralSyncFunc) *MemberService {
	if clk == nil {
		clk = clock.System{}
	}
	return &MemberService{memberRepo: memberRepo, clock: clk, referralSync: referralSync}
}

// GetMember 获取会员
func (s *MemberService) GetMember(id uint) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// ListMembers 分页查询会员
func (s *MemberService) ListMembers(filter repository.MemberListFilter) ([]models.Member, int64, error) {
	return s.memberRepo.List(filter)
}

// CreateMember 创建会员，推荐人必须已存在
func (s *MemberService) CreateMember(ctx context.Context, input CreateMemberInput) (*models.Member, error) {
	status, err := parseSubscriptionStatus(input.SubscriptionStatus)
	if err != nil {
		return nil, err
	}
	level := input.ProfessionalLevel
	if level == 0 {
		level = 1
	}
	if level < 1 {
		return nil, fmt.Errorf("%w: professional level must be positive", ErrInvalidMemberInput)
	}
	if input.BusinessPoints.IsNegative() {
		return nil, fmt.Errorf("%w: business points must not be negative", ErrInvalidMemberInput)
	}

	member := &models.Member{
		DisplayName:        strings.TrimSpace(input.DisplayName),
		SubscriptionStatus: status,
		ProfessionalLevel:  level,
		BusinessPoints:     models.NewMoneyFromDecimal(input.BusinessPoints),
		CurrentTier:        constants.TierBronze,
	}
	if input.ReferrerID != 0 {
		referrer, err := s.memberRepo.GetByID(input.ReferrerID)
		if err != nil {
			return nil, err
		}
		if referrer == nil {
			return nil, ErrReferrerNotFound
		}
		referrerID := referrer.ID
		member.ReferrerID = &referrerID
	}
	if input.TrainingCompleted {
		now := s.clock.Now()
		member.TrainingCompletedAt = &now
	}
	if err := s.memberRepo.Create(member); err != nil {
		return nil, err
	}

	if member.ReferrerID != nil && s.referralSync != nil {
		if err := s.referralSync(ctx, member.ID, *member.ReferrerID); err != nil {
			logger.Warnw("member_referral_sync_failed", "user_id", member.ID, "referrer_id", *member.ReferrerID, "error", err)
		}
	}
	return member, nil
}

// UpdateMember 更新会员订阅、积分与培训状态，推荐人不可修改
// 订阅状态变化会影响推荐人的有效直推数，同时清除推荐人的等级快照
func (s *MemberService) UpdateMember(ctx context.Context, id uint, input UpdateMemberInput) (*models.Member, error) {
	member, err := s.GetMember(id)
	if err != nil {
		return nil, err
	}
	previousStatus := member.SubscriptionStatus
	if input.DisplayName != nil {
		member.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.SubscriptionStatus != nil {
		status, err := parseSubscriptionStatus(*input.SubscriptionStatus)
		if err != nil {
			return nil, err
		}
		member.SubscriptionStatus = status
	}
	if input.ProfessionalLevel != nil {
		if *input.ProfessionalLevel < 1 {
			return nil, fmt.Errorf("%w: professional level must be positive", ErrInvalidMemberInput)
		}
		member.ProfessionalLevel = *input.ProfessionalLevel
	}
	if input.BusinessPoints != nil {
		if input.BusinessPoints.IsNegative() {
			return nil, fmt.Errorf("%w: business points must not be negative", ErrInvalidMemberInput)
		}
		member.BusinessPoints = models.NewMoneyFromDecimal(*input.BusinessPoints)
	}
	now := s.clock.Now()
	if input.TrainingCompleted != nil {
		if *input.TrainingCompleted {
			if member.TrainingCompletedAt == nil {
				member.TrainingCompletedAt = &now
			}
		} else {
			member.TrainingCompletedAt = nil
		}
	}
	if input.TouchLogin {
		member.LastLoginAt = &now
	}
	if err := s.memberRepo.Update(member); err != nil {
		return nil, err
	}
	if member.SubscriptionStatus != previousStatus && member.ReferrerID != nil {
		if err := cache.InvalidateTierSnapshot(ctx, *member.ReferrerID); err != nil {
			logger.Component("member").Warnw("tier_snapshot_invalidate_failed", "user_id", *member.ReferrerID, "error", err)
		}
	}
	return member, nil
}

// TouchLogin 记录会员登录时间
func (s *MemberService) TouchLogin(id uint, at time.Time) error {
	member, err := s.GetMember(id)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = s.clock.Now()
	}
	member.LastLoginAt = &at
	return s.memberRepo.Update(member)
}

func parseSubscriptionStatus(raw string) (constants.SubscriptionStatus, error) {
	switch status := constants.SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case "":
		return constants.SubscriptionStatusActive, nil
	case constants.SubscriptionStatusActive, constants.SubscriptionStatusInactive, constants.SubscriptionStatusExpired:
		return status, nil
	default:
		return "", ErrInvalidSubscriptionStatus
	}
}
