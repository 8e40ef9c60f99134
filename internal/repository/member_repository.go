package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MemberRepository 会员数据访问接口
type MemberRepository interface {
	WithTx(tx *gorm.DB) MemberRepository

	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	Create(member *models.Member) error
	Update(member *models.Member) error
	List(filter MemberListFilter) ([]models.Member, int64, error)
	ReferrerOf(ctx context.Context, userID uint) (uint, error)
	CountActiveDirectReferrals(userID uint) (int64, error)
	CountActiveDirectReferralsWithPurchases(userID uint) (int64, error)
	IncrementTeamVolume(userID uint, amount decimal.Decimal) error
	CompareAndSetTier(userID uint, from, to constants.Tier) (bool, error)
	DeductMonthlyTeamVolume(userID uint, amount decimal.Decimal) error
	ListIDsWithMonthlyVolume(afterID uint, limit int) ([]uint, error)
	ListIDs(afterID uint, limit int) ([]uint, error)
	ListProfitShareEligible(loginSince, loginBefore time.Time) ([]models.Member, error)
}

// GormMemberRepository GORM 会员仓储实现
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// GetByID 按ID获取会员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID加锁获取会员
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := lockForUpdate(r.db).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// Create 创建会员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// Update 更新会员
func (r *GormMemberRepository) Update(member *models.Member) error {
	return r.db.Save(member).Error
}

// List 分页查询会员
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{})
	if filter.ReferrerID != 0 {
		query = query.Where("referrer_id = ?", filter.ReferrerID)
	}
	if filter.SubscriptionStatus != "" {
		query = query.Where("subscription_status = ?", filter.SubscriptionStatus)
	}
	if filter.Tier != "" {
		query = query.Where("current_tier = ?", filter.Tier)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, count := buildKeywordCondition(r.db, []string{"display_name"})
		query = query.Where(condition, repeatLikeArgs("%"+keyword+"%", count)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var members []models.Member
	if err := query.Order("id asc").Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ReferrerOf 返回直接推荐人ID，没有推荐人时返回 0
func (r *GormMemberRepository) ReferrerOf(ctx context.Context, userID uint) (uint, error) {
	if userID == 0 {
		return 0, nil
	}
	var row struct {
		ReferrerID *uint
	}
	err := r.db.WithContext(ctx).Model(&models.Member{}).
		Select("referrer_id").
		Where("id = ?", userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if row.ReferrerID == nil {
		return 0, nil
	}
	return *row.ReferrerID, nil
}

// CountActiveDirectReferrals 统计订阅有效的直推人数
func (r *GormMemberRepository) CountActiveDirectReferrals(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Member{}).
		Where("referrer_id = ? AND subscription_status = ?", userID, constants.SubscriptionStatusActive).
		Count(&count).Error
	return count, err
}

// CountActiveDirectReferralsWithPurchases 统计订阅有效且有完成购买的直推人数
func (r *GormMemberRepository) CountActiveDirectReferralsWithPurchases(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Member{}).
		Where("referrer_id = ? AND subscription_status = ?", userID, constants.SubscriptionStatusActive).
		Where("EXISTS (SELECT 1 FROM purchases p WHERE p.user_id = members.id AND p.status = ?)", constants.PurchaseStatusCompleted).
		Count(&count).Error
	return count, err
}

// IncrementTeamVolume 原子累加累计与当月团队业绩，会员不存在时返回 gorm.ErrRecordNotFound
func (r *GormMemberRepository) IncrementTeamVolume(userID uint, amount decimal.Decimal) error {
	value := models.NewMoneyFromDecimal(amount)
	result := r.db.Model(&models.Member{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"team_volume":         gorm.Expr("team_volume + ?", value),
			"monthly_team_volume": gorm.Expr("monthly_team_volume + ?", value),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CompareAndSetTier 仅当当前等级为 from 时更新为 to
func (r *GormMemberRepository) CompareAndSetTier(userID uint, from, to constants.Tier) (bool, error) {
	result := r.db.Model(&models.Member{}).
		Where("id = ? AND current_tier = ?", userID, from).
		Update("current_tier", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeductMonthlyTeamVolume 扣减已结算的当月团队业绩，最低扣到 0；结算后新增的业绩保留到下次结算
func (r *GormMemberRepository) DeductMonthlyTeamVolume(userID uint, amount decimal.Decimal) error {
	value := models.NewMoneyFromDecimal(amount)
	result := r.db.Model(&models.Member{}).
		Where("id = ?", userID).
		Update("monthly_team_volume", gorm.Expr(
			"CASE WHEN monthly_team_volume > ? THEN monthly_team_volume - ? ELSE 0 END", value, value,
		))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListIDsWithMonthlyVolume 按ID游标分批获取当月有业绩的会员
func (r *GormMemberRepository) ListIDsWithMonthlyVolume(afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Member{}).
		Where("id > ? AND monthly_team_volume > 0", afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListIDs 按ID游标分批获取会员ID
func (r *GormMemberRepository) ListIDs(afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Member{}).
		Where("id > ?", afterID).
		Order("id asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListProfitShareEligible 订阅有效且（窗口内登录过或从未登录）的会员
func (r *GormMemberRepository) ListProfitShareEligible(loginSince, loginBefore time.Time) ([]models.Member, error) {
	var members []models.Member
	err := r.db.Model(&models.Member{}).
		Where("subscription_status = ?", constants.SubscriptionStatusActive).
		Where("(last_login_at IS NULL OR (last_login_at >= ? AND last_login_at < ?))", loginSince, loginBefore).
		Order("id asc").
		Find(&members).Error
	return members, err
}
