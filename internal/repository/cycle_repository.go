package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CycleRepository 忠诚成长周期数据访问接口
type CycleRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CycleRepository

	GetByID(id uint) (*models.LoyaltyGrowthCycle, error)
	GetByIDForUpdate(id uint) (*models.LoyaltyGrowthCycle, error)
	GetActiveByUser(userID uint) (*models.LoyaltyGrowthCycle, error)
	GetActiveByUserForUpdate(userID uint) (*models.LoyaltyGrowthCycle, error)
	Create(cycle *models.LoyaltyGrowthCycle) error
	Update(cycle *models.LoyaltyGrowthCycle) error
	AddProgress(cycleID uint, activeDays int, lgc decimal.Decimal) error
	ListExpiredActiveIDs(asOf time.Time, limit int) ([]uint, error)
	List(filter CycleListFilter) ([]models.LoyaltyGrowthCycle, int64, error)

	CreateActivityIfAbsent(activity *models.LgrActivity) (bool, error)
	ActivityExists(userID uint, activityDate, activityType string) (bool, error)
	CountActivitiesOnDate(cycleID uint, activityDate string) (int64, error)
	ListActivities(cycleID uint) ([]models.LgrActivity, error)

	LogActivity(log *models.ActivityLog) (bool, error)
	CountDistinctActivityTypes(userID uint, types []string) (int64, error)
}

// GormCycleRepository GORM 实现
type GormCycleRepository struct {
	db *gorm.DB
}

// NewCycleRepository 创建忠诚周期仓储
func NewCycleRepository(db *gorm.DB) *GormCycleRepository {
	return &GormCycleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCycleRepository) WithTx(tx *gorm.DB) CycleRepository {
	if tx == nil {
		return r
	}
	return &GormCycleRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCycleRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return runTransaction(ctx, r.db, fn)
}

// GetByID 按ID获取周期
func (r *GormCycleRepository) GetByID(id uint) (*models.LoyaltyGrowthCycle, error) {
	return r.first(r.db, "id = ?", id)
}

// GetByIDForUpdate 按ID加锁获取周期
func (r *GormCycleRepository) GetByIDForUpdate(id uint) (*models.LoyaltyGrowthCycle, error) {
	return r.first(lockForUpdate(r.db), "id = ?", id)
}

// GetActiveByUser 获取用户进行中的周期
func (r *GormCycleRepository) GetActiveByUser(userID uint) (*models.LoyaltyGrowthCycle, error) {
	return r.first(r.db, "user_id = ? AND status = ?", userID, constants.CycleStatusActive)
}

// GetActiveByUserForUpdate 加锁获取用户进行中的周期
func (r *GormCycleRepository) GetActiveByUserForUpdate(userID uint) (*models.LoyaltyGrowthCycle, error) {
	return r.first(lockForUpdate(r.db), "user_id = ? AND status = ?", userID, constants.CycleStatusActive)
}

func (r *GormCycleRepository) first(query *gorm.DB, cond string, args ...interface{}) (*models.LoyaltyGrowthCycle, error) {
	var cycle models.LoyaltyGrowthCycle
	if err := query.Where(cond, args...).Order("id desc").First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cycle, nil
}

// Create 创建周期
func (r *GormCycleRepository) Create(cycle *models.LoyaltyGrowthCycle) error {
	return r.db.Create(cycle).Error
}

// Update 更新周期
func (r *GormCycleRepository) Update(cycle *models.LoyaltyGrowthCycle) error {
	return r.db.Save(cycle).Error
}

// AddProgress 原子累加活跃天数与 LGC
func (r *GormCycleRepository) AddProgress(cycleID uint, activeDays int, lgc decimal.Decimal) error {
	return r.db.Model(&models.LoyaltyGrowthCycle{}).
		Where("id = ?", cycleID).
		Updates(map[string]interface{}{
			"active_days":      gorm.Expr("active_days + ?", activeDays),
			"total_earned_lgc": gorm.Expr("total_earned_lgc + ?", models.NewMoneyFromDecimal(lgc)),
		}).Error
}

// ListExpiredActiveIDs 获取已到期但仍为 active 的周期
func (r *GormCycleRepository) ListExpiredActiveIDs(asOf time.Time, limit int) ([]uint, error) {
	var ids []uint
	query := r.db.Model(&models.LoyaltyGrowthCycle{}).
		Where("status = ? AND end_date <= ?", constants.CycleStatusActive, asOf).
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Pluck("id", &ids).Error
	return ids, err
}

// List 分页查询周期
func (r *GormCycleRepository) List(filter CycleListFilter) ([]models.LoyaltyGrowthCycle, int64, error) {
	query := r.db.Model(&models.LoyaltyGrowthCycle{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var cycles []models.LoyaltyGrowthCycle
	if err := query.Order("id desc").Find(&cycles).Error; err != nil {
		return nil, 0, err
	}
	return cycles, total, nil
}

// CreateActivityIfAbsent 写入周期活动，(user_id, activity_date, activity_type) 已存在时返回 false
func (r *GormCycleRepository) CreateActivityIfAbsent(activity *models.LgrActivity) (bool, error) {
	return createIfAbsent(r.db, activity)
}

// ActivityExists 判断当天同类型活动是否已计入
func (r *GormCycleRepository) ActivityExists(userID uint, activityDate, activityType string) (bool, error) {
	var count int64
	err := r.db.Model(&models.LgrActivity{}).
		Where("user_id = ? AND activity_date = ? AND activity_type = ?", userID, activityDate, activityType).
		Count(&count).Error
	return count > 0, err
}

// CountActivitiesOnDate 统计周期某天已计入的活动数
func (r *GormCycleRepository) CountActivitiesOnDate(cycleID uint, activityDate string) (int64, error) {
	var count int64
	err := r.db.Model(&models.LgrActivity{}).
		Where("lgr_cycle_id = ? AND activity_date = ?", cycleID, activityDate).
		Count(&count).Error
	return count, err
}

// ListActivities 获取周期内全部活动
func (r *GormCycleRepository) ListActivities(cycleID uint) ([]models.LgrActivity, error) {
	var rows []models.LgrActivity
	err := r.db.Where("lgr_cycle_id = ?", cycleID).Order("activity_date asc, id asc").Find(&rows).Error
	return rows, err
}

// LogActivity 记录原始活动，重复时返回 false
func (r *GormCycleRepository) LogActivity(log *models.ActivityLog) (bool, error) {
	return createIfAbsent(r.db, log)
}

// CountDistinctActivityTypes 统计用户做过的不同活动类型数
func (r *GormCycleRepository) CountDistinctActivityTypes(userID uint, types []string) (int64, error) {
	query := r.db.Model(&models.ActivityLog{}).Where("user_id = ?", userID)
	if len(types) > 0 {
		query = query.Where("activity_type IN ?", types)
	}
	var count int64
	err := query.Distinct("activity_type").Count(&count).Error
	return count, err
}
