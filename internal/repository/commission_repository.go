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

// CommissionRepository 佣金与购买记录数据访问接口
type CommissionRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	CreatePurchaseIfAbsent(purchase *models.Purchase) (bool, error)
	GetPurchaseByNo(purchaseNo string) (*models.Purchase, error)
	HasCompletedPurchaseOfPackage(userID uint, packageType string) (bool, error)

	CreateIfAbsent(commission *models.Commission) (bool, error)
	GetByID(id uint) (*models.Commission, error)
	GetByIDForUpdate(id uint) (*models.Commission, error)
	GetByIdempotencyKey(key string) (*models.Commission, error)
	ListByPurchase(purchaseID uint) ([]models.Commission, error)
	Update(commission *models.Commission) error
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	SumByEarner(earnerID uint, statuses []string) (decimal.Decimal, error)

	EnsureMonthlySettlement(period string, now time.Time) (*models.MonthlyBonusSettlement, error)
	GetMonthlySettlement(period string) (*models.MonthlyBonusSettlement, error)
	GetMonthlySettlementForUpdate(period string) (*models.MonthlyBonusSettlement, error)
	AddMonthlySettlementGrant(period string, teamVolume, leadership decimal.Decimal) error
	MarkMonthlySettlementRun(period string, pool decimal.Decimal, at time.Time) error
}

// GormCommissionRepository GORM 佣金仓储实现
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return runTransaction(ctx, r.db, fn)
}

// CreatePurchaseIfAbsent 写入购买记录，purchase_no 已存在时返回 false
func (r *GormCommissionRepository) CreatePurchaseIfAbsent(purchase *models.Purchase) (bool, error) {
	return createIfAbsent(r.db, purchase)
}

// GetPurchaseByNo 按外部单号获取购买记录
func (r *GormCommissionRepository) GetPurchaseByNo(purchaseNo string) (*models.Purchase, error) {
	purchaseNo = strings.TrimSpace(purchaseNo)
	if purchaseNo == "" {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.Where("purchase_no = ?", purchaseNo).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// HasCompletedPurchaseOfPackage 用户是否完成过指定套餐的购买
func (r *GormCommissionRepository) HasCompletedPurchaseOfPackage(userID uint, packageType string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Purchase{}).
		Where("user_id = ? AND package_type = ? AND status = ?", userID, packageType, constants.PurchaseStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// CreateIfAbsent 写入佣金，幂等键冲突时返回 false
func (r *GormCommissionRepository) CreateIfAbsent(commission *models.Commission) (bool, error) {
	return createIfAbsent(r.db, commission)
}

// GetByID 按ID获取佣金
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByIDForUpdate 按ID加锁获取佣金
func (r *GormCommissionRepository) GetByIDForUpdate(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := lockForUpdate(r.db).First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByIdempotencyKey 按幂等键获取佣金
func (r *GormCommissionRepository) GetByIdempotencyKey(key string) (*models.Commission, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Where("idempotency_key = ?", key).First(&commission).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// ListByPurchase 获取某次购买产生的佣金，按层级排序
func (r *GormCommissionRepository) ListByPurchase(purchaseID uint) ([]models.Commission, error) {
	var commissions []models.Commission
	if purchaseID == 0 {
		return commissions, nil
	}
	err := r.db.Where("purchase_id = ?", purchaseID).Order("level asc").Find(&commissions).Error
	return commissions, err
}

// Update 更新佣金
func (r *GormCommissionRepository) Update(commission *models.Commission) error {
	return r.db.Save(commission).Error
}

// List 分页查询佣金
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{})
	if filter.EarnerID != 0 {
		query = query.Where("earner_id = ?", filter.EarnerID)
	}
	if filter.SourceID != 0 {
		query = query.Where("source_id = ?", filter.SourceID)
	}
	if filter.PurchaseID != 0 {
		query = query.Where("purchase_id = ?", filter.PurchaseID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Period != "" {
		query = query.Where("period = ?", filter.Period)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var commissions []models.Commission
	if err := query.Order("id desc").Find(&commissions).Error; err != nil {
		return nil, 0, err
	}
	return commissions, total, nil
}

// SumByEarner 汇总获得者指定状态的佣金
func (r *GormCommissionRepository) SumByEarner(earnerID uint, statuses []string) (decimal.Decimal, error) {
	query := r.db.Model(&models.Commission{}).Where("earner_id = ?", earnerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var row struct {
		Total decimal.NullDecimal
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal.Round(2), nil
}

// EnsureMonthlySettlement 获取月份结算记录，不存在时创建
func (r *GormCommissionRepository) EnsureMonthlySettlement(period string, now time.Time) (*models.MonthlyBonusSettlement, error) {
	row := &models.MonthlyBonusSettlement{Period: period, CreatedAt: now, UpdatedAt: now}
	if _, err := createIfAbsent(r.db, row); err != nil {
		return nil, err
	}
	return r.firstMonthlySettlement(r.db, period)
}

// GetMonthlySettlement 获取月份结算记录
func (r *GormCommissionRepository) GetMonthlySettlement(period string) (*models.MonthlyBonusSettlement, error) {
	return r.firstMonthlySettlement(r.db, period)
}

// GetMonthlySettlementForUpdate 加锁读取月份结算记录
func (r *GormCommissionRepository) GetMonthlySettlementForUpdate(period string) (*models.MonthlyBonusSettlement, error) {
	return r.firstMonthlySettlement(lockForUpdate(r.db), period)
}

func (r *GormCommissionRepository) firstMonthlySettlement(db *gorm.DB, period string) (*models.MonthlyBonusSettlement, error) {
	var row models.MonthlyBonusSettlement
	if err := db.Where("period = ?", period).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// AddMonthlySettlementGrant 累加某月已发放金额与结算人数
func (r *GormCommissionRepository) AddMonthlySettlementGrant(period string, teamVolume, leadership decimal.Decimal) error {
	result := r.db.Model(&models.MonthlyBonusSettlement{}).
		Where("period = ?", period).
		Updates(map[string]interface{}{
			"team_volume_granted": gorm.Expr("team_volume_granted + ?", models.NewMoneyFromDecimal(teamVolume)),
			"leadership_granted":  gorm.Expr("leadership_granted + ?", models.NewMoneyFromDecimal(leadership)),
			"members":             gorm.Expr("members + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkMonthlySettlementRun 记录一次结算执行
func (r *GormCommissionRepository) MarkMonthlySettlementRun(period string, pool decimal.Decimal, at time.Time) error {
	return r.db.Model(&models.MonthlyBonusSettlement{}).
		Where("period = ?", period).
		Updates(map[string]interface{}{
			"pool":        models.NewMoneyFromDecimal(pool),
			"runs":        gorm.Expr("runs + 1"),
			"last_run_at": at,
			"updated_at":  at,
		}).Error
}
