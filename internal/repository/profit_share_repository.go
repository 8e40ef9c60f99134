package repository

import (
	"context"
	"errors"

	"github.com/yieldtree/incentive-engine/internal/models"

	"gorm.io/gorm"
)

// memberShareBatchSize 会员分红明细批量写入大小
const memberShareBatchSize = 200

// ProfitShareRepository 季度分红数据访问接口
type ProfitShareRepository interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) ProfitShareRepository

	GetByYearQuarter(year, quarter int) (*models.QuarterlyProfitShare, error)
	GetByID(id uint) (*models.QuarterlyProfitShare, error)
	GetByIDForUpdate(id uint) (*models.QuarterlyProfitShare, error)
	Create(share *models.QuarterlyProfitShare) error
	Update(share *models.QuarterlyProfitShare) error
	List(filter ProfitShareListFilter) ([]models.QuarterlyProfitShare, int64, error)

	CreateMemberShares(rows []models.MemberProfitShare) error
	ListMemberShares(shareID uint, filter MemberShareListFilter) ([]models.MemberProfitShare, int64, error)
	ListMemberSharesForUpdate(shareID uint, status string) ([]models.MemberProfitShare, error)
	UpdateMemberShare(row *models.MemberProfitShare) error
}

// GormProfitShareRepository GORM 实现
type GormProfitShareRepository struct {
	db *gorm.DB
}

// NewProfitShareRepository 创建季度分红仓储
func NewProfitShareRepository(db *gorm.DB) *GormProfitShareRepository {
	return &GormProfitShareRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProfitShareRepository) WithTx(tx *gorm.DB) ProfitShareRepository {
	if tx == nil {
		return r
	}
	return &GormProfitShareRepository{db: tx}
}

// Transaction 执行事务
func (r *GormProfitShareRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return runTransaction(ctx, r.db, fn)
}

// GetByYearQuarter 按年份季度获取批次
func (r *GormProfitShareRepository) GetByYearQuarter(year, quarter int) (*models.QuarterlyProfitShare, error) {
	var share models.QuarterlyProfitShare
	if err := r.db.Where("year = ? AND quarter = ?", year, quarter).First(&share).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// GetByID 按ID获取批次
func (r *GormProfitShareRepository) GetByID(id uint) (*models.QuarterlyProfitShare, error) {
	if id == 0 {
		return nil, nil
	}
	var share models.QuarterlyProfitShare
	if err := r.db.First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// GetByIDForUpdate 按ID加锁获取批次
func (r *GormProfitShareRepository) GetByIDForUpdate(id uint) (*models.QuarterlyProfitShare, error) {
	if id == 0 {
		return nil, nil
	}
	var share models.QuarterlyProfitShare
	if err := lockForUpdate(r.db).First(&share, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// Create 创建批次
func (r *GormProfitShareRepository) Create(share *models.QuarterlyProfitShare) error {
	return r.db.Create(share).Error
}

// Update 更新批次
func (r *GormProfitShareRepository) Update(share *models.QuarterlyProfitShare) error {
	return r.db.Save(share).Error
}

// List 分页查询批次
func (r *GormProfitShareRepository) List(filter ProfitShareListFilter) ([]models.QuarterlyProfitShare, int64, error) {
	query := r.db.Model(&models.QuarterlyProfitShare{})
	if filter.Year != 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var shares []models.QuarterlyProfitShare
	if err := query.Order("year desc, quarter desc").Find(&shares).Error; err != nil {
		return nil, 0, err
	}
	return shares, total, nil
}

// CreateMemberShares 批量写入会员分红明细
func (r *GormProfitShareRepository) CreateMemberShares(rows []models.MemberProfitShare) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&rows, memberShareBatchSize).Error
}

// ListMemberShares 分页查询批次下的会员明细
func (r *GormProfitShareRepository) ListMemberShares(shareID uint, filter MemberShareListFilter) ([]models.MemberProfitShare, int64, error) {
	query := r.db.Model(&models.MemberProfitShare{}).Where("quarterly_profit_share_id = ?", shareID)
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

	var rows []models.MemberProfitShare
	if err := query.Order("user_id asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListMemberSharesForUpdate 加锁获取批次下指定状态的明细
func (r *GormProfitShareRepository) ListMemberSharesForUpdate(shareID uint, status string) ([]models.MemberProfitShare, error) {
	var rows []models.MemberProfitShare
	query := lockForUpdate(r.db).
		Where("quarterly_profit_share_id = ?", shareID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("id asc").Find(&rows).Error
	return rows, err
}

// UpdateMemberShare 更新会员明细
func (r *GormProfitShareRepository) UpdateMemberShare(row *models.MemberProfitShare) error {
	return r.db.Save(row).Error
}
