package repository

import (
	"errors"

	"github.com/yieldtree/incentive-engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TierRepository 等级资格快照数据访问接口
type TierRepository interface {
	WithTx(tx *gorm.DB) TierRepository

	GetQualification(userID uint, period string) (*models.TierQualification, error)
	UpsertQualification(row *models.TierQualification) error
	ListQualificationsByUser(userID uint, limit int) ([]models.TierQualification, error)
}

// GormTierRepository GORM 实现
type GormTierRepository struct {
	db *gorm.DB
}

// NewTierRepository 创建等级资格仓储
func NewTierRepository(db *gorm.DB) *GormTierRepository {
	return &GormTierRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTierRepository) WithTx(tx *gorm.DB) TierRepository {
	if tx == nil {
		return r
	}
	return &GormTierRepository{db: tx}
}

// GetQualification 获取用户某月的资格快照
func (r *GormTierRepository) GetQualification(userID uint, period string) (*models.TierQualification, error) {
	var row models.TierQualification
	if err := r.db.Where("user_id = ? AND period = ?", userID, period).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpsertQualification 按 (user_id, period) 写入或覆盖快照
func (r *GormTierRepository) UpsertQualification(row *models.TierQualification) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier", "active_referrals", "team_volume", "qualifies", "consecutive_months", "updated_at",
		}),
	}).Create(row).Error
}

// ListQualificationsByUser 按月份倒序获取快照
func (r *GormTierRepository) ListQualificationsByUser(userID uint, limit int) ([]models.TierQualification, error) {
	var rows []models.TierQualification
	query := r.db.Where("user_id = ?", userID).Order("period desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}
