package repository

import (
	"errors"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/models"

	"gorm.io/gorm"
)

// WalletRepository 钱包数据访问接口
type WalletRepository interface {
	GetAccount(userID uint, asset string) (*models.WalletAccount, error)
	GetAccountForUpdate(userID uint, asset string) (*models.WalletAccount, error)
	GetAccountsByUserID(userID uint) ([]models.WalletAccount, error)
	CreateAccountIfAbsent(account *models.WalletAccount) (bool, error)
	UpdateAccount(account *models.WalletAccount) error
	CreateTransaction(txn *models.WalletTransaction) error
	GetTransactionByReference(reference string) (*models.WalletTransaction, error)
	ListTransactions(filter WalletTransactionListFilter) ([]models.WalletTransaction, int64, error)
	WithTx(tx *gorm.DB) WalletRepository
}

// GormWalletRepository GORM 钱包仓储实现
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWalletRepository) WithTx(tx *gorm.DB) WalletRepository {
	if tx == nil {
		return r
	}
	return &GormWalletRepository{db: tx}
}

// GetAccount 按用户与资产获取钱包账户
func (r *GormWalletRepository) GetAccount(userID uint, asset string) (*models.WalletAccount, error) {
	return r.getAccount(r.db, userID, asset)
}

// GetAccountForUpdate 按用户与资产加锁获取钱包账户
func (r *GormWalletRepository) GetAccountForUpdate(userID uint, asset string) (*models.WalletAccount, error) {
	return r.getAccount(lockForUpdate(r.db), userID, asset)
}

func (r *GormWalletRepository) getAccount(query *gorm.DB, userID uint, asset string) (*models.WalletAccount, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if userID == 0 || asset == "" {
		return nil, nil
	}
	var account models.WalletAccount
	if err := query.Where("user_id = ? AND asset = ?", userID, asset).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountsByUserID 获取用户全部资产账户
func (r *GormWalletRepository) GetAccountsByUserID(userID uint) ([]models.WalletAccount, error) {
	var accounts []models.WalletAccount
	if userID == 0 {
		return accounts, nil
	}
	if err := r.db.Where("user_id = ?", userID).Order("asset asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateAccountIfAbsent 创建钱包账户，(user_id, asset) 已存在时返回 false
func (r *GormWalletRepository) CreateAccountIfAbsent(account *models.WalletAccount) (bool, error) {
	return createIfAbsent(r.db, account)
}

// UpdateAccount 更新钱包账户
func (r *GormWalletRepository) UpdateAccount(account *models.WalletAccount) error {
	return r.db.Save(account).Error
}

// CreateTransaction 创建钱包流水
func (r *GormWalletRepository) CreateTransaction(txn *models.WalletTransaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByReference 按参考号获取流水
func (r *GormWalletRepository) GetTransactionByReference(reference string) (*models.WalletTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.WalletTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 分页查询钱包流水
func (r *GormWalletRepository) ListTransactions(filter WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	query := r.db.Model(&models.WalletTransaction{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Asset != "" {
		query = query.Where("asset = ?", strings.ToUpper(filter.Asset))
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.WalletTransaction
	if err := query.Order("id desc").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
