package service

import (
	"fmt"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/clock"
	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletService 钱包入账服务（分红 USD、忠诚周期 LGC）
type WalletService struct {
	walletRepo repository.WalletRepository
	clock      clock.Clock
}

// WalletCreditInput 事务内入账输入
type WalletCreditInput struct {
	UserID    uint
	Asset     string
	Amount    decimal.Decimal
	TxnType   string
	Reference string
	Remark    string
}

// WalletCreditResult 入账结果，Duplicate 表示参考号已入账过
type WalletCreditResult struct {
	Account     *models.WalletAccount
	Transaction *models.WalletTransaction
	Duplicate   bool
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo repository.WalletRepository, clk clock.Clock) *WalletService {
	if clk == nil {
		clk = clock.System{}
	}
	return &WalletService{walletRepo: walletRepo, clock: clk}
}

// GetAccounts 获取用户全部资产账户
func (s *WalletService) GetAccounts(userID uint) ([]models.WalletAccount, error) {
	if userID == 0 {
		return nil, ErrWalletAccountNotFound
	}
	return s.walletRepo.GetAccountsByUserID(userID)
}

// ListTransactions 查询钱包流水
func (s *WalletService) ListTransactions(filter repository.WalletTransactionListFilter) ([]models.WalletTransaction, int64, error) {
	return s.walletRepo.ListTransactions(filter)
}

// CreditInTx 在事务内执行钱包入账并写入唯一参考号流水
// 账户行先加锁再检查参考号，同一参考号重复入账只返回已有流水
func (s *WalletService) CreditInTx(tx *gorm.DB, input WalletCreditInput) (*WalletCreditResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("wallet credit requires transaction")
	}
	if input.UserID == 0 {
		return nil, ErrWalletAccountNotFound
	}
	amount := models.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, ErrWalletInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, ErrWalletReferenceRequired
	}
	asset := normalizeWalletAsset(input.Asset)
	repo := s.walletRepo.WithTx(tx)

	account, err := s.ensureAccountForUpdate(repo, input.UserID, asset)
	if err != nil {
		return nil, err
	}
	exists, err := repo.GetTransactionByReference(reference)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return &WalletCreditResult{Account: account, Transaction: exists, Duplicate: true}, nil
	}

	now := s.clock.Now()
	before := models.RoundMoney(account.Balance.Decimal)
	after := models.RoundMoney(before.Add(amount))
	account.Balance = models.NewMoneyFromDecimal(after)
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, err
	}

	txn := &models.WalletTransaction{
		UserID:        input.UserID,
		Asset:         asset,
		Type:          strings.TrimSpace(input.TxnType),
		Direction:     constants.WalletTxnDirectionIn,
		Amount:        models.NewMoneyFromDecimal(amount),
		BalanceBefore: models.NewMoneyFromDecimal(before),
		BalanceAfter:  models.NewMoneyFromDecimal(after),
		Reference:     reference,
		Remark:        cleanWalletRemark(input.Remark, "激励入账"),
		CreatedAt:     now,
	}
	if err := repo.CreateTransaction(txn); err != nil {
		return nil, err
	}
	return &WalletCreditResult{Account: account, Transaction: txn}, nil
}

func (s *WalletService) ensureAccountForUpdate(repo repository.WalletRepository, userID uint, asset string) (*models.WalletAccount, error) {
	account, err := repo.GetAccountForUpdate(userID, asset)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	now := s.clock.Now()
	if _, err := repo.CreateAccountIfAbsent(&models.WalletAccount{
		UserID:    userID,
		Asset:     asset,
		Balance:   models.NewMoneyFromDecimal(decimal.Zero),
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}
	account, err = repo.GetAccountForUpdate(userID, asset)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrWalletAccountNotFound
	}
	return account, nil
}

func normalizeWalletAsset(asset string) string {
	normalized := strings.ToUpper(strings.TrimSpace(asset))
	if normalized == "" {
		return constants.WalletAssetUSD
	}
	return normalized
}

func cleanWalletRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	return remark
}

func buildProfitShareReference(memberShareID uint) string {
	return fmt.Sprintf("profit_share:%d", memberShareID)
}

func buildLoyaltyReference(userID uint, activityDate, activityType string) string {
	return fmt.Sprintf("lgr:%d:%s:%s", userID, activityDate, activityType)
}
