package service

import (
	"errors"
	"testing"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestWalletServiceCreditInTx(t *testing.T) {
	env := setupIncentiveServiceTest(t, "wallet_credit")
	member := env.createMember(t, nil)

	var result *WalletCreditResult
	err := env.db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = env.wallet.CreditInTx(tx, WalletCreditInput{
			UserID:    member.ID,
			Asset:     "usd",
			Amount:    mustDecimal(t, "120.005"),
			TxnType:   constants.WalletTxnTypeProfitShare,
			Reference: "profit_share:1",
		})
		return err
	})
	if err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if result.Duplicate || result.Account.Asset != constants.WalletAssetUSD {
		t.Fatalf("unexpected credit result %+v", result)
	}
	// 120.005 银行家舍入为 120.00
	if result.Transaction.Amount.String() != "120.00" || result.Transaction.BalanceAfter.String() != "120.00" {
		t.Fatalf("unexpected transaction %+v", result.Transaction)
	}
	if result.Transaction.Remark != "激励入账" || result.Transaction.Direction != constants.WalletTxnDirectionIn {
		t.Fatalf("unexpected remark/direction %+v", result.Transaction)
	}
}

func TestWalletServiceCreditDuplicateReference(t *testing.T) {
	env := setupIncentiveServiceTest(t, "wallet_duplicate")
	member := env.createMember(t, nil)
	input := WalletCreditInput{
		UserID:    member.ID,
		Asset:     constants.WalletAssetLGC,
		Amount:    decimal.NewFromInt(10),
		TxnType:   constants.WalletTxnTypeLoyaltyLGC,
		Reference: buildLoyaltyReference(member.ID, "2025-04-15", constants.ActivityTypeDailyLogin),
	}

	for i := 0; i < 2; i++ {
		err := env.db.Transaction(func(tx *gorm.DB) error {
			result, err := env.wallet.CreditInTx(tx, input)
			if err != nil {
				return err
			}
			if (i == 1) != result.Duplicate {
				t.Fatalf("attempt %d duplicate=%v", i, result.Duplicate)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("credit attempt %d failed: %v", i, err)
		}
	}
	if got := env.walletBalance(t, member.ID, constants.WalletAssetLGC); !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("duplicate reference credited twice: %s", got)
	}

	accounts, err := env.wallet.GetAccounts(member.ID)
	if err != nil || len(accounts) != 1 {
		t.Fatalf("expected one account, got %d err=%v", len(accounts), err)
	}
	txns, total, err := env.wallet.ListTransactions(repository.WalletTransactionListFilter{UserID: member.ID, Page: 1, PageSize: 10})
	if err != nil || total != 1 || len(txns) != 1 {
		t.Fatalf("expected one transaction, total=%d err=%v", total, err)
	}
}

func TestWalletServiceCreditValidation(t *testing.T) {
	env := setupIncentiveServiceTest(t, "wallet_validation")
	member := env.createMember(t, nil)

	if _, err := env.wallet.CreditInTx(nil, WalletCreditInput{UserID: member.ID}); err == nil {
		t.Fatalf("credit without transaction must fail")
	}
	cases := []struct {
		name  string
		input WalletCreditInput
		want  error
	}{
		{"zero amount", WalletCreditInput{UserID: member.ID, Amount: decimal.Zero, Reference: "r-1"}, ErrWalletInvalidAmount},
		{"rounds to zero", WalletCreditInput{UserID: member.ID, Amount: mustDecimal(t, "0.004"), Reference: "r-2"}, ErrWalletInvalidAmount},
		{"missing reference", WalletCreditInput{UserID: member.ID, Amount: decimal.NewFromInt(1)}, ErrWalletReferenceRequired},
		{"missing user", WalletCreditInput{Amount: decimal.NewFromInt(1), Reference: "r-3"}, ErrWalletAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := env.db.Transaction(func(tx *gorm.DB) error {
				_, err := env.wallet.CreditInTx(tx, tc.input)
				return err
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
