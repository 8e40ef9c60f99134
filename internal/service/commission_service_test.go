package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestProcessPurchaseFiveLevelChain(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_five_levels")
	chain := env.createChain(t, 5)
	buyer := env.createMember(t, uintPtr(chain[4].ID))

	result, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo:  "P-1000",
		UserID:      buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		PackageType: constants.PackageTypeStarter,
	})
	if err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("first delivery should not be duplicate")
	}
	if len(result.Commissions) != 5 {
		t.Fatalf("expected 5 commissions, got %d", len(result.Commissions))
	}

	expected := []string{"120.00", "60.00", "40.00", "20.00", "10.00"}
	total := decimal.Zero
	for i, commission := range result.Commissions {
		level := i + 1
		if commission.Level != level {
			t.Fatalf("commission %d has level %d", i, commission.Level)
		}
		if commission.EarnerID != chain[5-level].ID {
			t.Fatalf("level %d earner mismatch: got %d want %d", level, commission.EarnerID, chain[5-level].ID)
		}
		if commission.Amount.String() != expected[i] {
			t.Fatalf("level %d amount: got %s want %s", level, commission.Amount.String(), expected[i])
		}
		if commission.Type != constants.CommissionTypeReferral || commission.Status != constants.CommissionStatusPending {
			t.Fatalf("unexpected type/status %s/%s", commission.Type, commission.Status)
		}
		total = total.Add(commission.Amount.Decimal)
	}
	if !total.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("full chain should pay exactly 25%%, got %s", total)
	}

	for _, ancestor := range chain {
		member := env.reloadMember(t, ancestor.ID)
		if member.TeamVolume.String() != "1000.00" || member.MonthlyTeamVolume.String() != "1000.00" {
			t.Fatalf("ancestor %d team volume %s monthly %s", ancestor.ID, member.TeamVolume.String(), member.MonthlyTeamVolume.String())
		}
	}
	if got := env.reloadMember(t, buyer.ID).TeamVolume.String(); got != "0.00" {
		t.Fatalf("buyer team volume should stay 0, got %s", got)
	}
}

func TestProcessPurchaseDuplicateDelivery(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_duplicate")
	chain := env.createChain(t, 2)
	buyer := env.createMember(t, uintPtr(chain[1].ID))
	input := PurchaseInput{PurchaseNo: "P-DUP", UserID: buyer.ID, Amount: decimal.NewFromInt(500), PackageType: "growth"}

	first, err := env.commission.ProcessPurchase(context.Background(), input)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	second, err := env.commission.ProcessPurchase(context.Background(), input)
	if err != nil {
		t.Fatalf("second delivery failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("second delivery should be flagged duplicate")
	}
	if len(second.Commissions) != len(first.Commissions) {
		t.Fatalf("duplicate should return original commissions, got %d want %d", len(second.Commissions), len(first.Commissions))
	}

	var count int64
	if err := env.db.Model(&models.Commission{}).Count(&count).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 commissions after duplicate, got %d", count)
	}
	if got := env.reloadMember(t, chain[1].ID).TeamVolume.String(); got != "500.00" {
		t.Fatalf("team volume counted twice: %s", got)
	}
}

func TestProcessPurchasePartialChain(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_partial")
	chain := env.createChain(t, 2)
	buyer := env.createMember(t, uintPtr(chain[1].ID))

	result, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo:  "P-PARTIAL",
		UserID:      buyer.ID,
		Amount:      mustDecimal(t, "333.33"),
		PackageType: "starter",
	})
	if err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	if len(result.Commissions) != 2 {
		t.Fatalf("expected 2 commissions, got %d", len(result.Commissions))
	}
	// 333.33 * 12% = 39.9996, 333.33 * 6% = 19.9998
	if result.Commissions[0].Amount.String() != "40.00" || result.Commissions[1].Amount.String() != "20.00" {
		t.Fatalf("unexpected amounts %s %s", result.Commissions[0].Amount.String(), result.Commissions[1].Amount.String())
	}
}

func TestProcessPurchaseWithoutReferrer(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_root")
	buyer := env.createMember(t, nil)

	result, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo:  "P-ROOT",
		UserID:      buyer.ID,
		Amount:      decimal.NewFromInt(100),
		PackageType: "starter",
	})
	if err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	if len(result.Commissions) != 0 || result.Purchase == nil {
		t.Fatalf("root buyer should record purchase without commissions, got %d", len(result.Commissions))
	}
}

func TestProcessPurchaseValidation(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_validation")
	buyer := env.createMember(t, nil)

	cases := []struct {
		name  string
		input PurchaseInput
		want  error
	}{
		{"missing purchase no", PurchaseInput{UserID: buyer.ID, Amount: decimal.NewFromInt(1), PackageType: "starter"}, ErrInvalidPurchase},
		{"zero amount", PurchaseInput{PurchaseNo: "P-0", UserID: buyer.ID, Amount: decimal.Zero, PackageType: "starter"}, ErrInvalidPurchase},
		{"negative amount", PurchaseInput{PurchaseNo: "P-N", UserID: buyer.ID, Amount: decimal.NewFromInt(-5), PackageType: "starter"}, ErrInvalidPurchase},
		{"unknown member", PurchaseInput{PurchaseNo: "P-U", UserID: buyer.ID + 100, Amount: decimal.NewFromInt(5), PackageType: "starter"}, ErrMemberNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.commission.ProcessPurchase(context.Background(), tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var count int64
	env.db.Model(&models.Purchase{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected purchases must not be stored, got %d", count)
	}
}

// failingCommissionRepository 在指定层级写佣金时失败，用于验证事务整体回滚
type failingCommissionRepository struct {
	repository.CommissionRepository
	failLevel int
}

func (r *failingCommissionRepository) WithTx(tx *gorm.DB) repository.CommissionRepository {
	return &failingCommissionRepository{CommissionRepository: r.CommissionRepository.WithTx(tx), failLevel: r.failLevel}
}

func (r *failingCommissionRepository) CreateIfAbsent(commission *models.Commission) (bool, error) {
	if r.failLevel > 0 && commission.Level == r.failLevel {
		return false, errors.New("commission insert failed")
	}
	return r.CommissionRepository.CreateIfAbsent(commission)
}

func TestProcessPurchaseRollsBackOnCommissionFailure(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_rollback")
	chain := env.createChain(t, 4)
	buyer := env.createMember(t, uintPtr(chain[3].ID))

	repo := &failingCommissionRepository{CommissionRepository: env.commissionRepo, failLevel: 3}
	svc := NewCommissionService(repo, env.memberRepo, nil, 5, env.clock)
	input := PurchaseInput{
		PurchaseNo:  "P-ROLLBACK",
		UserID:      buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		PackageType: constants.PackageTypeStarter,
	}
	if _, err := svc.ProcessPurchase(context.Background(), input); err == nil {
		t.Fatalf("expected failure at level 3")
	}

	var purchases, commissions int64
	env.db.Model(&models.Purchase{}).Count(&purchases)
	env.db.Model(&models.Commission{}).Count(&commissions)
	if purchases != 0 || commissions != 0 {
		t.Fatalf("failed delivery must leave no rows, purchases=%d commissions=%d", purchases, commissions)
	}
	for _, ancestor := range chain {
		if got := env.reloadMember(t, ancestor.ID); !got.TeamVolume.IsZero() || !got.MonthlyTeamVolume.IsZero() {
			t.Fatalf("ancestor %d volume must be unchanged, got %s/%s", ancestor.ID, got.TeamVolume.String(), got.MonthlyTeamVolume.String())
		}
	}

	repo.failLevel = 0
	result, err := svc.ProcessPurchase(context.Background(), input)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if result.Duplicate || len(result.Commissions) != 4 {
		t.Fatalf("redelivery must be processed in full, got duplicate=%v commissions=%d", result.Duplicate, len(result.Commissions))
	}
	for _, ancestor := range chain {
		if got := env.reloadMember(t, ancestor.ID); got.TeamVolume.String() != "1000.00" {
			t.Fatalf("ancestor %d volume must be counted once, got %s", ancestor.ID, got.TeamVolume.String())
		}
	}
}

func TestProcessPurchaseRejectsUnknownUplineMember(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_unknown_earner")
	buyer := env.createMember(t, nil)
	lookup := incentive.ReferrerLookupFunc(func(ctx context.Context, userID uint) (uint, error) {
		if userID == buyer.ID {
			return 999, nil
		}
		return 0, nil
	})
	svc := NewCommissionService(env.commissionRepo, env.memberRepo, lookup, 5, env.clock)

	_, err := svc.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo:  "P-GHOST",
		UserID:      buyer.ID,
		Amount:      decimal.NewFromInt(1000),
		PackageType: constants.PackageTypeStarter,
	})
	if !errors.Is(err, ErrUplineMemberMissing) {
		t.Fatalf("expected missing upline member, got %v", err)
	}
	var purchases, commissions int64
	env.db.Model(&models.Purchase{}).Count(&purchases)
	env.db.Model(&models.Commission{}).Where("earner_id = ?", 999).Count(&commissions)
	if purchases != 0 || commissions != 0 {
		t.Fatalf("no rows may be written for a missing earner, purchases=%d commissions=%d", purchases, commissions)
	}
}

func TestProcessPurchaseNotifiesListener(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_listener")
	chain := env.createChain(t, 3)
	buyer := env.createMember(t, uintPtr(chain[2].ID))

	var notified []uint
	env.commission.SetTeamVolumeListener(TeamVolumeListenerFunc(func(ctx context.Context, userIDs []uint) {
		notified = append(notified, userIDs...)
	}))
	if _, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo: "P-L", UserID: buyer.ID, Amount: decimal.NewFromInt(10), PackageType: "starter",
	}); err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	if len(notified) != 3 || notified[0] != chain[2].ID || notified[2] != chain[0].ID {
		t.Fatalf("unexpected listener ids %v", notified)
	}
}

func TestCommissionStatusTransitions(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_status")
	chain := env.createChain(t, 1)
	buyer := env.createMember(t, uintPtr(chain[0].ID))
	result, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo: "P-S", UserID: buyer.ID, Amount: decimal.NewFromInt(100), PackageType: "starter",
	})
	if err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	id := result.Commissions[0].ID

	paid, err := env.commission.MarkCommissionPaid(context.Background(), id)
	if err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	if paid.Status != constants.CommissionStatusPaid || paid.PaidAt == nil {
		t.Fatalf("unexpected paid commission %+v", paid)
	}
	if _, err := env.commission.CancelCommission(context.Background(), id, "late refund"); !errors.Is(err, ErrCommissionStatusConflict) {
		t.Fatalf("paid commission must not be cancelled, got %v", err)
	}
	if _, err := env.commission.MarkCommissionPaid(context.Background(), id+99); !errors.Is(err, ErrCommissionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	items, total, err := env.commission.ListCommissions(repository.CommissionListFilter{
		EarnerID: chain[0].ID,
		Status:   string(constants.CommissionStatusPaid),
		Page:     1,
		PageSize: 10,
	})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("unexpected list total=%d len=%d err=%v", total, len(items), err)
	}
}

func TestCancelCommissionKeepsReason(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_cancel")
	chain := env.createChain(t, 1)
	buyer := env.createMember(t, uintPtr(chain[0].ID))
	result, err := env.commission.ProcessPurchase(context.Background(), PurchaseInput{
		PurchaseNo: "P-C", UserID: buyer.ID, Amount: decimal.NewFromInt(100), PackageType: "starter",
	})
	if err != nil {
		t.Fatalf("process purchase failed: %v", err)
	}
	cancelled, err := env.commission.CancelCommission(context.Background(), result.Commissions[0].ID, " refund ")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.CommissionStatusCancelled || cancelled.Remark != "refund" || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled commission %+v", cancelled)
	}
	if _, err := env.commission.MarkCommissionPaid(context.Background(), cancelled.ID); !errors.Is(err, ErrCommissionStatusConflict) {
		t.Fatalf("cancelled commission must stay cancelled, got %v", err)
	}
}

func TestResolveUplineUnknownMember(t *testing.T) {
	env := setupIncentiveServiceTest(t, "commission_upline")
	if _, err := env.commission.ResolveUpline(context.Background(), 42); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}
	chain := env.createChain(t, 3)
	levels, err := env.commission.ResolveUpline(context.Background(), chain[2].ID)
	if err != nil {
		t.Fatalf("resolve upline failed: %v", err)
	}
	if len(levels) != 5 || levels[0].EarnerID != chain[1].ID || levels[1].EarnerID != chain[0].ID || !levels[2].Empty() {
		t.Fatalf("unexpected upline %+v", levels)
	}
}
