package repository

import (
	"testing"
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/shopspring/decimal"
)

func TestCommissionRepositoryCreateIfAbsent(t *testing.T) {
	db := openRepositoryTestDB(t, "commission_repo_idem")
	repo := NewCommissionRepository(db)
	earner := createRepositoryTestMember(t, db, nil)
	source := createRepositoryTestMember(t, db, &earner.ID)

	build := func() *models.Commission {
		return &models.Commission{
			EarnerID:       earner.ID,
			SourceID:       source.ID,
			Level:          1,
			Amount:         models.NewMoneyFromDecimal(decimal.NewFromInt(120)),
			Type:           constants.CommissionTypeReferral,
			Status:         constants.CommissionStatusPending,
			IdempotencyKey: "purchase:P-1:L1",
			EarnedAt:       time.Now(),
		}
	}
	created, err := repo.CreateIfAbsent(build())
	if err != nil || !created {
		t.Fatalf("expected commission created, created=%v err=%v", created, err)
	}
	created, err = repo.CreateIfAbsent(build())
	if err != nil || created {
		t.Fatalf("expected duplicate skipped, created=%v err=%v", created, err)
	}

	sum, err := repo.SumByEarner(earner.ID, []string{string(constants.CommissionStatusPending)})
	if err != nil {
		t.Fatalf("sum failed: %v", err)
	}
	if !sum.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected sum 120, got %s", sum)
	}

	items, total, err := repo.List(CommissionListFilter{EarnerID: earner.ID, Page: 1, PageSize: 10})
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("unexpected list result total=%d len=%d err=%v", total, len(items), err)
	}
}

func TestCommissionRepositoryPurchaseIdempotency(t *testing.T) {
	db := openRepositoryTestDB(t, "commission_repo_purchase")
	repo := NewCommissionRepository(db)
	buyer := createRepositoryTestMember(t, db, nil)

	build := func() *models.Purchase {
		return &models.Purchase{
			PurchaseNo:  "P-IDEM-1",
			UserID:      buyer.ID,
			Amount:      models.NewMoneyFromDecimal(decimal.NewFromInt(1000)),
			PackageType: constants.PackageTypeStarter,
			Status:      constants.PurchaseStatusCompleted,
			OccurredAt:  time.Now(),
		}
	}
	created, err := repo.CreatePurchaseIfAbsent(build())
	if err != nil || !created {
		t.Fatalf("expected purchase created, created=%v err=%v", created, err)
	}
	created, err = repo.CreatePurchaseIfAbsent(build())
	if err != nil || created {
		t.Fatalf("expected duplicate purchase skipped, created=%v err=%v", created, err)
	}
	has, err := repo.HasCompletedPurchaseOfPackage(buyer.ID, constants.PackageTypeStarter)
	if err != nil || !has {
		t.Fatalf("expected starter purchase, has=%v err=%v", has, err)
	}
}
