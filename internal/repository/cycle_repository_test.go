package repository

import (
	"testing"
	"time"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/shopspring/decimal"
)

func TestCycleRepositoryActivityIdempotency(t *testing.T) {
	db := openRepositoryTestDB(t, "cycle_repo_activity")
	repo := NewCycleRepository(db)
	member := createRepositoryTestMember(t, db, nil)

	cycle := &models.LoyaltyGrowthCycle{
		UserID:    member.ID,
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:    constants.CycleStatusActive,
	}
	if err := repo.Create(cycle); err != nil {
		t.Fatalf("create cycle failed: %v", err)
	}

	activity := func() *models.LgrActivity {
		return &models.LgrActivity{
			UserID:       member.ID,
			ActivityDate: "2025-01-02",
			ActivityType: constants.ActivityTypeLearning,
			LgrCycleID:   cycle.ID,
			LGCEarned:    models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		}
	}
	created, err := repo.CreateActivityIfAbsent(activity())
	if err != nil || !created {
		t.Fatalf("expected first activity created, created=%v err=%v", created, err)
	}
	created, err = repo.CreateActivityIfAbsent(activity())
	if err != nil || created {
		t.Fatalf("expected duplicate activity skipped, created=%v err=%v", created, err)
	}
	count, err := repo.CountActivitiesOnDate(cycle.ID, "2025-01-02")
	if err != nil || count != 1 {
		t.Fatalf("expected 1 activity, got %d err=%v", count, err)
	}

	if err := repo.AddProgress(cycle.ID, 1, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("add progress failed: %v", err)
	}
	reloaded, err := repo.GetByID(cycle.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload cycle failed: %v", err)
	}
	if reloaded.ActiveDays != 1 || !reloaded.TotalEarnedLGC.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected progress: %+v", reloaded)
	}
}

func TestCycleRepositoryOneActiveCyclePerUser(t *testing.T) {
	db := openRepositoryTestDB(t, "cycle_repo_unique")
	repo := NewCycleRepository(db)
	member := createRepositoryTestMember(t, db, nil)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := &models.LoyaltyGrowthCycle{UserID: member.ID, StartDate: start, EndDate: start.AddDate(0, 0, 90), Status: constants.CycleStatusActive}
	if err := repo.Create(first); err != nil {
		t.Fatalf("create first cycle failed: %v", err)
	}
	second := &models.LoyaltyGrowthCycle{UserID: member.ID, StartDate: start, EndDate: start.AddDate(0, 0, 90), Status: constants.CycleStatusActive}
	if err := repo.Create(second); err == nil {
		t.Fatalf("expected second active cycle rejected")
	}

	first.Status = constants.CycleStatusCompleted
	if err := repo.Update(first); err != nil {
		t.Fatalf("complete first cycle failed: %v", err)
	}
	third := &models.LoyaltyGrowthCycle{UserID: member.ID, StartDate: start, EndDate: start.AddDate(0, 0, 90), Status: constants.CycleStatusActive}
	if err := repo.Create(third); err != nil {
		t.Fatalf("expected new active cycle after completion, got %v", err)
	}
}

func TestCycleRepositoryCountDistinctActivityTypes(t *testing.T) {
	db := openRepositoryTestDB(t, "cycle_repo_types")
	repo := NewCycleRepository(db)
	member := createRepositoryTestMember(t, db, nil)

	logs := []models.ActivityLog{
		{UserID: member.ID, ActivityDate: "2025-01-01", ActivityType: constants.ActivityTypeLearning},
		{UserID: member.ID, ActivityDate: "2025-01-02", ActivityType: constants.ActivityTypeLearning},
		{UserID: member.ID, ActivityDate: "2025-01-02", ActivityType: constants.ActivityTypeSocialShare},
	}
	for i := range logs {
		if _, err := repo.LogActivity(&logs[i]); err != nil {
			t.Fatalf("log activity failed: %v", err)
		}
	}
	dup := models.ActivityLog{UserID: member.ID, ActivityDate: "2025-01-01", ActivityType: constants.ActivityTypeLearning}
	created, err := repo.LogActivity(&dup)
	if err != nil || created {
		t.Fatalf("expected duplicate log skipped, created=%v err=%v", created, err)
	}

	count, err := repo.CountDistinctActivityTypes(member.ID, nil)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 distinct types, got %d err=%v", count, err)
	}
	filtered, err := repo.CountDistinctActivityTypes(member.ID, []string{constants.ActivityTypeLearning})
	if err != nil || filtered != 1 {
		t.Fatalf("expected 1 filtered type, got %d err=%v", filtered, err)
	}
}
