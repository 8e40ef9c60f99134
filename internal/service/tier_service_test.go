package service

import (
	"context"
	"errors"
	"testing"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"
)

func createTierCandidate(t *testing.T, env *incentiveTestEnv, referrals int, teamVolume string) *models.Member {
	t.Helper()
	sponsor := env.createMember(t, nil, func(m *models.Member) {
		m.TeamVolume = models.NewMoney(teamVolume)
	})
	for i := 0; i < referrals; i++ {
		env.createMember(t, uintPtr(sponsor.ID))
	}
	return sponsor
}

func TestAdvanceTierToSilver(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_silver")
	sponsor := createTierCandidate(t, env, 3, "10000")

	advancement, err := env.tier.AdvanceTier(context.Background(), sponsor.ID)
	if err != nil {
		t.Fatalf("advance tier failed: %v", err)
	}
	if advancement == nil || advancement.From != constants.TierBronze || advancement.To != constants.TierSilver {
		t.Fatalf("unexpected advancement %+v", advancement)
	}
	if advancement.Bonus == nil || advancement.Bonus.Amount.String() != "100.00" || advancement.Bonus.Type != constants.CommissionTypeAchievement {
		t.Fatalf("unexpected achievement bonus %+v", advancement.Bonus)
	}
	if advancement.Qualification == nil || advancement.Qualification.ConsecutiveMonths != 1 || advancement.Qualification.Period != "2025-04" {
		t.Fatalf("unexpected qualification %+v", advancement.Qualification)
	}
	if got := env.reloadMember(t, sponsor.ID).CurrentTier; got != constants.TierSilver {
		t.Fatalf("member tier not updated: %s", got)
	}

	again, err := env.tier.AdvanceTier(context.Background(), sponsor.ID)
	if err != nil {
		t.Fatalf("second advance failed: %v", err)
	}
	if again != nil {
		t.Fatalf("gold thresholds are not met, got %+v", again)
	}
}

func TestAdvanceTierBelowThreshold(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_below")
	sponsor := createTierCandidate(t, env, 3, "9999.99")

	advancement, err := env.tier.AdvanceTier(context.Background(), sponsor.ID)
	if err != nil || advancement != nil {
		t.Fatalf("expected no advancement, got %+v err=%v", advancement, err)
	}
	var count int64
	env.db.Model(&models.Commission{}).Count(&count)
	if count != 0 {
		t.Fatalf("no bonus expected, got %d", count)
	}
}

func TestAdvanceTierIgnoresInactiveReferrals(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_inactive")
	sponsor := createTierCandidate(t, env, 2, "50000")
	env.createMember(t, uintPtr(sponsor.ID), func(m *models.Member) {
		m.SubscriptionStatus = constants.SubscriptionStatusExpired
	})

	advancement, err := env.tier.AdvanceTier(context.Background(), sponsor.ID)
	if err != nil || advancement != nil {
		t.Fatalf("inactive referral must not count, got %+v err=%v", advancement, err)
	}
}

func TestEvaluateTierCrossesEveryIntermediateTier(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_evaluate")
	sponsor := createTierCandidate(t, env, 5, "30000")

	advancements, err := env.tier.EvaluateTier(context.Background(), sponsor.ID)
	if err != nil {
		t.Fatalf("evaluate tier failed: %v", err)
	}
	if len(advancements) != 2 {
		t.Fatalf("expected bronze->silver->gold, got %d steps", len(advancements))
	}
	if advancements[0].To != constants.TierSilver || advancements[1].To != constants.TierGold {
		t.Fatalf("unexpected path %s -> %s", advancements[0].To, advancements[1].To)
	}
	if advancements[0].Bonus.Amount.String() != "100.00" || advancements[1].Bonus.Amount.String() != "250.00" {
		t.Fatalf("unexpected bonuses %s %s", advancements[0].Bonus.Amount.String(), advancements[1].Bonus.Amount.String())
	}

	// 重复评估不会重复发放
	again, err := env.tier.EvaluateTier(context.Background(), sponsor.ID)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected no further advancement, got %d err=%v", len(again), err)
	}
	items, total, err := env.commission.ListCommissions(repository.CommissionListFilter{
		EarnerID: sponsor.ID,
		Type:     string(constants.CommissionTypeAchievement),
		Page:     1,
		PageSize: 10,
	})
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 achievement bonuses, total=%d err=%v", total, err)
	}
}

func TestAdvanceTierFromElite(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_elite")
	sponsor := createTierCandidate(t, env, 25, "500000")
	env.setMemberColumns(t, sponsor.ID, map[string]interface{}{"current_tier": constants.TierElite})

	advancement, err := env.tier.AdvanceTier(context.Background(), sponsor.ID)
	if err != nil || advancement != nil {
		t.Fatalf("elite has no next tier, got %+v err=%v", advancement, err)
	}
	if _, err := env.tier.AdvanceTier(context.Background(), sponsor.ID+1000); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("expected member not found, got %v", err)
	}
}

func TestTierNeverDowngrades(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_monotonic")
	sponsor := createTierCandidate(t, env, 3, "10000")
	if _, err := env.tier.EvaluateTier(context.Background(), sponsor.ID); err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if err := env.db.Model(&models.Member{}).
		Where("referrer_id = ?", sponsor.ID).
		Update("subscription_status", constants.SubscriptionStatusExpired).Error; err != nil {
		t.Fatalf("expire referrals failed: %v", err)
	}
	if _, err := env.tier.EvaluateTier(context.Background(), sponsor.ID); err != nil {
		t.Fatalf("re-evaluate failed: %v", err)
	}
	if got := env.reloadMember(t, sponsor.ID).CurrentTier; got != constants.TierSilver {
		t.Fatalf("tier must never go down, got %s", got)
	}
}

func TestRecordMonthlyQualificationConsecutiveMonths(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_monthly")
	sponsor := createTierCandidate(t, env, 3, "12000")
	env.setMemberColumns(t, sponsor.ID, map[string]interface{}{"current_tier": constants.TierSilver})

	march, err := env.tier.RecordMonthlyQualification(context.Background(), sponsor.ID, "2025-03")
	if err != nil {
		t.Fatalf("record march failed: %v", err)
	}
	if !march.Qualifies || march.ConsecutiveMonths != 1 {
		t.Fatalf("unexpected march row %+v", march)
	}
	april, err := env.tier.RecordMonthlyQualification(context.Background(), sponsor.ID, "2025-04")
	if err != nil {
		t.Fatalf("record april failed: %v", err)
	}
	if !april.Qualifies || april.ConsecutiveMonths != 2 {
		t.Fatalf("unexpected april row %+v", april)
	}

	var referral models.Member
	if err := env.db.Where("referrer_id = ?", sponsor.ID).Order("id asc").First(&referral).Error; err != nil {
		t.Fatalf("load referral failed: %v", err)
	}
	env.setMemberColumns(t, referral.ID, map[string]interface{}{"subscription_status": constants.SubscriptionStatusInactive})

	may, err := env.tier.RecordMonthlyQualification(context.Background(), sponsor.ID, "2025-05")
	if err != nil {
		t.Fatalf("record may failed: %v", err)
	}
	if may.Qualifies || may.ConsecutiveMonths != 0 {
		t.Fatalf("unexpected may row %+v", may)
	}
	june, err := env.tier.RecordMonthlyQualification(context.Background(), sponsor.ID, "2025-06")
	if err != nil {
		t.Fatalf("record june failed: %v", err)
	}
	if june.ConsecutiveMonths != 0 {
		t.Fatalf("streak must restart from a failing month, got %d", june.ConsecutiveMonths)
	}

	rows, err := env.tier.ListQualifications(sponsor.ID, 12)
	if err != nil || len(rows) != 4 {
		t.Fatalf("expected 4 monthly rows, got %d err=%v", len(rows), err)
	}
	if _, err := env.tier.RecordMonthlyQualification(context.Background(), sponsor.ID, "2025-13"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestGetTierProgress(t *testing.T) {
	env := setupIncentiveServiceTest(t, "tier_progress")
	sponsor := createTierCandidate(t, env, 1, "2500")

	view, err := env.tier.GetTierProgress(context.Background(), sponsor.ID)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if view.Cached || view.CurrentTier != constants.TierBronze || view.NextTier != constants.TierSilver {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.ActiveReferrals != 1 || view.TeamVolume != "2500.00" || view.RequiredReferrals != 3 || view.RequiredTeamVolume != "10000.00" {
		t.Fatalf("unexpected progress numbers %+v", view)
	}
}
