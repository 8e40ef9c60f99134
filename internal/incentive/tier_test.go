package incentive

import (
	"testing"

	"github.com/yieldtree/incentive-engine/internal/constants"
)

func TestNextTierOnlyAdvancesOneStep(t *testing.T) {
	// 满足 Elite 门槛的青铜会员也只能晋升到 Silver
	req, ok := NextTier(TierProgress{CurrentTier: constants.TierBronze, ActiveReferrals: 50, TeamVolume: dec("500000")})
	if !ok || req.Tier != constants.TierSilver {
		t.Fatalf("expected silver, got %+v ok=%v", req, ok)
	}
}

func TestNextTierRequiresBothThresholds(t *testing.T) {
	if _, ok := NextTier(TierProgress{CurrentTier: constants.TierSilver, ActiveReferrals: 5, TeamVolume: dec("24999.99")}); ok {
		t.Fatalf("expected gold blocked by team volume")
	}
	if _, ok := NextTier(TierProgress{CurrentTier: constants.TierSilver, ActiveReferrals: 4, TeamVolume: dec("25000")}); ok {
		t.Fatalf("expected gold blocked by referrals")
	}
	req, ok := NextTier(TierProgress{CurrentTier: constants.TierSilver, ActiveReferrals: 5, TeamVolume: dec("25000")})
	if !ok || req.Tier != constants.TierGold || !req.AchievementBonus.Equal(dec("250")) {
		t.Fatalf("expected gold with bonus 250, got %+v ok=%v", req, ok)
	}
}

func TestNextTierFromEliteIsNoop(t *testing.T) {
	if _, ok := NextTier(TierProgress{CurrentTier: constants.TierElite, ActiveReferrals: 100, TeamVolume: dec("1000000")}); ok {
		t.Fatalf("expected no advancement from elite")
	}
}

func TestLeadershipLevelFor(t *testing.T) {
	if LeadershipLevelFor(constants.TierBronze) != "" {
		t.Fatalf("bronze should have no leadership level")
	}
	if LeadershipLevelFor(constants.TierSilver) != LeadershipDeveloping {
		t.Fatalf("silver should map to developing")
	}
	if LeadershipLevelFor(constants.TierElite) != LeadershipElite {
		t.Fatalf("elite should map to elite")
	}
}

func TestCheckLoyaltyQualification(t *testing.T) {
	ok := LoyaltyProfile{HasStarterPackage: true, TrainingCompleted: true, ActiveDirectReferrals: 3, DistinctActivityTypes: 2}
	if missing := CheckLoyaltyQualification(ok, DefaultLoyaltyRequirement); len(missing) != 0 {
		t.Fatalf("expected qualified, missing %v", missing)
	}
	missing := CheckLoyaltyQualification(LoyaltyProfile{ActiveDirectReferrals: 2, DistinctActivityTypes: 1}, DefaultLoyaltyRequirement)
	if len(missing) != 4 {
		t.Fatalf("expected four missing requirements, got %v", missing)
	}
}
