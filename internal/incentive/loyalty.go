package incentive

// LoyaltyProfile 忠诚周期资格判定所需的数据
type LoyaltyProfile struct {
	HasStarterPackage     bool
	TrainingCompleted     bool
	ActiveDirectReferrals int
	DistinctActivityTypes int
}

// LoyaltyRequirement 忠诚周期资格门槛
type LoyaltyRequirement struct {
	MinActiveReferrals int
	MinActivityTypes   int
}

// DefaultLoyaltyRequirement 默认门槛：3 个有效直推，2 种活动类型
var DefaultLoyaltyRequirement = LoyaltyRequirement{MinActiveReferrals: 3, MinActivityTypes: 2}

// LoyaltyIneligibility 资格不满足的原因
type LoyaltyIneligibility string

// 不满足原因
const (
	LoyaltyMissingStarterPackage LoyaltyIneligibility = "starter_package_required"
	LoyaltyMissingTraining       LoyaltyIneligibility = "training_required"
	LoyaltyInsufficientReferrals LoyaltyIneligibility = "insufficient_active_referrals"
	LoyaltyInsufficientActivity  LoyaltyIneligibility = "insufficient_activity_types"
)

// CheckLoyaltyQualification 返回所有未满足项，空切片表示具备资格
func CheckLoyaltyQualification(profile LoyaltyProfile, req LoyaltyRequirement) []LoyaltyIneligibility {
	var missing []LoyaltyIneligibility
	if !profile.HasStarterPackage {
		missing = append(missing, LoyaltyMissingStarterPackage)
	}
	if !profile.TrainingCompleted {
		missing = append(missing, LoyaltyMissingTraining)
	}
	if profile.ActiveDirectReferrals < req.MinActiveReferrals {
		missing = append(missing, LoyaltyInsufficientReferrals)
	}
	if profile.DistinctActivityTypes < req.MinActivityTypes {
		missing = append(missing, LoyaltyInsufficientActivity)
	}
	return missing
}
