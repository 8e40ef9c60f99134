package service

import (
	"errors"

	"github.com/yieldtree/incentive-engine/internal/incentive"
)

// 通用错误
var (
	ErrMemberNotFound         = errors.New("member not found")
	ErrInvalidPeriod          = errors.New("invalid settlement period")
	ErrIncentiveConfigInvalid = errors.New("incentive config invalid")
	ErrSettlementInProgress   = errors.New("monthly settlement is running")
)

// 会员相关错误
var (
	ErrReferrerNotFound          = errors.New("referrer not found")
	ErrInvalidSubscriptionStatus = errors.New("invalid subscription status")
	ErrInvalidMemberInput        = errors.New("invalid member input")
)

// 佣金相关错误
var (
	ErrInvalidPurchase          = errors.New("invalid purchase")
	ErrPurchaseInProgress       = errors.New("purchase is being processed")
	ErrCommissionNotFound       = errors.New("commission not found")
	ErrCommissionStatusConflict = errors.New("commission status conflict")
	ErrUplineMemberMissing      = errors.New("upline member does not exist")

	ErrMonthlySettlementNotFound = errors.New("monthly settlement not found")
)

// 季度分红相关错误
var (
	ErrInvalidQuarter            = errors.New("quarter must be between 1 and 4")
	ErrInvalidProfitAmount       = errors.New("total project profit must be positive")
	ErrInvalidDistributionMethod = errors.New("invalid distribution method")
	ErrQuarterExists             = errors.New("profit share already exists for quarter")
	ErrNoEligibleMembers         = errors.New("no eligible members for profit share")
	ErrZeroBPPool                = incentive.ErrZeroBPPool
	ErrProfitShareNotFound       = errors.New("profit share not found")
	ErrProfitShareStatusConflict = errors.New("profit share status conflict")
)

// 忠诚周期相关错误
var (
	ErrLoyaltyNotQualified = errors.New("member is not qualified for loyalty cycle")
	ErrLoyaltyCycleExists  = errors.New("member already has an active loyalty cycle")
	ErrCycleNotFound       = errors.New("loyalty cycle not found")
	ErrCycleStatusConflict = errors.New("loyalty cycle status conflict")
	ErrInvalidActivityType = errors.New("invalid activity type")
)

// 钱包相关错误
var (
	ErrWalletInvalidAmount     = errors.New("wallet amount must be positive")
	ErrWalletReferenceRequired = errors.New("wallet reference is required")
	ErrWalletAccountNotFound   = errors.New("wallet account not found")
)
