package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/incentive"
	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/shopspring/decimal"
)

const (
	incentiveSharePercentMin     = 0
	incentiveSharePercentMax     = 100
	incentiveCycleDaysMax        = 3650
	incentiveDailyCapMax         = 50
	incentiveLoginWindowDaysMax  = 366
	incentiveActivityTypesMax    = 20
	incentiveActivityTypeMaxRune = 32
	incentiveProfessionalLevels  = 5
)

// IncentiveSetting 激励参数（存储在 settings.incentive_config）
// 比例、金额与系数均为两位小数的定点数，JSON 中以字符串表示
type IncentiveSetting struct {
	MemberSharePercent   models.Money            `json:"member_share_percent"`
	LevelMultipliers     map[string]models.Money `json:"level_multipliers"`
	LoginWindowDays      int                     `json:"login_window_days"`
	LoyaltyCycleDays     int                     `json:"loyalty_cycle_days"`
	LoyaltyDailyLGC      models.Money            `json:"loyalty_daily_lgc"`
	LoyaltyDailyCap      int                     `json:"loyalty_daily_cap"`
	LoyaltyMinReferrals  int                     `json:"loyalty_min_referrals"`
	LoyaltyMinActivities int                     `json:"loyalty_min_activity_types"`
	ActivityTypes        []string                `json:"activity_types"`
	MonthlyBonusPool     models.Money            `json:"monthly_bonus_pool"` // 0 表示不限额
}

// IncentiveDefaultSetting 默认激励参数
func IncentiveDefaultSetting() IncentiveSetting {
	multipliers := make(map[string]models.Money, incentiveProfessionalLevels)
	for level, value := range incentive.DefaultLevelMultipliers() {
		multipliers[strconv.Itoa(level)] = models.NewMoneyFromDecimal(value)
	}
	return NormalizeIncentiveSetting(IncentiveSetting{
		MemberSharePercent:   models.NewMoney("60"),
		LevelMultipliers:     multipliers,
		LoginWindowDays:      30,
		LoyaltyCycleDays:     90,
		LoyaltyDailyLGC:      models.NewMoney("10"),
		LoyaltyDailyCap:      1,
		LoyaltyMinReferrals:  incentive.DefaultLoyaltyRequirement.MinActiveReferrals,
		LoyaltyMinActivities: incentive.DefaultLoyaltyRequirement.MinActivityTypes,
		ActivityTypes: []string{
			constants.ActivityTypeDailyLogin,
			constants.ActivityTypeLearning,
			constants.ActivityTypeSocialShare,
			constants.ActivityTypeCommunityEvent,
			constants.ActivityTypeReferralMeetup,
		},
	})
}

// NormalizeIncentiveSetting 归一化激励参数，越界值截断到合法范围
func NormalizeIncentiveSetting(setting IncentiveSetting) IncentiveSetting {
	setting.MemberSharePercent = clampSettingDecimal(setting.MemberSharePercent, incentiveSharePercentMin, incentiveSharePercentMax)
	setting.LoginWindowDays = clampInt(setting.LoginWindowDays, 1, incentiveLoginWindowDaysMax)
	setting.LoyaltyCycleDays = clampInt(setting.LoyaltyCycleDays, 1, incentiveCycleDaysMax)
	setting.LoyaltyDailyLGC = nonNegativeSettingDecimal(setting.LoyaltyDailyLGC)
	setting.LoyaltyDailyCap = clampInt(setting.LoyaltyDailyCap, 1, incentiveDailyCapMax)
	if setting.LoyaltyMinReferrals < 0 {
		setting.LoyaltyMinReferrals = 0
	}
	if setting.LoyaltyMinActivities < 0 {
		setting.LoyaltyMinActivities = 0
	}
	setting.MonthlyBonusPool = nonNegativeSettingDecimal(setting.MonthlyBonusPool)
	setting.ActivityTypes = normalizeActivityTypes(setting.ActivityTypes)
	setting.LevelMultipliers = normalizeLevelMultipliers(setting.LevelMultipliers)
	return setting
}

// ValidateIncentiveSetting 校验激励参数
func ValidateIncentiveSetting(setting IncentiveSetting) error {
	normalized := NormalizeIncentiveSetting(setting)
	if !normalized.MemberSharePercent.IsPositive() {
		return fmt.Errorf("%w: 会员分红比例必须在 0-100 之间", ErrIncentiveConfigInvalid)
	}
	if len(normalized.ActivityTypes) == 0 {
		return fmt.Errorf("%w: 至少需要一种活动类型", ErrIncentiveConfigInvalid)
	}
	if normalized.LoyaltyMinActivities > len(normalized.ActivityTypes) {
		return fmt.Errorf("%w: 活动类型门槛不能超过活动类型数量", ErrIncentiveConfigInvalid)
	}
	for level := 1; level <= incentiveProfessionalLevels; level++ {
		if !normalized.LevelMultipliers[strconv.Itoa(level)].IsPositive() {
			return fmt.Errorf("%w: 等级 %d 的分红系数必须大于 0", ErrIncentiveConfigInvalid, level)
		}
	}
	return nil
}

// IncentiveSettingToMap 转换为 settings 存储结构
func IncentiveSettingToMap(setting IncentiveSetting) map[string]interface{} {
	normalized := NormalizeIncentiveSetting(setting)
	multipliers := make(map[string]interface{}, len(normalized.LevelMultipliers))
	for key, value := range normalized.LevelMultipliers {
		multipliers[key] = settingDecimalString(value)
	}
	return map[string]interface{}{
		"member_share_percent":       settingDecimalString(normalized.MemberSharePercent),
		"level_multipliers":          multipliers,
		"login_window_days":          normalized.LoginWindowDays,
		"loyalty_cycle_days":         normalized.LoyaltyCycleDays,
		"loyalty_daily_lgc":          settingDecimalString(normalized.LoyaltyDailyLGC),
		"loyalty_daily_cap":          normalized.LoyaltyDailyCap,
		"loyalty_min_referrals":      normalized.LoyaltyMinReferrals,
		"loyalty_min_activity_types": normalized.LoyaltyMinActivities,
		"activity_types":             append([]string(nil), normalized.ActivityTypes...),
		"monthly_bonus_pool":         settingDecimalString(normalized.MonthlyBonusPool),
	}
}

// MemberSharePercentDecimal 会员分红比例
func (s IncentiveSetting) MemberSharePercentDecimal() decimal.Decimal {
	return s.MemberSharePercent.Decimal
}

// DailyLGCDecimal 每日 LGC 奖励
func (s IncentiveSetting) DailyLGCDecimal() decimal.Decimal {
	return s.LoyaltyDailyLGC.Decimal
}

// MonthlyBonusPoolDecimal 月度团队奖金池，0 表示不限额
func (s IncentiveSetting) MonthlyBonusPoolDecimal() decimal.Decimal {
	return s.MonthlyBonusPool.Decimal
}

// Multipliers 专业等级系数
func (s IncentiveSetting) Multipliers() map[int]decimal.Decimal {
	result := make(map[int]decimal.Decimal, len(s.LevelMultipliers))
	for key, value := range s.LevelMultipliers {
		level, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		result[level] = value.Decimal
	}
	return result
}

// LoyaltyRequirement 忠诚周期资格门槛
func (s IncentiveSetting) LoyaltyRequirement() incentive.LoyaltyRequirement {
	return incentive.LoyaltyRequirement{
		MinActiveReferrals: s.LoyaltyMinReferrals,
		MinActivityTypes:   s.LoyaltyMinActivities,
	}
}

// AllowsActivity 活动类型是否计入忠诚周期
func (s IncentiveSetting) AllowsActivity(activityType string) bool {
	activityType = strings.ToLower(strings.TrimSpace(activityType))
	for _, item := range s.ActivityTypes {
		if item == activityType {
			return true
		}
	}
	return false
}

func incentiveSettingFromJSON(raw models.JSON, fallback IncentiveSetting) IncentiveSetting {
	result := fallback

	if value, ok := raw["member_share_percent"]; ok {
		if parsed, err := parseSettingDecimal(value); err == nil {
			result.MemberSharePercent = models.NewMoneyFromDecimal(parsed)
		}
	}
	if value, ok := raw["level_multipliers"]; ok {
		if items, ok := value.(map[string]interface{}); ok {
			multipliers := make(map[string]models.Money, len(items))
			for key, item := range items {
				if parsed, err := parseSettingDecimal(item); err == nil {
					multipliers[key] = models.NewMoneyFromDecimal(parsed)
				}
			}
			result.LevelMultipliers = mergeLevelMultipliers(fallback.LevelMultipliers, multipliers)
		}
	}
	intFields := map[string]*int{
		"login_window_days":          &result.LoginWindowDays,
		"loyalty_cycle_days":         &result.LoyaltyCycleDays,
		"loyalty_daily_cap":          &result.LoyaltyDailyCap,
		"loyalty_min_referrals":      &result.LoyaltyMinReferrals,
		"loyalty_min_activity_types": &result.LoyaltyMinActivities,
	}
	for key, target := range intFields {
		if value, ok := raw[key]; ok {
			if parsed, err := parseSettingInt(value); err == nil {
				*target = parsed
			}
		}
	}
	if value, ok := raw["loyalty_daily_lgc"]; ok {
		if parsed, err := parseSettingDecimal(value); err == nil {
			result.LoyaltyDailyLGC = models.NewMoneyFromDecimal(parsed)
		}
	}
	if value, ok := raw["monthly_bonus_pool"]; ok {
		if parsed, err := parseSettingDecimal(value); err == nil {
			result.MonthlyBonusPool = models.NewMoneyFromDecimal(parsed)
		}
	}
	if value, ok := raw["activity_types"]; ok {
		result.ActivityTypes = normalizeSettingStringList(value)
	}

	return NormalizeIncentiveSetting(result)
}

func normalizeActivityTypes(items []string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, raw := range items {
		value := strings.ToLower(strings.TrimSpace(raw))
		if value == "" || len([]rune(value)) > incentiveActivityTypeMaxRune {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
		if len(result) >= incentiveActivityTypesMax {
			break
		}
	}
	sort.Strings(result)
	return result
}

func normalizeLevelMultipliers(items map[string]models.Money) map[string]models.Money {
	result := make(map[string]models.Money, incentiveProfessionalLevels)
	for key, value := range items {
		level, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || level < 1 || level > incentiveProfessionalLevels {
			continue
		}
		result[strconv.Itoa(level)] = nonNegativeSettingDecimal(value)
	}
	return result
}

func mergeLevelMultipliers(base, override map[string]models.Money) map[string]models.Money {
	result := make(map[string]models.Money, len(base)+len(override))
	for key, value := range base {
		result[key] = value
	}
	for key, value := range override {
		result[key] = value
	}
	return result
}

func clampSettingDecimal(value models.Money, lo, hi int64) models.Money {
	amount := models.RoundMoney(value.Decimal)
	if floor := decimal.NewFromInt(lo); amount.LessThan(floor) {
		amount = floor
	}
	if ceiling := decimal.NewFromInt(hi); amount.GreaterThan(ceiling) {
		amount = ceiling
	}
	return models.NewMoneyFromDecimal(amount)
}

func nonNegativeSettingDecimal(value models.Money) models.Money {
	if value.IsNegative() {
		return models.NewMoneyFromDecimal(decimal.Zero)
	}
	return models.NewMoneyFromDecimal(value.Decimal)
}

func settingDecimalString(value models.Money) string {
	return models.RoundMoney(value.Decimal).StringFixed(models.MoneyScale)
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
