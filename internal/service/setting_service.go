package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yieldtree/incentive-engine/internal/constants"
	"github.com/yieldtree/incentive-engine/internal/models"
	"github.com/yieldtree/incentive-engine/internal/repository"

	"github.com/shopspring/decimal"
)

// SettingService 设置业务服务
type SettingService struct {
	repo              repository.SettingRepository
	incentiveDefaults IncentiveSetting
}

// NewSettingService 创建设置服务，defaults 为配置文件中的激励参数
func NewSettingService(repo repository.SettingRepository, defaults IncentiveSetting) *SettingService {
	return &SettingService{
		repo:              repo,
		incentiveDefaults: NormalizeIncentiveSetting(defaults),
	}
}

// GetByKey 获取设置
func (s *SettingService) GetByKey(key string) (models.JSON, error) {
	setting, err := s.repo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return setting.ValueJSON, nil
}

// Update 设置值，修改人记为 system
func (s *SettingService) Update(key string, value map[string]interface{}) (models.JSON, error) {
	return s.UpdateAs(key, value, "system")
}

// UpdateAs 以指定修改人写入设置值
func (s *SettingService) UpdateAs(key string, value map[string]interface{}, operator string) (models.JSON, error) {
	normalized := s.normalizeSettingValueByKey(key, value)

	setting, err := s.repo.Upsert(key, normalized, operator)
	if err != nil {
		return nil, err
	}
	return setting.ValueJSON, nil
}

// GetIncentiveSetting 获取激励参数（优先 settings，空时回退配置默认值）
func (s *SettingService) GetIncentiveSetting() (IncentiveSetting, error) {
	if s == nil {
		return IncentiveDefaultSetting(), nil
	}
	fallback := s.incentiveDefaults

	value, err := s.GetByKey(constants.SettingKeyIncentiveConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return incentiveSettingFromJSON(value, fallback), nil
}

// UpdateIncentiveSetting 更新激励参数
func (s *SettingService) UpdateIncentiveSetting(setting IncentiveSetting) (IncentiveSetting, error) {
	return s.UpdateIncentiveSettingAs(setting, "system")
}

// UpdateIncentiveSettingAs 更新激励参数并记录修改人
func (s *SettingService) UpdateIncentiveSettingAs(setting IncentiveSetting, operator string) (IncentiveSetting, error) {
	normalized := NormalizeIncentiveSetting(setting)
	if err := ValidateIncentiveSetting(normalized); err != nil {
		return s.incentiveDefaults, err
	}
	if _, err := s.UpdateAs(constants.SettingKeyIncentiveConfig, IncentiveSettingToMap(normalized), operator); err != nil {
		return s.incentiveDefaults, err
	}
	return normalized, nil
}

// normalizeSettingValueByKey 按设置键执行归一化，避免非法值入库
func (s *SettingService) normalizeSettingValueByKey(key string, value map[string]interface{}) models.JSON {
	switch key {
	case constants.SettingKeyIncentiveConfig:
		setting := incentiveSettingFromJSON(models.JSON(value), s.incentiveDefaults)
		return models.JSON(IncentiveSettingToMap(setting))
	default:
		return models.JSON(value)
	}
}

func parseSettingInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := v.Float64(); err == nil {
			return int(f), nil
		}
		return 0, fmt.Errorf("invalid json number")
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		return strconv.Atoi(trimmed)
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}

// parseSettingDecimal 解析存储或请求中的定点数，接受字符串与数字
func parseSettingDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return decimal.Zero, fmt.Errorf("empty string")
		}
		return decimal.NewFromString(trimmed)
	default:
		return decimal.Zero, fmt.Errorf("unsupported value type")
	}
}

func normalizeSettingStringList(raw interface{}) []string {
	switch value := raw.(type) {
	case []string:
		return append([]string(nil), value...)
	case []interface{}:
		items := make([]string, 0, len(value))
		for _, item := range value {
			if text, ok := item.(string); ok {
				items = append(items, strings.TrimSpace(text))
			}
		}
		return items
	default:
		return nil
	}
}
