package models

import "time"

// Setting 运行期可调参数（键值对存储），激励参数存于 incentive_config
type Setting struct {
	Key       string    `gorm:"primarykey;type:varchar(64)" json:"key"`        // 配置键
	ValueJSON JSON      `gorm:"type:json" json:"value"`                        // 配置值
	UpdatedBy string    `gorm:"type:varchar(64);default:''" json:"updated_by"` // 最后修改人
	UpdatedAt time.Time `json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}
