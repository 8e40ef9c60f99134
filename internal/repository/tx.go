package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runTransaction 在带上下文的连接上执行事务
func runTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return db.WithContext(ctx).Transaction(fn)
}

// createIfAbsent 以 ON CONFLICT DO NOTHING 写入，唯一键已存在时返回 false
func createIfAbsent(db *gorm.DB, value interface{}) (bool, error) {
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(value)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
