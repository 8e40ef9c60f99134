package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/yieldtree/incentive-engine/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openRepositoryTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateModels(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createRepositoryTestMember(t *testing.T, db *gorm.DB, referrerID *uint) *models.Member {
	t.Helper()
	member := &models.Member{ReferrerID: referrerID, SubscriptionStatus: "active", CurrentTier: "bronze", ProfessionalLevel: 1}
	if err := db.Create(member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return member
}
