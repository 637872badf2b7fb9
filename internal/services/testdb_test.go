package services

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/luminahost/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own in-memory database
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, balance float64) *models.User {
	t.Helper()
	user := &models.User{
		Username: "tester",
		Email:    "tester@example.com",
		Password: "x",
		Balance:  balance,
		Role:     models.RoleUser,
		Verified: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestServer(t *testing.T, db *gorm.DB, userID uint, price float64, daysLeft int) *models.Server {
	t.Helper()
	panelID := 501
	server := &models.Server{
		UserID:        userID,
		Name:          "survival",
		PlanName:      "Standard",
		RAM:           4096,
		Cores:         2,
		Disk:          20480,
		Price:         price,
		Status:        models.ServerStatusActive,
		ExpiresAt:     time.Now().Add(time.Duration(daysLeft) * 24 * time.Hour),
		PanelServerID: &panelID,
	}
	if err := db.Create(server).Error; err != nil {
		t.Fatalf("create test server: %v", err)
	}
	return server
}
