package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/luminahost/backend/internal/database"
	"github.com/luminahost/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openHandlerDB swaps the package-global connection for an in-memory
// database for the duration of one test
func openHandlerDB(t *testing.T) *gorm.DB {
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

	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

func createHandlerUser(t *testing.T, db *gorm.DB, username, email string, balance float64) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    email,
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

// newTestApp builds a Fiber app whose requests run as the given user
func newTestApp(user *models.User) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		c.Locals("userID", user.ID)
		c.Locals("role", user.Role)
		return c.Next()
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
