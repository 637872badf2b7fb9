package handlers

import (
	"testing"

	"github.com/luminahost/backend/internal/config"
	"github.com/luminahost/backend/internal/models"
)

func TestUpdateProfileChangesUsernameAndEmail(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "oldname", "old@example.com", 0)

	app := newTestApp(user)
	h := NewAuthHandler(&config.Config{}, nil)
	app.Put("/auth/profile", h.UpdateProfile)

	resp := doJSON(t, app, "PUT", "/auth/profile", `{"username":"newname","email":"New@Example.com"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Username != "newname" {
		t.Errorf("username = %q, want newname", fresh.Username)
	}
	if fresh.Email != "new@example.com" {
		t.Errorf("email = %q, want new@example.com", fresh.Email)
	}
}

func TestUpdateProfileRejectsTakenUsername(t *testing.T) {
	db := openHandlerDB(t)
	createHandlerUser(t, db, "taken", "taken@example.com", 0)
	user := createHandlerUser(t, db, "me", "me@example.com", 0)

	app := newTestApp(user)
	h := NewAuthHandler(&config.Config{}, nil)
	app.Put("/auth/profile", h.UpdateProfile)

	resp := doJSON(t, app, "PUT", "/auth/profile", `{"username":"taken"}`)
	if resp.StatusCode != 409 {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Username != "me" {
		t.Errorf("username changed to %q", fresh.Username)
	}
}

func TestUpdateProfileRejectsBadEmail(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "me", "me@example.com", 0)

	app := newTestApp(user)
	h := NewAuthHandler(&config.Config{}, nil)
	app.Put("/auth/profile", h.UpdateProfile)

	resp := doJSON(t, app, "PUT", "/auth/profile", `{"email":"not-an-address"}`)
	if resp.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
