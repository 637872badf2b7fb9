package handlers

import (
	"encoding/json"
	"testing"

	"github.com/luminahost/backend/internal/models"
)

func TestListOwnReturnsOnlyCallersReviews(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "author", "author@example.com", 0)
	other := createHandlerUser(t, db, "other", "other@example.com", 0)

	db.Create(&models.Review{UserID: user.ID, Rating: 5, Text: "great uptime"})
	db.Create(&models.Review{UserID: other.ID, Rating: 2, Text: "meh"})

	app := newTestApp(user)
	h := NewReviewHandler()
	app.Get("/reviews/mine", h.ListOwn)

	resp := doJSON(t, app, "GET", "/reviews/mine", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Data []models.Review `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("got %d reviews, want 1", len(body.Data))
	}
	if body.Data[0].UserID != user.ID {
		t.Errorf("review belongs to user %d", body.Data[0].UserID)
	}
}

func TestAdminListReturnsAllReviewsWithAuthors(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "author", "author@example.com", 0)
	other := createHandlerUser(t, db, "other", "other@example.com", 0)

	db.Create(&models.Review{UserID: user.ID, Rating: 5, Text: "great uptime"})
	db.Create(&models.Review{UserID: other.ID, Rating: 2, Text: "meh"})

	app := newTestApp(user)
	h := NewReviewHandler()
	app.Get("/admin/reviews", h.AdminList)

	resp := doJSON(t, app, "GET", "/admin/reviews", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Data []models.Review `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("got %d reviews, want 2", len(body.Data))
	}
	for _, r := range body.Data {
		if r.User == nil || r.User.Username == "" {
			t.Errorf("review %d missing author", r.ID)
		}
	}
}
