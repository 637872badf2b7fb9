package handlers

import (
	"testing"

	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/services"
)

func TestTopupCreditsBalanceThroughLedger(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "payer", "payer@example.com", 100)

	app := newTestApp(user)
	h := NewTransactionHandler(services.NewLedger(db))
	app.Post("/topup", h.Topup)

	resp := doJSON(t, app, "POST", "/topup", `{"amount":25}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Balance != 125 {
		t.Errorf("balance = %v, want 125", fresh.Balance)
	}

	var tx models.Transaction
	if err := db.Where("user_id = ? AND type = ?", user.ID, models.TransactionTypeTopup).First(&tx).Error; err != nil {
		t.Fatalf("no ledger row: %v", err)
	}
	if tx.Amount != 25 || tx.BalanceBefore != 100 || tx.BalanceAfter != 125 {
		t.Errorf("ledger row = %+v", tx)
	}
}

func TestTopupRejectsNonPositiveAmount(t *testing.T) {
	db := openHandlerDB(t)
	user := createHandlerUser(t, db, "payer", "payer@example.com", 100)

	app := newTestApp(user)
	h := NewTransactionHandler(services.NewLedger(db))
	app.Post("/topup", h.Topup)

	for _, body := range []string{`{"amount":0}`, `{"amount":-10}`} {
		resp := doJSON(t, app, "POST", "/topup", body)
		if resp.StatusCode != 400 {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}

	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	if count != 0 {
		t.Errorf("ledger rows written: %d", count)
	}
}
