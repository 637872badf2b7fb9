package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/luminahost/backend/internal/models"
)

const testPaymentSecret = "notification-secret"

func signedNotification(userID uint, amount, opID string) PaymentNotification {
	n := PaymentNotification{
		Type:        "p2p-incoming",
		OperationID: opID,
		Amount:      amount,
		Currency:    "643",
		Datetime:    "2026-03-01T12:00:00Z",
		Sender:      "41001000000000",
		Codepro:     "false",
		Label:       fmt.Sprintf("lmx_%d_web", userID),
	}
	n.Sha1Hash = n.Signature(testPaymentSecret)
	return n
}

func TestNotificationSignature(t *testing.T) {
	n := signedNotification(7, "150.00", "op-1")
	if !n.Verify(testPaymentSecret) {
		t.Fatal("valid signature rejected")
	}

	// Uppercase hex from the provider is still accepted
	n.Sha1Hash = strings.ToUpper(n.Sha1Hash)
	if !n.Verify(testPaymentSecret) {
		t.Fatal("uppercase signature rejected")
	}
}

func TestNotificationSignatureRejectsTampering(t *testing.T) {
	mutations := map[string]func(*PaymentNotification){
		"amount":       func(n *PaymentNotification) { n.Amount = "9999.00" },
		"operation_id": func(n *PaymentNotification) { n.OperationID = "op-other" },
		"label":        func(n *PaymentNotification) { n.Label = "lmx_9_web" },
		"sender":       func(n *PaymentNotification) { n.Sender = "41002" },
		"datetime":     func(n *PaymentNotification) { n.Datetime = "2026-03-02T00:00:00Z" },
		"currency":     func(n *PaymentNotification) { n.Currency = "840" },
		"codepro":      func(n *PaymentNotification) { n.Codepro = "true" },
		"type":         func(n *PaymentNotification) { n.Type = "card-incoming" },
		"hash":         func(n *PaymentNotification) { n.Sha1Hash = strings.Repeat("0", 40) },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			n := signedNotification(7, "150.00", "op-1")
			mutate(&n)
			if n.Verify(testPaymentSecret) {
				t.Errorf("tampered %s accepted", field)
			}
		})
	}
}

func TestParsePaymentLabel(t *testing.T) {
	tests := []struct {
		label   string
		want    uint
		wantErr bool
	}{
		{"lmx_42_web", 42, false},
		{"lmx_1_topup_extra", 1, false},
		{"lmx_42", 42, false},
		{"", 0, true},
		{"other_42", 0, true},
		{"lmx_abc_web", 0, true},
		{"lmx_0_web", 0, true},
		{"lmx_-5_web", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParsePaymentLabel(tt.label)
			if tt.wantErr {
				if !errors.Is(err, ErrBadLabel) {
					t.Errorf("err = %v, want ErrBadLabel", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePaymentLabel: %v", err)
			}
			if got != tt.want {
				t.Errorf("user id = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProcessCreditsTopup(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, 100)
	svc := NewPaymentService(db, NewLedger(db), testPaymentSecret)

	if err := svc.Process(signedNotification(user.ID, "150.00", "op-1001")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Balance != 250 {
		t.Errorf("balance = %v, want 250", fresh.Balance)
	}

	var tx models.Transaction
	if err := db.Where("user_id = ?", user.ID).First(&tx).Error; err != nil {
		t.Fatalf("no ledger row: %v", err)
	}
	if tx.Type != models.TransactionTypeTopup || tx.Amount != 150 {
		t.Errorf("ledger row = %+v", tx)
	}
	if tx.OperationID == nil || *tx.OperationID != "op-1001" {
		t.Errorf("operation id = %v", tx.OperationID)
	}
}

func TestProcessReplayIsNoOp(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, 0)
	svc := NewPaymentService(db, NewLedger(db), testPaymentSecret)

	n := signedNotification(user.ID, "100.00", "op-2002")
	if err := svc.Process(n); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if err := svc.Process(n); err != nil {
		t.Fatalf("replayed Process: %v", err)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Balance != 100 {
		t.Errorf("balance = %v, want single credit of 100", fresh.Balance)
	}
	var count int64
	db.Model(&models.Transaction{}).Count(&count)
	if count != 1 {
		t.Errorf("ledger rows = %d, want 1", count)
	}
}

func TestProcessRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	user := createTestUser(t, db, 0)
	svc := NewPaymentService(db, NewLedger(db), testPaymentSecret)

	bad := signedNotification(user.ID, "100.00", "op-1")
	bad.Sha1Hash = strings.Repeat("f", 40)
	if err := svc.Process(bad); !errors.Is(err, ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}

	n := signedNotification(user.ID, "100.00", "op-1")
	n.Label = "donation"
	n.Sha1Hash = n.Signature(testPaymentSecret)
	if err := svc.Process(n); !errors.Is(err, ErrBadLabel) {
		t.Errorf("err = %v, want ErrBadLabel", err)
	}

	n = signedNotification(user.ID, "-5.00", "op-1")
	if err := svc.Process(n); !errors.Is(err, ErrBadAmount) {
		t.Errorf("err = %v, want ErrBadAmount", err)
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.Balance != 0 {
		t.Errorf("balance changed by rejected notifications: %v", fresh.Balance)
	}
}
