package services

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luminahost/backend/internal/models"
	"gorm.io/gorm"
)

// labelPrefix ties a payment notification to a storefront account:
// lmx_<userId>_<reference>
const labelPrefix = "lmx_"

var (
	ErrBadSignature = errors.New("invalid notification signature")
	ErrBadLabel     = errors.New("invalid or missing payment label")
	ErrBadAmount    = errors.New("invalid payment amount")
)

// PaymentNotification is the form-encoded callback body from the payment
// provider
type PaymentNotification struct {
	Type        string // notification_type
	OperationID string
	Amount      string
	Currency    string
	Datetime    string
	Sender      string
	Codepro     string
	Label       string
	Sha1Hash    string
}

// Signature computes the expected sha1 over the ordered field list joined
// with the shared secret
func (n PaymentNotification) Signature(secret string) string {
	joined := strings.Join([]string{
		n.Type,
		n.OperationID,
		n.Amount,
		n.Currency,
		n.Datetime,
		n.Sender,
		n.Codepro,
		secret,
		n.Label,
	}, "&")
	sum := sha1.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// Verify checks the provider signature in constant time
func (n PaymentNotification) Verify(secret string) bool {
	expected := n.Signature(secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.Sha1Hash))) == 1
}

// ParsePaymentLabel extracts the user id from an lmx_<userId>_... label
func ParsePaymentLabel(label string) (uint, error) {
	if !strings.HasPrefix(label, labelPrefix) {
		return 0, ErrBadLabel
	}
	parts := strings.Split(label, "_")
	if len(parts) < 2 {
		return 0, ErrBadLabel
	}
	id, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || id == 0 {
		return 0, ErrBadLabel
	}
	return uint(id), nil
}

// PaymentService credits validated top-up notifications, idempotent on the
// external operation id
type PaymentService struct {
	db     *gorm.DB
	ledger *Ledger
	secret string
}

// NewPaymentService creates the top-up processing service
func NewPaymentService(db *gorm.DB, ledger *Ledger, secret string) *PaymentService {
	return &PaymentService{db: db, ledger: ledger, secret: secret}
}

// Process validates and credits one notification. A replayed operation id is
// acknowledged without a second credit.
func (s *PaymentService) Process(n PaymentNotification) error {
	if !n.Verify(s.secret) {
		return ErrBadSignature
	}

	userID, err := ParsePaymentLabel(n.Label)
	if err != nil {
		return err
	}

	amount, err := strconv.ParseFloat(n.Amount, 64)
	if err != nil || amount <= 0 {
		return ErrBadAmount
	}

	seen, err := s.ledger.SeenOperation(n.OperationID)
	if err != nil {
		return err
	}
	if seen {
		// Replay; already credited
		return nil
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return fmt.Errorf("unknown user in payment label: %w", err)
	}

	opID := n.OperationID
	_, err = s.ledger.Apply(DeltaRequest{
		UserID:      user.ID,
		Amount:      amount,
		Type:        models.TransactionTypeTopup,
		Description: fmt.Sprintf("Balance top-up (%s)", n.Sender),
		OperationID: &opID,
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		// Concurrent replay lost the unique-index race; still a success
		return nil
	}
	return err
}
