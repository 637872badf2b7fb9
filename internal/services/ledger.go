package services

import (
	"errors"
	"strings"

	"github.com/luminahost/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientFunds means the debit would push the balance negative
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrVersionConflict means a concurrent operation changed the row first;
	// the caller should retry
	ErrVersionConflict = errors.New("concurrent balance update, please retry")

	// ErrAlreadyProcessed marks an external operation id already in the ledger
	ErrAlreadyProcessed = errors.New("operation already processed")
)

// Ledger applies balance deltas and records every one as an append-only
// Transaction row with balance before/after
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger over the given database handle
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// DeltaRequest describes a single balance mutation
type DeltaRequest struct {
	UserID      uint
	Amount      float64 // positive credit, negative debit
	Type        models.TransactionType
	Description string
	OperationID *string // external payment operation id, nil for internal
	ServerID    *uint
	// AllowNegative lets admin adjustments push the balance below zero
	AllowNegative bool
}

// Apply mutates the user's balance with a conditional version check so two
// concurrent operations on the same user fail fast instead of racing.
// Returns the new balance.
func (l *Ledger) Apply(req DeltaRequest) (float64, error) {
	var newBalance float64

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, req.UserID).Error; err != nil {
			return err
		}

		newBalance = user.Balance + req.Amount
		if newBalance < 0 && !req.AllowNegative {
			return ErrInsufficientFunds
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND version = ?", user.ID, user.Version).
			Updates(map[string]interface{}{
				"balance": newBalance,
				"version": user.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		entry := models.Transaction{
			UserID:        user.ID,
			Type:          req.Type,
			Amount:        req.Amount,
			BalanceBefore: user.Balance,
			BalanceAfter:  newBalance,
			Description:   req.Description,
			OperationID:   req.OperationID,
			ServerID:      req.ServerID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrAlreadyProcessed
			}
			return err
		}

		return nil
	})

	return newBalance, err
}

// SeenOperation reports whether an external operation id already has a
// ledger row
func (l *Ledger) SeenOperation(operationID string) (bool, error) {
	var count int64
	err := l.db.Model(&models.Transaction{}).
		Where("operation_id = ?", operationID).
		Count(&count).Error
	return count > 0, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
