package models

import (
	"time"
)

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeTopup        TransactionType = "topup"
	TransactionTypeOrder        TransactionType = "order"
	TransactionTypeRenewal      TransactionType = "renewal"
	TransactionTypeTariffChange TransactionType = "tariff_change"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeAdmin        TransactionType = "admin_adjustment"
)

// Transaction is an append-only ledger entry. Amount is positive for credits
// and negative for debits. OperationID is unique for externally keyed
// credits, which makes top-up replays a no-op.
type Transaction struct {
	ID     uint  `gorm:"column:id;primaryKey" json:"id"`
	UserID uint  `gorm:"column:user_id;not null;index" json:"user_id"`
	User   *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Type          TransactionType `gorm:"column:type;size:50;not null;index" json:"type"`
	Amount        float64         `gorm:"column:amount;type:decimal(15,2);not null" json:"amount"`
	BalanceBefore float64         `gorm:"column:balance_before;type:decimal(15,2)" json:"balance_before"`
	BalanceAfter  float64         `gorm:"column:balance_after;type:decimal(15,2)" json:"balance_after"`
	Description   string          `gorm:"column:description;size:500" json:"description"`

	// External payment operation id; empty for internal debits/credits
	OperationID *string `gorm:"column:operation_id;size:100;uniqueIndex" json:"operation_id,omitempty"`

	// Related server, when the transaction was caused by one
	ServerID *uint `gorm:"column:server_id;index" json:"server_id,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
