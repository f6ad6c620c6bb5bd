package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction/kind of a transaction
type TransactionType string

const (
	TransactionTransfer   TransactionType = "transfer"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionPayment    TransactionType = "payment"
)

// TransactionStatus represents the processing status of a transaction
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionFlagged   TransactionStatus = "flagged"
)

// Transaction is an immutable money movement event. Once appended to a
// user's history it is never modified.
type Transaction struct {
	ID               string            `json:"id" db:"transaction_id"`
	UserID           string            `json:"user_id" db:"user_id"`
	Type             TransactionType   `json:"type" db:"type"`
	Amount           decimal.Decimal   `json:"amount" db:"amount"`
	Currency         string            `json:"currency" db:"currency"`
	FromAccount      string            `json:"from_account,omitempty" db:"from_account"`
	ToAccount        string            `json:"to_account,omitempty" db:"to_account"`
	RecipientName    string            `json:"recipient_name,omitempty" db:"recipient_name"`
	RecipientCountry string            `json:"recipient_country,omitempty" db:"recipient_country"`
	Narration        string            `json:"narration,omitempty" db:"narration"`
	Timestamp        time.Time         `json:"timestamp" db:"timestamp"`
	Status           TransactionStatus `json:"status" db:"status"`
}

// Counterparty identifies the other side of the transaction
func (t Transaction) Counterparty() string {
	if t.ToAccount != "" {
		return t.ToAccount
	}
	return t.RecipientName
}

// IsOutflow reports whether funds leave the account
func (t Transaction) IsOutflow() bool {
	return t.Type == TransactionWithdrawal || t.Type == TransactionTransfer
}
