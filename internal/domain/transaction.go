package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string
type TransactionStatus string

const (
	TypeCredit TransactionType = "CREDIT"
	TypeDebit  TransactionType = "DEBIT"

	StatusSuccessful TransactionStatus = "SUCCESSFUL"
	StatusFailed     TransactionStatus = "FAILED"
	StatusPending    TransactionStatus = "PENDING"
)

// Transaction is an append-only ledger entry against an investment. Entries
// are never updated or deleted; they are the audit trail the investment
// balance must reconcile to.
type Transaction struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	InvestmentID string            `json:"investment_id"`
	Type         TransactionType   `json:"transaction_type"`
	Amount       decimal.Decimal   `json:"amount"`
	Status       TransactionStatus `json:"status"`
	Date         time.Time         `json:"date"`
}

func NewCredit(userID, investmentID string, amount decimal.Decimal, date time.Time) *Transaction {
	return &Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		InvestmentID: investmentID,
		Type:         TypeCredit,
		Amount:       amount,
		Status:       StatusSuccessful,
		Date:         date,
	}
}
