package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ACH transfer statuses. Pending is the only non-terminal state; every other
// status is terminal and permits no further transition.
const (
	ACHStatusPending   = "pending"
	ACHStatusCompleted = "completed"
	ACHStatusFailed    = "failed"
	ACHStatusCancelled = "cancelled"
	ACHStatusReversed  = "reversed"
)

// ACH transfer frequencies.
const (
	ACHFrequencyOneTime   = "one-time"
	ACHFrequencyMonthly   = "monthly"
	ACHFrequencyQuarterly = "quarterly"
	ACHFrequencyYearly    = "yearly"
)

// ACHTransaction is a fee-bearing transfer with its own lifecycle. Amount is
// the transfer principal; TransactionFee is the percentage rate charged at
// initiation. The fee is earned when the transfer is initiated and is not
// refunded on reversal or cancellation.
type ACHTransaction struct {
	ID                int             `json:"id" db:"id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	TransactionFee    decimal.Decimal `json:"transactionFee" db:"transaction_fee"`
	LinkedAccountType string          `json:"linkedAccountType" db:"linked_account_type"`
	LinkedAccountID   int             `json:"linkedAccountId" db:"linked_account_id"`
	Status            string          `json:"status" db:"status"`
	Frequency         string          `json:"frequency" db:"frequency"`
	Purpose           string          `json:"purpose,omitempty" db:"purpose"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// ValidACHFrequency reports whether f is one of the supported frequencies.
func ValidACHFrequency(f string) bool {
	switch f {
	case ACHFrequencyOneTime, ACHFrequencyMonthly, ACHFrequencyQuarterly, ACHFrequencyYearly:
		return true
	}
	return false
}
