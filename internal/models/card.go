package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Card kinds. Card numbers are unique across both kinds.
const (
	CardKindDebit  = "debit"
	CardKindCredit = "credit"
)

// DebitCard is an authorization token against its linked account. It carries
// no balance of its own.
type DebitCard struct {
	ID                int       `json:"id" db:"id"`
	CardNumber        string    `json:"cardNumber" db:"card_number"`
	ExpiryDate        string    `json:"expiryDate" db:"expiry_date"`
	CVV               string    `json:"-" db:"cvv"`
	LinkedAccountType string    `json:"linkedAccountType" db:"linked_account_type"`
	LinkedAccountID   int       `json:"linkedAccountId" db:"linked_account_id"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}

// CreditCard tracks a credit-utilization counter bounded by its limit.
// CreditUsed is a liability independent of the linked account balance until
// repaid.
type CreditCard struct {
	ID                int             `json:"id" db:"id"`
	CardNumber        string          `json:"cardNumber" db:"card_number"`
	ExpiryDate        string          `json:"expiryDate" db:"expiry_date"`
	CVV               string          `json:"-" db:"cvv"`
	LinkedAccountType string          `json:"linkedAccountType" db:"linked_account_type"`
	LinkedAccountID   int             `json:"linkedAccountId" db:"linked_account_id"`
	CreditLimit       decimal.Decimal `json:"creditLimit" db:"credit_limit"`
	CreditUsed        decimal.Decimal `json:"creditUsed" db:"credit_used"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// AvailableCredit returns the unused portion of the limit.
func (c *CreditCard) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.CreditUsed)
}
