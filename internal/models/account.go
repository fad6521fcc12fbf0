package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account owner types. Every account belongs to either a user or an employee.
const (
	OwnerTypeUser     = "user"
	OwnerTypeEmployee = "employee"
)

// Account holds the cash balance for a single owner. Balances are stored as
// NUMERIC(12,2) and mutated only through the ledger service under a row lock.
type Account struct {
	ID        int             `json:"id" db:"id"`
	OwnerType string          `json:"ownerType" db:"owner_type"`
	OwnerID   int             `json:"ownerId" db:"owner_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Principal is the authenticated identity attached to every request by the
// auth middleware. The ledger trusts it without re-deriving ownership.
type Principal struct {
	ID          int    `json:"id"`
	AccountType string `json:"accountType"`
}

// ValidOwnerType reports whether t names a known account owner type.
func ValidOwnerType(t string) bool {
	return t == OwnerTypeUser || t == OwnerTypeEmployee
}
