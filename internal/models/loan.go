package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan statuses. Active is the only working state; completed and defaulted
// are terminal. Defaulted is an externally settable transition, nothing in
// the engine triggers it on its own.
const (
	LoanStatusActive    = "active"
	LoanStatusCompleted = "completed"
	LoanStatusDefaulted = "defaulted"
)

// Loan is an amortizing loan repaid against RemainingAmount. EMIAmount is
// derived at creation (amortized installment plus a principal/term
// surcharge). LateCharges accumulate separately and never reduce
// RemainingAmount.
type Loan struct {
	ID                int             `json:"id" db:"id"`
	LinkedAccountType string          `json:"linkedAccountType" db:"linked_account_type"`
	LinkedAccountID   int             `json:"linkedAccountId" db:"linked_account_id"`
	PrincipalAmount   decimal.Decimal `json:"principalAmount" db:"principal_amount"`
	InterestRate      decimal.Decimal `json:"interestRate" db:"interest_rate"`
	TermInMonths      int             `json:"termInMonths" db:"term_in_months"`
	EMIAmount         decimal.Decimal `json:"emiAmount" db:"emi_amount"`
	DueDate           time.Time       `json:"dueDate" db:"due_date"`
	RemainingAmount   decimal.Decimal `json:"remainingAmount" db:"remaining_amount"`
	LateCharges       decimal.Decimal `json:"lateCharges" db:"late_charges"`
	Status            string          `json:"status" db:"status"`
	NextLateFeeAt     time.Time       `json:"nextLateFeeAt" db:"next_late_fee_at"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// LoanQuote is the response of the pure loan-cost calculation. It uses simple
// interest and is distinct from the EMI formula applied to created loans.
type LoanQuote struct {
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	TotalLoanCost   decimal.Decimal `json:"totalLoanCost"`
	EMIAmount       decimal.Decimal `json:"emiAmount"`
}
