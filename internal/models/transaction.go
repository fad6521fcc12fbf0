package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction record types. Records are append-only: they are written in the
// same database transaction as the state change they document and are never
// updated or deleted afterwards.
const (
	TxTypeDeposit             = "deposit"
	TxTypeWithdrawal          = "withdrawal"
	TxTypePayroll             = "payroll"
	TxTypeBalanceInquiry      = "balance_inquiry"
	TxTypeACH                 = "ach"
	TxTypeDebitCardPayment    = "debit_card_payment"
	TxTypeCreditCardPayment   = "credit_card_payment"
	TxTypeCreditCardRepayment = "credit_card_repayment"
	TxTypeLoanRepayment       = "loan_repayment"
	TxTypeLateFee             = "late_fee"
)

// TransactionRecord is one immutable audit entry. History queries order by
// CreatedAt descending.
type TransactionRecord struct {
	ID              int             `json:"id" db:"id"`
	AccountType     string          `json:"accountType" db:"account_type"`
	AccountID       int             `json:"accountId" db:"account_id"`
	TransactionType string          `json:"transactionType" db:"transaction_type"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}
