package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LoanService handles loan origination, repayment, and the pure cost quote.
// Repayments reduce RemainingAmount only; late charges accumulate on their own
// column and are reported, never netted against the principal.
type LoanService struct {
	db        *sql.DB
	ledger    *LedgerService
	audit     *AuditLogger
	validator *ValidationHelper
}

func NewLoanService(db *sql.DB, ledger *LedgerService) *LoanService {
	return &LoanService{
		db:        db,
		ledger:    ledger,
		audit:     NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

var (
	decimalTwelve  = decimal.NewFromInt(12)
	decimalHundred = decimal.NewFromInt(100)
)

// calculateEMI derives the monthly installment for a loan: the standard
// amortization formula on the monthly rate, plus a principal/term surcharge
// folded into every installment.
//
//	EMI = P*r*(1+r)^n / ((1+r)^n - 1) + P/n,  r = annualRate/1200
//
// A zero rate degenerates to straight division plus the same surcharge.
func calculateEMI(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	surcharge := principal.Div(n)

	if annualRate.IsZero() {
		return principal.Div(n).Add(surcharge).Round(2)
	}

	r := annualRate.Div(decimalHundred).Div(decimalTwelve)
	factor := decimal.NewFromInt(1).Add(r).Pow(n)
	base := principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1))).Round(2)

	return base.Add(surcharge).Round(2)
}

// CreateLoanRequest is the origination payload. The interest rate is an
// annual percentage.
type CreateLoanRequest struct {
	PrincipalAmount decimal.Decimal `json:"principalAmount" validate:"required"`
	InterestRate    decimal.Decimal `json:"interestRate"`
	TermInMonths    int             `json:"termInMonths" validate:"required,min=1"`
}

// CreateLoan originates a loan for the authenticated principal. Disbursement
// happens out of band; origination only records the obligation.
func (lns *LoanService) CreateLoan(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreateLoanRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := lns.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.PrincipalAmount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	if req.InterestRate.IsNegative() || req.InterestRate.GreaterThan(decimalHundred) {
		SendErrorResponse(w, "Interest rate must be between 0 and 100", http.StatusBadRequest, nil)
		return
	}

	emi := calculateEMI(req.PrincipalAmount, req.InterestRate, req.TermInMonths)
	now := time.Now()
	dueDate := now.AddDate(0, req.TermInMonths, 0)

	loan := models.Loan{
		LinkedAccountType: principal.AccountType,
		LinkedAccountID:   principal.ID,
		PrincipalAmount:   req.PrincipalAmount.Round(2),
		InterestRate:      req.InterestRate,
		TermInMonths:      req.TermInMonths,
		EMIAmount:         emi,
		DueDate:           dueDate,
		RemainingAmount:   req.PrincipalAmount.Round(2),
		LateCharges:       decimal.Zero,
		Status:            models.LoanStatusActive,
		NextLateFeeAt:     dueDate,
	}

	tx, err := lns.db.Begin()
	if err != nil {
		log.Printf("[LOAN] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to create loan", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var accountExists bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM accounts WHERE owner_type = $1 AND owner_id = $2)`,
		principal.AccountType, principal.ID).Scan(&accountExists)
	if err != nil {
		log.Printf("[LOAN] Account lookup failed: %v", err)
		SendErrorResponse(w, "Failed to create loan", http.StatusInternalServerError, nil)
		return
	}
	if !accountExists {
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	err = tx.QueryRow(`
		INSERT INTO loans (linked_account_type, linked_account_id, principal_amount, interest_rate, term_in_months,
			emi_amount, due_date, remaining_amount, late_charges, status, next_late_fee_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id`,
		loan.LinkedAccountType, loan.LinkedAccountID, loan.PrincipalAmount, loan.InterestRate,
		loan.TermInMonths, loan.EMIAmount, loan.DueDate, loan.RemainingAmount, loan.LateCharges,
		loan.Status, loan.NextLateFeeAt).Scan(&loan.ID)
	if err != nil {
		log.Printf("[LOAN] Failed to insert loan: %v", err)
		SendErrorResponse(w, "Failed to create loan", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LOAN] Failed to commit loan: %v", err)
		SendErrorResponse(w, "Failed to create loan", http.StatusInternalServerError, nil)
		return
	}

	lns.audit.LogMutation("LOAN_CREATE", principal.AccountType, principal.ID, loan.PrincipalAmount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Loan created successfully",
		"loan":    loan,
	})
}

// lockLoan loads the loan row under FOR UPDATE and enforces that it belongs
// to the caller.
func (lns *LoanService) lockLoan(tx *sql.Tx, id int, principal models.Principal) (*models.Loan, error) {
	var loan models.Loan
	err := tx.QueryRow(`
		SELECT id, linked_account_type, linked_account_id, principal_amount, interest_rate, term_in_months,
			emi_amount, due_date, remaining_amount, late_charges, status, next_late_fee_at
		FROM loans
		WHERE id = $1
		FOR UPDATE`, id).
		Scan(&loan.ID, &loan.LinkedAccountType, &loan.LinkedAccountID, &loan.PrincipalAmount,
			&loan.InterestRate, &loan.TermInMonths, &loan.EMIAmount, &loan.DueDate,
			&loan.RemainingAmount, &loan.LateCharges, &loan.Status, &loan.NextLateFeeAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if loan.LinkedAccountType != principal.AccountType || loan.LinkedAccountID != principal.ID {
		return nil, ErrAccessDenied
	}
	return &loan, nil
}

// Repay debits the account and reduces the remaining amount. A payment larger
// than the outstanding balance is capped at it, so the final installment never
// needs an exact figure. Reaching zero completes the loan.
func (lns *LoanService) Repay(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	var req amountRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if !req.Amount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	tx, err := lns.db.Begin()
	if err != nil {
		log.Printf("[LOAN] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	loan, err := lns.lockLoan(tx, id, principal)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if loan.Status != models.LoanStatusActive {
		sendBusinessError(w, ErrInvalidState)
		return
	}

	payment := req.Amount
	if payment.GreaterThan(loan.RemainingAmount) {
		payment = loan.RemainingAmount
	}

	if _, err := lns.ledger.DebitTx(tx, principal.AccountType, principal.ID, payment, models.TxTypeLoanRepayment); err != nil {
		lns.audit.LogError("LOAN_REPAY", principal.AccountType, principal.ID, err)
		sendBusinessError(w, err)
		return
	}

	remaining := loan.RemainingAmount.Sub(payment).Round(2)
	status := loan.Status
	if remaining.IsZero() {
		status = models.LoanStatusCompleted
	}

	if _, err := tx.Exec(`
		UPDATE loans
		SET remaining_amount = $1, status = $2, updated_at = NOW()
		WHERE id = $3`,
		remaining, status, loan.ID); err != nil {
		log.Printf("[LOAN] Failed to update loan %d: %v", loan.ID, err)
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LOAN] Failed to commit repayment: %v", err)
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}

	lns.audit.LogMutation("LOAN_REPAY", principal.AccountType, principal.ID, payment, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":         "Loan repayment successful",
		"amountApplied":   payment,
		"remainingAmount": remaining,
		"lateCharges":     loan.LateCharges,
		"status":          status,
	})
}

// LoanCostRequest is the payload for the pure cost quote.
type LoanCostRequest struct {
	PrincipalAmount decimal.Decimal `json:"principalAmount" validate:"required"`
	InterestRate    decimal.Decimal `json:"interestRate"`
	TermInMonths    int             `json:"termInMonths" validate:"required,min=1"`
}

// CalculateLoanCost quotes the total simple-interest cost of a prospective
// loan without touching any account. The quoted installment spreads the total
// cost evenly over the term; it is deliberately simpler than the amortized
// EMI applied at origination.
func (lns *LoanService) CalculateLoanCost(w http.ResponseWriter, r *http.Request) {
	var req LoanCostRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := lns.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.PrincipalAmount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	if req.InterestRate.IsNegative() || req.InterestRate.GreaterThan(decimalHundred) {
		SendErrorResponse(w, "Interest rate must be between 0 and 100", http.StatusBadRequest, nil)
		return
	}

	// Simple interest over the term in years.
	years := decimal.NewFromInt(int64(req.TermInMonths)).Div(decimalTwelve)
	interest := req.PrincipalAmount.Mul(req.InterestRate).Mul(years).Div(decimalHundred)
	totalCost := req.PrincipalAmount.Add(interest)

	quote := models.LoanQuote{
		PrincipalAmount: req.PrincipalAmount.Round(2),
		TotalLoanCost:   totalCost.Round(2),
		EMIAmount:       totalCost.Div(decimal.NewFromInt(int64(req.TermInMonths))).Round(2),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quote)
}

// MarkDefaulted moves an active loan to defaulted. Collections tooling calls
// this; nothing in the engine defaults a loan automatically.
func (lns *LoanService) MarkDefaulted(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid loan id", http.StatusBadRequest, nil)
		return
	}

	tx, err := lns.db.Begin()
	if err != nil {
		log.Printf("[LOAN] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to update loan", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	loan, err := lns.lockLoan(tx, id, principal)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if loan.Status != models.LoanStatusActive {
		sendBusinessError(w, ErrInvalidState)
		return
	}

	if _, err := tx.Exec(`
		UPDATE loans
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.LoanStatusDefaulted, loan.ID); err != nil {
		log.Printf("[LOAN] Failed to update loan %d: %v", loan.ID, err)
		SendErrorResponse(w, "Failed to update loan", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LOAN] Failed to commit default: %v", err)
		SendErrorResponse(w, "Failed to update loan", http.StatusInternalServerError, nil)
		return
	}

	lns.audit.LogOperation("LOAN_DEFAULT", principal.AccountType, principal.ID, "loan marked defaulted")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Loan marked as defaulted",
	})
}
