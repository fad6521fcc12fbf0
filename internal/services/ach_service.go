package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ACHService runs fee-bearing transfers through their lifecycle. Initiation
// charges principal plus fee in one ledger transaction; reversal refunds the
// principal only. The fee rate is a deployment-level setting, not per-request
// input.
type ACHService struct {
	db         *sql.DB
	ledger     *LedgerService
	settlement *SettlementService
	audit      *AuditLogger
	validator  *ValidationHelper
	feeRate    decimal.Decimal
}

func NewACHService(db *sql.DB, ledger *LedgerService, settlement *SettlementService) *ACHService {
	viper.SetDefault("ach.fee_percentage", 2.5)

	return &ACHService{
		db:         db,
		ledger:     ledger,
		settlement: settlement,
		audit:      NewAuditLogger(),
		validator:  NewValidationHelper(),
		feeRate:    decimal.NewFromFloat(viper.GetFloat64("ach.fee_percentage")),
	}
}

// InitiateACHRequest is the transfer initiation payload. Frequency defaults
// to one-time when omitted.
type InitiateACHRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Frequency string          `json:"frequency" validate:"omitempty,oneof=one-time monthly quarterly yearly"`
	Purpose   string          `json:"purpose" validate:"max=200"`
}

// Initiate creates a pending transfer. The account is charged the transfer
// amount plus the percentage fee up front, but the transaction record carries
// the transfer amount alone; the fee lives on the ACH row.
func (as *ACHService) Initiate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req InitiateACHRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := as.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.Amount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	if req.Frequency == "" {
		req.Frequency = models.ACHFrequencyOneTime
	}

	fee := req.Amount.Mul(as.feeRate).Div(decimal.NewFromInt(100))
	total := req.Amount.Add(fee).Round(2)

	tx, err := as.db.Begin()
	if err != nil {
		log.Printf("[ACH] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to initiate transfer", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if _, err := as.ledger.DebitBalanceTx(tx, principal.AccountType, principal.ID, total); err != nil {
		as.audit.LogError("ACH_INITIATE", principal.AccountType, principal.ID, err)
		sendBusinessError(w, err)
		return
	}

	ach := models.ACHTransaction{
		Amount:            req.Amount.Round(2),
		TransactionFee:    as.feeRate,
		LinkedAccountType: principal.AccountType,
		LinkedAccountID:   principal.ID,
		Status:            models.ACHStatusPending,
		Frequency:         req.Frequency,
		Purpose:           req.Purpose,
	}

	err = tx.QueryRow(`
		INSERT INTO ach_transactions (amount, transaction_fee, linked_account_type, linked_account_id, status, frequency, purpose, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`,
		ach.Amount, ach.TransactionFee, ach.LinkedAccountType, ach.LinkedAccountID,
		ach.Status, ach.Frequency, ach.Purpose).Scan(&ach.ID)
	if err != nil {
		log.Printf("[ACH] Failed to insert transfer: %v", err)
		SendErrorResponse(w, "Failed to initiate transfer", http.StatusInternalServerError, nil)
		return
	}

	if err := as.ledger.recordTransactionTx(tx, principal.AccountType, principal.ID, models.TxTypeACH, req.Amount); err != nil {
		log.Printf("[ACH] Failed to record transfer: %v", err)
		SendErrorResponse(w, "Failed to initiate transfer", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACH] Failed to commit transfer: %v", err)
		SendErrorResponse(w, "Failed to initiate transfer", http.StatusInternalServerError, nil)
		return
	}

	as.audit.LogMutation("ACH_INITIATE", principal.AccountType, principal.ID, total, "SUCCESS")

	// Settlement handoff is best-effort; the charge already committed and the
	// transfer stays pending until the network resolves it.
	if err := as.settlement.Submit(&ach); err != nil {
		log.Printf("[ACH] Settlement submission failed for transfer %d: %v", ach.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message":        "ACH transaction initiated",
		"achTransaction": ach,
		"feeCharged":     fee.Round(2),
		"totalDeducted":  total,
	})
}

// lockTransfer loads the caller's transfer under FOR UPDATE so lifecycle
// transitions on the same row serialize.
func (as *ACHService) lockTransfer(tx *sql.Tx, id int, principal models.Principal) (*models.ACHTransaction, error) {
	var ach models.ACHTransaction
	err := tx.QueryRow(`
		SELECT id, amount, transaction_fee, linked_account_type, linked_account_id, status, frequency, purpose
		FROM ach_transactions
		WHERE id = $1 AND linked_account_type = $2 AND linked_account_id = $3
		FOR UPDATE`, id, principal.AccountType, principal.ID).
		Scan(&ach.ID, &ach.Amount, &ach.TransactionFee, &ach.LinkedAccountType,
			&ach.LinkedAccountID, &ach.Status, &ach.Frequency, &ach.Purpose)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ach, nil
}

// Reverse refunds a pending transfer's amount and moves it to reversed. The
// initiation fee is not refunded.
func (as *ACHService) Reverse(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	tx, err := as.db.Begin()
	if err != nil {
		log.Printf("[ACH] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to reverse transfer", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	ach, err := as.lockTransfer(tx, id, principal)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if ach.Status != models.ACHStatusPending {
		sendBusinessError(w, ErrInvalidState)
		return
	}

	balance, err := as.ledger.CreditTx(tx, principal.AccountType, principal.ID, ach.Amount, models.TxTypeACH)
	if err != nil {
		as.audit.LogError("ACH_REVERSE", principal.AccountType, principal.ID, err)
		sendBusinessError(w, err)
		return
	}

	if _, err := tx.Exec(`
		UPDATE ach_transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.ACHStatusReversed, ach.ID); err != nil {
		log.Printf("[ACH] Failed to update transfer %d: %v", ach.ID, err)
		SendErrorResponse(w, "Failed to reverse transfer", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACH] Failed to commit reversal: %v", err)
		SendErrorResponse(w, "Failed to reverse transfer", http.StatusInternalServerError, nil)
		return
	}

	as.audit.LogMutation("ACH_REVERSE", principal.AccountType, principal.ID, ach.Amount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":        "ACH transaction reversed",
		"refundedAmount": ach.Amount,
		"balance":        balance,
	})
}

// CancelRecurring stops a recurring transfer before it completes. One-time
// transfers cannot be cancelled, only reversed, and no money moves here.
func (as *ACHService) CancelRecurring(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid transaction id", http.StatusBadRequest, nil)
		return
	}

	tx, err := as.db.Begin()
	if err != nil {
		log.Printf("[ACH] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to cancel transfer", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	ach, err := as.lockTransfer(tx, id, principal)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if ach.Frequency == models.ACHFrequencyOneTime {
		sendBusinessError(w, ErrInvalidOperation)
		return
	}

	if ach.Status != models.ACHStatusPending {
		sendBusinessError(w, ErrInvalidState)
		return
	}

	if _, err := tx.Exec(`
		UPDATE ach_transactions
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.ACHStatusCancelled, ach.ID); err != nil {
		log.Printf("[ACH] Failed to update transfer %d: %v", ach.ID, err)
		SendErrorResponse(w, "Failed to cancel transfer", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[ACH] Failed to commit cancellation: %v", err)
		SendErrorResponse(w, "Failed to cancel transfer", http.StatusInternalServerError, nil)
		return
	}

	as.audit.LogOperation("ACH_CANCEL", principal.AccountType, principal.ID, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Recurring ACH transaction cancelled",
	})
}
