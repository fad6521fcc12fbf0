package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/shopspring/decimal"
)

// LedgerService owns balance state for every account. All mutations go
// through CreditTx/DebitTx inside a caller-supplied *sql.Tx: the account row
// is locked, the balance is updated, and the paired transaction record is
// written before the caller commits. A reader can never observe one without
// the other.
type LedgerService struct {
	db        *sql.DB
	audit     *AuditLogger
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:        db,
		audit:     NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

// lockAccount loads the account row for (ownerType, ownerID) under FOR UPDATE
// so concurrent read-then-write sequences against the same balance serialize.
func (ls *LedgerService) lockAccount(tx *sql.Tx, ownerType string, ownerID int) (*models.Account, error) {
	var account models.Account
	err := tx.QueryRow(`
		SELECT id, owner_type, owner_id, balance
		FROM accounts
		WHERE owner_type = $1 AND owner_id = $2
		FOR UPDATE`, ownerType, ownerID).
		Scan(&account.ID, &account.OwnerType, &account.OwnerID, &account.Balance)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// updateBalanceTx persists the new balance, rounding half-up to 2 decimal
// places exactly once here rather than at every intermediate step.
func (ls *LedgerService) updateBalanceTx(tx *sql.Tx, accountID int, newBalance decimal.Decimal) error {
	_, err := tx.Exec(`
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2`,
		newBalance.Round(2), accountID)
	return err
}

// recordTransactionTx appends the audit record inside the same database
// transaction as the state change it documents. Records are never updated
// or deleted.
func (ls *LedgerService) recordTransactionTx(tx *sql.Tx, accountType string, accountID int, txType string, amount decimal.Decimal) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (account_type, account_id, transaction_type, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		accountType, accountID, txType, amount.Round(2))
	return err
}

// CreditBalanceTx increases the balance without writing a record. Callers
// must append exactly one paired record in the same transaction; prefer
// CreditTx unless the record amount differs from the mutation (ACH fees).
func (ls *LedgerService) CreditBalanceTx(tx *sql.Tx, ownerType string, ownerID int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	account, err := ls.lockAccount(tx, ownerType, ownerID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := account.Balance.Add(amount).Round(2)
	if err := ls.updateBalanceTx(tx, account.ID, newBalance); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// DebitBalanceTx decreases the balance, failing with ErrInsufficientFunds
// before any write when the balance does not cover the amount. Same record
// obligation as CreditBalanceTx.
func (ls *LedgerService) DebitBalanceTx(tx *sql.Tx, ownerType string, ownerID int, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	account, err := ls.lockAccount(tx, ownerType, ownerID)
	if err != nil {
		return decimal.Zero, err
	}

	if account.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	newBalance := account.Balance.Sub(amount).Round(2)
	if err := ls.updateBalanceTx(tx, account.ID, newBalance); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// CreditTx increases the account balance by amount and writes the paired
// transaction record of type txType. Returns the new balance.
func (ls *LedgerService) CreditTx(tx *sql.Tx, ownerType string, ownerID int, amount decimal.Decimal, txType string) (decimal.Decimal, error) {
	newBalance, err := ls.CreditBalanceTx(tx, ownerType, ownerID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	if err := ls.recordTransactionTx(tx, ownerType, ownerID, txType, amount); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// DebitTx decreases the account balance by amount and writes the paired
// transaction record of type txType.
func (ls *LedgerService) DebitTx(tx *sql.Tx, ownerType string, ownerID int, amount decimal.Decimal, txType string) (decimal.Decimal, error) {
	newBalance, err := ls.DebitBalanceTx(tx, ownerType, ownerID, amount)
	if err != nil {
		return decimal.Zero, err
	}

	if err := ls.recordTransactionTx(tx, ownerType, ownerID, txType, amount); err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit credits the authenticated principal's account.
func (ls *LedgerService) Deposit(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req amountRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Invalid deposit amount", http.StatusBadRequest, nil)
		return
	}

	tx, err := ls.db.Begin()
	if err != nil {
		log.Printf("[LEDGER] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process deposit", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	balance, err := ls.CreditTx(tx, principal.AccountType, principal.ID, req.Amount, models.TxTypeDeposit)
	if err != nil {
		ls.audit.LogError("DEPOSIT", principal.AccountType, principal.ID, err)
		sendBusinessError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Failed to commit deposit: %v", err)
		SendErrorResponse(w, "Failed to process deposit", http.StatusInternalServerError, nil)
		return
	}

	ls.audit.LogMutation("DEPOSIT", principal.AccountType, principal.ID, req.Amount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Deposit successful",
		"balance": balance,
	})
}

// Withdraw debits the authenticated principal's account.
func (ls *LedgerService) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req amountRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if !req.Amount.IsPositive() {
		SendErrorResponse(w, "Invalid withdrawal amount", http.StatusBadRequest, nil)
		return
	}

	tx, err := ls.db.Begin()
	if err != nil {
		log.Printf("[LEDGER] Failed to begin transaction: %v", err)
		SendErrorResponse(w, "Failed to process withdrawal", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	balance, err := ls.DebitTx(tx, principal.AccountType, principal.ID, req.Amount, models.TxTypeWithdrawal)
	if err != nil {
		ls.audit.LogError("WITHDRAWAL", principal.AccountType, principal.ID, err)
		sendBusinessError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[LEDGER] Failed to commit withdrawal: %v", err)
		SendErrorResponse(w, "Failed to process withdrawal", http.StatusInternalServerError, nil)
		return
	}

	ls.audit.LogMutation("WITHDRAWAL", principal.AccountType, principal.ID, req.Amount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Withdrawal successful",
		"balance": balance,
	})
}

type cardSummary struct {
	CardNumber  string           `json:"cardNumber"`
	CreditLimit *decimal.Decimal `json:"creditLimit,omitempty"`
	CreditUsed  *decimal.Decimal `json:"creditUsed,omitempty"`
	Balance     *decimal.Decimal `json:"linkedAccountBalance,omitempty"`
}

// BalanceInquiry returns the balance plus summaries of every linked card and
// appends a balance_inquiry record. The record documents the read; no balance
// mutation happens here.
func (ls *LedgerService) BalanceInquiry(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var balance decimal.Decimal
	err := ls.db.QueryRow(`
		SELECT balance FROM accounts
		WHERE owner_type = $1 AND owner_id = $2`,
		principal.AccountType, principal.ID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[LEDGER] Balance lookup failed: %v", err)
			SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		}
		return
	}

	creditCards, err := ls.fetchCreditCardSummaries(principal.AccountType, principal.ID)
	if err != nil {
		log.Printf("[LEDGER] Credit card lookup failed: %v", err)
		SendErrorResponse(w, "Failed to fetch card details", http.StatusInternalServerError, nil)
		return
	}

	debitCards, err := ls.fetchDebitCardSummaries(principal.AccountType, principal.ID, balance)
	if err != nil {
		log.Printf("[LEDGER] Debit card lookup failed: %v", err)
		SendErrorResponse(w, "Failed to fetch card details", http.StatusInternalServerError, nil)
		return
	}

	tx, err := ls.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to record inquiry", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if err := ls.recordTransactionTx(tx, principal.AccountType, principal.ID, models.TxTypeBalanceInquiry, decimal.Zero); err != nil {
		log.Printf("[LEDGER] Failed to record balance inquiry: %v", err)
		SendErrorResponse(w, "Failed to record inquiry", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to record inquiry", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"balance": balance,
		"cards": map[string]any{
			"creditCards": creditCards,
			"debitCards":  debitCards,
		},
	})
}

func (ls *LedgerService) fetchCreditCardSummaries(ownerType string, ownerID int) ([]cardSummary, error) {
	rows, err := ls.db.Query(`
		SELECT card_number, credit_limit, credit_used
		FROM credit_cards
		WHERE linked_account_type = $1 AND linked_account_id = $2`,
		ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []cardSummary{}
	for rows.Next() {
		var s cardSummary
		var limit, used decimal.Decimal
		if err := rows.Scan(&s.CardNumber, &limit, &used); err != nil {
			return nil, err
		}
		s.CreditLimit = &limit
		s.CreditUsed = &used
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (ls *LedgerService) fetchDebitCardSummaries(ownerType string, ownerID int, balance decimal.Decimal) ([]cardSummary, error) {
	rows, err := ls.db.Query(`
		SELECT card_number
		FROM debit_cards
		WHERE linked_account_type = $1 AND linked_account_id = $2`,
		ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []cardSummary{}
	for rows.Next() {
		var s cardSummary
		if err := rows.Scan(&s.CardNumber); err != nil {
			return nil, err
		}
		s.Balance = &balance
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// TransactionHistory returns the principal's records, most recent first.
// An account with no records is reported as 404, not an empty list.
func (ls *LedgerService) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := ls.db.Query(`
		SELECT id, account_type, account_id, transaction_type, amount, created_at
		FROM transactions
		WHERE account_type = $1 AND account_id = $2
		ORDER BY created_at DESC`,
		principal.AccountType, principal.ID)
	if err != nil {
		log.Printf("[LEDGER] History query failed: %v", err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	records := []models.TransactionRecord{}
	for rows.Next() {
		var rec models.TransactionRecord
		if err := rows.Scan(&rec.ID, &rec.AccountType, &rec.AccountID, &rec.TransactionType, &rec.Amount, &rec.CreatedAt); err != nil {
			log.Printf("[LEDGER] History scan failed: %v", err)
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	if len(records) == 0 {
		SendErrorResponse(w, "No transactions found", http.StatusNotFound, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}
