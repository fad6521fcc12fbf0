package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/shopspring/decimal"
)

// CardService registers cards and settles card payments against the ledger.
// Debit cards delegate entirely to the account balance; credit cards move a
// separate utilization counter bounded by the card's limit.
type CardService struct {
	db        *sql.DB
	ledger    *LedgerService
	processor ProcessorClient
	audit     *AuditLogger
	validator *ValidationHelper
}

func NewCardService(db *sql.DB, ledger *LedgerService, processor ProcessorClient) *CardService {
	return &CardService{
		db:        db,
		ledger:    ledger,
		processor: processor,
		audit:     NewAuditLogger(),
		validator: NewValidationHelper(),
	}
}

// RegisterCardRequest covers both card kinds; CreditLimit is required for
// credit registrations only.
type RegisterCardRequest struct {
	CardNumber        string           `json:"cardNumber" validate:"required,numeric,min=12,max=19"`
	ExpiryDate        string           `json:"expiryDate" validate:"required"`
	CVV               string           `json:"cvv" validate:"required,numeric,len=3"`
	LinkedAccountType string           `json:"linkedAccountType" validate:"required,oneof=user employee"`
	LinkedAccountID   int              `json:"linkedAccountId" validate:"required,gt=0"`
	CreditLimit       *decimal.Decimal `json:"creditLimit,omitempty"`
}

// cardNumberExistsTx checks the single global card-number namespace spanning
// both debit and credit cards.
func (cs *CardService) cardNumberExistsTx(tx *sql.Tx, cardNumber string) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM debit_cards WHERE card_number = $1)
		    OR EXISTS(SELECT 1 FROM credit_cards WHERE card_number = $1)`,
		cardNumber).Scan(&exists)
	return exists, err
}

func (cs *CardService) accountExistsTx(tx *sql.Tx, ownerType string, ownerID int) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM accounts WHERE owner_type = $1 AND owner_id = $2)`,
		ownerType, ownerID).Scan(&exists)
	return exists, err
}

// RegisterDebitCard registers a debit card locally and with the payment
// processor. Processor rejection aborts the database transaction so no
// usable local card survives it.
func (cs *CardService) RegisterDebitCard(w http.ResponseWriter, r *http.Request) {
	var req RegisterCardRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	card, err := cs.registerCard(&req, models.CardKindDebit)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Debit card registered successfully",
		"card":    card,
	})
}

// RegisterCreditCard additionally validates the credit limit.
func (cs *CardService) RegisterCreditCard(w http.ResponseWriter, r *http.Request) {
	var req RegisterCardRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.CreditLimit == nil || !req.CreditLimit.IsPositive() {
		sendBusinessError(w, ErrInvalidLimit)
		return
	}

	card, err := cs.registerCard(&req, models.CardKindCredit)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Credit card registered successfully",
		"card":    card,
	})
}

func (cs *CardService) registerCard(req *RegisterCardRequest, kind string) (any, error) {
	tx, err := cs.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	exists, err := cs.cardNumberExistsTx(tx, req.CardNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateCard
	}

	accountExists, err := cs.accountExistsTx(tx, req.LinkedAccountType, req.LinkedAccountID)
	if err != nil {
		return nil, err
	}
	if !accountExists {
		return nil, ErrNotFound
	}

	var card any
	switch kind {
	case models.CardKindDebit:
		var c models.DebitCard
		err = tx.QueryRow(`
			INSERT INTO debit_cards (card_number, expiry_date, cvv, linked_account_type, linked_account_id, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			RETURNING id, card_number, expiry_date, linked_account_type, linked_account_id, created_at`,
			req.CardNumber, req.ExpiryDate, req.CVV, req.LinkedAccountType, req.LinkedAccountID).
			Scan(&c.ID, &c.CardNumber, &c.ExpiryDate, &c.LinkedAccountType, &c.LinkedAccountID, &c.CreatedAt)
		card = c
	case models.CardKindCredit:
		var c models.CreditCard
		err = tx.QueryRow(`
			INSERT INTO credit_cards (card_number, expiry_date, cvv, linked_account_type, linked_account_id, credit_limit, credit_used, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, NOW())
			RETURNING id, card_number, expiry_date, linked_account_type, linked_account_id, credit_limit, credit_used, created_at`,
			req.CardNumber, req.ExpiryDate, req.CVV, req.LinkedAccountType, req.LinkedAccountID, req.CreditLimit.Round(2)).
			Scan(&c.ID, &c.CardNumber, &c.ExpiryDate, &c.LinkedAccountType, &c.LinkedAccountID, &c.CreditLimit, &c.CreditUsed, &c.CreatedAt)
		card = c
	}
	if err != nil {
		return nil, err
	}

	result, err := cs.processor.RegisterCard(ProcessorRegistration{
		CardNumber:        req.CardNumber,
		ExpiryDate:        req.ExpiryDate,
		CVV:               req.CVV,
		LinkedAccountType: req.LinkedAccountType,
		LinkedAccountID:   req.LinkedAccountID,
		CardType:          kind,
		CreditLimit:       req.CreditLimit,
	})
	if err != nil {
		log.Printf("[CARD] Processor registration failed for card ending %s: %v", last4(req.CardNumber), err)
		cs.audit.LogError("CARD_REGISTRATION", req.LinkedAccountType, req.LinkedAccountID, err)
		return nil, ErrProcessorRejected
	}
	if !result.Success {
		log.Printf("[CARD] Processor rejected card ending %s: %s", last4(req.CardNumber), result.Message)
		return nil, ErrProcessorRejected
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	cs.audit.LogOperation("CARD_REGISTRATION", req.LinkedAccountType, req.LinkedAccountID, "card registered: "+kind)
	return card, nil
}

// PayRequest is a card payment dispatched on cardType.
type PayRequest struct {
	CardNumber string          `json:"cardNumber" validate:"required"`
	CardType   string          `json:"cardType" validate:"required,oneof=debit credit"`
	Amount     decimal.Decimal `json:"amount"`
}

// Pay routes a payment to the debit or credit path.
func (cs *CardService) Pay(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.Amount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	switch req.CardType {
	case models.CardKindDebit:
		cs.payWithDebitCard(w, &req)
	case models.CardKindCredit:
		cs.payWithCreditCard(w, &req)
	}
}

// payWithDebitCard resolves the linked account and debits it through the
// ledger, which writes the paired debit_card_payment record.
func (cs *CardService) payWithDebitCard(w http.ResponseWriter, req *PayRequest) {
	tx, err := cs.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	var ownerType string
	var ownerID int
	err = tx.QueryRow(`
		SELECT linked_account_type, linked_account_id
		FROM debit_cards
		WHERE card_number = $1`,
		req.CardNumber).Scan(&ownerType, &ownerID)
	if err == sql.ErrNoRows {
		sendBusinessError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("[CARD] Debit card lookup failed: %v", err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	balance, err := cs.ledger.DebitTx(tx, ownerType, ownerID, req.Amount, models.TxTypeDebitCardPayment)
	if err != nil {
		cs.audit.LogError("DEBIT_CARD_PAYMENT", ownerType, ownerID, err)
		sendBusinessError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[CARD] Failed to commit debit card payment: %v", err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	cs.audit.LogMutation("DEBIT_CARD_PAYMENT", ownerType, ownerID, req.Amount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Debit card payment successful",
		"balance": balance,
	})
}

// payWithCreditCard moves only the utilization counter; the account balance
// is untouched until repayment.
func (cs *CardService) payWithCreditCard(w http.ResponseWriter, req *PayRequest) {
	tx, err := cs.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	card, err := cs.lockCreditCardTx(tx, req.CardNumber)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if card.CreditUsed.Add(req.Amount).GreaterThan(card.CreditLimit) {
		cs.audit.LogError("CREDIT_CARD_PAYMENT", card.LinkedAccountType, card.LinkedAccountID, ErrCreditLimitExceeded)
		sendBusinessError(w, ErrCreditLimitExceeded)
		return
	}

	newUsed := card.CreditUsed.Add(req.Amount).Round(2)
	if _, err := tx.Exec(`
		UPDATE credit_cards SET credit_used = $1 WHERE id = $2`,
		newUsed, card.ID); err != nil {
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	if err := cs.ledger.recordTransactionTx(tx, card.LinkedAccountType, card.LinkedAccountID, models.TxTypeCreditCardPayment, req.Amount); err != nil {
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[CARD] Failed to commit credit card payment: %v", err)
		SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	cs.audit.LogMutation("CREDIT_CARD_PAYMENT", card.LinkedAccountType, card.LinkedAccountID, req.Amount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":     "Credit card payment successful",
		"creditUsed":  newUsed,
		"creditLimit": card.CreditLimit,
	})
}

// RepayRequest pays down a credit card from the linked account.
type RepayRequest struct {
	CardNumber    string          `json:"cardNumber" validate:"required"`
	PaymentAmount decimal.Decimal `json:"paymentAmount"`
}

// Repay is the only operation that moves value from the cash balance to the
// credit liability: the account debit and the utilization decrement commit
// as one unit.
func (cs *CardService) Repay(w http.ResponseWriter, r *http.Request) {
	var req RepayRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := cs.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !req.PaymentAmount.IsPositive() {
		sendBusinessError(w, ErrInvalidAmount)
		return
	}

	tx, err := cs.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	card, err := cs.lockCreditCardTx(tx, req.CardNumber)
	if err != nil {
		sendBusinessError(w, err)
		return
	}

	if req.PaymentAmount.GreaterThan(card.CreditUsed) {
		cs.audit.LogError("CREDIT_CARD_REPAYMENT", card.LinkedAccountType, card.LinkedAccountID, ErrOverRepayment)
		sendBusinessError(w, ErrOverRepayment)
		return
	}

	balance, err := cs.ledger.DebitTx(tx, card.LinkedAccountType, card.LinkedAccountID, req.PaymentAmount, models.TxTypeCreditCardRepayment)
	if err != nil {
		cs.audit.LogError("CREDIT_CARD_REPAYMENT", card.LinkedAccountType, card.LinkedAccountID, err)
		sendBusinessError(w, err)
		return
	}

	newUsed := card.CreditUsed.Sub(req.PaymentAmount).Round(2)
	if _, err := tx.Exec(`
		UPDATE credit_cards SET credit_used = $1 WHERE id = $2`,
		newUsed, card.ID); err != nil {
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[CARD] Failed to commit credit card repayment: %v", err)
		SendErrorResponse(w, "Failed to process repayment", http.StatusInternalServerError, nil)
		return
	}

	cs.audit.LogMutation("CREDIT_CARD_REPAYMENT", card.LinkedAccountType, card.LinkedAccountID, req.PaymentAmount, "SUCCESS")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"message":             "Credit card repayment successful",
		"remainingCreditUsed": newUsed,
		"accountBalance":      balance,
	})
}

// lockCreditCardTx loads a credit card under FOR UPDATE so concurrent
// payments and repayments against the same card serialize.
func (cs *CardService) lockCreditCardTx(tx *sql.Tx, cardNumber string) (*models.CreditCard, error) {
	var card models.CreditCard
	err := tx.QueryRow(`
		SELECT id, card_number, linked_account_type, linked_account_id, credit_limit, credit_used
		FROM credit_cards
		WHERE card_number = $1
		FOR UPDATE`,
		cardNumber).Scan(&card.ID, &card.CardNumber, &card.LinkedAccountType, &card.LinkedAccountID, &card.CreditLimit, &card.CreditUsed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func last4(cardNumber string) string {
	if len(cardNumber) <= 4 {
		return cardNumber
	}
	return cardNumber[len(cardNumber)-4:]
}
