package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// AuditEvent is the structured form of every ledger-affecting event emitted
// to the operational log. The durable audit trail lives in the transactions
// table; these events exist for observability only.
type AuditEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	AccountType string    `json:"account_type"`
	AccountID   int       `json:"account_id"`
	Amount      string    `json:"amount,omitempty"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
}

type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogMutation(eventType, accountType string, accountID int, amount decimal.Decimal, status string) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		AccountType: accountType,
		AccountID:   accountID,
		Amount:      amount.StringFixed(2),
		Status:      status,
	}
	a.log(event)
}

func (a *AuditLogger) LogError(eventType, accountType string, accountID int, err error) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		AccountType: accountType,
		AccountID:   accountID,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) LogOperation(eventType, accountType string, accountID int, details string) {
	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		AccountType: accountType,
		AccountID:   accountID,
		Status:      "SUCCESS",
		Details:     map[string]string{"details": details},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
