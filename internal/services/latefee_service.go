package services

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// LateFeeScanner applies the flat late charge to active loans whose due date
// has passed without full repayment. It polls on a ticker; each due loan is
// claimed with SKIP LOCKED so multiple instances never double-charge a loan.
type LateFeeScanner struct {
	db       *sql.DB
	ledger   *LedgerService
	audit    *AuditLogger
	interval time.Duration
	charge   decimal.Decimal
}

func NewLateFeeScanner(db *sql.DB, ledger *LedgerService) *LateFeeScanner {
	viper.SetDefault("latefee.scan_interval", time.Hour)
	viper.SetDefault("latefee.charge", 100.0)

	return &LateFeeScanner{
		db:       db,
		ledger:   ledger,
		audit:    NewAuditLogger(),
		interval: viper.GetDuration("latefee.scan_interval"),
		charge:   decimal.NewFromFloat(viper.GetFloat64("latefee.charge")),
	}
}

// Run polls until ctx is cancelled. Scan failures are logged and retried on
// the next tick.
func (lf *LateFeeScanner) Run(ctx context.Context) {
	log.Printf("[LATEFEE] Scanner started, interval %s", lf.interval)
	ticker := time.NewTicker(lf.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LATEFEE] Scanner stopped")
			return
		case <-ticker.C:
			if n, err := lf.Scan(); err != nil {
				log.Printf("[LATEFEE] Scan failed: %v", err)
			} else if n > 0 {
				log.Printf("[LATEFEE] Applied late charges to %d loan(s)", n)
			}
		}
	}
}

// Scan charges every overdue active loan once and schedules its next charge a
// year out. Each loan is handled in its own transaction; one failure does not
// block the rest of the batch.
func (lf *LateFeeScanner) Scan() (int, error) {
	rows, err := lf.db.Query(`
		SELECT id FROM loans
		WHERE status = $1 AND remaining_amount > 0 AND next_late_fee_at <= NOW()`,
		models.LoanStatusActive)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var due []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		due = append(due, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	applied := 0
	for _, id := range due {
		if err := lf.chargeLoan(id); err != nil {
			log.Printf("[LATEFEE] Failed to charge loan %d: %v", id, err)
			continue
		}
		applied++
	}
	return applied, nil
}

func (lf *LateFeeScanner) chargeLoan(id int) error {
	tx, err := lf.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var loan models.Loan
	err = tx.QueryRow(`
		SELECT id, linked_account_type, linked_account_id, remaining_amount, late_charges, status, next_late_fee_at
		FROM loans
		WHERE id = $1 AND status = $2 AND remaining_amount > 0 AND next_late_fee_at <= NOW()
		FOR UPDATE SKIP LOCKED`, id, models.LoanStatusActive).
		Scan(&loan.ID, &loan.LinkedAccountType, &loan.LinkedAccountID,
			&loan.RemainingAmount, &loan.LateCharges, &loan.Status, &loan.NextLateFeeAt)
	if err == sql.ErrNoRows {
		// Claimed by another instance or repaid since the list query.
		return nil
	}
	if err != nil {
		return err
	}

	newCharges := loan.LateCharges.Add(lf.charge).Round(2)
	nextAt := loan.NextLateFeeAt.AddDate(1, 0, 0)

	if _, err := tx.Exec(`
		UPDATE loans
		SET late_charges = $1, next_late_fee_at = $2, updated_at = NOW()
		WHERE id = $3`,
		newCharges, nextAt, loan.ID); err != nil {
		return err
	}

	if err := lf.ledger.recordTransactionTx(tx, loan.LinkedAccountType, loan.LinkedAccountID, models.TxTypeLateFee, lf.charge); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	lf.audit.LogMutation("LOAN_LATE_FEE", loan.LinkedAccountType, loan.LinkedAccountID, lf.charge, "SUCCESS")
	return nil
}
