package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/shopspring/decimal"
)

// Slab thresholds and rates for payroll tax.
var payrollTaxSlabs = []struct {
	above decimal.Decimal
	rate  decimal.Decimal
}{
	{decimal.NewFromInt(1500000), decimal.NewFromFloat(0.30)},
	{decimal.NewFromInt(1000000), decimal.NewFromFloat(0.20)},
	{decimal.NewFromInt(500000), decimal.NewFromFloat(0.10)},
	{decimal.NewFromInt(250000), decimal.NewFromFloat(0.05)},
}

// calculatePayrollTax applies the flat rate of the highest slab the gross
// salary falls into.
func calculatePayrollTax(salary decimal.Decimal) decimal.Decimal {
	for _, slab := range payrollTaxSlabs {
		if salary.GreaterThan(slab.above) {
			return salary.Mul(slab.rate).Round(2)
		}
	}
	return decimal.Zero
}

// Payroll returns the employee's salary breakdown and appends a payroll
// record for the net amount. Only employee principals have payroll.
func (ls *LedgerService) Payroll(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromRequest(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if principal.AccountType != models.OwnerTypeEmployee {
		SendErrorResponse(w, "Payroll is only available for employee accounts", http.StatusForbidden, nil)
		return
	}

	var gross decimal.Decimal
	err := ls.db.QueryRow(`SELECT payroll FROM employees WHERE id = $1`, principal.ID).Scan(&gross)
	if err != nil {
		if err == sql.ErrNoRows {
			SendErrorResponse(w, "Employee account not found", http.StatusNotFound, nil)
		} else {
			log.Printf("[PAYROLL] Lookup failed for employee %d: %v", principal.ID, err)
			SendErrorResponse(w, "Failed to fetch payroll", http.StatusInternalServerError, nil)
		}
		return
	}

	tax := calculatePayrollTax(gross)
	net := gross.Sub(tax).Round(2)

	tx, err := ls.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to record payroll", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	if err := ls.recordTransactionTx(tx, principal.AccountType, principal.ID, models.TxTypePayroll, net); err != nil {
		log.Printf("[PAYROLL] Failed to record payroll for employee %d: %v", principal.ID, err)
		SendErrorResponse(w, "Failed to record payroll", http.StatusInternalServerError, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to record payroll", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"payrollBreakdown": map[string]any{
			"grossSalary":  gross,
			"taxDeduction": tax,
			"netSalary":    net,
			"benefits": map[string]string{
				"medicalInsurance": "Covered (₹3,00,000)",
				"lifeInsurance":    "Covered (₹10,00,000)",
				"otherBenefits":    "Annual Bonus, Paid Time Off",
			},
		},
	})
}
