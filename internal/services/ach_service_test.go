package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newACHTestService(t *testing.T) (*ACHService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	ledger := NewLedgerService(db)
	service := NewACHService(db, ledger, NewSettlementService())
	return service, mock, func() { db.Close() }
}

func TestACHService_Initiate(t *testing.T) {
	t.Run("charges amount plus fee but records amount alone", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "2000.00"))
		// 1000 + 2.5% fee = 1025 deducted
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("975"), 10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO ach_transactions").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		// record carries the transfer amount, not the deduction
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("user", 1, models.TxTypeACH, decimal.RequireFromString("1000")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]any{
			"amount":    "1000.00",
			"frequency": "one-time",
			"purpose":   "rent",
		})
		r := requestWithPrincipal("POST", "/ach/initiate", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Initiate(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "25", resp["feeCharged"])
		assert.Equal(t, "1025", resp["totalDeducted"])
	})

	t.Run("insufficient balance for amount plus fee", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "1000.00"))
		mock.ExpectRollback()

		// balance covers the amount but not the fee
		body, _ := json.Marshal(map[string]any{
			"amount":    "1000.00",
			"frequency": "one-time",
		})
		r := requestWithPrincipal("POST", "/ach/initiate", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Initiate(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsupported frequency", func(t *testing.T) {
		service, _, closeDB := newACHTestService(t)
		defer closeDB()

		body, _ := json.Marshal(map[string]any{
			"amount":    "100.00",
			"frequency": "weekly",
		})
		r := requestWithPrincipal("POST", "/ach/initiate", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Initiate(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestACHService_Reverse(t *testing.T) {
	achRow := func(status, frequency string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "amount", "transaction_fee", "linked_account_type", "linked_account_id", "status", "frequency", "purpose"}).
			AddRow(7, "1000.00", "2.5", "user", 1, status, frequency, "rent")
	}

	t.Run("refunds principal only", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 1).
			WillReturnRows(achRow(models.ACHStatusPending, "one-time"))
		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "975.00"))
		// 1000 back, the 25 fee stays spent
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("1975"), 10).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("user", 1, models.TxTypeACH, decimal.RequireFromString("1000")).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE ach_transactions").
			WithArgs(models.ACHStatusReversed, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		router := chi.NewRouter()
		router.Post("/ach/{id}/reverse", service.Reverse)

		r := requestWithPrincipal("POST", "/ach/7/reverse", nil, 1, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal status cannot be reversed", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 1).
			WillReturnRows(achRow(models.ACHStatusCompleted, "one-time"))
		mock.ExpectRollback()

		router := chi.NewRouter()
		router.Post("/ach/{id}/reverse", service.Reverse)

		r := requestWithPrincipal("POST", "/ach/7/reverse", nil, 1, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("another principal's transfer is not visible", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "transaction_fee", "linked_account_type", "linked_account_id", "status", "frequency", "purpose"}))
		mock.ExpectRollback()

		router := chi.NewRouter()
		router.Post("/ach/{id}/reverse", service.Reverse)

		r := requestWithPrincipal("POST", "/ach/7/reverse", nil, 2, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestACHService_CancelRecurring(t *testing.T) {
	achRow := func(status, frequency string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "amount", "transaction_fee", "linked_account_type", "linked_account_id", "status", "frequency", "purpose"}).
			AddRow(7, "1000.00", "2.5", "user", 1, status, frequency, "rent")
	}

	t.Run("cancels a pending recurring transfer without refund", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 1).
			WillReturnRows(achRow(models.ACHStatusPending, "monthly"))
		mock.ExpectExec("UPDATE ach_transactions").
			WithArgs(models.ACHStatusCancelled, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		router := chi.NewRouter()
		router.Post("/ach/{id}/cancel", service.CancelRecurring)

		r := requestWithPrincipal("POST", "/ach/7/cancel", nil, 1, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("one-time transfers cannot be cancelled", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 1).
			WillReturnRows(achRow(models.ACHStatusPending, "one-time"))
		mock.ExpectRollback()

		router := chi.NewRouter()
		router.Post("/ach/{id}/cancel", service.CancelRecurring)

		r := requestWithPrincipal("POST", "/ach/7/cancel", nil, 1, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cancelled transfer stays cancelled", func(t *testing.T) {
		service, mock, closeDB := newACHTestService(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, amount, transaction_fee").
			WithArgs(7, "user", 1).
			WillReturnRows(achRow(models.ACHStatusCancelled, "monthly"))
		mock.ExpectRollback()

		router := chi.NewRouter()
		router.Post("/ach/{id}/cancel", service.CancelRecurring)

		r := requestWithPrincipal("POST", "/ach/7/cancel", nil, 1, "user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
