package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aManDev200/Banking-Apis/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedgerService_CreditTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful credit", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "100.50"))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("150.5"), 10).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("user", 1, models.TxTypeDeposit, decimal.RequireFromString("50")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		balance, err := service.CreditTx(tx, "user", 1, decimal.NewFromInt(50), models.TxTypeDeposit)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("150.5")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rounds half up at persistence", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "0"))

		// 10.005 rounds up to 10.01
		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("10.01"), 10).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("user", 1, models.TxTypeDeposit, decimal.RequireFromString("10.01")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		_, err := service.CreditTx(tx, "user", 1, decimal.RequireFromString("10.005"), models.TxTypeDeposit)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		_, err := service.CreditTx(tx, "user", 1, decimal.Zero, models.TxTypeDeposit)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 99).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}))

		_, err := service.CreditTx(tx, "user", 99, decimal.NewFromInt(50), models.TxTypeDeposit)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedgerService_DebitTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful debit", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("employee", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(11, "employee", 2, "500.00"))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("300"), 11).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("employee", 2, models.TxTypeWithdrawal, decimal.RequireFromString("200")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		balance, err := service.DebitTx(tx, "employee", 2, decimal.NewFromInt(200), models.TxTypeWithdrawal)
		assert.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(300)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance writes nothing", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "100.00"))

		_, err := service.DebitTx(tx, "user", 1, decimal.NewFromInt(200), models.TxTypeWithdrawal)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("debit to exactly zero is allowed", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "100.00"))

		mock.ExpectExec("UPDATE accounts").
			WithArgs(decimal.RequireFromString("0"), 10).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("user", 1, models.TxTypeWithdrawal, decimal.RequireFromString("100")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		balance, err := service.DebitTx(tx, "user", 1, decimal.NewFromInt(100), models.TxTypeWithdrawal)
		assert.NoError(t, err)
		assert.True(t, balance.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("successful deposit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "0"))
		mock.ExpectExec("UPDATE accounts").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]any{"amount": "250.00"})
		r := requestWithPrincipal("POST", "/accounts/deposit", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing principal", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"amount": "250.00"})
		r := httptest.NewRequest("POST", "/accounts/deposit", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("negative amount", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"amount": "-10"})
		r := requestWithPrincipal("POST", "/accounts/deposit", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Deposit(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLedgerService_Withdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("insufficient funds returns 400", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, owner_type, owner_id, balance").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "owner_type", "owner_id", "balance"}).
				AddRow(10, "user", 1, "50.00"))
		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]any{"amount": "100.00"})
		r := requestWithPrincipal("POST", "/accounts/withdraw", bytes.NewReader(body), 1, "user")
		w := httptest.NewRecorder()

		service.Withdraw(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Contains(t, resp.Error, "insufficient")
	})
}

func TestLedgerService_TransactionHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db)

	t.Run("returns records most recent first", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT id, account_type, account_id, transaction_type, amount, created_at").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_type", "account_id", "transaction_type", "amount", "created_at"}).
				AddRow(2, "user", 1, "withdrawal", "20.00", now).
				AddRow(1, "user", 1, "deposit", "100.00", now.Add(-time.Hour)))

		r := requestWithPrincipal("GET", "/accounts/transactions", nil, 1, "user")
		w := httptest.NewRecorder()

		service.TransactionHistory(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var records []models.TransactionRecord
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
		assert.Len(t, records, 2)
		assert.Equal(t, "withdrawal", records[0].TransactionType)
	})

	t.Run("empty history is 404", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, account_type, account_id, transaction_type, amount, created_at").
			WithArgs("user", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_type", "account_id", "transaction_type", "amount", "created_at"}))

		r := requestWithPrincipal("GET", "/accounts/transactions", nil, 1, "user")
		w := httptest.NewRecorder()

		service.TransactionHistory(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCalculatePayrollTax(t *testing.T) {
	cases := []struct {
		name     string
		salary   string
		expected string
	}{
		{"below all slabs", "200000", "0"},
		{"five percent slab", "300000", "15000"},
		{"ten percent slab", "600000", "60000"},
		{"twenty percent slab", "1200000", "240000"},
		{"thirty percent slab", "2000000", "600000"},
		{"boundary is exclusive", "250000", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tax := calculatePayrollTax(decimal.RequireFromString(tc.salary))
			assert.True(t, tax.Equal(decimal.RequireFromString(tc.expected)),
				"expected %s, got %s", tc.expected, tax)
		})
	}
}
