package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestPasswordHashing(t *testing.T) {
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)

	t.Run("round trip", func(t *testing.T) {
		hashed, err := hashPassword("secret123")
		assert.NoError(t, err)
		assert.NotEqual(t, "secret123", hashed)
		assert.True(t, verifyPassword("secret123", hashed))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		hashed, err := hashPassword("secret123")
		assert.NoError(t, err)
		assert.False(t, verifyPassword("wrong", hashed))
	})

	t.Run("same password hashes differently per salt", func(t *testing.T) {
		a, _ := hashPassword("secret123")
		b, _ := hashPassword("secret123")
		assert.NotEqual(t, a, b)
	})

	t.Run("malformed hash fails closed", func(t *testing.T) {
		assert.False(t, verifyPassword("secret123", "not-a-hash"))
	})
}

func TestGenerateJWT(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 10)

	tokenString, err := generateJWT(42, "employee")
	assert.NoError(t, err)

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.NoError(t, err)
	assert.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["user_id"])
	assert.Equal(t, "employee", claims["account_type"])
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	t.Run("user registration creates owner and account together", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO users").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("user", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]any{
			"name":        "Alice Smith",
			"email":       "alice@example.com",
			"password":    "secret123",
			"accountType": "user",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "user", resp.AccountType)
	})

	t.Run("employee registration stores payroll", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO employees").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("employee", 5).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]any{
			"name":        "Bob Jones",
			"email":       "bob@example.com",
			"password":    "secret123",
			"accountType": "employee",
			"position":    "analyst",
			"department":  "risk",
			"salary":      650000,
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid account type", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"name":        "Eve",
			"email":       "eve@example.com",
			"password":    "secret123",
			"accountType": "admin",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewAuthService(db, redisClient)

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, password FROM users").
			WithArgs("nobody@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "password"}))

		body, _ := json.Marshal(map[string]any{
			"email":       "nobody@example.com",
			"password":    "secret123",
			"accountType": "user",
		})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		hashed, _ := hashPassword("correct-password")
		mock.ExpectQuery("SELECT id, name, password FROM users").
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "password"}).
				AddRow(1, "Alice Smith", hashed))

		body, _ := json.Marshal(map[string]any{
			"email":       "alice@example.com",
			"password":    "wrong-password",
			"accountType": "user",
		})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("successful login", func(t *testing.T) {
		hashed, _ := hashPassword("correct-password")
		mock.ExpectQuery("SELECT id, name, password FROM employees").
			WithArgs("bob@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "password"}).
				AddRow(5, "Bob Jones", hashed))

		body, _ := json.Marshal(map[string]any{
			"email":       "bob@example.com",
			"password":    "correct-password",
			"accountType": "employee",
		})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 5, resp.ID)
		assert.Equal(t, "employee", resp.AccountType)
		assert.NotEmpty(t, resp.Token)
	})
}

func TestAuthService_Logout(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	viper.Set("jwt.expiry_hours", 10)

	t.Run("blacklists the presented token", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewAuthService(db, redisClient)

		token := "some.jwt.token"
		redisMock.ExpectSet(fmt.Sprintf("blacklist:%s", token), "1", 10*time.Hour).SetVal("OK")

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("logout without token still succeeds", func(t *testing.T) {
		redisClient, _ := redismock.NewClientMock()
		service := NewAuthService(db, redisClient)

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
