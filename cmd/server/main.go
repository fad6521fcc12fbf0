package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/aManDev200/Banking-Apis/internal/database"
	mW "github.com/aManDev200/Banking-Apis/internal/middleware"
	"github.com/aManDev200/Banking-Apis/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("ach.fee_percentage", "ACH_FEE_PERCENTAGE")
	viper.BindEnv("latefee.scan_interval", "LATEFEE_SCAN_INTERVAL")
	viper.BindEnv("latefee.charge", "LATEFEE_CHARGE")
	viper.BindEnv("processor.base_url", "PROCESSOR_BASE_URL")
	viper.BindEnv("settlement.currency", "SETTLEMENT_CURRENCY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	authService := services.NewAuthService(db, redisClient)
	processorClient := services.NewProcessorClient()
	cardService := services.NewCardService(db, ledgerService, processorClient)
	settlementService := services.NewSettlementService()
	achService := services.NewACHService(db, ledgerService, settlementService)
	loanService := services.NewLoanService(db, ledgerService)
	lateFeeScanner := services.NewLateFeeScanner(db, ledgerService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Late fee scanner
	scanCtx, stopScanner := context.WithCancel(context.Background())
	go lateFeeScanner.Run(scanCtx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/accounts/deposit", ledgerService.Deposit)
			r.Post("/accounts/withdraw", ledgerService.Withdraw)
			r.Get("/accounts/balance", ledgerService.BalanceInquiry)
			r.Get("/accounts/transactions", ledgerService.TransactionHistory)
			r.Get("/accounts/payroll", ledgerService.Payroll)

			r.Post("/cards/debit", cardService.RegisterDebitCard)
			r.Post("/cards/credit", cardService.RegisterCreditCard)
			r.Post("/cards/pay", cardService.Pay)
			r.Post("/cards/repay", cardService.Repay)

			r.Post("/ach/initiate", achService.Initiate)
			r.Post("/ach/{id}/reverse", achService.Reverse)
			r.Post("/ach/{id}/cancel", achService.CancelRecurring)

			r.Post("/loans", loanService.CreateLoan)
			r.Post("/loans/{id}/repay", loanService.Repay)
			r.Post("/loans/{id}/default", loanService.MarkDefaulted)
			r.Post("/loans/cost", loanService.CalculateLoanCost)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopScanner()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
