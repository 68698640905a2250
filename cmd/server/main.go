package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	httpapi "tripsplit-backend/internal/api/http"
	"tripsplit-backend/internal/config"
	"tripsplit-backend/internal/logger"
	"tripsplit-backend/internal/ratelimit"
	"tripsplit-backend/internal/repository/postgres"
	"tripsplit-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load .env overrides if present
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting TripSplit Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Rate Limiter
	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		limiter, err = ratelimit.NewRedisLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to redis", "error", err, "addr", cfg.Redis.Addr)
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		logger.Info("Using redis rate limiter", "addr", cfg.Redis.Addr)
	} else {
		limiter = ratelimit.NewMemoryLimiter()
		logger.Info("Using in-memory rate limiter")
	}

	// Initialize Email Service
	emailSvc := service.NewEmailService(
		cfg.Email.SendGridAPIKey,
		cfg.Email.FromAddress,
		cfg.Email.FromName,
	)
	if emailSvc == nil {
		logger.Warn("SendGrid API key not configured, settlement emails disabled")
	}

	// Initialize Services
	guard := service.NewIntegrityGuard(store.SettlementRepository, store.MemberRepository)
	ledgerSvc := service.NewLedgerService(store.ExpenseRepository, store.MemberRepository, guard)
	balanceSvc := service.NewBalanceService(store.ExpenseRepository, store.SettlementRepository, store.MemberRepository)
	settlementSvc := service.NewSettlementService(store.SettlementRepository, store.MemberRepository, balanceSvc, emailSvc)
	participationSvc := service.NewParticipationService(store.ActivityRepository, store.ExpenseRepository, store.SettlementRepository)
	membershipSvc := service.NewMembershipService(
		store.TripRepository,
		store.MemberRepository,
		store.ActivityRepository,
		store.ExpenseRepository,
		store.SettlementRepository,
	)

	// Set up HTTP server
	router := mux.NewRouter()
	handler := httpapi.NewHandler(
		ledgerSvc,
		balanceSvc,
		settlementSvc,
		participationSvc,
		membershipSvc,
		limiter,
		cfg.RateLimit,
	)
	handler.Register(router)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
