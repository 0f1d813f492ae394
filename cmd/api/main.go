package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/olatech/account-service/internal/config"
	"github.com/olatech/account-service/internal/handler"
	"github.com/olatech/account-service/internal/middleware"
	"github.com/olatech/account-service/internal/repository"
	"github.com/olatech/account-service/internal/service"
	"github.com/olatech/account-service/internal/token"
	"github.com/olatech/account-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Token service holds the signing key for the whole process
	tokens, err := token.NewService(cfg.JWTSecret, nil)
	if err != nil {
		logger.Fatalf("Failed to create token service: %v", err)
	}

	// Outbound email: SMTP sender behind a retrying queue
	sender, err := email.NewSender(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create email sender: %v", err)
	}
	queue := email.NewQueue(sender, logger, cfg.MailMaxAttempts, cfg.MailRetrySpec)
	if err := queue.Start(); err != nil {
		logger.Fatalf("Failed to start email queue: %v", err)
	}
	defer queue.Stop()

	// Initialize layers
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, tokens, sender, queue, logger, cfg)
	h := handler.NewHandler(svc, logger)

	// Setup router; admin routes require an authenticated admin session
	r := h.Router(middleware.Auth(tokens), middleware.RequireAdmin)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
