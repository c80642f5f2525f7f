// Package main runs the auth service: registration with email OTP
// verification, optional TOTP second factor, admin-approval gate, and JWT
// access/refresh token issuance.
//
// Configuration comes from the environment (optionally a .env file); see
// internal/config. Run:
//
//	go run ./cmd/auth-service
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/r2r72/corpgate/cmd/auth-service/handlers"
	"github.com/r2r72/corpgate/internal/config"
	"github.com/r2r72/corpgate/internal/email"
	"github.com/r2r72/corpgate/internal/repository/pg"
	"github.com/r2r72/corpgate/internal/service/auth"
	"github.com/r2r72/corpgate/internal/storage"
	"github.com/r2r72/corpgate/internal/token"
)

// Compile-time check: pg.AccountRepository implements auth.AccountRepository.
var _ auth.AccountRepository = (*pg.AccountRepository)(nil)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := pg.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer db.Close()

	var mailer auth.Mailer
	if cfg.SMTP.Configured() {
		mailer = email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		mailer = &email.LogSender{Logger: logger}
	}

	files, err := storage.NewDir(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to init upload dir", zap.Error(err))
	}

	repo := pg.NewAccountRepository(db)
	tokenSvc := token.NewService([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)
	authSvc := auth.NewAuthService(repo, tokenSvc, mailer, files, cfg.RequireEmailDomain, logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	handlers.RegisterAuthRoutes(r, authSvc, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("auth service started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-done
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}

	logger.Info("auth service stopped")
}
