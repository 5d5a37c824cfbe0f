package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"splitledger/internal/auth"
	"splitledger/internal/config"
	apphttp "splitledger/internal/http"
	"splitledger/internal/log"
	"splitledger/internal/services"
	"splitledger/internal/storage"

	amqpclient "splitledger/internal/amqp"
)

func main() {
	// Load .env for local development; absent in production is fine.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentApp,
		Format:    cfg.LogFormat,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqpclient.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err)
			os.Exit(1)
		}
		publisher = client
		logger.Info("AMQP publisher connected", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled, expense events will not be published")
	}

	service := services.NewExpenseService(repo, publisher)
	defer service.Close()

	authenticator := auth.NewPasswordAuthenticator(repo)
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)

	srv := apphttp.NewServer(":"+cfg.Port, service, authenticator, tokens, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting splitledger server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
