package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-relay-go/internal/binanceus"
	"signal-relay-go/internal/config"
	"signal-relay-go/internal/database"
	"signal-relay-go/internal/jupiter"
	"signal-relay-go/internal/lock"
	"signal-relay-go/internal/logger"
	"signal-relay-go/internal/mexc"
	"signal-relay-go/internal/solana"
	"signal-relay-go/internal/store"
	"signal-relay-go/internal/trader"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	decimal.MarshalJSONWithoutQuotes = true

	// The journal is optional at startup: routes that need it answer with a
	// configuration error instead of taking the process down.
	var st store.Store
	dbErr := cfg.RequireDatabase()
	if dbErr == nil {
		db, err := database.NewDatabase(cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db)
		st = store.NewGormStore(db)
		log.Info("Database connection successful and schema migrated.")
	} else {
		log.Warn("Database not configured", zap.Error(dbErr))
	}

	server := trader.NewAPIServer(cfg.Trader, lock.New(cfg.Lock), log)

	if err := firstErr(cfg.RequireBinance(), dbErr); err != nil {
		log.Warn("Binance US handler disabled", zap.Error(err))
		server.Handle("/api/binance", nil, err)
	} else {
		client := binanceus.NewClient(cfg.Binance, log)
		server.Handle("/api/binance", trader.NewEngine(client, trader.BinanceUSPolicy, st, log), nil)
	}

	if err := firstErr(cfg.RequireMexc(), dbErr); err != nil {
		log.Warn("MEXC handler disabled", zap.Error(err))
		server.Handle("/api/mexc", nil, err)
	} else {
		client := mexc.NewRestClient(cfg.Mexc, log)
		server.Handle("/api/mexc", trader.NewEngine(client, trader.MexcPolicy, st, log), nil)
	}

	dex, err := jupiterExecutor(&cfg, st, firstErr(cfg.RequireSolana(), dbErr), log)
	server.Handle("/api/jupiter", dex, err)
	server.HandleJournal("/api/webhook", st, dbErr)

	server.Start()

	// Wait for a shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	log.Info("Relay has been shut down.")
}

// jupiterExecutor builds the DEX executor, or reports why it cannot run.
func jupiterExecutor(cfg *config.Config, st store.Store, configErr error, log *zap.Logger) (trader.Executor, error) {
	if configErr != nil {
		log.Warn("Jupiter handler disabled", zap.Error(configErr))
		return nil, configErr
	}
	wallet, err := solana.NewWallet(cfg.Solana, log)
	if err != nil {
		log.Warn("Jupiter handler disabled", zap.Error(err))
		return nil, err
	}
	log.Info("Solana wallet loaded", zap.String("public_key", wallet.PublicKey()))
	return trader.NewDEXExecutor(jupiter.NewClient(cfg.Jupiter, log), wallet, st, cfg.Solana.USDTMint), nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
