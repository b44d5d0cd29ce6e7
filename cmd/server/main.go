/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wallet service: configuration, logging,
  storage, HTTP router, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env honored)
  2. Initialize zerolog
  3. Open the SQLite store (schema migrated on open)
  4. Wire service, handler, and router
  5. Serve with graceful shutdown on SIGINT/SIGTERM

ENVIRONMENT:
  PORT, DB_PATH (":memory:" for in-memory), LOG_LEVEL,
  READ_TIMEOUT, WRITE_TIMEOUT, SHUTDOWN_TIMEOUT

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/warp/wallet-ledger/api"
	"github.com/warp/wallet-ledger/config"
	"github.com/warp/wallet-ledger/store/sqlite"
	"github.com/warp/wallet-ledger/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	service := wallet.NewService(store, log.With().Str("component", "wallet").Logger())
	handler := api.NewHandler(service, store)
	router := api.NewRouter(handler, log.With().Str("component", "http").Logger())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
