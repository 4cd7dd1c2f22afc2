// Package main initializes and starts the accountd HTTP server, setting up
// configuration, logging, storage, services, handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/hase-lab/accountd/internal/config"
	"github.com/hase-lab/accountd/internal/db"
	"github.com/hase-lab/accountd/internal/logger"
	"github.com/hase-lab/accountd/internal/repository"
	"github.com/hase-lab/accountd/internal/server/handler/http"
	"github.com/hase-lab/accountd/internal/service"
	"github.com/hase-lab/accountd/internal/tracing"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, environment and file configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init("accountd", cmp.Or(version, "dev"), zapLogger)

	// Pick the store: PostgreSQL when a DSN is configured, memory otherwise.
	var (
		store  service.Store
		purger db.SessionPurger
	)
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		pg := repository.NewPostgresStore(postgresDB)
		store, purger = pg, pg
		zapLogger.Info("using postgres store")
	} else {
		mem := repository.NewMemoryStore()
		store, purger = mem, mem
		zapLogger.Warn("no database DSN configured, using in-memory store")
	}

	db.StartSessionCleaner(ctx, purger, options.CleanupInterval, options.SessionRetention, zapLogger)

	accountService := service.NewAccountService(store, zapLogger, service.WithSessionTTL(options.SessionTTL))
	accountHandler := &http.AccountHandler{AccountService: accountService, Log: zapLogger}
	router := http.NewRouter(accountHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if options.TLSEnabled() {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSEnabled() {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		zapLogger.Error("tracer shutdown failed", zap.Error(err))
	}
}
