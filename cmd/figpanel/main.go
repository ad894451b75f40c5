package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"figpanel/internal/adapter/driven/credstore"
	remoteadapter "figpanel/internal/adapter/driven/remote"
	sqliteadapter "figpanel/internal/adapter/driven/sqlite"
	httphandler "figpanel/internal/adapter/driving/http"
	"figpanel/internal/application"
	"figpanel/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base_url", cfg.APIBaseURL,
		"stats_poll_interval", cfg.StatsPollEvery,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	figureStore := sqliteadapter.NewFigureRepo(db)
	runStore := sqliteadapter.NewSyncRunRepo(db)
	credentialRepo := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	creds := credstore.New(credentialRepo)
	if !cfg.HasSecretKey() {
		slog.Info("no encryption key configured, persistent credential tier disabled")
	}

	var tokens remoteadapter.TokenSource
	if cfg.AuthRefreshURL != "" {
		tokens = remoteadapter.NewRefreshingTokenSource(cfg.AuthRefreshURL, cfg.RefreshToken)
	} else {
		tokens = remoteadapter.NewStaticTokenSource(cfg.APIToken)
	}
	remote := remoteadapter.NewClient(remoteadapter.Config{
		APIBaseURL:  cfg.APIBaseURL,
		SyncBaseURL: cfg.SyncAPIBaseURL,
		Tokens:      tokens,
	})

	// 6. Create application services.
	collection := application.NewCollectionService(figureStore, remote)
	wizard := application.NewWizard(creds, remote, runStore, collection, cfg.CookieNames, cfg.StatsPollEvery)
	autofill := application.NewAutoFill(remote, cfg.AutofillDebounce)
	defer autofill.Close()
	defer wizard.Close()

	// 7. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(
		creds,
		remote,
		runStore,
		wizard,
		autofill,
		collection,
		cfg.CookieNames,
		slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("figpanel started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
