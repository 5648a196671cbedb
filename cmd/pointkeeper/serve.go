package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pointkeeper/internal/email"
	"github.com/dukerupert/pointkeeper/internal/export"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/persistence"
	"github.com/dukerupert/pointkeeper/internal/server"
	"github.com/dukerupert/pointkeeper/internal/store"
	ws "github.com/dukerupert/pointkeeper/internal/websocket"
)

const cleanupInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, data, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	writer := persistence.NewWriter(b.store, logger)
	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		writer.Run(writerCtx)
		close(writerDone)
	}()

	hub := ws.NewHub(logger.With("component", "websocket"))
	l := ledger.New(data,
		ledger.WithLogger(logger),
		ledger.WithObserver(func(c ledger.Change) { writer.Enqueue(c.Data) }),
		ledger.WithObserver(hub.Notify),
	)

	mailer := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	if mailer.Configured() {
		notifier := email.NewNotifier(mailer, l, cfg.BaseURL, logger)
		l.AddObserver(notifier.Notify)
		go notifier.Run(ctx)
	} else {
		logger.Info("appeal notices disabled, Postmark not configured")
	}

	exports := export.NewManager(cfg.Export, store.NewExportStore(b.db), logger, func(s export.Status) {
		extra := map[string]any{"inProgress": s.InProgress}
		if s.Error != "" {
			extra["error"] = s.Error
		}
		hub.Broadcast("", ws.NewMessage("export", string(s.State), "", extra))
	})
	if !exports.Enabled() {
		logger.Info("archive export disabled, S3 not configured")
	}

	srv := server.New(server.Options{
		Ledger:          l,
		Sessions:        store.NewSessionStore(b.db),
		Exports:         exports,
		Hub:             hub,
		SessionTTL:      cfg.SessionTTL,
		PublicRateLimit: cfg.PublicRateLimit,
		TrustedProxies:  cfg.TrustedProxies,
		OriginPatterns:  cfg.WSOrigins,
		Logger:          logger,
	})

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("pointkeeper listening", "addr", httpServer.Addr, "store", cfg.StoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stopWriter()
			<-writerDone
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	// The writer makes a final save once its context is cancelled.
	stopWriter()
	<-writerDone
	return nil
}
