package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pointkeeper/internal/config"
	"github.com/dukerupert/pointkeeper/internal/database"
	"github.com/dukerupert/pointkeeper/internal/logging"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/persistence"
)

var (
	envFile string

	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "pointkeeper",
		Short:         "Points and discipline ledger for member organizations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(envFile); err != nil {
				return err
			}
			logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, userCmd, archiveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// backend bundles the opened SQLite database and the ledger store.
type backend struct {
	db    *sql.DB
	store *persistence.Resilient
}

func (b *backend) Close() {
	if err := b.store.Close(); err != nil {
		logger.Warn("close store", "error", err)
	}
	b.db.Close()
}

// openBackend opens the SQLite database, which always holds sessions and
// export records, and the configured ledger store, then loads the dataset.
func openBackend(ctx context.Context) (*backend, model.StoreData, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, model.StoreData{}, fmt.Errorf("open database: %w", err)
	}
	st, err := persistence.Open(ctx, persistence.Options{
		Backend:     cfg.StoreBackend,
		SQLite:      db,
		PostgresDSN: cfg.PostgresDSN,
		BadgerPath:  cfg.BadgerPath,
	}, logger)
	if err != nil {
		db.Close()
		return nil, model.StoreData{}, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	data, err := st.Load(ctx)
	if err != nil {
		st.Close()
		db.Close()
		return nil, model.StoreData{}, fmt.Errorf("load ledger: %w", err)
	}
	return &backend{db: db, store: st}, data, nil
}
