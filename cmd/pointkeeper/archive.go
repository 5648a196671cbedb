package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pointkeeper/internal/export"
	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
	"github.com/dukerupert/pointkeeper/internal/store"
)

var (
	archiveAdmin   string
	archiveTitle   string
	archiveHistory bool
	archiveUpload  bool

	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Manage point archives",
	}

	archiveCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Snapshot a tenant's standings, optionally uploading the snapshot to S3",
		Long: `Snapshot a tenant's standings. Run this while the server is stopped;
a running server keeps its own copy of the ledger and would overwrite the change.`,
		RunE: runArchiveCreate,
	}
)

func init() {
	archiveCreateCmd.Flags().StringVar(&archiveAdmin, "admin", "", "tenant admin id")
	archiveCreateCmd.Flags().StringVar(&archiveTitle, "title", "", "archive title")
	archiveCreateCmd.Flags().BoolVar(&archiveHistory, "history", false, "include each member's audit history")
	archiveCreateCmd.Flags().BoolVar(&archiveUpload, "export", false, "upload the archive to S3 after creating it")
	archiveCreateCmd.MarkFlagRequired("admin")
	archiveCreateCmd.MarkFlagRequired("title")
	archiveCmd.AddCommand(archiveCreateCmd)
}

func runArchiveCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, data, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	l := ledger.New(data, ledger.WithLogger(logger))
	if u, ok := l.User(archiveAdmin); !ok || u.Role != model.RoleAdmin {
		return fmt.Errorf("admin %s not found", archiveAdmin)
	}
	a, err := l.CreateArchive(archiveAdmin, archiveTitle, archiveHistory)
	if err != nil {
		return err
	}
	if err := b.store.Save(ctx, model.StoreData{Archives: l.Data().Archives}); err != nil {
		return err
	}
	logger.Info("archive created", "archive_id", a.ID, "members", len(a.MemberSnapshots))

	out := map[string]any{"archive": a}
	if archiveUpload {
		m := export.NewManager(cfg.Export, store.NewExportStore(b.db), logger, nil)
		rec, err := m.Export(ctx, a)
		if err != nil {
			return fmt.Errorf("export archive %s: %w", a.ID, err)
		}
		out["export"] = rec
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
