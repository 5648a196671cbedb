package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pointkeeper/internal/ledger"
	"github.com/dukerupert/pointkeeper/internal/model"
)

var (
	userName     string
	userUsername string
	userPassword string
	userEmail    string

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	userAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Create an admin account, which opens a new tenant",
		Long: `Create an admin account. Contributors are added by their admin
through the API. Run this while the server is stopped; a running server
keeps its own copy of the ledger and would overwrite the change.`,
		RunE: runUserAdd,
	}
)

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "display name")
	userAddCmd.Flags().StringVar(&userUsername, "username", "", "login name (3-20 lowercase letters, digits or underscores)")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "password (defaults to $POINTKEEPER_ADMIN_PASSWORD)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "contact email")
	userAddCmd.MarkFlagRequired("name")
	userAddCmd.MarkFlagRequired("username")
	userCmd.AddCommand(userAddCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if userPassword == "" {
		userPassword = os.Getenv("POINTKEEPER_ADMIN_PASSWORD")
	}
	if userPassword == "" {
		return errors.New("a password is required: pass --password or set POINTKEEPER_ADMIN_PASSWORD")
	}

	b, data, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	l := ledger.New(data, ledger.WithLogger(logger))
	u, err := l.RegisterUser(ledger.UserInput{
		Name:     userName,
		Username: userUsername,
		Password: userPassword,
		Role:     model.RoleAdmin,
		Email:    userEmail,
	})
	if err != nil {
		return err
	}
	if err := b.store.Save(ctx, model.StoreData{Users: l.Data().Users}); err != nil {
		return err
	}

	logger.Info("admin created", "user_id", u.ID, "username", u.Username)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}
