package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/filegate/internal/store"
	"github.com/p-blackswan/filegate/internal/tokens"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print user and token counts from the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		users, err := db.CountUsers(ctx)
		if err != nil {
			return err
		}
		count, err := db.Count(ctx)
		if err != nil {
			return err
		}
		size, err := db.DBSizeBytes()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "users:  %d\n", users)
		fmt.Fprintf(out, "tokens: %d\n", count)
		fmt.Fprintf(out, "size:   %d bytes\n", size)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [token]",
	Short: "Look up the file behind a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !tokens.Valid(key) {
			return fmt.Errorf("malformed token %q", key)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		tok, found, err := db.Lookup(cmd.Context(), key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("token %s not found", key)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "token:   %s\n", tok.Key)
		fmt.Fprintf(out, "name:    %s\n", tok.FileName)
		fmt.Fprintf(out, "file_id: %s\n", tok.FileID)
		return nil
	},
}

func openStore() (*store.Store, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.New(cfg.DBPath, logger)
}
