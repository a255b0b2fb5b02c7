package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/config"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and run the legacy import, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	legacyPath := filepath.Join(filepath.Dir(cfg.DBPath), "tasks.json")
	st, err := store.Open(context.Background(), cfg.DBPath, legacyPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	fmt.Printf("Migrations applied: %s\n", cfg.DBPath)
	return nil
}
