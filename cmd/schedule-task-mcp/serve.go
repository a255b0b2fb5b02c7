package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/config"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/executor"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/mcpserver"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/scheduler"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/timeutil"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	zone := timeutil.ResolveZone(cfg.TimezoneName)

	legacyPath := filepath.Join(filepath.Dir(cfg.DBPath), "tasks.json")
	st, err := store.Open(ctx, cfg.DBPath, legacyPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// The RPC surface is the sampling channel, but it is itself built from
	// the scheduler, which is built from this driver — wired in two passes.
	exec := executor.New(st, nil, cfg.SamplingTimeout)
	sch := scheduler.New(st, exec, zone)
	srv := mcpserver.New(sch, zone)
	exec.SetSampling(srv)

	if err := sch.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}
	defer sch.Shutdown()

	slog.Info("schedule-task-mcp serving", "db_path", cfg.DBPath, "zone", zone.String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
