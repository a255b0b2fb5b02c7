// Package main is the entrypoint: it wires internal/store,
// internal/executor, internal/scheduler, and internal/mcpserver together
// behind a small github.com/spf13/cobra CLI, matching the teacher's
// cobra-subcommand-per-file convention.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	debug     bool
	logFormat string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule-task-mcp",
		Short: "Scheduled-task MCP server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			opts := &slog.HandlerOptions{Level: level}
			var handler slog.Handler
			// Stdout carries the JSON-RPC transport; every log line goes to
			// stderr regardless of format or subcommand.
			if logFormat == "text" {
				handler = slog.NewTextHandler(os.Stderr, opts)
			} else {
				handler = slog.NewJSONHandler(os.Stderr, opts)
			}
			slog.SetDefault(slog.New(handler))
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log output format: json or text")
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateCmd())
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
