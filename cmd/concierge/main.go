// Package main provides the CLI entry point for the Concierge personal
// assistant.
//
// Concierge answers chat messages over a websocket UI, WhatsApp, and
// Telegram. Scheduling requests become calendar events, calendar
// questions are answered from the upcoming agenda, and everything else
// is answered with retrieval-augmented generation over the indexed
// knowledge base.
//
// # Basic Usage
//
// Start the assistant:
//
//	concierge serve --config concierge.yaml
//
// Index documents into the knowledge base:
//
//	concierge index docs/handbook.md docs/faq.md
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "concierge",
		Short: "Concierge - conversational personal assistant",
		Long: `Concierge routes chat messages to the right pipeline: calendar event
creation, calendar lookups, or retrieval-augmented answers over your
indexed documents.

Transports: websocket chat UI, WhatsApp Cloud API, Telegram`,
		Version:      version + " (commit: " + commit + ", built: " + date + ")",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildIndexCmd(),
	)
	return rootCmd
}
