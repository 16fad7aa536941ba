package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neuroscreen-fusion-server/internal/config"
	"github.com/neuroscreen-fusion-server/internal/mcp"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadLiteConfig()

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
