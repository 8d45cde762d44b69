package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verdant-ai/verdant/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Verdant as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []mcp.Option
			if a.cache != nil {
				opts = append(opts, mcp.WithCacheStats(a.cache))
			}
			if a.attempts != nil {
				opts = append(opts, mcp.WithAttempts(a.attempts))
			}
			return mcp.New(a.client, a.cfg.Usage.DefaultUser, version, opts...).Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
