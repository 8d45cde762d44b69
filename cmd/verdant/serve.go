package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verdant-ai/verdant/pkg/api"
	"github.com/verdant-ai/verdant/pkg/logger"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen != "" {
				a.cfg.Listen = listen
			}
			var opts []api.Option
			if a.cache != nil {
				opts = append(opts, api.WithCacheStats(a.cache))
			}

			logger.WithField("config", *configPath).Info("starting verdant")
			return api.New(a.cfg, a.client, opts...).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	return cmd
}
