package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/hybridqa/pkg/server"
)

type ServeCmd struct{}

func NewServeCmd() *ServeCmd {
	return &ServeCmd{}
}

func (c *ServeCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the agent as MCP tools over streamable HTTP or stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdio, err := cmd.Flags().GetBool("stdio")
			if err != nil {
				return fmt.Errorf("failed to get stdio flag: %w", err)
			}
			listenAddr, err := cmd.Flags().GetString("listen-addr")
			if err != nil {
				return fmt.Errorf("failed to get listen-addr flag: %w", err)
			}
			tokens, err := cmd.Flags().GetStringSlice("allowed-tokens")
			if err != nil {
				return fmt.Errorf("failed to get allowed-tokens flag: %w", err)
			}

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen-addr") {
				cfg.Server.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("allowed-tokens") {
				cfg.Server.AllowedTokens = tokens
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			startMetricsServer(log, cfg.MetricsAddr)

			a, err := newApp(ctx, log, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := server.New(server.Config{
				Logger:        log,
				Agent:         a.pipeline,
				Store:         a.store,
				Index:         a.index,
				Version:       Version,
				ListenAddr:    cfg.Server.ListenAddr,
				AllowedTokens: cfg.Server.AllowedTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			if stdio {
				return srv.RunStdio(ctx)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().Bool("stdio", false, "serve a single MCP session over stdin/stdout")
	cmd.Flags().String("listen-addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringSlice("allowed-tokens", nil, "bearer tokens accepted by the MCP endpoint (auth disabled when empty)")

	return cmd
}
