package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/server"
	"github.com/m-mizutani/qtda/pkg/service/mcp"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg       config
		enableMCP bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "mcp",
			Usage:       "Serve MCP tools over streamable HTTP on /mcp",
			Value:       true,
			Sources:     cli.EnvVars("QTDA_SERVE_MCP"),
			Destination: &enableMCP,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, serverFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP front-end (search proxy, store API, metrics)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			backend := cfg.newBackend()
			opts := []server.Option{
				server.WithStores(st.conversations, st.searchLogs),
				server.WithLogger(logging.From(ctx)),
			}

			if enableMCP {
				ctrl, err := cfg.newController(ctx, adapter.NewBackendSearcher(backend), st)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithMCPHandler(mcp.New(ctrl, st.conversations, st.searchLogs).Handler()))
			}

			logging.From(ctx).Info("starting qtda server",
				"addr", cfg.addr,
				"backend", backend.URL(),
				"storage", cfg.storage,
				"mcp", enableMCP,
			)

			if err := server.New(backend, opts...).Run(ctx, cfg.addr); err != nil {
				return goerr.Wrap(err, "server stopped with error")
			}
			return nil
		},
	}
}
