package cli

import (
	"context"

	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/service/mcp"
	"github.com/m-mizutani/qtda/pkg/usecase/search"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg    config
		direct bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "direct",
			Usage:       "Call the QA backend directly instead of a qtda server",
			Sources:     cli.EnvVars("QTDA_MCP_DIRECT"),
			Destination: &direct,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, apiFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve ask, list_conversations and list_search_logs as MCP tools over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			var searcher search.Searcher = cfg.newSearchClient()
			if direct {
				searcher = adapter.NewBackendSearcher(cfg.newBackend())
			}

			ctrl, err := cfg.newController(ctx, searcher, st)
			if err != nil {
				return err
			}

			return mcp.New(ctrl, st.conversations, st.searchLogs).RunStdio(ctx)
		},
	}
}
