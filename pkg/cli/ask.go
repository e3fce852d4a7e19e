package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/usecase/search"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg     config
		asJSON  bool
		direct  bool
		newConv bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the finalized message as JSON",
			Destination: &asJSON,
		},
		&cli.BoolFlag{
			Name:        "direct",
			Usage:       "Call the QA backend directly instead of a qtda server",
			Sources:     cli.EnvVars("QTDA_ASK_DIRECT"),
			Destination: &direct,
		},
		&cli.BoolFlag{
			Name:        "new",
			Aliases:     []string{"n"},
			Usage:       "Ask in a new conversation",
			Destination: &newConv,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, apiFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask one question and record it in the current conversation",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

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
			if newConv {
				ctrl.StartNewConversation(ctx)
			}

			msg := ctrl.Search(ctx, question)

			if asJSON {
				raw, err := json.MarshalIndent(msg, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal message")
				}
				fmt.Fprintf(c.Root().Writer, "%s\n", raw)
			} else {
				printMessage(c.Root().Writer, msg)
			}

			if msg.State == model.MessageStateError {
				return goerr.New("search failed", goerr.V("error", msg.Error))
			}
			return nil
		},
	}
}
