package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage stored conversations",
		Commands: []*cli.Command{
			historyListCommand(),
			historyShowCommand(),
			historyDeleteCommand(),
		},
	}
}

func historyListCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List conversations (* marks the current one)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			return printConversations(c.Root().Writer,
				st.conversations.List(ctx),
				st.conversations.Current(ctx),
			)
		},
	}
}

func historyShowCommand() *cli.Command {
	var (
		cfg    config
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the conversation as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a conversation (the current one when no ID is given)",
		ArgsUsage: "[conversation-id]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			id := model.ConversationID(c.Args().First())
			if id == "" {
				id = st.conversations.Current(ctx)
			}
			if id == "" {
				return goerr.New("no current conversation, give a conversation ID")
			}

			conv := st.conversations.Get(ctx, id)
			if conv == nil {
				return goerr.New("conversation not found", goerr.V("id", id))
			}

			if asJSON {
				data, err := json.MarshalIndent(conv, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal conversation")
				}
				fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
				return nil
			}

			printConversation(c.Root().Writer, conv)
			return nil
		},
	}
}

func historyDeleteCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete conversations",
		ArgsUsage: "<conversation-id>...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			if c.Args().Len() == 0 {
				return goerr.New("conversation ID is required")
			}

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			for _, arg := range c.Args().Slice() {
				id := model.ConversationID(arg)
				if st.conversations.Get(ctx, id) == nil {
					return goerr.New("conversation not found", goerr.V("id", id))
				}
				st.conversations.Delete(ctx, id)
				fmt.Fprintf(c.Root().Writer, "Deleted %s\n", id)
			}
			return nil
		},
	}
}
