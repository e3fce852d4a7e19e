package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func logsCommand() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Inspect the search log",
		Commands: []*cli.Command{
			logsListCommand(),
			logsClearCommand(),
		},
	}
}

func logsListCommand() *cli.Command {
	var (
		cfg    config
		format string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Output format (table, json, yaml)",
			Value:       formatTable,
			Sources:     cli.EnvVars("QTDA_LOGS_FORMAT"),
			Destination: &format,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List recent search attempts, oldest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			return printSearchLogs(c.Root().Writer, st.searchLogs.List(ctx), format)
		},
	}
}

func logsClearCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every search log entry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			st.searchLogs.Clear(ctx)
			fmt.Fprintln(c.Root().Writer, "Search logs cleared")
			return nil
		},
	}
}
