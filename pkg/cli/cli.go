package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "qtda",
		Usage: "Question answering front-end for the snake knowledge backend",
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
			askCommand(),
			historyCommand(),
			logsCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
