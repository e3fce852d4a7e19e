package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/usecase/search"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const chatHelp = `Commands:
  /new            start a new conversation
  /list           list conversations (* marks the current one)
  /select <id>    switch to a conversation
  /delete <id>    delete a conversation
  /history        show the current conversation
  /retry          send the last question again
  /logs           show recent search logs
  /help           show this help
  /exit           quit
Anything else is sent as a question.`

func chatCommand() *cli.Command {
	var cfg config

	var flags []cli.Flag
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, apiFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive search session against a running qtda server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogger(ctx)

			st, err := cfg.newStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			ctrl, err := cfg.newController(ctx, cfg.newSearchClient(), st)
			if err != nil {
				return err
			}

			historyFile := ""
			if path, err := defaultStoragePath("chat_history"); err == nil {
				historyFile = path
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "\033[32m>\033[0m ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "/exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			session := &chatSession{
				ctrl:    ctrl,
				logs:    st.searchLogs,
				w:       c.Root().Writer,
				spinner: true,
			}
			session.welcome(ctx)

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				quit, err := session.handle(ctx, line)
				if err != nil {
					logging.From(ctx).Warn("command failed", logging.ErrAttr(err))
					fmt.Fprintf(c.Root().Writer, "%v\n", err)
				}
				if quit {
					break
				}
			}

			fmt.Fprintf(c.Root().Writer, "\nChat session completed\n")
			return nil
		},
	}
}

type searchLogLister interface {
	List(ctx context.Context) []*model.SearchLog
}

// chatSession interprets one line of input at a time
type chatSession struct {
	ctrl    *search.Controller
	logs    searchLogLister
	w       io.Writer
	spinner bool
}

func (s *chatSession) welcome(ctx context.Context) {
	fmt.Fprintf(s.w, "Conversation %s. Type /help for commands.\n", s.ctrl.CurrentConversationID())
	for _, msg := range s.ctrl.History() {
		fmt.Fprintf(s.w, "\n> %s\n", msg.Query)
		printMessage(s.w, msg)
	}
}

func (s *chatSession) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	if !strings.HasPrefix(line, "/") {
		return false, s.run(func() (*model.Message, error) {
			return s.ctrl.Search(ctx, line), nil
		})
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		fmt.Fprintln(s.w, chatHelp)

	case "/new":
		conv := s.ctrl.StartNewConversation(ctx)
		fmt.Fprintf(s.w, "Started conversation %s\n", conv.ID)

	case "/list":
		return false, printConversations(s.w, s.ctrl.Conversations(ctx), s.ctrl.CurrentConversationID())

	case "/select":
		if len(args) != 1 {
			return false, goerr.New("usage: /select <id>")
		}
		if err := s.ctrl.SelectConversation(ctx, model.ConversationID(args[0])); err != nil {
			return false, err
		}
		s.welcome(ctx)

	case "/delete":
		if len(args) != 1 {
			return false, goerr.New("usage: /delete <id>")
		}
		s.ctrl.DeleteConversation(ctx, model.ConversationID(args[0]))
		fmt.Fprintf(s.w, "Deleted conversation %s\n", args[0])

	case "/history":
		for _, msg := range s.ctrl.History() {
			fmt.Fprintf(s.w, "\n> %s\n", msg.Query)
			printMessage(s.w, msg)
		}

	case "/retry":
		return false, s.run(func() (*model.Message, error) {
			return s.ctrl.Retry(ctx)
		})

	case "/logs":
		return false, printSearchLogs(s.w, s.logs.List(ctx), formatTable)

	default:
		return false, goerr.New("unknown command, type /help", goerr.V("command", cmd))
	}

	return false, nil
}

// run shows a spinner while fn waits for the answer, then prints it
func (s *chatSession) run(fn func() (*model.Message, error)) error {
	var sp *spinner.Spinner
	if s.spinner {
		sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(s.w))
		sp.Suffix = " Đang tìm kiếm..."
		sp.Start()
	}

	msg, err := fn()
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}

	printMessage(s.w, msg)
	if msg.State == model.MessageStateError {
		fmt.Fprintln(s.w, "Type /retry to try again.")
	}
	return nil
}
