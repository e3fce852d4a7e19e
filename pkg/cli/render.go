package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
	"gopkg.in/yaml.v3"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func formatDuration(ms int64) string {
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

// printMessage writes a finalized message: the answer and its numbered
// sources, or the error.
func printMessage(w io.Writer, msg *model.Message) {
	switch msg.State {
	case model.MessageStateError:
		fmt.Fprintf(w, "Lỗi: %s\n", msg.Error)

	case model.MessageStateSuccess:
		fmt.Fprintf(w, "%s\n", msg.Answer)
		if len(msg.Results) > 0 {
			fmt.Fprintln(w)
			for _, r := range msg.Results {
				fmt.Fprintf(w, "  [%s] %s (%s)\n", r.Title, r.Description, r.Date)
			}
		}
		fmt.Fprintf(w, "\n(%d kết quả, %s)\n", len(msg.Results), formatDuration(msg.Duration))

	default:
		fmt.Fprintf(w, "%s\n", msg.State)
	}
}

func printConversations(w io.Writer, conversations []*model.Conversation, current model.ConversationID) error {
	if len(conversations) == 0 {
		fmt.Fprintln(w, "No conversations found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, conv := range conversations {
		mark := " "
		if conv.ID == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%d messages\t%s\n",
			mark,
			conv.ID,
			conv.Title,
			len(conv.Messages),
			conv.UpdatedAt.Local().Format(timeLayout),
		)
	}
	if err := tw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to write conversations")
	}
	return nil
}

func printConversation(w io.Writer, conv *model.Conversation) {
	fmt.Fprintf(w, "%s  %s\n", conv.ID, conv.Title)
	fmt.Fprintf(w, "created %s, updated %s\n",
		conv.CreatedAt.Local().Format(timeLayout),
		conv.UpdatedAt.Local().Format(timeLayout),
	)
	for _, msg := range conv.Messages {
		fmt.Fprintf(w, "\n[%s] > %s\n", msg.Timestamp.Local().Format(timeLayout), msg.Query)
		printMessage(w, msg)
	}
}

func printSearchLogs(w io.Writer, logs []*model.SearchLog, format string) error {
	switch format {
	case formatJSON:
		raw, err := json.MarshalIndent(logs, "", "  ")
		if err != nil {
			return goerr.Wrap(err, "failed to marshal search logs")
		}
		fmt.Fprintf(w, "%s\n", raw)
		return nil

	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(logs); err != nil {
			return goerr.Wrap(err, "failed to encode search logs")
		}
		if err := enc.Close(); err != nil {
			return goerr.Wrap(err, "failed to encode search logs")
		}
		return nil

	case formatTable, "":
		if len(logs) == 0 {
			fmt.Fprintln(w, "No search logs found")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSTATUS\tRESULTS\tDURATION\tQUERY\tERROR")
		for _, l := range logs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
				l.Timestamp.Local().Format(timeLayout),
				l.Status,
				l.ResultCount,
				formatDuration(l.Duration),
				l.Query,
				l.Error,
			)
		}
		if err := tw.Flush(); err != nil {
			return goerr.Wrap(err, "failed to write search logs")
		}
		return nil

	default:
		return goerr.New("unsupported format",
			goerr.V("format", format),
			goerr.V("supported", []string{formatTable, formatJSON, formatYAML}))
	}
}
