package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/qtda/pkg/model"
	"gopkg.in/yaml.v3"
)

func sampleLogs() []*model.SearchLog {
	ts := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return []*model.SearchLog{
		{ID: "1", Query: "rắn dài nhất là gì", Timestamp: ts, Duration: 1234, ResultCount: 2, Status: model.LogStatusSuccess},
		{ID: "2", Query: "q", Timestamp: ts, Duration: 10, Status: model.LogStatusError, Error: "Lỗi API: 500"},
	}
}

func TestPrintSearchLogs(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, printSearchLogs(&buf, sampleLogs(), formatTable))
		gt.S(t, buf.String()).Contains("STATUS")
		gt.S(t, buf.String()).Contains("rắn dài nhất là gì")
		gt.S(t, buf.String()).Contains("1.23s")
		gt.S(t, buf.String()).Contains("Lỗi API: 500")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, printSearchLogs(&buf, sampleLogs(), formatJSON))
		var logs []*model.SearchLog
		gt.NoError(t, json.Unmarshal(buf.Bytes(), &logs))
		gt.A(t, logs).Length(2)
		gt.Equal(t, logs[1].Error, "Lỗi API: 500")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, printSearchLogs(&buf, sampleLogs(), formatYAML))
		var logs []map[string]any
		gt.NoError(t, yaml.Unmarshal(buf.Bytes(), &logs))
		gt.A(t, logs).Length(2)
		gt.Equal(t, logs[0]["query"], any("rắn dài nhất là gì"))
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		gt.NoError(t, printSearchLogs(&buf, nil, formatTable))
		gt.S(t, buf.String()).Contains("No search logs found")
	})

	t.Run("unsupported format", func(t *testing.T) {
		var buf bytes.Buffer
		gt.Error(t, printSearchLogs(&buf, sampleLogs(), "xml"))
	})
}

func TestPrintConversations(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	a := model.NewConversation("", now)
	b := model.NewConversation("Rắn độc", now.Add(time.Second))

	var buf bytes.Buffer
	gt.NoError(t, printConversations(&buf, []*model.Conversation{a, b}, b.ID))
	gt.S(t, buf.String()).Contains("  " + a.ID.String())
	gt.S(t, buf.String()).Contains("* " + b.ID.String())
	gt.S(t, buf.String()).Contains("Rắn độc")
}
