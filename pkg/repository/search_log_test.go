package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/qtda/pkg/adapter/kv"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/repository"
)

func TestSearchLogRecord(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	store := repository.NewSearchLogStore(kv.NewMemory(), repository.WithClock(func() time.Time { return t0 }))

	record := store.Log(ctx, "rắn dài nhất là gì", 1234*time.Millisecond, 2, model.LogStatusSuccess, "")
	gt.V(t, record).NotNil()
	gt.S(t, string(record.ID)).NotContains(" ")
	gt.Equal(t, record.Query, "rắn dài nhất là gì")
	gt.Equal(t, record.Duration, int64(1234))
	gt.Equal(t, record.ResultCount, 2)
	gt.Equal(t, record.Status, model.LogStatusSuccess)
	gt.True(t, record.Timestamp.Equal(t0))

	failed := store.Log(ctx, "q", time.Millisecond, 0, model.LogStatusError, "Lỗi API: 500")
	gt.Equal(t, failed.Error, "Lỗi API: 500")
	gt.True(t, failed.ID != record.ID)

	logs := store.List(ctx)
	gt.A(t, logs).Length(2)
	gt.Equal(t, logs[0].ID, record.ID)
	gt.Equal(t, logs[1].Status, model.LogStatusError)
}

func TestSearchLogKeepsMostRecent50(t *testing.T) {
	ctx := context.Background()
	store := repository.NewSearchLogStore(kv.NewMemory())

	for i := 1; i <= 51; i++ {
		store.Log(ctx, fmt.Sprintf("query %d", i), 0, 0, model.LogStatusSuccess, "")
	}

	logs := store.List(ctx)
	gt.A(t, logs).Length(model.MaxSearchLogs)
	gt.Equal(t, logs[0].Query, "query 2")
	gt.Equal(t, logs[49].Query, "query 51")
	for i, log := range logs {
		gt.Equal(t, log.Query, fmt.Sprintf("query %d", i+2))
	}
}

func TestSearchLogClear(t *testing.T) {
	ctx := context.Background()
	store := repository.NewSearchLogStore(kv.NewMemory())

	store.Log(ctx, "q", 0, 0, model.LogStatusSuccess, "")
	gt.A(t, store.List(ctx)).Length(1)

	store.Clear(ctx)
	gt.A(t, store.List(ctx)).Length(0)
}

func TestSearchLogStorageFailure(t *testing.T) {
	ctx := context.Background()
	store := repository.NewSearchLogStore(failingKV{})

	record := store.Log(ctx, "q", 0, 0, model.LogStatusError, "boom")
	gt.V(t, record).NotNil()
	gt.Equal(t, record.Status, model.LogStatusError)

	gt.A(t, store.List(ctx)).Length(0)
	store.Clear(ctx)
}

func TestSearchLogCorruptedDocumentIsKept(t *testing.T) {
	ctx := context.Background()
	memory := kv.NewMemory()
	gt.NoError(t, memory.Set(ctx, repository.SearchLogsKey, "not json"))
	store := repository.NewSearchLogStore(memory)

	store.Log(ctx, "q", 0, 0, model.LogStatusSuccess, "")
	gt.A(t, store.List(ctx)).Length(0)

	raw, _, err := memory.Get(ctx, repository.SearchLogsKey)
	gt.NoError(t, err)
	gt.Equal(t, raw, "not json")
}
