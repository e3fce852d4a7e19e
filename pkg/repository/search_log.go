package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter/kv"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
)

// SearchLogStore keeps the most recent model.MaxSearchLogs search attempts
type SearchLogStore struct {
	kv  kv.Store
	now func() time.Time
	mu  sync.Mutex
}

func NewSearchLogStore(store kv.Store, opts ...Option) *SearchLogStore {
	o := newOptions(opts)
	return &SearchLogStore{
		kv:  store,
		now: o.now,
	}
}

func (s *SearchLogStore) load(ctx context.Context) ([]*model.SearchLog, error) {
	raw, found, err := s.kv.Get(ctx, SearchLogsKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read search logs")
	}
	if !found || raw == "" {
		return []*model.SearchLog{}, nil
	}

	var logs []*model.SearchLog
	if err := json.Unmarshal([]byte(raw), &logs); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search logs")
	}
	if logs == nil {
		logs = []*model.SearchLog{}
	}
	return logs, nil
}

// Log builds a record, appends it and drops the oldest entries beyond the
// limit. The record is returned even when it could not be persisted.
func (s *SearchLogStore) Log(ctx context.Context, query string, duration time.Duration, resultCount int, status model.LogStatus, errMsg string) *model.SearchLog {
	logger := logging.From(ctx)

	record := &model.SearchLog{
		ID:          model.NewSearchLogID(),
		Query:       query,
		Timestamp:   s.now(),
		Duration:    duration.Milliseconds(),
		ResultCount: resultCount,
		Status:      status,
		Error:       errMsg,
	}

	logger.Info("search log",
		"query", record.Query,
		"duration_ms", record.Duration,
		"results", record.ResultCount,
		"status", record.Status,
		"error", record.Error,
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	logs, err := s.load(ctx)
	if err != nil {
		logger.Error("failed to save search log", logging.ErrAttr(err))
		return record
	}

	logs = append(logs, record)
	if len(logs) > model.MaxSearchLogs {
		logs = logs[len(logs)-model.MaxSearchLogs:]
	}

	raw, err := json.Marshal(logs)
	if err != nil {
		logger.Error("failed to save search log", logging.ErrAttr(goerr.Wrap(err, "failed to encode search logs")))
		return record
	}
	if err := s.kv.Set(ctx, SearchLogsKey, string(raw)); err != nil {
		logger.Error("failed to save search log", logging.ErrAttr(err))
	}

	return record
}

// List returns stored logs oldest first, or an empty slice on any failure
func (s *SearchLogStore) List(ctx context.Context) []*model.SearchLog {
	logs, err := s.load(ctx)
	if err != nil {
		logging.From(ctx).Error("failed to retrieve search logs", logging.ErrAttr(err))
		return []*model.SearchLog{}
	}
	return logs
}

// Clear removes every stored log
func (s *SearchLogStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, SearchLogsKey); err != nil {
		logging.From(ctx).Error("failed to clear search logs", logging.ErrAttr(err))
		return
	}
	logging.From(ctx).Info("search logs cleared")
}
