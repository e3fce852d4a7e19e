package adapter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
)

// BackendSearcher answers searches by calling the QA backend directly instead
// of going through the proxy endpoint. Backend status errors are reported the
// same way SearchClient reports proxy status errors.
type BackendSearcher struct {
	backend Backend
}

func NewBackendSearcher(backend Backend) *BackendSearcher {
	return &BackendSearcher{backend: backend}
}

func (s *BackendSearcher) Search(ctx context.Context, question string) (*model.AskResponse, error) {
	raw, err := s.backend.Ask(ctx, question)
	if err != nil {
		var statusErr *BackendStatusError
		if errors.As(err, &statusErr) {
			return nil, &APIError{StatusCode: statusErr.StatusCode}
		}
		return nil, err
	}

	var resp model.AskResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode backend response")
	}
	return &resp, nil
}
