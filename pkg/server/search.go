package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
)

const (
	msgQuestionRequired  = "Question is required"
	msgQuestionNotString = "Question must be a string"
	msgBackendFailure    = "Lỗi kết nối Backend"
	msgFrontendFailure   = "Lỗi Server Frontend"
)

// handleSearch forwards the question to the QA backend and relays its answer
// unchanged.
func (s *Server) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()
	logger := logging.From(ctx)

	var body any
	decoder := json.NewDecoder(c.Request().Body)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		s.metrics.countSearch(outcomeFailure)
		return newAPIError(http.StatusInternalServerError, msgFrontendFailure,
			goerr.Wrap(err, "failed to decode search request"))
	}

	question, err := parseQuestion(body)
	switch {
	case errors.Is(err, errNullRequest):
		s.metrics.countSearch(outcomeFailure)
		return newAPIError(http.StatusInternalServerError, msgFrontendFailure, err)
	case errors.Is(err, errQuestionRequired):
		s.metrics.countSearch(outcomeInvalid)
		return newAPIError(http.StatusBadRequest, msgQuestionRequired, nil)
	case errors.Is(err, errQuestionNotString):
		s.metrics.countSearch(outcomeInvalid)
		return newAPIError(http.StatusBadRequest, msgQuestionNotString, err)
	}

	startedAt := time.Now()
	raw, err := s.backend.Ask(ctx, question)
	s.metrics.observeBackend(time.Since(startedAt))

	if err != nil {
		var statusErr *adapter.BackendStatusError
		if errors.As(err, &statusErr) {
			s.metrics.countSearch(outcomeBackendError)
			ae := newAPIError(statusErr.StatusCode, msgBackendFailure, err)
			ae.details = statusErr.Body
			return ae
		}

		s.metrics.countSearch(outcomeFailure)
		return newAPIError(http.StatusInternalServerError, msgFrontendFailure, err)
	}

	s.metrics.countSearch(outcomeSuccess)
	logger.Info("search answered",
		"question", question,
		"duration", time.Since(startedAt),
		"size", len(raw),
	)
	return c.JSONBlob(http.StatusOK, raw)
}

var (
	errNullRequest       = goerr.New("search request is null")
	errQuestionRequired  = goerr.New("question is required")
	errQuestionNotString = goerr.New("question is not a string")
)

// parseQuestion reads the question field of a decoded request body. Missing,
// null, false, zero and empty string count as no question. Any other
// non-string value is rejected.
func parseQuestion(body any) (string, error) {
	var value any
	switch b := body.(type) {
	case nil:
		return "", errNullRequest
	case map[string]any:
		value = b["question"]
	default:
		return "", errQuestionRequired
	}

	switch q := value.(type) {
	case nil:
		return "", errQuestionRequired
	case string:
		if q == "" {
			return "", errQuestionRequired
		}
		return q, nil
	case bool:
		if !q {
			return "", errQuestionRequired
		}
	case json.Number:
		if f, err := strconv.ParseFloat(q.String(), 64); err == nil && f == 0 {
			return "", errQuestionRequired
		}
	}
	return "", goerr.Wrap(errQuestionNotString, "unsupported question type", goerr.V("question", value))
}
