package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/server"
)

type backendFunc func(ctx context.Context, question string) (json.RawMessage, error)

func (f backendFunc) Ask(ctx context.Context, question string) (json.RawMessage, error) {
	return f(ctx, question)
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) server.ErrorResponse {
	t.Helper()
	var resp server.ErrorResponse
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestSearchRelaysBackendAnswer(t *testing.T) {
	const answer = `{"answer":"Trăn gấm là loài rắn dài nhất","sources":["a","b"],"time_taken":1.25}`
	var asked string
	metrics := server.NewMetrics()
	srv := server.New(backendFunc(func(_ context.Context, q string) (json.RawMessage, error) {
		asked = q
		return json.RawMessage(answer), nil
	}), server.WithMetrics(metrics))

	rec := doRequest(t, srv, http.MethodPost, "/api/search", `{"question":"rắn dài nhất là gì"}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), answer)
	gt.S(t, rec.Header().Get(echo.HeaderContentType)).Contains("application/json")
	gt.Equal(t, asked, "rắn dài nhất là gì")
	gt.Equal(t, metrics.SearchCount("success"), 1.0)
}

func TestSearchRequiresQuestion(t *testing.T) {
	called := false
	metrics := server.NewMetrics()
	srv := server.New(backendFunc(func(context.Context, string) (json.RawMessage, error) {
		called = true
		return json.RawMessage(`{}`), nil
	}), server.WithMetrics(metrics))

	testCases := map[string]string{
		"missing":     `{}`,
		"empty":       `{"question":""}`,
		"null":        `{"question":null}`,
		"false":       `{"question":false}`,
		"zero":        `{"question":0}`,
		"zero float":  `{"question":-0.0}`,
		"array body":  `[]`,
		"string body": `"rắn"`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/search", body)
			gt.Equal(t, rec.Code, http.StatusBadRequest)
			resp := decodeError(t, rec)
			gt.Equal(t, resp.Error, "Question is required")
			gt.Equal(t, resp.Details, "")
		})
	}

	gt.False(t, called)
	gt.Equal(t, metrics.SearchCount("invalid"), 8.0)
}

func TestSearchRejectsNonStringQuestion(t *testing.T) {
	called := false
	metrics := server.NewMetrics()
	srv := server.New(backendFunc(func(context.Context, string) (json.RawMessage, error) {
		called = true
		return json.RawMessage(`{}`), nil
	}), server.WithMetrics(metrics))

	testCases := map[string]string{
		"number": `{"question":42}`,
		"true":   `{"question":true}`,
		"object": `{"question":{"text":"q"}}`,
		"array":  `{"question":["q"]}`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/search", body)
			gt.Equal(t, rec.Code, http.StatusBadRequest)
			gt.Equal(t, decodeError(t, rec).Error, "Question must be a string")
		})
	}

	gt.False(t, called)
	gt.Equal(t, metrics.SearchCount("invalid"), 4.0)
}

func TestSearchForwardsWhitespaceQuestion(t *testing.T) {
	var asked string
	srv := server.New(backendFunc(func(_ context.Context, q string) (json.RawMessage, error) {
		asked = q
		return json.RawMessage(`{"answer":"","sources":[]}`), nil
	}))

	rec := doRequest(t, srv, http.MethodPost, "/api/search", `{"question":"   "}`)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, asked, "   ")
}

func TestSearchBackendStatusIsPassedThrough(t *testing.T) {
	testCases := map[string]struct {
		status  int
		body    string
		details string
	}{
		"service unavailable with body": {http.StatusServiceUnavailable, "maintenance", "maintenance"},
		"not found without body":        {http.StatusNotFound, "", ""},
		"internal error":                {http.StatusInternalServerError, `{"message":"boom"}`, `{"message":"boom"}`},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			metrics := server.NewMetrics()
			srv := server.New(backendFunc(func(context.Context, string) (json.RawMessage, error) {
				return nil, &adapter.BackendStatusError{StatusCode: tc.status, Body: tc.body}
			}), server.WithMetrics(metrics))

			rec := doRequest(t, srv, http.MethodPost, "/api/search", `{"question":"q"}`)
			gt.Equal(t, rec.Code, tc.status)
			resp := decodeError(t, rec)
			gt.Equal(t, resp.Error, "Lỗi kết nối Backend")
			gt.Equal(t, resp.Details, tc.details)
			gt.Equal(t, metrics.SearchCount("backend_error"), 1.0)
		})
	}
}

func TestSearchFailures(t *testing.T) {
	testCases := map[string]struct {
		body string
		err  error
	}{
		"network failure":    {`{"question":"q"}`, errors.New("connection refused")},
		"malformed body":     {`{"question":`, nil},
		"null request":       {"null", nil},
		"empty request body": {"", nil},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			metrics := server.NewMetrics()
			srv := server.New(backendFunc(func(context.Context, string) (json.RawMessage, error) {
				return nil, tc.err
			}), server.WithMetrics(metrics))

			rec := doRequest(t, srv, http.MethodPost, "/api/search", tc.body)
			gt.Equal(t, rec.Code, http.StatusInternalServerError)
			resp := decodeError(t, rec)
			gt.Equal(t, resp.Error, "Lỗi Server Frontend")
			gt.Equal(t, metrics.SearchCount("failure"), 1.0)
		})
	}
}

func TestSearchThroughSearchClient(t *testing.T) {
	srv := server.New(backendFunc(func(context.Context, string) (json.RawMessage, error) {
		return nil, &adapter.BackendStatusError{StatusCode: http.StatusBadGateway}
	}))
	ts := httptest.NewServer(srv)
	defer ts.Close()

	_, err := adapter.NewSearchClient(ts.URL).Search(context.Background(), "q")
	gt.Error(t, err)
	gt.Equal(t, err.Error(), "Lỗi API: 502")
}

func TestSearchEndToEnd(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gt.Equal(t, r.Header.Get("Content-Type"), "application/json")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"echo: ` + req.Question + `","sources":["s1"]}`))
	}))
	defer backend.Close()

	ts := httptest.NewServer(server.New(adapter.NewBackend(backend.URL)))
	defer ts.Close()

	resp, err := adapter.NewSearchClient(ts.URL).Search(context.Background(), "rắn")
	gt.NoError(t, err)
	gt.Equal(t, resp.Answer, "echo: rắn")
	gt.A(t, resp.Sources).Length(1)
}
