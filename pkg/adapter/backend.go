package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
)

// DefaultBackendURL is the QA backend endpoint used when none is configured
const DefaultBackendURL = "http://localhost:9999/api/ask-snake"

// Backend forwards a question to the question-answering service
type Backend interface {
	// Ask returns the backend's JSON body unchanged when it answered with 2xx.
	// A non-2xx answer is reported as *BackendStatusError.
	Ask(ctx context.Context, question string) (json.RawMessage, error)
}

// BackendStatusError is returned when the backend answered with a non-2xx status
type BackendStatusError struct {
	StatusCode int
	Body       string
}

func (e *BackendStatusError) Error() string {
	return fmt.Sprintf("backend responded with status %d", e.StatusCode)
}

type clientConfig struct {
	httpClient *http.Client
}

// Option configures the HTTP clients of this package
type Option func(*clientConfig)

// WithHTTPClient replaces http.DefaultClient
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

func newClientConfig(opts []Option) clientConfig {
	cfg := clientConfig{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// BackendClient calls the QA backend over HTTP
type BackendClient struct {
	url        string
	httpClient *http.Client
}

// NewBackend creates a BackendClient. An empty url falls back to DefaultBackendURL.
func NewBackend(url string, opts ...Option) *BackendClient {
	if url == "" {
		url = DefaultBackendURL
	}
	cfg := newClientConfig(opts)
	return &BackendClient{
		url:        url,
		httpClient: cfg.httpClient,
	}
}

// URL returns the endpoint questions are posted to
func (c *BackendClient) URL() string {
	return c.url
}

func (c *BackendClient) Ask(ctx context.Context, question string) (json.RawMessage, error) {
	body, err := json.Marshal(model.AskRequest{Question: question})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal backend request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create backend request", goerr.V("url", c.url))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call backend", goerr.V("url", c.url))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read backend response",
			goerr.V("url", c.url), goerr.V("status", resp.StatusCode))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if !json.Valid(respBody) {
		return nil, goerr.New("backend returned malformed JSON",
			goerr.V("url", c.url), goerr.V("status", resp.StatusCode))
	}

	return json.RawMessage(respBody), nil
}
