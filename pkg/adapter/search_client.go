package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
)

// DefaultAPIURL is where `qtda serve` listens by default
const DefaultAPIURL = "http://localhost:3000"

// APIError is returned by SearchClient when /api/search answers with a non-2xx status.
// Its message is what the user sees next to the retry prompt.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Lỗi API: %d", e.StatusCode)
}

// SearchClient calls the front-end proxy endpoint POST /api/search
type SearchClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewSearchClient creates a client for the server at baseURL
func NewSearchClient(baseURL string, opts ...Option) *SearchClient {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	cfg := newClientConfig(opts)
	return &SearchClient{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/search",
		httpClient: cfg.httpClient,
	}
}

func (c *SearchClient) Search(ctx context.Context, question string) (*model.AskResponse, error) {
	body, err := json.Marshal(model.AskRequest{Question: question})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create search request", goerr.V("endpoint", c.endpoint))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call search API", goerr.V("endpoint", c.endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	var answer model.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, goerr.Wrap(err, "failed to decode search response", goerr.V("endpoint", c.endpoint))
	}
	return &answer, nil
}
