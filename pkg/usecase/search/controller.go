package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/adapter"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/repository"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
)

var (
	ErrNothingToRetry       = goerr.New("no query to retry")
	ErrConversationNotFound = goerr.New("conversation not found")
)

const unknownErrorMessage = "Lỗi không xác định"

// Searcher sends a question to the search endpoint
type Searcher interface {
	Search(ctx context.Context, question string) (*model.AskResponse, error)
}

// State is the page-level state of the last interaction
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Controller drives a search page: the visible history, the current
// conversation and the state of the last search.
type Controller struct {
	searcher      Searcher
	conversations *repository.ConversationStore
	searchLogs    *repository.SearchLogStore
	now           func() time.Time

	mu           sync.Mutex
	history      []*model.Message
	state        State
	currentQuery string
	currentError string
	currentID    model.ConversationID

	// serializes appending answers to stored conversations
	appendMu sync.Mutex
}

// NewInput contains parameters for creating a new Controller
type NewInput struct {
	Searcher      Searcher
	Conversations *repository.ConversationStore
	SearchLogs    *repository.SearchLogStore
	Now           func() time.Time // Optional: defaults to time.Now
}

// New creates a Controller and restores the current conversation, or starts
// a new one when there is none.
func New(ctx context.Context, input NewInput) (*Controller, error) {
	if input.Searcher == nil {
		return nil, goerr.New("searcher is required")
	}
	if input.Conversations == nil {
		return nil, goerr.New("conversation store is required")
	}
	if input.SearchLogs == nil {
		return nil, goerr.New("search log store is required")
	}

	c := &Controller{
		searcher:      input.Searcher,
		conversations: input.Conversations,
		searchLogs:    input.SearchLogs,
		now:           input.Now,
		history:       []*model.Message{},
		state:         StateIdle,
	}
	if c.now == nil {
		c.now = time.Now
	}

	if id := c.conversations.Current(ctx); id != "" {
		if conv := c.conversations.Get(ctx, id); conv != nil {
			c.load(conv)
			return c, nil
		}
	}
	c.StartNewConversation(ctx)

	return c, nil
}

// load replaces the visible history with conv's messages. Caller holds mu or
// has exclusive access.
func (c *Controller) load(conv *model.Conversation) {
	c.currentID = conv.ID
	c.history = make([]*model.Message, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		c.history = append(c.history, msg.Clone())
	}
	c.state = StateIdle
	c.currentError = ""
}

// StartNewConversation creates, saves and selects an empty conversation
func (c *Controller) StartNewConversation(ctx context.Context) *model.Conversation {
	conv := c.conversations.Create("")
	c.conversations.SetCurrent(ctx, conv.ID)
	c.conversations.Save(ctx, conv)

	c.mu.Lock()
	c.load(conv)
	c.mu.Unlock()

	logging.From(ctx).Debug("started new conversation", "id", conv.ID)
	return conv
}

// SelectConversation switches to a stored conversation. Unknown IDs change nothing.
func (c *Controller) SelectConversation(ctx context.Context, id model.ConversationID) error {
	conv := c.conversations.Get(ctx, id)
	if conv == nil {
		return goerr.Wrap(ErrConversationNotFound, "failed to select conversation", goerr.V("id", id))
	}
	c.conversations.SetCurrent(ctx, id)

	c.mu.Lock()
	c.load(conv)
	c.mu.Unlock()
	return nil
}

// DeleteConversation removes a conversation. Deleting the current one starts a new conversation.
func (c *Controller) DeleteConversation(ctx context.Context, id model.ConversationID) {
	c.conversations.Delete(ctx, id)

	c.mu.Lock()
	isCurrent := c.currentID == id
	c.mu.Unlock()

	if isCurrent {
		c.StartNewConversation(ctx)
	}
}

// Search submits a query. A loading placeholder is appended to the history
// immediately and finalized when the searcher returns. Successful answers
// are appended to the current conversation; failures are only logged.
// The returned message is a copy of the finalized entry.
func (c *Controller) Search(ctx context.Context, query string) *model.Message {
	logger := logging.From(ctx)
	startedAt := c.now()
	entry := model.NewPendingMessage(query, startedAt)

	c.mu.Lock()
	c.currentQuery = query
	c.state = StateLoading
	c.currentError = ""
	c.history = append(c.history, entry)
	convID := c.currentID
	c.mu.Unlock()

	resp, err := c.searcher.Search(ctx, query)
	finishedAt := c.now()
	duration := finishedAt.Sub(startedAt)

	if err != nil {
		msg := errorMessage(err)
		logger.Warn("search failed", logging.ErrAttr(err), "query", query)

		c.mu.Lock()
		if err := entry.Fail(msg, duration); err != nil {
			logger.Error("failed to finalize message", logging.ErrAttr(err))
		}
		c.currentError = msg
		c.state = StateError
		result := entry.Clone()
		c.mu.Unlock()

		c.searchLogs.Log(ctx, query, duration, 0, model.LogStatusError, msg)
		return result
	}

	results := model.ResultsFromSources(resp.Sources, finishedAt)

	c.mu.Lock()
	if err := entry.Succeed(results, resp.Answer, duration); err != nil {
		logger.Error("failed to finalize message", logging.ErrAttr(err))
	}
	c.state = StateSuccess
	result := entry.Clone()
	c.mu.Unlock()

	c.searchLogs.Log(ctx, query, duration, len(results), model.LogStatusSuccess, "")

	if convID != "" {
		c.appendMu.Lock()
		defer c.appendMu.Unlock()
		if conv := c.conversations.Get(ctx, convID); conv != nil {
			// stored messages carry the completion time
			stored := result.Clone()
			stored.Timestamp = finishedAt
			conv.Append(stored)
			c.conversations.Save(ctx, conv)
		}
	}

	return result
}

// Retry replays the last submitted query
func (c *Controller) Retry(ctx context.Context) (*model.Message, error) {
	c.mu.Lock()
	query := c.currentQuery
	c.mu.Unlock()

	if query == "" {
		return nil, ErrNothingToRetry
	}
	return c.Search(ctx, query), nil
}

// History returns copies of the visible messages, oldest first
func (c *Controller) History() []*model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]*model.Message, 0, len(c.history))
	for _, msg := range c.history {
		history = append(history, msg.Clone())
	}
	return history
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) CurrentError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentError
}

func (c *Controller) CurrentQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentQuery
}

func (c *Controller) CurrentConversationID() model.ConversationID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID
}

// Conversations lists stored conversations
func (c *Controller) Conversations(ctx context.Context) []*model.Conversation {
	return c.conversations.List(ctx)
}

func errorMessage(err error) string {
	var apiErr *adapter.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return unknownErrorMessage
}
