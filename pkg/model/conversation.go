package model

import (
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidTransition = goerr.New("invalid message state transition")
)

const (
	// DefaultConversationTitle is used until the first message names the conversation
	DefaultConversationTitle = "Cuộc trò chuyện mới"

	titleMaxLength = 30
	titleEllipsis  = "..."
)

type ConversationID string

// NewConversationID generates a time based ConversationID (Unix milliseconds)
func NewConversationID(now time.Time) ConversationID {
	return ConversationID(strconv.FormatInt(now.UnixMilli(), 10))
}

func (id ConversationID) String() string {
	return string(id)
}

// Conversation is a persisted chat thread
type Conversation struct {
	ID        ConversationID `json:"id"`
	Title     string         `json:"title"`
	Messages  []*Message     `json:"messages"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewConversation returns an empty conversation. An empty title falls back to
// DefaultConversationTitle.
func NewConversation(title string, now time.Time) *Conversation {
	if title == "" {
		title = DefaultConversationTitle
	}
	return &Conversation{
		ID:        NewConversationID(now),
		Title:     title,
		Messages:  []*Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a finalized message. The first message also becomes the title.
func (c *Conversation) Append(msg *Message) {
	c.Messages = append(c.Messages, msg)
	if len(c.Messages) == 1 {
		c.Title = TruncateTitle(msg.Query)
	}
}

// Clone returns a deep copy so callers can mutate it without touching shared state
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cloned := *c
	cloned.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		cloned.Messages[i] = msg.Clone()
	}
	return &cloned
}

// TruncateTitle shortens a query to titleMaxLength characters and appends an
// ellipsis when it had to cut.
func TruncateTitle(query string) string {
	runes := []rune(query)
	if len(runes) <= titleMaxLength {
		return query
	}
	return string(runes[:titleMaxLength]) + titleEllipsis
}

type MessageState string

const (
	MessageStateLoading MessageState = "loading"
	MessageStateSuccess MessageState = "success"
	MessageStateError   MessageState = "error"
)

// Message is one question and its answer inside a conversation
type Message struct {
	ID        string       `json:"id"`
	Query     string       `json:"query"`
	Results   []Result     `json:"results"`
	Answer    string       `json:"answer,omitempty"`
	Duration  int64        `json:"duration"`
	Timestamp time.Time    `json:"timestamp"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
}

// NewPendingMessage creates a placeholder in loading state
func NewPendingMessage(query string, now time.Time) *Message {
	return &Message{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Query:     query,
		Results:   []Result{},
		Timestamp: now,
		State:     MessageStateLoading,
	}
}

// Succeed moves a loading message to success
func (m *Message) Succeed(results []Result, answer string, duration time.Duration) error {
	if m.State != MessageStateLoading {
		return goerr.Wrap(ErrInvalidTransition, "message is not loading",
			goerr.V("id", m.ID), goerr.V("state", m.State), goerr.V("to", MessageStateSuccess))
	}
	if results == nil {
		results = []Result{}
	}
	m.Results = results
	m.Answer = answer
	m.Duration = duration.Milliseconds()
	m.State = MessageStateSuccess
	return nil
}

// Fail moves a loading message to error
func (m *Message) Fail(errMsg string, duration time.Duration) error {
	if m.State != MessageStateLoading {
		return goerr.Wrap(ErrInvalidTransition, "message is not loading",
			goerr.V("id", m.ID), goerr.V("state", m.State), goerr.V("to", MessageStateError))
	}
	m.Error = errMsg
	m.Duration = duration.Milliseconds()
	m.State = MessageStateError
	return nil
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cloned := *m
	cloned.Results = append([]Result{}, m.Results...)
	return &cloned
}

// Result is a single source shown under an answer
type Result struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	Category    string `json:"category,omitempty"`
	Date        string `json:"date,omitempty"`
}

// ResultsFromSources converts backend sources into results, keeping order
func ResultsFromSources(sources []string, now time.Time) []Result {
	results := make([]Result, 0, len(sources))
	date := now.Local().Format(time.DateOnly)
	for i, src := range sources {
		results = append(results, Result{
			ID:          strconv.Itoa(i),
			Title:       "Nguồn " + strconv.Itoa(i+1),
			Description: src,
			Date:        date,
		})
	}
	return results
}
