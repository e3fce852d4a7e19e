package repository

import (
	"time"
)

// Keys under which the stores keep their documents
const (
	ConversationsKey       = "conversations"
	CurrentConversationKey = "current_conversation_id"
	SearchLogsKey          = "search_logs"
)

type options struct {
	now func() time.Time
}

// Option configures a store
type Option func(*options)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
