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

// ConversationStore persists conversations and the current-conversation
// pointer. No method returns an error: failures are logged and the operation
// degrades to a no-op or an empty result, leaving stored data untouched.
type ConversationStore struct {
	kv  kv.Store
	now func() time.Time

	// serializes read-modify-write of the conversations document
	mu sync.Mutex
}

func NewConversationStore(store kv.Store, opts ...Option) *ConversationStore {
	o := newOptions(opts)
	return &ConversationStore{
		kv:  store,
		now: o.now,
	}
}

// Create returns a new empty conversation. It is not saved.
func (s *ConversationStore) Create(title string) *model.Conversation {
	return model.NewConversation(title, s.now())
}

func (s *ConversationStore) load(ctx context.Context) ([]*model.Conversation, error) {
	raw, found, err := s.kv.Get(ctx, ConversationsKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read conversations")
	}
	if !found || raw == "" {
		return []*model.Conversation{}, nil
	}

	var conversations []*model.Conversation
	if err := json.Unmarshal([]byte(raw), &conversations); err != nil {
		return nil, goerr.Wrap(err, "failed to decode conversations")
	}
	if conversations == nil {
		conversations = []*model.Conversation{}
	}
	return conversations, nil
}

func (s *ConversationStore) store(ctx context.Context, conversations []*model.Conversation) error {
	raw, err := json.Marshal(conversations)
	if err != nil {
		return goerr.Wrap(err, "failed to encode conversations")
	}
	if err := s.kv.Set(ctx, ConversationsKey, string(raw)); err != nil {
		return goerr.Wrap(err, "failed to write conversations")
	}
	return nil
}

// List returns every stored conversation, or an empty slice on any failure
func (s *ConversationStore) List(ctx context.Context) []*model.Conversation {
	conversations, err := s.load(ctx)
	if err != nil {
		logging.From(ctx).Error("failed to retrieve conversations", logging.ErrAttr(err))
		return []*model.Conversation{}
	}
	return conversations
}

// Get returns the conversation or nil when it does not exist or cannot be read
func (s *ConversationStore) Get(ctx context.Context, id model.ConversationID) *model.Conversation {
	conversations, err := s.load(ctx)
	if err != nil {
		logging.From(ctx).Error("failed to retrieve conversation", logging.ErrAttr(err), "id", id)
		return nil
	}
	for _, conv := range conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

// Save upserts conv by ID. An update replaces the stored conversation in
// place, keeps its CreatedAt and refreshes UpdatedAt; a new conversation is
// appended, stamped with the store clock when it has no CreatedAt.
func (s *ConversationStore) Save(ctx context.Context, conv *model.Conversation) {
	logger := logging.From(ctx)
	if conv == nil {
		logger.Warn("ignored nil conversation")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, err := s.load(ctx)
	if err != nil {
		logger.Error("failed to save conversation", logging.ErrAttr(err), "id", conv.ID)
		return
	}

	stored := conv.Clone()
	if stored.Messages == nil {
		stored.Messages = []*model.Message{}
	}

	updated := false
	for i, existing := range conversations {
		if existing.ID != conv.ID {
			continue
		}
		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = s.now()
		conversations[i] = stored
		updated = true
		break
	}
	if !updated {
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = s.now()
			stored.UpdatedAt = stored.CreatedAt
		}
		conversations = append(conversations, stored)
	}

	if err := s.store(ctx, conversations); err != nil {
		logger.Error("failed to save conversation", logging.ErrAttr(err), "id", conv.ID)
		return
	}

	conv.CreatedAt = stored.CreatedAt
	conv.UpdatedAt = stored.UpdatedAt
}

// Delete removes the conversation and clears the current pointer if it referenced it
func (s *ConversationStore) Delete(ctx context.Context, id model.ConversationID) {
	logger := logging.From(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, err := s.load(ctx)
	if err != nil {
		logger.Error("failed to delete conversation", logging.ErrAttr(err), "id", id)
		return
	}

	remaining := make([]*model.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		if conv.ID != id {
			remaining = append(remaining, conv)
		}
	}
	if err := s.store(ctx, remaining); err != nil {
		logger.Error("failed to delete conversation", logging.ErrAttr(err), "id", id)
		return
	}

	current, found, err := s.kv.Get(ctx, CurrentConversationKey)
	if err != nil {
		logger.Error("failed to read current conversation", logging.ErrAttr(err))
		return
	}
	if found && model.ConversationID(current) == id {
		if err := s.kv.Delete(ctx, CurrentConversationKey); err != nil {
			logger.Error("failed to clear current conversation", logging.ErrAttr(err), "id", id)
		}
	}
}

// SetCurrent stores the current-conversation pointer
func (s *ConversationStore) SetCurrent(ctx context.Context, id model.ConversationID) {
	if err := s.kv.Set(ctx, CurrentConversationKey, id.String()); err != nil {
		logging.From(ctx).Error("failed to set current conversation", logging.ErrAttr(err), "id", id)
	}
}

// Current returns the current-conversation pointer. A pointer that is unset or
// references a conversation that no longer exists is reported as empty.
func (s *ConversationStore) Current(ctx context.Context) model.ConversationID {
	logger := logging.From(ctx)

	raw, found, err := s.kv.Get(ctx, CurrentConversationKey)
	if err != nil {
		logger.Error("failed to get current conversation", logging.ErrAttr(err))
		return ""
	}
	if !found || raw == "" {
		return ""
	}

	id := model.ConversationID(raw)
	if s.Get(ctx, id) == nil {
		logger.Debug("current conversation pointer is dangling", "id", id)
		return ""
	}
	return id
}
