package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/qtda/pkg/adapter/kv"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/repository"
	"github.com/m-mizutani/qtda/pkg/server"
)

type storeFixture struct {
	srv           *server.Server
	conversations *repository.ConversationStore
	searchLogs    *repository.SearchLogStore
}

func newStoreFixture() *storeFixture {
	store := kv.NewMemory()
	n := 0
	clock := func() time.Time {
		n++
		return time.UnixMilli(1700000000000).Add(time.Duration(n) * time.Second)
	}
	conversations := repository.NewConversationStore(store, repository.WithClock(clock))
	searchLogs := repository.NewSearchLogStore(store)
	return &storeFixture{
		srv:           server.New(okBackend(), server.WithStores(conversations, searchLogs)),
		conversations: conversations,
		searchLogs:    searchLogs,
	}
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	gt.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestStoreAPIConversations(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	rec := doRequest(t, f.srv, http.MethodGet, "/api/conversations", "")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Body.String()).Contains(`"conversations":[]`)

	rec = doRequest(t, f.srv, http.MethodPost, "/api/conversations", `{"title":"Rắn độc"}`)
	gt.Equal(t, rec.Code, http.StatusCreated)
	created := decode[model.Conversation](t, rec.Body.Bytes())
	gt.Equal(t, created.Title, "Rắn độc")
	gt.V(t, f.conversations.Get(ctx, created.ID)).NotNil()

	rec = doRequest(t, f.srv, http.MethodPost, "/api/conversations", "")
	gt.Equal(t, rec.Code, http.StatusCreated)
	untitled := decode[model.Conversation](t, rec.Body.Bytes())
	gt.Equal(t, untitled.Title, model.DefaultConversationTitle)

	rec = doRequest(t, f.srv, http.MethodGet, "/api/conversations/"+created.ID.String(), "")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, decode[model.Conversation](t, rec.Body.Bytes()).ID, created.ID)

	rec = doRequest(t, f.srv, http.MethodGet, "/api/conversations", "")
	list := decode[struct {
		Conversations []*model.Conversation `json:"conversations"`
	}](t, rec.Body.Bytes())
	gt.A(t, list.Conversations).Length(2)

	t.Run("unknown id", func(t *testing.T) {
		rec := doRequest(t, f.srv, http.MethodGet, "/api/conversations/404", "")
		gt.Equal(t, rec.Code, http.StatusNotFound)
		gt.Equal(t, decodeError(t, rec).Error, "conversation not found")
	})

	t.Run("put upserts with path id", func(t *testing.T) {
		body := `{"id":"ignored","title":"Trăn","messages":[{"id":"1","query":"Trăn","results":[],"answer":"dài","duration":10,"timestamp":"2026-10-19T09:00:00Z","state":"success"}]}`
		rec := doRequest(t, f.srv, http.MethodPut, "/api/conversations/"+created.ID.String(), body)
		gt.Equal(t, rec.Code, http.StatusOK)

		stored := f.conversations.Get(ctx, created.ID)
		gt.V(t, stored).NotNil()
		gt.Equal(t, stored.Title, "Trăn")
		gt.A(t, stored.Messages).Length(1)
		gt.Equal(t, stored.Messages[0].Answer, "dài")
		gt.V(t, f.conversations.Get(ctx, "ignored")).Nil()
	})

	t.Run("put creates with store clock", func(t *testing.T) {
		rec := doRequest(t, f.srv, http.MethodPut, "/api/conversations/imported", `{"title":"Rắn biển"}`)
		gt.Equal(t, rec.Code, http.StatusOK)
		resp := decode[model.Conversation](t, rec.Body.Bytes())
		gt.Equal(t, resp.ID, model.ConversationID("imported"))
		gt.True(t, resp.CreatedAt.After(time.UnixMilli(1700000000000)))
		gt.True(t, resp.CreatedAt.Before(time.UnixMilli(1700000100000)))
		gt.True(t, resp.UpdatedAt.Equal(resp.CreatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(t, f.srv, http.MethodDelete, "/api/conversations/"+untitled.ID.String(), "")
		gt.Equal(t, rec.Code, http.StatusNoContent)
		gt.V(t, f.conversations.Get(ctx, untitled.ID)).Nil()
	})
}

func TestStoreAPICurrentConversation(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	rec := doRequest(t, f.srv, http.MethodGet, "/api/conversations/current", "")
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Body.String(), "{\"id\":null}\n")

	conv := f.conversations.Create("")
	f.conversations.Save(ctx, conv)

	rec = doRequest(t, f.srv, http.MethodPut, "/api/conversations/current", `{"id":"`+conv.ID.String()+`"}`)
	gt.Equal(t, rec.Code, http.StatusNoContent)
	gt.Equal(t, f.conversations.Current(ctx), conv.ID)

	rec = doRequest(t, f.srv, http.MethodGet, "/api/conversations/current", "")
	current := decode[struct {
		ID *string `json:"id"`
	}](t, rec.Body.Bytes())
	gt.V(t, current.ID).NotNil()
	gt.Equal(t, *current.ID, conv.ID.String())

	t.Run("unknown id is rejected", func(t *testing.T) {
		rec := doRequest(t, f.srv, http.MethodPut, "/api/conversations/current", `{"id":"404"}`)
		gt.Equal(t, rec.Code, http.StatusNotFound)
		gt.Equal(t, f.conversations.Current(ctx), conv.ID)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := doRequest(t, f.srv, http.MethodPut, "/api/conversations/current", `{}`)
		gt.Equal(t, rec.Code, http.StatusBadRequest)
	})
}

func TestStoreAPILogs(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture()

	f.searchLogs.Log(ctx, "rắn dài nhất là gì", time.Second, 2, model.LogStatusSuccess, "")
	f.searchLogs.Log(ctx, "q", time.Second, 0, model.LogStatusError, "Lỗi API: 500")

	rec := doRequest(t, f.srv, http.MethodGet, "/api/logs", "")
	gt.Equal(t, rec.Code, http.StatusOK)
	logs := decode[struct {
		Logs []*model.SearchLog `json:"logs"`
	}](t, rec.Body.Bytes())
	gt.A(t, logs.Logs).Length(2)
	gt.Equal(t, logs.Logs[1].Error, "Lỗi API: 500")

	rec = doRequest(t, f.srv, http.MethodDelete, "/api/logs", "")
	gt.Equal(t, rec.Code, http.StatusNoContent)
	gt.A(t, f.searchLogs.List(ctx)).Length(0)
}
