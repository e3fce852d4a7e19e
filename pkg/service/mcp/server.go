package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/qtda/pkg/model"
	"github.com/m-mizutani/qtda/pkg/repository"
	"github.com/m-mizutani/qtda/pkg/usecase/search"
	"github.com/m-mizutani/qtda/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "qtda"
	serverVersion = "0.1.0"
)

// Service exposes the search controller and the stores as MCP tools
type Service struct {
	controller    *search.Controller
	conversations *repository.ConversationStore
	searchLogs    *repository.SearchLogStore
}

func New(controller *search.Controller, conversations *repository.ConversationStore, searchLogs *repository.SearchLogStore) *Service {
	return &Service{
		controller:    controller,
		conversations: conversations,
		searchLogs:    searchLogs,
	}
}

type askParams struct {
	Question string `json:"question" jsonschema:"Question about snakes to send to the question-answering backend"`
}

type conversationSummary struct {
	ID        model.ConversationID `json:"id"`
	Title     string               `json:"title"`
	Messages  int                  `json:"messages"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Server builds an MCP server with the ask, list_conversations and
// list_search_logs tools
func (s *Service) Server() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask the snake question-answering backend. Returns the answer followed by its numbered sources.",
	}, s.ask)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "List stored conversations with their titles and message counts",
	}, s.listConversations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_search_logs",
		Description: "List the most recent search attempts, oldest first",
	}, s.listSearchLogs)

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is canceled or the
// client disconnects
func (s *Service) RunStdio(ctx context.Context) error {
	if err := s.Server().Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "failed to run MCP server over stdio")
	}
	return nil
}

// Handler serves the tools over streamable HTTP
func (s *Service) Handler() http.Handler {
	server := s.Server()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return textResult(string(raw)), nil, nil
}

func (s *Service) ask(ctx context.Context, req *mcp.CallToolRequest, params *askParams) (*mcp.CallToolResult, any, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return errorResult("question is required"), nil, nil
	}

	logging.From(ctx).Debug("MCP ask", "question", question)
	msg := s.controller.Search(ctx, question)
	if msg.State == model.MessageStateError {
		return errorResult(msg.Error), nil, nil
	}

	return textResult(formatAnswer(msg)), nil, nil
}

func formatAnswer(msg *model.Message) string {
	var b strings.Builder
	b.WriteString(msg.Answer)
	if len(msg.Results) > 0 {
		b.WriteString("\n")
		for _, r := range msg.Results {
			fmt.Fprintf(&b, "\n%s: %s", r.Title, r.Description)
		}
	}
	return b.String()
}

func (s *Service) listConversations(ctx context.Context, req *mcp.CallToolRequest, params *struct{}) (*mcp.CallToolResult, any, error) {
	conversations := s.conversations.List(ctx)
	summaries := make([]conversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, conversationSummary{
			ID:        conv.ID,
			Title:     conv.Title,
			Messages:  len(conv.Messages),
			UpdatedAt: conv.UpdatedAt,
		})
	}
	return jsonResult(summaries)
}

func (s *Service) listSearchLogs(ctx context.Context, req *mcp.CallToolRequest, params *struct{}) (*mcp.CallToolResult, any, error) {
	return jsonResult(s.searchLogs.List(ctx))
}
