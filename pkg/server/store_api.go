package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/m-mizutani/qtda/pkg/model"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type setCurrentRequest struct {
	ID model.ConversationID `json:"id"`
}

type currentResponse struct {
	ID *model.ConversationID `json:"id"`
}

type conversationsResponse struct {
	Conversations []*model.Conversation `json:"conversations"`
}

type logsResponse struct {
	Logs []*model.SearchLog `json:"logs"`
}

func (s *Server) registerStoreAPI(api *echo.Group) {
	conv := api.Group("/conversations")
	conv.GET("", s.listConversations)
	conv.POST("", s.createConversation)
	conv.GET("/current", s.getCurrentConversation)
	conv.PUT("/current", s.setCurrentConversation)
	conv.GET("/:id", s.getConversation)
	conv.PUT("/:id", s.putConversation)
	conv.DELETE("/:id", s.deleteConversation)

	api.GET("/logs", s.listSearchLogs)
	api.DELETE("/logs", s.clearSearchLogs)
}

func (s *Server) listConversations(c echo.Context) error {
	return c.JSON(http.StatusOK, conversationsResponse{
		Conversations: s.conversations.List(c.Request().Context()),
	})
}

func (s *Server) createConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	conv := s.conversations.Create(req.Title)
	s.conversations.Save(c.Request().Context(), conv)
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) getCurrentConversation(c echo.Context) error {
	var resp currentResponse
	if id := s.conversations.Current(c.Request().Context()); id != "" {
		resp.ID = &id
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) setCurrentConversation(c echo.Context) error {
	ctx := c.Request().Context()

	var req setCurrentRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	if s.conversations.Get(ctx, req.ID) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}

	s.conversations.SetCurrent(ctx, req.ID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getConversation(c echo.Context) error {
	conv := s.conversations.Get(c.Request().Context(), model.ConversationID(c.Param("id")))
	if conv == nil {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) putConversation(c echo.Context) error {
	ctx := c.Request().Context()
	id := model.ConversationID(c.Param("id"))

	var conv model.Conversation
	if err := c.Bind(&conv); err != nil {
		return err
	}
	conv.ID = id
	if conv.Title == "" {
		conv.Title = model.DefaultConversationTitle
	}
	if conv.Messages == nil {
		conv.Messages = []*model.Message{}
	}
	s.conversations.Save(ctx, &conv)
	return c.JSON(http.StatusOK, &conv)
}

func (s *Server) deleteConversation(c echo.Context) error {
	s.conversations.Delete(c.Request().Context(), model.ConversationID(c.Param("id")))
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listSearchLogs(c echo.Context) error {
	return c.JSON(http.StatusOK, logsResponse{
		Logs: s.searchLogs.List(c.Request().Context()),
	})
}

func (s *Server) clearSearchLogs(c echo.Context) error {
	s.searchLogs.Clear(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}
