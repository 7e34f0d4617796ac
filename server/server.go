// Package server exposes the Coordinator Agent over HTTP: one endpoint that
// accepts an inbound turn and returns the assistant's response plus the
// classification and provenance metadata external callers depend on.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/convergeai/core/internal/coordinator"
	"github.com/convergeai/core/internal/idgen"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/profile"
)

// Server wires the Coordinator behind an echo HTTP server.
type Server struct {
	e       *echo.Echo
	profile *profile.Profile
	coord   *coordinator.Coordinator
}

// New builds a Server. It does not start listening — call Start.
func New(p *profile.Profile, coord *coordinator.Coordinator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
	}))

	s := &Server{e: e, profile: p, coord: coord}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/healthz", s.handleHealthz)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.e.POST("/v1/messages", s.handleMessage)
}

// Start blocks serving on addr until ctx is cancelled, then shuts down
// gracefully within 10 seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// messageRequest is the inbound contract: a caller sends a message on behalf
// of a user over one of the supported channels, optionally continuing an
// existing session and carrying recent turn history for context.
type messageRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id"`
	UserID    int64         `json:"user_id"`
	Channel   string        `json:"channel"`
	History   []historyTurn `json:"history"`
}

type historyTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var validChannels = map[string]bool{"web": true, "mobile": true, "whatsapp": true}

// messageResponse is the outward contract: the assistant's reply plus the
// classification and provenance metadata every channel surfaces.
type messageResponse struct {
	SessionID  string         `json:"session_id"`
	Response   string         `json:"response"`
	Intent     string         `json:"intent"`
	Confidence float32        `json:"confidence"`
	AgentUsed  any            `json:"agent_used"`
	Metadata   map[string]any `json:"metadata"`
}

func (s *Server) handleMessage(c echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}
	if !validChannels[req.Channel] {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "channel must be one of web, mobile, whatsapp"})
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = idgen.Session()
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	result, err := s.coord.Handle(c.Request().Context(), coordinator.Input{
		Message:   req.Message,
		UserID:    formatUserID(req.UserID),
		SessionID: sessionID,
		History:   history,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to process message, please retry"})
	}

	var agentUsed any
	switch len(result.AgentUsed) {
	case 0:
		agentUsed = nil
	case 1:
		agentUsed = result.AgentUsed[0]
	default:
		agentUsed = result.AgentUsed
	}

	return c.JSON(http.StatusOK, messageResponse{
		SessionID:  sessionID,
		Response:   result.Response,
		Intent:     result.Intent,
		Confidence: result.Confidence,
		AgentUsed:  agentUsed,
		Metadata:   result.Metadata,
	})
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}
