// Package api provides the HTTP surface: the signed LINE webhook endpoint,
// the Google OAuth callback, and a health probe.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hisho-bot/hisho/internal/line"
	"github.com/hisho-bot/hisho/internal/models"
)

// WebhookParser verifies and decodes an inbound webhook request.
// Satisfied by *line.Client.
type WebhookParser interface {
	ParseRequest(r *http.Request) ([]models.Event, error)
}

// EventHandler consumes one decoded webhook event. Satisfied by
// *bot.Controller.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev models.Event)
}

// AccountLinker completes the Google OAuth flow. Satisfied by
// *auth.Provider.
type AccountLinker interface {
	// DecodeState recovers the user ID from the signed state parameter,
	// or returns "" when the signature does not match.
	DecodeState(state string) string

	// HandleCallback exchanges the authorization code and persists tokens,
	// returning the linked user ID.
	HandleCallback(ctx context.Context, state, code string) (string, error)
}

// Server routes HTTP traffic to the webhook and OAuth handlers.
type Server struct {
	parser  WebhookParser
	handler EventHandler
	linker  AccountLinker
	line    line.Service
}

// NewServer wires the HTTP surface.
func NewServer(parser WebhookParser, handler EventHandler, linker AccountLinker, svc line.Service) *Server {
	return &Server{
		parser:  parser,
		handler: handler,
		linker:  linker,
		line:    svc,
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/callback", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/oauth/callback", s.handleOAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
