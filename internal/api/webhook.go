package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hisho-bot/hisho/internal/line"
)

// handleWebhook verifies the signature, decodes the event batch, and runs
// each event through the controller. Once the batch parses, the response is
// always 200: a non-success ack would make the platform redeliver events
// whose side effects may already have happened.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	events, err := s.parser.ParseRequest(r)
	if err != nil {
		if errors.Is(err, line.ErrInvalidSignature) {
			slog.Warn("api: rejecting webhook with invalid signature", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		slog.Warn("api: failed to parse webhook request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		s.handler.HandleEvent(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}
