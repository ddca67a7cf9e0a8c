// Package api contains the HTTP handlers: the public chat endpoint and the
// bearer-gated admin read endpoints. Handlers translate pipeline errors into
// the fixed caller-facing messages; diagnostic detail stays in the server
// logs.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/woongjin-cx/support-chat-proxy/internal/chat"
	"github.com/woongjin-cx/support-chat-proxy/internal/server"
	"github.com/woongjin-cx/support-chat-proxy/internal/upstream"
)

// ChatHandler serves the primary chat endpoint.
type ChatHandler struct {
	assembler *chat.Assembler
	logger    *slog.Logger
}

func NewChatHandler(assembler *chat.Assembler, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assembler: assembler, logger: logger}
}

// HandleChat runs one request through the assembler and writes the result.
// Bodies that fail to decode are rejected like any other invalid message,
// including the best-effort error turn.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.assembler.RecordMalformedRequest(r.Context(), requestMeta(r), err)
		server.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid message"})
		return
	}

	req.Meta = requestMeta(r)

	resp, err := h.assembler.Handle(r.Context(), req)
	if err != nil {
		server.AddError(r.Context(), err)
		status, msg := mapError(err)
		server.WriteJSON(w, status, map[string]string{"error": msg})
		return
	}

	server.AddLogField(r.Context(), "session_id", resp.SessionID)
	server.WriteJSON(w, http.StatusOK, resp)
}

// mapError picks the caller-facing status and message for a pipeline
// failure. Messages are fixed strings; upstream error bodies and stack
// detail never leak to the client.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrMessageTooLong):
		return http.StatusBadRequest, "Message too long"
	case chat.IsValidationError(err):
		return http.StatusBadRequest, "Invalid message"
	case errors.Is(err, upstream.ErrNotConfigured):
		return http.StatusInternalServerError, "API key not configured"
	}

	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		return http.StatusInternalServerError, "AI service temporarily unavailable"
	}

	return http.StatusInternalServerError, "Internal server error"
}

func requestMeta(r *http.Request) chat.RequestMeta {
	return chat.RequestMeta{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
		Referrer:  r.Referer(),
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
