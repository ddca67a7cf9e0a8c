package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/woongjin-cx/support-chat-proxy/internal/audit"
	"github.com/woongjin-cx/support-chat-proxy/internal/chat"
	"github.com/woongjin-cx/support-chat-proxy/internal/server"
	"github.com/woongjin-cx/support-chat-proxy/internal/upstream"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	return s.reply, s.err
}

// memAudit records turns in memory and can be told to fail.
type memAudit struct {
	turns    []audit.Turn
	sessions []audit.SessionInfo
	fail     error
}

func (m *memAudit) LogTurn(_ context.Context, turn *audit.Turn) error {
	if m.fail != nil {
		return m.fail
	}
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *memAudit) UpsertSession(_ context.Context, sess *audit.SessionInfo) error {
	if m.fail != nil {
		return m.fail
	}
	m.sessions = append(m.sessions, *sess)
	return nil
}

func (m *memAudit) Statistics(_ context.Context, _ int) ([]audit.DailyStats, error) {
	return []audit.DailyStats{}, nil
}

func (m *memAudit) RecentLogs(_ context.Context, q audit.LogQuery) ([]audit.Turn, error) {
	matched := 0
	out := make([]audit.Turn, 0, len(m.turns))
	for i := len(m.turns) - 1; i >= 0 && len(out) < q.Limit; i-- {
		t := m.turns[i]
		if q.SessionID != "" && t.SessionID != q.SessionID {
			continue
		}
		if q.Kind != "" && t.Kind != q.Kind {
			continue
		}
		matched++
		if matched <= q.Offset {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memAudit) Close() error { return nil }

func newChatRouter(t *testing.T, completer chat.Completer, auditLog audit.Logger) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	assembler := chat.NewAssembler(completer, auditLog, logger)
	handler := NewChatHandler(assembler, logger)

	srv := server.New(0, logger)
	srv.Router.Post("/api/chat", handler.HandleChat)
	return srv.Router
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestHandleChat_Success(t *testing.T) {
	auditLog := &memAudit{}
	router := newChatRouter(t, &stubCompleter{reply: "스마트올은 초등 전과목 학습 서비스입니다."}, auditLog)

	rec := postChat(t, router, `{"message": "스마트올이 뭐예요?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var resp chat.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "스마트올은 초등 전과목 학습 서비스입니다." {
		t.Errorf("response = %q, want upstream reply verbatim", resp.Response)
	}
	if !strings.HasPrefix(resp.SessionID, "session_") {
		t.Errorf("sessionId = %q, want generated session_ id", resp.SessionID)
	}
	if resp.ResponseTime < 0 {
		t.Errorf("responseTime = %d, want >= 0", resp.ResponseTime)
	}
	if resp.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	if len(auditLog.turns) != 1 || auditLog.turns[0].Kind != audit.KindBot {
		t.Fatalf("audit turns = %+v, want one bot turn", auditLog.turns)
	}
	if len(auditLog.sessions) != 1 {
		t.Fatalf("audit sessions = %d, want 1", len(auditLog.sessions))
	}
}

func TestHandleChat_SuppliedSessionID(t *testing.T) {
	router := newChatRouter(t, &stubCompleter{reply: "ok"}, &memAudit{})

	rec := postChat(t, router, `{"message": "hi", "sessionId": "session_123_abcdefghi"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp chat.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "session_123_abcdefghi" {
		t.Errorf("sessionId = %q, want caller value preserved", resp.SessionID)
	}
}

func TestHandleChat_ValidationErrors(t *testing.T) {
	longMessage := strings.Repeat("가", 600)

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"empty message", `{"message": ""}`, "Invalid message"},
		{"missing message", `{}`, "Invalid message"},
		{"non-string message", `{"message": 42}`, "Invalid message"},
		{"malformed json", `{"message": `, "Invalid message"},
		{"too long", `{"message": "` + longMessage + `"}`, "Message too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditLog := &memAudit{}
			router := newChatRouter(t, &stubCompleter{reply: "unreachable"}, auditLog)
			rec := postChat(t, router, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeError(t, rec); got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
			// Every rejection still lands in the audit trail.
			if len(auditLog.turns) != 1 || auditLog.turns[0].Kind != audit.KindError {
				t.Errorf("audit turns = %+v, want one error turn", auditLog.turns)
			}
		})
	}
}

func TestHandleChat_BoundaryLength(t *testing.T) {
	router := newChatRouter(t, &stubCompleter{reply: "ok"}, &memAudit{})

	rec := postChat(t, router, `{"message": "`+strings.Repeat("한", 500)+`"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("500 code points: status = %d, want 200", rec.Code)
	}

	rec = postChat(t, router, `{"message": "`+strings.Repeat("한", 501)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("501 code points: status = %d, want 400", rec.Code)
	}
}

func TestHandleChat_UpstreamFailure(t *testing.T) {
	auditLog := &memAudit{}
	upErr := &upstream.Error{StatusCode: http.StatusTooManyRequests, Message: "rate limited"}
	router := newChatRouter(t, &stubCompleter{err: upErr}, auditLog)

	rec := postChat(t, router, `{"message": "hi"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != "AI service temporarily unavailable" {
		t.Errorf("error = %q, want %q", got, "AI service temporarily unavailable")
	}

	if len(auditLog.turns) != 1 || auditLog.turns[0].Kind != audit.KindError {
		t.Fatalf("audit turns = %+v, want one error turn", auditLog.turns)
	}
}

func TestHandleChat_MissingAPIKey(t *testing.T) {
	router := newChatRouter(t, upstream.New(""), &memAudit{})

	rec := postChat(t, router, `{"message": "hi"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec); got != "API key not configured" {
		t.Errorf("error = %q, want %q", got, "API key not configured")
	}
}

func TestHandleChat_AuditFailureDoesNotFailRequest(t *testing.T) {
	auditLog := &memAudit{fail: errors.New("database is down")}
	router := newChatRouter(t, &stubCompleter{reply: "ok"}, auditLog)

	rec := postChat(t, router, `{"message": "hi"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite audit failure", rec.Code)
	}
}

func TestHandleChat_MethodNotAllowed(t *testing.T) {
	router := newChatRouter(t, &stubCompleter{reply: "ok"}, &memAudit{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := decodeError(t, rec); got != "Method not allowed" {
		t.Errorf("error = %q, want %q", got, "Method not allowed")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{"forwarded single", "203.0.113.7", "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded chain", "203.0.113.7, 10.0.0.2", "10.0.0.1:1234", "203.0.113.7"},
		{"no forwarded", "", "10.0.0.1:1234", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
