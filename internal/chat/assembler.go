// Package chat holds the core request pipeline: input validation, the
// sentence-safe truncation engine, session identity, and the response
// assembler that strings them together around one upstream call.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/woongjin-cx/support-chat-proxy/internal/audit"
)

// Completer produces the assistant reply for one user message.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// RequestMeta is provenance captured from the HTTP request, recorded with
// the turn and session but never interpreted.
type RequestMeta struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

// Request is one decoded chat request. Message stays raw JSON until the
// validator has looked at it so a non-string value can be rejected instead
// of silently coerced.
type Request struct {
	Message   json.RawMessage `json:"message"`
	SessionID string          `json:"sessionId"`
	Meta      RequestMeta     `json:"-"`
}

// Response is the successful result of one pipeline run.
type Response struct {
	Response     string    `json:"response"`
	SessionID    string    `json:"sessionId"`
	Timestamp    time.Time `json:"timestamp"`
	ResponseTime int64     `json:"responseTime"`
}

// Assembler runs the per-request pipeline: validate, call upstream,
// truncate, log, respond. Stages are strictly sequential and the assembler
// keeps no state across requests.
type Assembler struct {
	upstream Completer
	audit    audit.Logger
	logger   *slog.Logger
}

// NewAssembler wires the pipeline. The audit logger is injected rather than
// referenced globally so variant selection stays a one-time decision in
// main.
func NewAssembler(upstream Completer, auditLog audit.Logger, logger *slog.Logger) *Assembler {
	return &Assembler{
		upstream: upstream,
		audit:    auditLog,
		logger:   logger,
	}
}

// Handle runs one request through the pipeline. Validation and upstream
// failures abort with an error (recorded best-effort as an error turn);
// audit failures never do. ResponseTime is wall-clock milliseconds from
// entry to response assembly.
func (a *Assembler) Handle(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	sessionID := ResolveSessionID(req.SessionID)

	message, err := ValidateMessage(req.Message)
	if err != nil {
		a.recordError(ctx, sessionID, rawPreview(req.Message), err, req.Meta, elapsedMs(start))
		return nil, err
	}

	reply, err := a.upstream.Complete(ctx, message)
	if err != nil {
		a.recordError(ctx, sessionID, message, err, req.Meta, elapsedMs(start))
		return nil, err
	}

	reply = Truncate(reply)
	elapsed := elapsedMs(start)

	a.attempt(ctx, "log turn", func(ctx context.Context) error {
		return a.audit.LogTurn(ctx, &audit.Turn{
			SessionID:      sessionID,
			UserMessage:    message,
			BotResponse:    reply,
			Kind:           audit.KindBot,
			ResponseTimeMs: elapsed,
			UserAgent:      req.Meta.UserAgent,
			IPAddress:      req.Meta.IPAddress,
		})
	})
	a.attempt(ctx, "upsert session", func(ctx context.Context) error {
		return a.audit.UpsertSession(ctx, &audit.SessionInfo{
			SessionID: sessionID,
			UserAgent: req.Meta.UserAgent,
			IPAddress: req.Meta.IPAddress,
			Referrer:  req.Meta.Referrer,
		})
	})

	return &Response{
		Response:     reply,
		SessionID:    sessionID,
		Timestamp:    time.Now().UTC(),
		ResponseTime: elapsed,
	}, nil
}

// RecordMalformedRequest logs an error-kind turn for a request body that
// could not be decoded at all. No session id exists at that point, so one
// is generated just to land the rejection in the audit trail.
func (a *Assembler) RecordMalformedRequest(ctx context.Context, meta RequestMeta, cause error) {
	a.recordError(ctx, GenerateSessionID(), "", cause, meta, 0)
}

// recordError logs an error-kind turn best-effort. The pipeline outcome is
// already decided by the time it runs.
func (a *Assembler) recordError(ctx context.Context, sessionID, message string, cause error, meta RequestMeta, elapsed int64) {
	a.attempt(ctx, "log error turn", func(ctx context.Context) error {
		return a.audit.LogTurn(ctx, &audit.Turn{
			SessionID:      sessionID,
			UserMessage:    message,
			Kind:           audit.KindError,
			ResponseTimeMs: elapsed,
			ErrorMessage:   cause.Error(),
			UserAgent:      meta.UserAgent,
			IPAddress:      meta.IPAddress,
		})
	})
}

// attempt runs one audit operation and swallows any failure, including a
// panicking implementation. Audit problems must never alter the response
// path; they are logged as warnings and nothing else.
func (a *Assembler) attempt(ctx context.Context, op string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("audit logging panicked",
				slog.String("op", op),
				slog.Any("panic", r),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		a.logger.Warn("audit logging failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	}
}

func elapsedMs(start time.Time) int64 {
	ms := time.Since(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// rawPreview renders a rejected message value for the error turn without
// trusting its size.
func rawPreview(raw json.RawMessage) string {
	const max = MaxMessageRunes
	s := string(raw)
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
