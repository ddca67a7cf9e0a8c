package audit

import (
	"context"
	"log/slog"
	"time"
)

const (
	previewMessageLen   = 100
	previewUserAgentLen = 50
)

// Degraded is the no-database variant of Logger. Every write becomes a
// structured log line and returns a synthetic acknowledgement; reads return
// placeholder results. It never fails.
type Degraded struct {
	logger *slog.Logger
}

var _ Logger = (*Degraded)(nil)

// NewDegraded creates a Degraded logger emitting through the given slog
// logger.
func NewDegraded(logger *slog.Logger) *Degraded {
	return &Degraded{logger: logger}
}

func (d *Degraded) LogTurn(ctx context.Context, turn *Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.ID = turn.CreatedAt.UnixMilli()

	d.logger.InfoContext(ctx, "chat turn",
		slog.String("session_id", turn.SessionID),
		slog.String("message_type", string(turn.Kind)),
		slog.String("user_message", preview(turn.UserMessage, previewMessageLen)),
		slog.String("bot_response", preview(turn.BotResponse, previewMessageLen)),
		slog.Int64("response_time_ms", turn.ResponseTimeMs),
		slog.String("error_message", turn.ErrorMessage),
		slog.String("user_agent", preview(turn.UserAgent, previewUserAgentLen)),
		slog.String("ip_address", turn.IPAddress),
	)
	return nil
}

func (d *Degraded) UpsertSession(ctx context.Context, sess *SessionInfo) error {
	d.logger.InfoContext(ctx, "chat session",
		slog.String("session_id", sess.SessionID),
		slog.String("user_agent", preview(sess.UserAgent, previewUserAgentLen)),
		slog.String("ip_address", sess.IPAddress),
		slog.String("referrer", sess.Referrer),
	)
	return nil
}

// Statistics returns a single zeroed row for the current date so admin
// consumers see a well-formed shape instead of an error.
func (d *Degraded) Statistics(ctx context.Context, days int) ([]DailyStats, error) {
	d.logger.DebugContext(ctx, "statistics requested without audit store", slog.Int("days", days))
	return []DailyStats{{Date: time.Now().UTC().Format("2006-01-02")}}, nil
}

func (d *Degraded) RecentLogs(ctx context.Context, q LogQuery) ([]Turn, error) {
	d.logger.DebugContext(ctx, "log query without audit store",
		slog.String("session_id", q.SessionID),
		slog.String("message_type", string(q.Kind)),
		slog.Int("limit", q.Limit),
	)
	return []Turn{}, nil
}

func (d *Degraded) Close() error { return nil }

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
