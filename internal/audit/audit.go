// Package audit records chat turns and session activity to a best-effort
// sink. Two variants implement the Logger interface: the durable sqldb store
// and the degraded structured-output logger used when no usable database is
// configured. Audit failures are never allowed to fail the request that
// produced the turn; call sites are expected to log and continue.
package audit

import (
	"context"
	"time"
)

// Kind classifies a chat turn.
type Kind string

const (
	KindUser  Kind = "user"
	KindBot   Kind = "bot"
	KindError Kind = "error"
)

// Turn is one recorded exchange. For a completed turn exactly one of
// BotResponse and ErrorMessage is populated, matching Kind.
type Turn struct {
	ID             int64     `json:"id" db:"id"`
	SessionID      string    `json:"session_id" db:"session_id"`
	UserMessage    string    `json:"user_message" db:"user_message"`
	BotResponse    string    `json:"bot_response,omitempty" db:"bot_response"`
	Kind           Kind      `json:"message_type" db:"message_type"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	ErrorMessage   string    `json:"error_message,omitempty" db:"error_message"`
	UserAgent      string    `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress      string    `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SessionInfo is the per-conversation aggregate, keyed by SessionID.
// Provenance fields are set on first contact and left alone afterwards;
// LastActivity and TotalMessages move on every turn.
type SessionInfo struct {
	SessionID     string    `json:"session_id" db:"session_id"`
	UserAgent     string    `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress     string    `json:"ip_address,omitempty" db:"ip_address"`
	Referrer      string    `json:"referrer,omitempty" db:"referrer"`
	FirstVisit    time.Time `json:"first_visit" db:"first_visit"`
	LastActivity  time.Time `json:"last_activity" db:"last_activity"`
	TotalMessages int64     `json:"total_messages" db:"total_messages"`
}

// DailyStats is one day of aggregated chat activity.
type DailyStats struct {
	Date            string  `json:"date" db:"date"`
	TotalMessages   int64   `json:"total_messages" db:"total_messages"`
	UniqueSessions  int64   `json:"unique_sessions" db:"unique_sessions"`
	AvgResponseTime float64 `json:"avg_response_time" db:"avg_response_time"`
	ErrorCount      int64   `json:"error_count" db:"error_count"`
}

// LogQuery narrows a RecentLogs read. Zero-valued fields are no
// constraint. Filters apply before Limit and Offset, so a narrow query
// still reaches past newer rows of other kinds or sessions.
type LogQuery struct {
	SessionID string
	Kind      Kind
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Logger is the audit capability set. Implementations must be safe for
// concurrent use; concurrent upserts for the same session are resolved
// last-write-wins.
type Logger interface {
	// LogTurn appends one turn.
	LogTurn(ctx context.Context, turn *Turn) error

	// UpsertSession creates the session row on first contact and otherwise
	// bumps TotalMessages and LastActivity.
	UpsertSession(ctx context.Context, sess *SessionInfo) error

	// Statistics returns per-day aggregates for the trailing number of days.
	Statistics(ctx context.Context, days int) ([]DailyStats, error)

	// RecentLogs returns matching turns, newest first.
	RecentLogs(ctx context.Context, q LogQuery) ([]Turn, error)

	Close() error
}

// SessionLister is an optional capability of Logger implementations that can
// enumerate recently active sessions. The degraded variant does not.
type SessionLister interface {
	RecentSessions(ctx context.Context, limit int) ([]SessionInfo, error)
}
