// Package sqldb is the durable audit.Logger variant: chat turns and
// sessions persisted to a relational store through sqlx, with the SQL
// differences between sqlite and postgres isolated in the dialect package.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/woongjin-cx/support-chat-proxy/internal/audit"
	"github.com/woongjin-cx/support-chat-proxy/internal/audit/dialect"
)

// Config holds database connection configuration.
type Config struct {
	Driver string // sqlite or postgres
	DSN    string // data source name / connection string
}

// Store persists audit records to a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var (
	_ audit.Logger        = (*Store)(nil)
	_ audit.SessionLister = (*Store)(nil)
)

// New opens the database, runs dialect init statements, and ensures the
// schema exists.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize connection: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_logs (
			id %s,
			session_id TEXT NOT NULL,
			user_message TEXT,
			bot_response TEXT,
			message_type TEXT NOT NULL,
			response_time_ms INTEGER,
			error_message TEXT,
			user_agent TEXT,
			ip_address TEXT,
			created_at TIMESTAMP NOT NULL
		)`, s.dialect.AutoIncrementClause()),
		`CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id TEXT PRIMARY KEY,
			user_agent TEXT,
			ip_address TEXT,
			referrer TEXT,
			first_visit TIMESTAMP NOT NULL,
			last_activity TIMESTAMP NOT NULL,
			total_messages INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_session ON chat_logs(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_created ON chat_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_logs_type ON chat_logs(message_type)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_sessions_activity ON chat_sessions(last_activity)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// LogTurn appends one turn to chat_logs and fills in the generated row id
// and timestamp.
func (s *Store) LogTurn(ctx context.Context, turn *audit.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := s.dialect.Rebind(`INSERT INTO chat_logs
		(session_id, user_message, bot_response, message_type, response_time_ms, error_message, user_agent, ip_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	err := s.db.QueryRowContext(ctx, query,
		turn.SessionID,
		nullString(turn.UserMessage),
		nullString(turn.BotResponse),
		string(turn.Kind),
		turn.ResponseTimeMs,
		nullString(turn.ErrorMessage),
		nullString(turn.UserAgent),
		nullString(turn.IPAddress),
		turn.CreatedAt,
	).Scan(&turn.ID)
	if err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}

	return nil
}

// UpsertSession creates the session row on first contact; on conflict it
// bumps total_messages against the stored row and refreshes last_activity,
// leaving provenance from the first visit untouched. The increment happens
// in the database so concurrent turns for one session cannot lose counts,
// though last-write-wins on last_activity remains.
func (s *Store) UpsertSession(ctx context.Context, sess *audit.SessionInfo) error {
	now := time.Now().UTC()
	if sess.FirstVisit.IsZero() {
		sess.FirstVisit = now
	}
	sess.LastActivity = now

	query := s.dialect.Rebind(fmt.Sprintf(`INSERT INTO chat_sessions
		(session_id, user_agent, ip_address, referrer, first_visit, last_activity, total_messages)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		%s`,
		s.dialect.UpsertClause("session_id",
			"last_activity = excluded.last_activity",
			"total_messages = chat_sessions.total_messages + 1",
		)))

	_, err := s.db.ExecContext(ctx, query,
		sess.SessionID,
		nullString(sess.UserAgent),
		nullString(sess.IPAddress),
		nullString(sess.Referrer),
		sess.FirstVisit,
		sess.LastActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

// Statistics aggregates chat_logs per day for the trailing window.
func (s *Store) Statistics(ctx context.Context, days int) ([]audit.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	dateExpr := s.dialect.DateOf("created_at")
	query := s.dialect.Rebind(fmt.Sprintf(`SELECT
			%s AS date,
			COUNT(*) AS total_messages,
			COUNT(DISTINCT session_id) AS unique_sessions,
			COALESCE(AVG(response_time_ms), 0) AS avg_response_time,
			SUM(CASE WHEN message_type = 'error' THEN 1 ELSE 0 END) AS error_count
		FROM chat_logs
		WHERE created_at >= ?
		GROUP BY %s
		ORDER BY date DESC`, dateExpr, dateExpr))

	var stats []audit.DailyStats
	if err := s.db.SelectContext(ctx, &stats, query, cutoff); err != nil {
		return nil, fmt.Errorf("failed to query statistics: %w", err)
	}

	return stats, nil
}

type turnRow struct {
	ID             int64          `db:"id"`
	SessionID      string         `db:"session_id"`
	UserMessage    sql.NullString `db:"user_message"`
	BotResponse    sql.NullString `db:"bot_response"`
	Kind           string         `db:"message_type"`
	ResponseTimeMs sql.NullInt64  `db:"response_time_ms"`
	ErrorMessage   sql.NullString `db:"error_message"`
	UserAgent      sql.NullString `db:"user_agent"`
	IPAddress      sql.NullString `db:"ip_address"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r turnRow) toTurn() audit.Turn {
	return audit.Turn{
		ID:             r.ID,
		SessionID:      r.SessionID,
		UserMessage:    r.UserMessage.String,
		BotResponse:    r.BotResponse.String,
		Kind:           audit.Kind(r.Kind),
		ResponseTimeMs: r.ResponseTimeMs.Int64,
		ErrorMessage:   r.ErrorMessage.String,
		UserAgent:      r.UserAgent.String,
		IPAddress:      r.IPAddress.String,
		CreatedAt:      r.CreatedAt,
	}
}

// RecentLogs returns the newest matching turns first. Filters narrow the
// query itself, so limit and offset page through the filtered set rather
// than a window of unfiltered rows.
func (s *Store) RecentLogs(ctx context.Context, q audit.LogQuery) ([]audit.Turn, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, user_message, bot_response, message_type,
			response_time_ms, error_message, user_agent, ip_address, created_at
		FROM chat_logs`
	var where []string
	args := []any{}
	if q.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.Kind != "" {
		where = append(where, "message_type = ?")
		args = append(args, string(q.Kind))
	}
	if !q.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.To)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	var rows []turnRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query chat logs: %w", err)
	}

	turns := make([]audit.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, r.toTurn())
	}
	return turns, nil
}

type sessionRow struct {
	SessionID     string         `db:"session_id"`
	UserAgent     sql.NullString `db:"user_agent"`
	IPAddress     sql.NullString `db:"ip_address"`
	Referrer      sql.NullString `db:"referrer"`
	FirstVisit    time.Time      `db:"first_visit"`
	LastActivity  time.Time      `db:"last_activity"`
	TotalMessages int64          `db:"total_messages"`
}

// RecentSessions returns the most recently active sessions.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]audit.SessionInfo, error) {
	if limit <= 0 {
		limit = 10
	}

	query := s.dialect.Rebind(`SELECT session_id, user_agent, ip_address, referrer,
			first_visit, last_activity, total_messages
		FROM chat_sessions
		ORDER BY last_activity DESC
		LIMIT ?`)

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	sessions := make([]audit.SessionInfo, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, audit.SessionInfo{
			SessionID:     r.SessionID,
			UserAgent:     r.UserAgent.String,
			IPAddress:     r.IPAddress.String,
			Referrer:      r.Referrer.String,
			FirstVisit:    r.FirstVisit,
			LastActivity:  r.LastActivity,
			TotalMessages: r.TotalMessages,
		})
	}
	return sessions, nil
}

// Dialect returns the dialect in use.
func (s *Store) Dialect() dialect.Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
