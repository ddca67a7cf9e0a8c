package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/woongjin-cx/support-chat-proxy/internal/audit"
	"github.com/woongjin-cx/support-chat-proxy/internal/server"
)

const (
	defaultLogsLimit  = 50
	maxLogsLimit      = 500
	defaultStatsDays  = 7
	previewLen        = 50
	recentSessionsMax = 5
)

// AdminHandler serves the read-only log and statistics endpoints. It works
// against any audit.Logger; with the degraded variant the responses are
// well-formed but empty.
type AdminHandler struct {
	audit  audit.Logger
	logger *slog.Logger
}

func NewAdminHandler(auditLog audit.Logger, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{audit: auditLog, logger: logger}
}

type logEntry struct {
	audit.Turn
	UserMessagePreview string `json:"user_message_preview,omitempty"`
	BotResponsePreview string `json:"bot_response_preview,omitempty"`
}

type logsResponse struct {
	Success        bool                `json:"success"`
	Logs           []logEntry          `json:"logs"`
	Pagination     paginationInfo      `json:"pagination"`
	RecentSessions []audit.SessionInfo `json:"recentSessions"`
	Filters        logFilters          `json:"filters"`
	Timestamp      time.Time           `json:"timestamp"`
}

type paginationInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type logFilters struct {
	SessionID   string `json:"session_id,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	DateFrom    string `json:"date_from,omitempty"`
	DateTo      string `json:"date_to,omitempty"`
}

// HandleLogs returns recent chat turns, optionally narrowed by session id,
// message type, and creation date range. Filters are pushed into the store
// query so they apply before the limit; a narrow filter reaches past newer
// rows of other kinds.
func (h *AdminHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), defaultLogsLimit)
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}
	filters := logFilters{
		SessionID:   q.Get("session_id"),
		MessageType: q.Get("message_type"),
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
	}
	query := audit.LogQuery{
		SessionID: filters.SessionID,
		Kind:      audit.Kind(filters.MessageType),
		From:      timeParam(filters.DateFrom, false),
		To:        timeParam(filters.DateTo, true),
		Limit:     limit,
		Offset:    intParam(q.Get("offset"), 0),
	}

	turns, err := h.audit.RecentLogs(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to fetch chat logs", slog.String("error", err.Error()))
		server.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch logs"})
		return
	}

	entries := make([]logEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, logEntry{
			Turn:               t,
			UserMessagePreview: previewText(t.UserMessage),
			BotResponsePreview: previewText(t.BotResponse),
		})
	}

	var sessions []audit.SessionInfo
	if lister, ok := h.audit.(audit.SessionLister); ok {
		sessions, err = lister.RecentSessions(r.Context(), recentSessionsMax)
		if err != nil {
			h.logger.Warn("failed to fetch recent sessions", slog.String("error", err.Error()))
			sessions = nil
		}
	}
	if sessions == nil {
		sessions = []audit.SessionInfo{}
	}

	server.WriteJSON(w, http.StatusOK, logsResponse{
		Success:        true,
		Logs:           entries,
		Pagination:     paginationInfo{Limit: limit, Offset: query.Offset, HasMore: len(turns) == limit},
		RecentSessions: sessions,
		Filters:        filters,
		Timestamp:      time.Now().UTC(),
	})
}

type statsResponse struct {
	Success    bool               `json:"success"`
	Period     string             `json:"period"`
	Summary    statsSummary       `json:"summary"`
	DailyStats []audit.DailyStats `json:"dailyStats"`
	Timestamp  time.Time          `json:"timestamp"`
}

type statsSummary struct {
	TotalMessages   int64   `json:"totalMessages"`
	TotalSessions   int64   `json:"totalSessions"`
	AvgResponseTime int64   `json:"avgResponseTime"`
	TotalErrors     int64   `json:"totalErrors"`
	ErrorRate       float64 `json:"errorRate"`
}

// HandleStats returns per-day aggregates for the trailing window plus a
// computed summary.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	days := intParam(r.URL.Query().Get("days"), defaultStatsDays)

	stats, err := h.audit.Statistics(r.Context(), days)
	if err != nil {
		h.logger.Error("failed to fetch statistics", slog.String("error", err.Error()))
		server.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch statistics"})
		return
	}

	server.WriteJSON(w, http.StatusOK, statsResponse{
		Success:    true,
		Period:     strconv.Itoa(days) + " days",
		Summary:    summarize(stats),
		DailyStats: stats,
		Timestamp:  time.Now().UTC(),
	})
}

func summarize(stats []audit.DailyStats) statsSummary {
	var s statsSummary
	var avgSum float64
	for _, day := range stats {
		s.TotalMessages += day.TotalMessages
		s.TotalSessions += day.UniqueSessions
		s.TotalErrors += day.ErrorCount
		avgSum += day.AvgResponseTime
	}
	if len(stats) > 0 {
		s.AvgResponseTime = int64(math.Round(avgSum / float64(len(stats))))
	}
	if s.TotalMessages > 0 {
		rate := float64(s.TotalErrors) / float64(s.TotalMessages) * 100
		s.ErrorRate = math.Round(rate*100) / 100
	}
	return s
}

// timeParam parses a date filter. Bare dates are accepted alongside full
// RFC3339 timestamps; a bare end date covers its whole day. Unparseable
// values mean no constraint.
func timeParam(raw string, endOfDay bool) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	if endOfDay {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func previewText(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLen {
		return s
	}
	return string(runes[:previewLen]) + "..."
}
