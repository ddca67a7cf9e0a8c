package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/woongjin-cx/support-chat-proxy/internal/api"
	"github.com/woongjin-cx/support-chat-proxy/internal/audit"
	"github.com/woongjin-cx/support-chat-proxy/internal/audit/sqldb"
	"github.com/woongjin-cx/support-chat-proxy/internal/chat"
	"github.com/woongjin-cx/support-chat-proxy/internal/config"
	"github.com/woongjin-cx/support-chat-proxy/internal/server"
	"github.com/woongjin-cx/support-chat-proxy/internal/telemetry"
	"github.com/woongjin-cx/support-chat-proxy/internal/upstream"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("support-chat-proxy", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	auditLog, auditMode := newAuditLogger(cfg, logger)
	defer func() {
		if err := auditLog.Close(); err != nil {
			logger.Error("failed to close audit store", slog.String("error", err.Error()))
		}
	}()

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("openai api key not configured, chat requests will fail")
	}
	completer := upstream.New(cfg.OpenAI.APIKey,
		upstream.WithModel(cfg.OpenAI.Model),
		upstream.WithBaseURL(cfg.OpenAI.BaseURL),
		upstream.WithMaxTokens(cfg.OpenAI.MaxTokens),
	)

	assembler := chat.NewAssembler(completer, auditLog, logger)

	chatHandler := api.NewChatHandler(assembler, logger)
	adminHandler := api.NewAdminHandler(auditLog, logger)
	healthHandler := api.NewHealthHandler(auditMode, completer.Model())

	srv := server.New(cfg.Server.Port, logger)
	srv.Router.Post("/api/chat", chatHandler.HandleChat)
	srv.Router.Get("/api/health", healthHandler.HandleHealth)

	adminAuth := server.AdminAuthMiddleware(cfg.Admin.Key)
	srv.Router.With(adminAuth).Get("/api/logs", adminHandler.HandleLogs)
	srv.Router.With(adminAuth).Get("/api/stats", adminHandler.HandleStats)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	logger.Info("support chat proxy started",
		slog.Int("port", cfg.Server.Port),
		slog.String("model", completer.Model()),
		slog.String("audit_mode", auditMode),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// newAuditLogger selects the audit variant once at startup: durable when a
// usable connection string is configured and the driver initializes,
// degraded otherwise. The result is injected everywhere it is needed; no
// package-level logger state exists.
func newAuditLogger(cfg *config.Config, logger *slog.Logger) (audit.Logger, string) {
	ok, reason := audit.UsableDSN(cfg.Database.DSN)
	if !ok {
		logger.Info("using degraded audit logging", slog.String("reason", reason))
		return audit.NewDegraded(logger), "degraded"
	}

	store, err := sqldb.New(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		logger.Warn("audit store initialization failed, using degraded logging",
			slog.String("error", err.Error()))
		return audit.NewDegraded(logger), "degraded"
	}

	logger.Info("audit store connected", slog.String("driver", cfg.Database.Driver))
	return store, "durable"
}
