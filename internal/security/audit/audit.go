package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits structured audit records for state-changing exchange actions
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogSubmission(ctx context.Context, userID, requestID, status, details string) {
	al.LogAction(ctx, userID, "submit_request", "request", requestID, status, details)
}

func (al *Logger) LogDecision(ctx context.Context, userID, requestID, status, details string) {
	al.LogAction(ctx, userID, "decide_request", "request", requestID, status, details)
}

func (al *Logger) LogAvailabilityChange(ctx context.Context, userID, bookID, status, details string) {
	al.LogAction(ctx, userID, "set_availability", "book", bookID, status, details)
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
