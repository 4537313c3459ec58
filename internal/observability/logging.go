// Package observability provides repository logging, Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLoggingEnabled toggles per-operation repository logs. Errors are always logged.
var RepoLoggingEnabled = true

// RepoLogger writes structured logs for repository operations on one table.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
}

// NewRepoLogger creates a RepoLogger for the given table using the default slog logger.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName}
}

func (l *RepoLogger) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

func (l *RepoLogger) write(ctx context.Context, operation string, fields map[string]interface{}) {
	if !RepoLoggingEnabled {
		return
	}
	attrs := make([]any, 0, len(fields)+2)
	attrs = append(attrs, slog.String("table", l.tableName), slog.String("operation", operation))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.log().DebugContext(ctx, "repository "+operation, attrs...)
}

// LogCreate logs a create.
func (l *RepoLogger) LogCreate(ctx context.Context, fields map[string]interface{}) {
	l.write(ctx, "create", fields)
}

// LogUpdate logs an update.
func (l *RepoLogger) LogUpdate(ctx context.Context, fields map[string]interface{}) {
	l.write(ctx, "update", fields)
}

// LogDelete logs a delete.
func (l *RepoLogger) LogDelete(ctx context.Context, fields map[string]interface{}) {
	l.write(ctx, "delete", fields)
}

// LogError logs a failed repository operation.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.log().ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
