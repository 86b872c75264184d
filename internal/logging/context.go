package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldGID is the standardized structured logging key for aria2 download identifiers.
	FieldGID = "gid"
	// FieldBackend is the standardized structured logging key for upload backend names.
	FieldBackend = "backend"
	// FieldEventType is the standardized structured logging key for lifecycle event kinds.
	FieldEventType = "event_type"
	// FieldErrorCode is the standardized structured logging key for machine-readable error codes.
	FieldErrorCode = "error_code"
	// FieldErrorHint is the standardized structured logging key for operator guidance.
	FieldErrorHint = "error_hint"
	// FieldCorrelationID is the standardized structured logging key for RPC correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldProgressPercent is the standardized structured logging key for download progress.
	FieldProgressPercent = "progress_percent"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey int

const (
	ctxKeyGID contextKey = iota
	ctxKeyBackend
	ctxKeyRequestID
)

// WithGID stores a download identifier on the context for log enrichment.
func WithGID(ctx context.Context, gid string) context.Context {
	if strings.TrimSpace(gid) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyGID, gid)
}

// GIDFromContext returns the download identifier stored on the context, if any.
func GIDFromContext(ctx context.Context) (string, bool) {
	gid, ok := ctx.Value(ctxKeyGID).(string)
	return gid, ok && gid != ""
}

// WithBackend stores an upload backend name on the context for log enrichment.
func WithBackend(ctx context.Context, backend string) context.Context {
	if strings.TrimSpace(backend) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyBackend, backend)
}

// BackendFromContext returns the backend name stored on the context, if any.
func BackendFromContext(ctx context.Context) (string, bool) {
	backend, ok := ctx.Value(ctxKeyBackend).(string)
	return backend, ok && backend != ""
}

// WithRequestID stores an RPC correlation identifier on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext returns the correlation identifier stored on the context, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyRequestID).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if gid, ok := GIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldGID, gid))
	}
	if backend, ok := BackendFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBackend, backend))
	}
	if rid, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
