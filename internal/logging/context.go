package logging

import (
	"context"
	"log/slog"

	"snapdiff/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (e.g. capture_failed).
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldSitePath is the structured logging key for site identifiers.
	FieldSitePath = "site_path"
	// FieldRoute is the structured logging key for page routes.
	FieldRoute = "route"
	// FieldDevice is the structured logging key for device profile names.
	FieldDevice = "device"
	// FieldBatchID is the structured logging key for comparison batch identifiers.
	FieldBatchID = "batch_id"
	// FieldURL is the structured logging key for capture target URLs.
	FieldURL = "url"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if v, ok := services.SitePathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSitePath, v))
	}
	if v, ok := services.RouteFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRoute, v))
	}
	if v, ok := services.DeviceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDevice, v))
	}
	if v, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, v))
	}
	if v, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, v))
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
	return logger.With(Args(fields...)...)
}
