package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across cadence.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID      = "job_id"
	FieldLeadID     = "lead_id"
	FieldCampaignID = "campaign_id"
	FieldRequestID  = "request_id"

	// Components
	FieldComponent = "component"
	FieldService   = "service"

	// Operations
	FieldOperation = "operation"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldVariant   = "variant"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldStartTime  = "start_time"
	FieldEndTime    = "end_time"

	// Errors
	FieldError     = "error"
	FieldErrorCode = "error_code"

	// Counts and sizes
	FieldCount      = "count"
	FieldSize       = "size"
	FieldBatchSize  = "batch_size"
	FieldTotalCount = "total_count"

	// Status
	FieldStatus  = "status"
	FieldHealthy = "healthy"
	FieldState   = "state"

	// Qualification
	FieldScore     = "score"
	FieldDecision  = "decision"
	FieldEscalated = "escalated"

	// Oracle
	FieldModel   = "model"
	FieldAttempt = "attempt"
	FieldTokens  = "tokens"

	// Network
	FieldAddress = "address"
	FieldPort    = "port"
	FieldHost    = "host"
)

// Context keys for propagating logging context
type contextKey string

const (
	jobIDKey     contextKey = "logger_job_id"
	leadIDKey    contextKey = "logger_lead_id"
	requestIDKey contextKey = "logger_request_id"
	componentKey contextKey = "logger_component"
)

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithLeadID adds a lead ID to the context for logging
func WithLeadID(ctx context.Context, leadID string) context.Context {
	return context.WithValue(ctx, leadIDKey, leadID)
}

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FromContext extracts logging fields from context and returns a logger with them attached.
// Returns the base logger unchanged if no fields are present.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	if ctx == nil {
		return base
	}

	fields := make([]interface{}, 0, 8)
	if jobID, ok := ctx.Value(jobIDKey).(string); ok && jobID != "" {
		fields = append(fields, FieldJobID, jobID)
	}
	if leadID, ok := ctx.Value(leadIDKey).(string); ok && leadID != "" {
		fields = append(fields, FieldLeadID, leadID)
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
