package tracker

import "context"

// Context key for propagating usage attribution
type contextKey string

const attributionKey contextKey = "tracker_attribution"

// Attribution identifies the operation a model request belongs to
type Attribution struct {
	OperationType string
	EntityType    string
	EntityID      string
}

// WithAttribution returns a context that attributes usage rows recorded
// for model requests made beneath it
func WithAttribution(ctx context.Context, a Attribution) context.Context {
	return context.WithValue(ctx, attributionKey, a)
}

// AttributionFrom extracts usage attribution from the context
func AttributionFrom(ctx context.Context) (Attribution, bool) {
	a, ok := ctx.Value(attributionKey).(Attribution)
	return a, ok
}
