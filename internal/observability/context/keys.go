package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	runIDKey     contextKey = "observability_run_id"
	actorTypeKey contextKey = "observability_actor_type"
	actorIDKey   contextKey = "observability_actor_id"
	periodKey    contextKey = "observability_payout_period"
)

// Gin context keys set by payout handlers and read by the request middlewares.
const (
	GinRunIDKey        = "run_id"
	GinPayoutPeriodKey = "payout_period"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithRunID tags the context with a payout batch run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(runIDKey).(string)
	return value
}

// WithPayoutPeriod tags the context with the payout period being processed (YYYY-MM-01).
func WithPayoutPeriod(ctx context.Context, period string) context.Context {
	if ctx == nil || period == "" {
		return ctx
	}
	return context.WithValue(ctx, periodKey, period)
}

func PayoutPeriodFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(periodKey).(string)
	return value
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if actorType != "" {
		ctx = context.WithValue(ctx, actorTypeKey, actorType)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}
