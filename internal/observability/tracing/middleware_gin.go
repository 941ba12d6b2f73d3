package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareConfig controls which payout fields are copied onto server spans.
type MiddlewareConfig struct {
	PayoutAttributes bool
}

// GinMiddleware opens a server span per request. When payout attributes are
// enabled the span also carries the batch run, period, club and payout ids
// that the handler resolved.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer("clubpay/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if requestID := obscontext.RequestIDFromContext(c.Request.Context()); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if cfg.PayoutAttributes {
			attrs = append(attrs, requestPayoutAttributes(c)...)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

// requestPayoutAttributes prefers values set by the handler over raw route params.
func requestPayoutAttributes(c *gin.Context) []attribute.KeyValue {
	period := c.GetString(obscontext.GinPayoutPeriodKey)
	if period == "" {
		period = c.Param("period")
	}
	attrs := payoutAttributes(c.GetString(obscontext.GinRunIDKey), period)
	if clubID := strings.TrimSpace(c.Param("clubId")); clubID != "" {
		attrs = append(attrs, AttrClubID.String(clubID))
	}
	if payoutID := strings.TrimSpace(c.Param("id")); payoutID != "" {
		attrs = append(attrs, AttrPayoutID.String(payoutID))
	}
	return attrs
}
