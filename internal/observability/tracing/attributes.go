package tracing

import (
	"context"
	"fmt"
	"strings"

	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrRunID        = attribute.Key("run_id")
	AttrPayoutPeriod = attribute.Key("payout_period")
	AttrClubID       = attribute.Key("club_id")
	AttrPayoutID     = attribute.Key("payout_id")
)

var sensitiveAttributeKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"stripe_account",
	"destination",
}

// SafeAttributes drops attributes with sensitive keys.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

// SafeError replaces an error with a type-only error to avoid leaking details.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%T", err)
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, needle := range sensitiveAttributeKeys {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

// PayoutAttributes returns the batch run and payout period carried by ctx.
func PayoutAttributes(ctx context.Context) []attribute.KeyValue {
	return payoutAttributes(obscontext.RunIDFromContext(ctx), obscontext.PayoutPeriodFromContext(ctx))
}

func payoutAttributes(runID, period string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if runID = strings.TrimSpace(runID); runID != "" {
		attrs = append(attrs, AttrRunID.String(runID))
	}
	if period = strings.TrimSpace(period); period != "" {
		attrs = append(attrs, AttrPayoutPeriod.String(period))
	}
	return attrs
}
