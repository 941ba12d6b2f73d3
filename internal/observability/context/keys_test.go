package context

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithPayoutPeriod(ctx, "2024-05-01")
	ctx = WithActor(ctx, "role", "finance")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("request id = %q", got)
	}
	if got := RunIDFromContext(ctx); got != "run-1" {
		t.Fatalf("run id = %q", got)
	}
	if got := PayoutPeriodFromContext(ctx); got != "2024-05-01" {
		t.Fatalf("payout period = %q", got)
	}
	actorType, actorID := ActorFromContext(ctx)
	if actorType != "role" || actorID != "finance" {
		t.Fatalf("actor = %q/%q", actorType, actorID)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := WithRunID(context.Background(), "")
	if got := RunIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty run id, got %q", got)
	}
}
