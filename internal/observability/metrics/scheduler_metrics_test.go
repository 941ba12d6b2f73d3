package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "forbidden",
			err:  fmt.Errorf("send transfers: %w", authorization.ErrForbidden),
			want: SchedulerJobReasonForbidden,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if got := ClassifySchedulerErrorType(gorm.ErrRecordNotFound); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %q", got)
	}
	if !IsSchedulerErrorRetryable(context.Canceled) {
		t.Fatalf("expected canceled to be retryable")
	}
}

func TestAddBatchProcessedAndTransfers(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewSchedulerMetricsForTest(registry)

	metrics.AddBatchProcessed("send_transfers", ResourceTransfers, 3)
	metrics.AddBatchProcessed("send_transfers", ResourceTransfers, 0)
	metrics.AddTransfers("succeeded", 2)

	if got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("send_transfers", ResourceTransfers)); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.transfers.WithLabelValues("succeeded")); got != 2 {
		t.Fatalf("expected 2 succeeded transfers, got %v", got)
	}
}
