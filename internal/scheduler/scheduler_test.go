package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"github.com/smallbiznis/clubpay/internal/clock"
	obsmetrics "github.com/smallbiznis/clubpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
	"go.uber.org/zap"
)

type fakePayoutService struct {
	payoutdomain.Service

	generateReqs []payoutdomain.GenerateRequest
	transferReqs []payoutdomain.SendTransfersRequest
	generateErr  error
	transferErr  error
	batch        payoutdomain.TransferBatchResult
}

func (f *fakePayoutService) GenerateMonthly(ctx context.Context, req payoutdomain.GenerateRequest) (payoutdomain.GenerateResult, error) {
	f.generateReqs = append(f.generateReqs, req)
	if f.generateErr != nil {
		return payoutdomain.GenerateResult{}, f.generateErr
	}
	return payoutdomain.GenerateResult{Period: req.Period, ClubsProcessed: 2, TotalAmount: decimal.NewFromInt(100)}, nil
}

func (f *fakePayoutService) SendTransfers(ctx context.Context, req payoutdomain.SendTransfersRequest) (payoutdomain.TransferBatchResult, error) {
	f.transferReqs = append(f.transferReqs, req)
	if f.transferErr != nil {
		return payoutdomain.TransferBatchResult{}, f.transferErr
	}
	return f.batch, nil
}

type denyAll struct{}

func (denyAll) Authorize(ctx context.Context, actor, object, action string) error {
	return authorization.ErrForbidden
}

func newTestScheduler(t *testing.T, svc payoutdomain.Service) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:       zap.NewNop(),
		Clock:     clock.NewFakeClock(time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)),
		PayoutSvc: svc,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func useTestRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "clubpay",
		Environment: "test",
	})
	return registry
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Params{Log: zap.NewNop()}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := useTestRegistry(t)

	s := &Scheduler{log: zap.NewNop(), clock: clock.NewFakeClock(time.Time{})}
	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	labels := map[string]string{
		"service": "clubpay",
		"env":     "test",
		"job":     "timeout_job",
	}
	if got := getCounterValue(t, registry, "clubpay_scheduler_job_timeouts_total", labels); got != 1 {
		t.Fatalf("expected timeout count 1, got %v", got)
	}

	errorLabels := map[string]string{
		"service": "clubpay",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	if got := getCounterValue(t, registry, "clubpay_scheduler_job_errors_total", errorLabels); got != 1 {
		t.Fatalf("expected error count 1, got %v", got)
	}
}

func TestRunJobWrapsErrors(t *testing.T) {
	useTestRegistry(t)

	s := &Scheduler{log: zap.NewNop(), clock: clock.NewFakeClock(time.Time{})}
	boom := errors.New("boom")
	err := s.runJob(context.Background(), "failing_job", time.Second, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRunOnceUsesPreviousMonth(t *testing.T) {
	registry := useTestRegistry(t)

	svc := &fakePayoutService{batch: payoutdomain.TransferBatchResult{Attempted: 3, Succeeded: 2, Failed: 1, Skipped: 1}}
	s := newTestScheduler(t, svc)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(svc.generateReqs) != 1 || svc.generateReqs[0].Period != "2024-05-01" {
		t.Fatalf("unexpected generate requests: %+v", svc.generateReqs)
	}
	if len(svc.transferReqs) != 1 || svc.transferReqs[0].Period != "2024-05-01" {
		t.Fatalf("unexpected transfer requests: %+v", svc.transferReqs)
	}
	if svc.generateReqs[0].Mode != "" {
		t.Fatalf("scheduler must not reset payouts, got mode %q", svc.generateReqs[0].Mode)
	}

	processed := map[string]string{
		"service":  "clubpay",
		"env":      "test",
		"job":      JobGeneratePayouts,
		"resource": obsmetrics.ResourcePayouts,
	}
	if got := getCounterValue(t, registry, "clubpay_scheduler_batch_processed_total", processed); got != 2 {
		t.Fatalf("expected 2 payouts processed, got %v", got)
	}
	succeeded := map[string]string{
		"service": "clubpay",
		"env":     "test",
		"outcome": string(payoutdomain.TransferOutcomeSucceeded),
	}
	if got := getCounterValue(t, registry, "clubpay_payout_transfers_total", succeeded); got != 2 {
		t.Fatalf("expected 2 succeeded transfers, got %v", got)
	}
}

func TestRunOnceRespectsEnabledJobs(t *testing.T) {
	useTestRegistry(t)

	svc := &fakePayoutService{}
	s := newTestScheduler(t, svc)
	s.cfg.EnabledJobs = []string{"SEND_TRANSFERS"}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(svc.generateReqs) != 0 {
		t.Fatalf("generate job should be disabled")
	}
	if len(svc.transferReqs) != 1 {
		t.Fatalf("expected one transfer run, got %d", len(svc.transferReqs))
	}
}

func TestSendTransfersDefersWhenBatchLocked(t *testing.T) {
	registry := useTestRegistry(t)

	svc := &fakePayoutService{transferErr: payoutdomain.ErrBatchInProgress}
	s := newTestScheduler(t, svc)

	if err := s.SendTransfersJob(context.Background()); err != nil {
		t.Fatalf("expected deferral without error, got %v", err)
	}
	labels := map[string]string{
		"service": "clubpay",
		"env":     "test",
		"job":     JobSendTransfers,
		"reason":  obsmetrics.SchedulerBatchDeferredReasonLockHeld,
	}
	if got := getCounterValue(t, registry, "clubpay_scheduler_batch_deferred_total", labels); got != 1 {
		t.Fatalf("expected deferred count 1, got %v", got)
	}
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	useTestRegistry(t)

	svc := &fakePayoutService{generateErr: payoutdomain.ErrBatchFailed}
	s := newTestScheduler(t, svc)

	err := s.RunOnce(context.Background())
	if !errors.Is(err, payoutdomain.ErrBatchFailed) {
		t.Fatalf("expected batch failure, got %v", err)
	}
	if len(svc.transferReqs) != 1 {
		t.Fatalf("transfer job should still run")
	}
}

func TestJobsRequireAuthorization(t *testing.T) {
	useTestRegistry(t)

	svc := &fakePayoutService{}
	s := newTestScheduler(t, svc)
	s.authzSvc = denyAll{}

	if err := s.GeneratePayoutsJob(context.Background()); !errors.Is(err, authorization.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(svc.generateReqs) != 0 {
		t.Fatalf("service must not be called when forbidden")
	}
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
