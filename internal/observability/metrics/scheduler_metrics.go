package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeAuthorization    = "authorization"
	SchedulerErrorTypeBusinessRule     = "business_rule"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonForbidden            = "forbidden"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonLockHeld = "lock_held"
)

const (
	ResourcePayouts   = "payouts"
	ResourceTransfers = "transfers"
)

// SchedulerMetrics captures payout scheduler health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	transfers      *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

// NewSchedulerMetricsForTest registers scheduler metrics on a private registry.
func NewSchedulerMetricsForTest(registerer prometheus.Registerer) *SchedulerMetrics {
	return newSchedulerMetrics(registerer, Config{ServiceName: "clubpay", Environment: "test"})
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "clubpay"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "clubpay_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency for payout generation and transfer runs.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_scheduler_job_timeouts_total",
		Help:        "Scheduler job runs that hit their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_scheduler_batch_processed_total",
		Help:        "Scheduler batch items processed.",
		ConstLabels: constLabels,
	}, []string{"job", "resource"})
	batchDeferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_scheduler_batch_deferred_total",
		Help:        "Scheduler batch deferrals by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "clubpay_payout_transfers_total",
		Help:        "Payout transfer outcomes.",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		batchProcessed,
		batchDeferred,
		transfers,
	)

	return &SchedulerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		batchProcessed: batchProcessed,
		batchDeferred:  batchDeferred,
		transfers:      transfers,
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the scheduler job.
func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

// AddBatchProcessed increments the batch processed counter for a resource by count.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m == nil || count <= 0 || m.batchProcessed == nil {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
}

// IncBatchDeferred increments the batch deferred counter for a job and reason.
func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m == nil || m.batchDeferred == nil {
		return
	}
	m.batchDeferred.WithLabelValues(job, reason).Inc()
}

// AddTransfers adds transfer outcomes from one run.
func (m *SchedulerMetrics) AddTransfers(outcome string, count int) {
	if m == nil || count <= 0 || m.transfers == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Add(float64(count))
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	if err == nil {
		return SchedulerErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerErrorTypeDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return SchedulerErrorTypeAuthorization
	}
	if isDBError(err) {
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable reports whether the scheduler error should be retried.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBError(err)
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	if err == nil {
		return SchedulerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerJobReasonDeadlineExceeded
	}
	if isAuthorizationError(err) {
		return SchedulerJobReasonForbidden
	}
	if hasPGCode(err, "55P03") {
		return SchedulerJobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return SchedulerJobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return SchedulerJobReasonUniqueViolation
	}
	return SchedulerJobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isAuthorizationError(err error) bool {
	return errors.Is(err, authorization.ErrForbidden) ||
		errors.Is(err, authorization.ErrInvalidActor) ||
		errors.Is(err, authorization.ErrInvalidObject) ||
		errors.Is(err, authorization.ErrInvalidAction)
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
