package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"github.com/smallbiznis/clubpay/internal/clock"
	obsmetrics "github.com/smallbiznis/clubpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	PayoutSvc payoutdomain.Service
	AuthzSvc  authorization.Service `optional:"true"`
	Config    Config                `optional:"true"`
}

// Scheduler triggers payout generation and transfers. It keeps no state between runs.
type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	payoutSvc payoutdomain.Service
	authzSvc  authorization.Service
	cron      gocron.Scheduler
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.PayoutSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		payoutSvc: p.PayoutSvc,
		authzSvc:  p.AuthzSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// Deadline is a soft timeout; the next trigger picks up the remaining rows.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobGeneratePayouts, s.isJobEnabled(JobGeneratePayouts), func(ctx context.Context) error {
			return s.runJob(ctx, JobGeneratePayouts, s.cfg.GenerateTimeout, s.GeneratePayoutsJob)
		}},
		{JobSendTransfers, s.isJobEnabled(JobSendTransfers), func(ctx context.Context) error {
			return s.runJob(ctx, JobSendTransfers, s.cfg.TransferTimeout, s.SendTransfersJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

// Start registers the cron triggers and starts gocron.
func (s *Scheduler) Start() error {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}

	triggers := []struct {
		name    string
		expr    string
		timeout time.Duration
		fn      func(context.Context) error
	}{
		{JobGeneratePayouts, s.cfg.GeneratePayoutsCron, s.cfg.GenerateTimeout, s.GeneratePayoutsJob},
		{JobSendTransfers, s.cfg.SendTransfersCron, s.cfg.TransferTimeout, s.SendTransfersJob},
	}
	for _, trigger := range triggers {
		if !s.isJobEnabled(trigger.name) {
			continue
		}
		_, err := cron.NewJob(
			gocron.CronJob(trigger.expr, false),
			gocron.NewTask(func() {
				if err := s.runJob(context.Background(), trigger.name, trigger.timeout, trigger.fn); err != nil {
					s.log.Warn("scheduler run failed", zap.String("job", trigger.name), zap.Error(err))
				}
			}),
			gocron.WithName(trigger.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = cron.Shutdown()
			return fmt.Errorf("register %s: %w", trigger.name, err)
		}
		s.log.Info("scheduler job registered", zap.String("job", trigger.name), zap.String("cron", trigger.expr))
	}

	s.cron = cron
	cron.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty means every job runs in this process.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// GeneratePayoutsJob computes payouts for the previous month in recalculate mode.
func (s *Scheduler) GeneratePayoutsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobGeneratePayouts)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	if err := s.authorizeSystem(ctx, authorization.ActionPayoutGenerate); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize_failed", JobGeneratePayouts, err)
		return err
	}

	period := clock.FormatPeriod(clock.PreviousMonthStart(s.clock.Now()))
	run.period = period

	result, err := s.payoutSvc.GenerateMonthly(ctx, payoutdomain.GenerateRequest{Period: period})
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.generate_payouts_failed", JobGeneratePayouts, err,
			zap.String("period", period),
		)
		return err
	}

	run.AddProcessed(result.ClubsProcessed)
	for range result.Failed {
		run.IncError()
	}
	obsmetrics.Scheduler().AddBatchProcessed(JobGeneratePayouts, obsmetrics.ResourcePayouts, result.ClubsProcessed)
	return nil
}

// SendTransfersJob pays pending payouts of the previous month. Failed attempts are retried on the next trigger.
func (s *Scheduler) SendTransfersJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobSendTransfers)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	if err := s.authorizeSystem(ctx, authorization.ActionPayoutSendTransfers); err != nil {
		s.logSchedulerError(ctx, run, "scheduler.authorize_failed", JobSendTransfers, err)
		return err
	}

	period := clock.FormatPeriod(clock.PreviousMonthStart(s.clock.Now()))
	run.period = period

	result, err := s.payoutSvc.SendTransfers(ctx, payoutdomain.SendTransfersRequest{Period: period})
	if errors.Is(err, payoutdomain.ErrBatchInProgress) {
		obsmetrics.Scheduler().IncBatchDeferred(JobSendTransfers, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Info("scheduler.batch.deferred",
			zap.String("job", JobSendTransfers),
			zap.String("period", period),
			zap.String("reason", obsmetrics.SchedulerBatchDeferredReasonLockHeld),
		)
		return nil
	}
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.send_transfers_failed", JobSendTransfers, err,
			zap.String("period", period),
		)
		return err
	}

	run.AddProcessed(result.Attempted)
	for i := 0; i < result.Failed; i++ {
		run.IncError()
	}
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddBatchProcessed(JobSendTransfers, obsmetrics.ResourceTransfers, result.Attempted)
	schedMetrics.AddTransfers(string(payoutdomain.TransferOutcomeSucceeded), result.Succeeded)
	schedMetrics.AddTransfers(string(payoutdomain.TransferOutcomeFailed), result.Failed)
	schedMetrics.AddTransfers(string(payoutdomain.TransferOutcomeSkipped), result.Skipped)
	return nil
}

func (s *Scheduler) authorizeSystem(ctx context.Context, action string) error {
	if s.authzSvc == nil {
		return nil
	}
	return s.authzSvc.Authorize(ctx, authorization.ActorSystem, authorization.ObjectPayout, action)
}
