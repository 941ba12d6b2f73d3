package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clubpay/internal/clock"
	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/config"
	"github.com/smallbiznis/clubpay/internal/lock"
	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	"github.com/smallbiznis/clubpay/internal/observability/metrics"
	"github.com/smallbiznis/clubpay/internal/observability/tracing"
	"github.com/smallbiznis/clubpay/internal/payout/calculator"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/smallbiznis/clubpay/internal/payout/model"
	"github.com/smallbiznis/clubpay/internal/payout/validator"
	transferdomain "github.com/smallbiznis/clubpay/internal/transfer/domain"
	"github.com/smallbiznis/clubpay/internal/usage/aggregate"
	usagedomain "github.com/smallbiznis/clubpay/internal/usage/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	noUsageMessage   = "No usage data for period"
	transferLockTTL  = 15 * time.Minute
	transferLockBase = "payouts:transfers:"

	skipReasonNoDestination = "club has no connected account"
	skipReasonDisabled      = "payouts disabled for club"
	skipReasonClaimed       = "payout claimed by another run"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	PayoutConfig *config.PayoutConfigHolder
	Repo         domain.Repository
	ClubRepo     clubdomain.Repository
	UsageRepo    usagedomain.Repository
	Transferer   transferdomain.Transferer
	Metrics      *metrics.Metrics `optional:"true"`
	Locker       *lock.Locker     `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	currency     string
	payoutConfig *config.PayoutConfigHolder

	repo       domain.Repository
	clubRepo   clubdomain.Repository
	usageRepo  usagedomain.Repository
	transferer transferdomain.Transferer

	metrics *metrics.Metrics
	locker  *lock.Locker
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payout.service"),
		genID: p.GenID,
		clock: c,

		currency:     strings.ToLower(strings.TrimSpace(p.Config.Stripe.Currency)),
		payoutConfig: p.PayoutConfig,

		repo:       p.Repo,
		clubRepo:   p.ClubRepo,
		usageRepo:  p.UsageRepo,
		transferer: p.Transferer,

		metrics: p.Metrics,
		locker:  p.Locker,
	}
}

// GenerateMonthly computes and persists one payout per club with usage in the period.
func (s *Service) GenerateMonthly(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	runID := ulid.Make().String()
	ctx = obscontext.WithRunID(ctx, runID)

	period, err := clock.ResolvePeriod(s.clock, req.Period)
	if err != nil {
		return domain.GenerateResult{}, domain.ErrInvalidPeriod
	}
	clubIDs, err := normalizeClubIDs(req.ClubIDs)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	mode, err := domain.ParseUpsertMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if err != nil {
		return domain.GenerateResult{}, err
	}

	ctx = obscontext.WithPayoutPeriod(ctx, clock.FormatPeriod(period))
	ctx, span := otel.Tracer("clubpay/payout").Start(ctx, "payout.generate_monthly")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		append(tracing.PayoutAttributes(ctx), attribute.String("mode", mode.String()))...,
	)...)

	log := s.log.With(
		zap.String("run_id", runID),
		zap.String("period", clock.FormatPeriod(period)),
		zap.String("mode", mode.String()),
	)

	result := domain.GenerateResult{
		RunID:            runID,
		Period:           clock.FormatPeriod(period),
		TotalAmount:      decimal.Zero,
		Payouts:          []domain.GeneratedPayout{},
		Skipped:          []domain.SkippedPayout{},
		Failed:           []domain.FailedClub{},
		ValidationErrors: []domain.ValidationIssue{},
		DataWarnings:     []aggregate.MixedSubscriptionType{},
	}

	rates := model.FromConfig(s.payoutConfig.Get())
	if err := rates.Validate(); err != nil {
		return result, err
	}

	clubs, err := s.clubRepo.List(ctx, s.db, clubIDs)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "load clubs")
		return result, fmt.Errorf("load clubs: %w", err)
	}
	if err := requireClubs(clubIDs, clubs); err != nil {
		return result, err
	}
	// Unique gym counts span every club, so usage is never filtered by club here.
	records, err := s.usageRepo.ListForPeriod(ctx, s.db, period, nil)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "load usage")
		return result, fmt.Errorf("load usage: %w", err)
	}

	lookup := clubdomain.NewLookup(clubs)
	calcs := calculator.New(rates).CalculateAllClubPayouts(period, lookup, records)
	if len(calcs) == 0 {
		log.Info("no usage data for period")
		result.Message = noUsageMessage
		return result, nil
	}

	for _, warning := range aggregate.CheckSubscriptionTypes(records) {
		if _, ok := lookup[warning.ClubID]; !ok {
			continue
		}
		log.Warn("user has mixed subscription types",
			zap.String("user_id", warning.UserID),
			zap.String("club_id", warning.ClubID),
		)
		s.metrics.RecordDataWarning(ctx, "mixed_subscription_type")
		result.DataWarnings = append(result.DataWarnings, warning)
	}

	now := s.clock.Now()
	for _, calc := range calcs {
		if check := validator.Validate(calc); !check.Valid {
			log.Warn("payout validation failed",
				zap.String("club_id", calc.ClubID),
				zap.Strings("errors", check.Errors),
			)
			s.metrics.RecordValidationFailure(ctx)
			result.ValidationErrors = append(result.ValidationErrors, domain.ValidationIssue{
				ClubID: calc.ClubID,
				Errors: check.Errors,
			})
		}

		upserted, err := s.repo.Upsert(ctx, s.db, s.newPayout(calc, now), mode)
		switch {
		case errors.Is(err, domain.ErrPaidPayoutReset):
			result.Skipped = append(result.Skipped, domain.SkippedPayout{
				ClubID: calc.ClubID,
				Status: domain.StatusPaid,
				Reason: "payout is paid",
			})
			s.metrics.RecordPayoutSkipped(ctx, string(domain.StatusPaid))
			continue
		case errors.Is(err, domain.ErrPayoutInFlight):
			result.Skipped = append(result.Skipped, domain.SkippedPayout{
				ClubID: calc.ClubID,
				Status: domain.StatusProcessing,
				Reason: "payout is processing",
			})
			s.metrics.RecordPayoutSkipped(ctx, string(domain.StatusProcessing))
			continue
		case err != nil:
			log.Error("failed to persist payout", zap.String("club_id", calc.ClubID), zap.Error(err))
			result.Failed = append(result.Failed, domain.FailedClub{ClubID: calc.ClubID, Error: err.Error()})
			continue
		}

		if upserted.Action == domain.UpsertActionSkipped {
			result.Skipped = append(result.Skipped, domain.SkippedPayout{
				ClubID: calc.ClubID,
				Status: upserted.Payout.Status,
				Reason: upserted.Reason,
			})
			s.metrics.RecordPayoutSkipped(ctx, string(upserted.Payout.Status))
			continue
		}

		s.metrics.RecordPayoutGenerated(ctx, mode.String())
		result.Payouts = append(result.Payouts, domain.GeneratedPayout{Payout: upserted.Payout, Action: upserted.Action})
		result.TotalAmount = result.TotalAmount.Add(upserted.Payout.TotalAmount)
		result.ClubsProcessed++
	}

	log.Info("payout generation finished",
		zap.Int("clubs_processed", result.ClubsProcessed),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed", len(result.Failed)),
		zap.String("total_amount", result.TotalAmount.StringFixed(2)),
	)

	if len(result.Failed) == len(calcs) {
		span.SetStatus(codes.Error, "all clubs failed")
		return result, domain.ErrBatchFailed
	}
	return result, nil
}

func (s *Service) newPayout(calc domain.ClubPayoutCalculation, now time.Time) domain.Payout {
	return domain.Payout{
		ID:              s.genID.Generate(),
		ClubID:          calc.ClubID,
		ClubName:        calc.ClubName,
		Period:          calc.Period,
		UnlimitedAmount: calc.UnlimitedAmount,
		UnlimitedVisits: calc.UnlimitedVisits,
		UnlimitedUsers:  datatypes.NewJSONSlice(calc.UnlimitedUsers),
		CreditsAmount:   calc.CreditsAmount,
		CreditsVisits:   calc.CreditsVisits,
		CreditsUsers:    datatypes.NewJSONSlice(calc.CreditsUsers),
		TotalAmount:     calc.TotalAmount,
		TotalVisits:     calc.TotalVisits,
		UniqueUsers:     calc.UniqueUsers,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// SendTransfers pays every pending payout of the period. One club failing never aborts the batch.
func (s *Service) SendTransfers(ctx context.Context, req domain.SendTransfersRequest) (domain.TransferBatchResult, error) {
	runID := ulid.Make().String()
	ctx = obscontext.WithRunID(ctx, runID)

	period, err := clock.ResolvePeriod(s.clock, req.Period)
	if err != nil {
		return domain.TransferBatchResult{}, domain.ErrInvalidPeriod
	}
	clubIDs, err := normalizeClubIDs(req.ClubIDs)
	if err != nil {
		return domain.TransferBatchResult{}, err
	}
	periodKey := clock.FormatPeriod(period)
	if len(clubIDs) > 0 {
		clubs, err := s.clubRepo.List(ctx, s.db, clubIDs)
		if err != nil {
			return domain.TransferBatchResult{}, fmt.Errorf("load clubs: %w", err)
		}
		if err := requireClubs(clubIDs, clubs); err != nil {
			return domain.TransferBatchResult{}, err
		}
	}

	log := s.log.With(zap.String("run_id", runID), zap.String("period", periodKey))

	if s.locker != nil {
		key := transferLockBase + periodKey
		token, acquired, err := s.locker.TryLock(ctx, key, transferLockTTL)
		switch {
		case err != nil:
			log.Warn("transfer lock unavailable, relying on row claims", zap.Error(err))
		case !acquired:
			return domain.TransferBatchResult{}, domain.ErrBatchInProgress
		default:
			defer func() {
				if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
					log.Warn("failed to release transfer lock", zap.Error(err))
				}
			}()
		}
	}

	ctx = obscontext.WithPayoutPeriod(ctx, periodKey)
	ctx, span := otel.Tracer("clubpay/payout").Start(ctx, "payout.send_transfers")
	defer span.End()
	span.SetAttributes(tracing.PayoutAttributes(ctx)...)

	result := domain.TransferBatchResult{
		RunID:   runID,
		Period:  periodKey,
		Results: []domain.TransferResult{},
	}

	pending, err := s.repo.ListPending(ctx, s.db, period, clubIDs)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "list pending")
		return result, fmt.Errorf("list pending payouts: %w", err)
	}

	maxRetries := s.payoutConfig.Get().MaxTransferRetries
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		res := s.transferOne(ctx, log, p, maxRetries)
		switch res.Outcome {
		case domain.TransferOutcomeSkipped:
			result.Skipped++
		case domain.TransferOutcomeSucceeded:
			result.Attempted++
			result.Succeeded++
		case domain.TransferOutcomeFailed:
			result.Attempted++
			result.Failed++
		}
		s.metrics.RecordTransfer(ctx, string(res.Outcome))
		result.Results = append(result.Results, res)
	}

	fields := []zap.Field{
		zap.Int("attempted", result.Attempted),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	}
	if err := ctx.Err(); err != nil {
		log.Warn("transfer batch interrupted", append(fields, zap.Int("remaining", len(pending)-len(result.Results)), zap.Error(err))...)
		span.SetStatus(codes.Error, "interrupted")
		return result, fmt.Errorf("transfer batch interrupted: %w", err)
	}
	log.Info("transfer batch finished", fields...)
	return result, nil
}

func (s *Service) transferOne(ctx context.Context, log *zap.Logger, p domain.PendingPayout, maxRetries int) domain.TransferResult {
	res := domain.TransferResult{
		PayoutID:   p.ID.String(),
		ClubID:     p.ClubID,
		ClubName:   p.ClubName,
		Status:     p.Status,
		Amount:     p.TotalAmount,
		RetryCount: p.RetryCount,
	}
	log = log.With(zap.String("payout_id", res.PayoutID), zap.String("club_id", p.ClubID))

	destination := strings.TrimSpace(p.Destination())
	if destination == "" {
		res.Outcome = domain.TransferOutcomeSkipped
		res.Reason = skipReasonNoDestination
		return res
	}
	if !p.PayoutsEnabled {
		res.Outcome = domain.TransferOutcomeSkipped
		res.Reason = skipReasonDisabled
		return res
	}

	now := s.clock.Now()
	claimed, err := s.repo.ClaimForTransfer(ctx, s.db, p.ID, now)
	if err != nil {
		log.Error("failed to claim payout", zap.Error(err))
		res.Outcome = domain.TransferOutcomeFailed
		res.Reason = err.Error()
		return res
	}
	if !claimed {
		res.Outcome = domain.TransferOutcomeSkipped
		res.Reason = skipReasonClaimed
		return res
	}

	// A claimed row must always leave processing, even when the caller gives up.
	writeCtx := context.WithoutCancel(ctx)

	if !p.TotalAmount.IsPositive() {
		return s.markPaid(writeCtx, log, p.ID, res, "", domain.ZeroAmountMessage)
	}

	transfer, err := s.transferer.CreateTransfer(ctx, transferdomain.Request{
		AmountMinor:    p.TotalAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:       s.currency,
		Destination:    destination,
		TransferGroup:  "payouts_" + clock.FormatPeriod(p.Period),
		IdempotencyKey: fmt.Sprintf("payout_%s_attempt_%d", res.PayoutID, p.RetryCount),
		Metadata:       transferMetadata(p),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.releaseClaim(writeCtx, log, p.ID, res, ctxErr)
		}
		return s.markFailedAttempt(writeCtx, log, p.ID, res, err, maxRetries)
	}
	return s.markPaid(writeCtx, log, p.ID, res, transfer.TransferID, "")
}

// releaseClaim returns an interrupted row to pending with its retry count unchanged,
// so the next run reuses the same idempotency key.
func (s *Service) releaseClaim(ctx context.Context, log *zap.Logger, id snowflake.ID, res domain.TransferResult, cause error) domain.TransferResult {
	status := domain.StatusPending
	message := "transfer interrupted: " + cause.Error()
	update := domain.PayoutUpdate{
		Status:       &status,
		ErrorMessage: &message,
		UpdatedAt:    s.clock.Now(),
	}

	res.Outcome = domain.TransferOutcomeFailed
	res.Reason = message
	if err := s.repo.UpdateStatus(ctx, s.db, id, update); err != nil {
		log.Error("failed to release interrupted payout", zap.NamedError("cause", cause), zap.Error(err))
		res.Status = domain.StatusProcessing
		return res
	}

	log.Warn("transfer interrupted, payout released", zap.Error(cause))
	res.Status = domain.StatusPending
	return res
}

func (s *Service) markPaid(ctx context.Context, log *zap.Logger, id snowflake.ID, res domain.TransferResult, transferID, message string) domain.TransferResult {
	now := s.clock.Now()
	status := domain.StatusPaid
	update := domain.PayoutUpdate{
		Status:              &status,
		TransferCompletedAt: &now,
		UpdatedAt:           now,
	}
	if transferID != "" {
		update.TransferID = &transferID
	}
	if message != "" {
		update.ErrorMessage = &message
	} else {
		update.ClearErrorMessage = true
	}

	if err := s.repo.UpdateStatus(ctx, s.db, id, update); err != nil {
		// The rail call may already have succeeded; the row stays processing for manual review.
		log.Error("failed to record paid payout", zap.String("transfer_id", transferID), zap.Error(err))
		res.Outcome = domain.TransferOutcomeFailed
		res.Status = domain.StatusProcessing
		res.TransferID = transferID
		res.Reason = err.Error()
		return res
	}

	log.Info("payout paid", zap.String("transfer_id", transferID), zap.String("amount", res.Amount.StringFixed(2)))
	res.Outcome = domain.TransferOutcomeSucceeded
	res.Status = domain.StatusPaid
	res.TransferID = transferID
	res.Reason = message
	return res
}

func (s *Service) markFailedAttempt(ctx context.Context, log *zap.Logger, id snowflake.ID, res domain.TransferResult, cause error, maxRetries int) domain.TransferResult {
	retries := res.RetryCount + 1
	status := domain.StatusPending
	if retries >= maxRetries {
		status = domain.StatusFailed
	}
	message := cause.Error()
	update := domain.PayoutUpdate{
		Status:       &status,
		RetryCount:   &retries,
		ErrorMessage: &message,
		UpdatedAt:    s.clock.Now(),
	}

	res.Outcome = domain.TransferOutcomeFailed
	res.Reason = message
	if err := s.repo.UpdateStatus(ctx, s.db, id, update); err != nil {
		log.Error("failed to record transfer failure", zap.NamedError("cause", cause), zap.Error(err))
		res.Status = domain.StatusProcessing
		return res
	}

	log.Warn("transfer failed",
		zap.Int("retry_count", retries),
		zap.String("status", string(status)),
		zap.Error(cause),
	)
	res.Status = status
	res.RetryCount = retries
	return res
}

func transferMetadata(p domain.PendingPayout) map[string]string {
	return map[string]string{
		"payout_id":        p.ID.String(),
		"period":           clock.FormatPeriod(p.Period),
		"club_id":          p.ClubID,
		"club_name":        p.ClubName,
		"unlimited_amount": p.UnlimitedAmount.StringFixed(2),
		"unlimited_visits": fmt.Sprint(p.UnlimitedVisits),
		"credits_amount":   p.CreditsAmount.StringFixed(2),
		"credits_visits":   fmt.Sprint(p.CreditsVisits),
		"total_visits":     fmt.Sprint(p.TotalVisits),
	}
}

// ListClubPayouts returns a club's payouts, newest period first. limit 0 means the default.
func (s *Service) ListClubPayouts(ctx context.Context, clubID string, limit int) ([]domain.Payout, error) {
	clubID, err := normalizeClubID(clubID)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = domain.DefaultListLimit
	}
	if limit < 1 || limit > domain.MaxListLimit {
		return nil, domain.ErrInvalidLimit
	}
	club, err := s.clubRepo.FindByID(ctx, s.db, clubID)
	if err != nil {
		return nil, err
	}
	if club == nil {
		return nil, clubdomain.ErrNotFound
	}

	items, err := s.repo.ListByClub(ctx, s.db, clubID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Payout{}
	}
	return items, nil
}

func (s *Service) GetSummary(ctx context.Context, rawPeriod string) (domain.Summary, error) {
	period, err := clock.ParsePeriod(rawPeriod)
	if err != nil {
		return domain.Summary{}, domain.ErrInvalidPeriod
	}

	totals, err := s.repo.Totals(ctx, s.db, period)
	if err != nil {
		return domain.Summary{}, err
	}
	counts, err := s.repo.CountByStatus(ctx, s.db, period)
	if err != nil {
		return domain.Summary{}, err
	}
	visits, err := s.usageRepo.CountVisits(ctx, s.db, period)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		Period:          clock.FormatPeriod(period),
		Clubs:           totals.Clubs,
		TotalAmount:     totals.TotalAmount,
		UnlimitedAmount: totals.UnlimitedAmount,
		CreditsAmount:   totals.CreditsAmount,
		TotalVisits:     totals.TotalVisits,
		UnlimitedVisits: totals.UnlimitedVisits,
		CreditsVisits:   totals.CreditsVisits,
		UniqueUsers:     totals.UniqueUsers,
		ByStatus: map[domain.Status]int64{
			domain.StatusPending:    0,
			domain.StatusProcessing: 0,
			domain.StatusPaid:       0,
			domain.StatusFailed:     0,
		},
	}
	for _, c := range counts {
		summary.ByStatus[c.Status] = c.Count
	}
	for _, v := range visits {
		summary.RecordedVisits += v.Visits
	}
	return summary, nil
}

func (s *Service) GetPayout(ctx context.Context, rawID string) (domain.Payout, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return domain.Payout{}, domain.ErrInvalidID
	}
	payout, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Payout{}, err
	}
	if payout == nil {
		return domain.Payout{}, domain.ErrNotFound
	}
	return *payout, nil
}

func (s *Service) ListPeriodPayouts(ctx context.Context, rawPeriod string) ([]domain.Payout, error) {
	period, err := clock.ParsePeriod(rawPeriod)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}
	items, err := s.repo.ListByPeriod(ctx, s.db, period)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Payout{}
	}
	return items, nil
}

// requireClubs fails when any requested id has no club row.
func requireClubs(requested []string, found []clubdomain.Club) error {
	if len(requested) == 0 {
		return nil
	}
	lookup := clubdomain.NewLookup(found)
	var missing []string
	for _, id := range requested {
		if _, ok := lookup[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", clubdomain.ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}

func normalizeClubIDs(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, id := range raw {
		normalized, err := normalizeClubID(id)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out, nil
}

func normalizeClubID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.ErrInvalidClubID
	}
	return parsed.String(), nil
}
