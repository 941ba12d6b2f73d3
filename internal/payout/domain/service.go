package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clubpay/internal/clock"
	"github.com/smallbiznis/clubpay/internal/usage/aggregate"
)

type GenerateRequest struct {
	Period  string
	ClubIDs []string
	Mode    string
}

type GeneratedPayout struct {
	Payout
	Action UpsertAction `json:"action"`
}

type SkippedPayout struct {
	ClubID string `json:"club_id"`
	Status Status `json:"status,omitempty"`
	Reason string `json:"reason"`
}

type ValidationIssue struct {
	ClubID string   `json:"club_id"`
	Errors []string `json:"errors"`
}

type FailedClub struct {
	ClubID string `json:"club_id"`
	Error  string `json:"error"`
}

type GenerateResult struct {
	RunID            string                            `json:"run_id"`
	Period           string                            `json:"period"`
	Message          string                            `json:"message,omitempty"`
	ClubsProcessed   int                               `json:"clubs_processed"`
	TotalAmount      decimal.Decimal                   `json:"total_amount"`
	Payouts          []GeneratedPayout                 `json:"payouts"`
	Skipped          []SkippedPayout                   `json:"skipped"`
	Failed           []FailedClub                      `json:"failed"`
	ValidationErrors []ValidationIssue                 `json:"validation_errors"`
	DataWarnings     []aggregate.MixedSubscriptionType `json:"data_warnings"`
}

type SendTransfersRequest struct {
	Period  string
	ClubIDs []string
}

type TransferOutcome string

const (
	TransferOutcomeSucceeded TransferOutcome = "succeeded"
	TransferOutcomeFailed    TransferOutcome = "failed"
	TransferOutcomeSkipped   TransferOutcome = "skipped"
)

type TransferResult struct {
	PayoutID   string          `json:"payout_id"`
	ClubID     string          `json:"club_id"`
	ClubName   string          `json:"club_name"`
	Outcome    TransferOutcome `json:"outcome"`
	Status     Status          `json:"status,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	TransferID string          `json:"transfer_id,omitempty"`
	RetryCount int             `json:"retry_count"`
	Reason     string          `json:"reason,omitempty"`
}

type TransferBatchResult struct {
	RunID     string           `json:"run_id"`
	Period    string           `json:"period"`
	Attempted int              `json:"transfers_attempted"`
	Succeeded int              `json:"transfers_succeeded"`
	Failed    int              `json:"transfers_failed"`
	Skipped   int              `json:"transfers_skipped"`
	Results   []TransferResult `json:"results"`
}

type Summary struct {
	Period          string           `json:"period"`
	Clubs           int64            `json:"clubs"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	UnlimitedAmount decimal.Decimal  `json:"unlimited_amount"`
	CreditsAmount   decimal.Decimal  `json:"credits_amount"`
	TotalVisits     int64            `json:"total_visits"`
	UnlimitedVisits int64            `json:"unlimited_visits"`
	CreditsVisits   int64            `json:"credits_visits"`
	UniqueUsers     int64            `json:"unique_users"`
	RecordedVisits  int64            `json:"recorded_visits"`
	ByStatus        map[Status]int64 `json:"by_status"`
}

type Service interface {
	GenerateMonthly(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	SendTransfers(ctx context.Context, req SendTransfersRequest) (TransferBatchResult, error)
	ListClubPayouts(ctx context.Context, clubID string, limit int) ([]Payout, error)
	GetSummary(ctx context.Context, period string) (Summary, error)
	GetPayout(ctx context.Context, id string) (Payout, error)
	ListPeriodPayouts(ctx context.Context, period string) ([]Payout, error)
}

const (
	DefaultListLimit = 12
	MaxListLimit     = 100
)

var (
	ErrInvalidPeriod   = clock.ErrInvalidPeriod
	ErrInvalidClubID   = errors.New("invalid_club_id")
	ErrInvalidMode     = errors.New("invalid_mode")
	ErrInvalidLimit    = errors.New("invalid_limit")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrBatchInProgress = errors.New("batch_in_progress")
	ErrPaidPayoutReset = errors.New("paid_payout_reset")
	ErrPayoutInFlight  = errors.New("payout_in_flight")
	ErrBatchFailed     = errors.New("batch_failed")
)
