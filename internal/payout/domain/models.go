package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transfer attempt will be made.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// ZeroAmountMessage is stored on payouts closed without a transfer.
const ZeroAmountMessage = "No transfer needed - amount is 0"

type UnlimitedUserLine struct {
	UserID          string          `json:"user_id"`
	UniqueGymsCount int             `json:"unique_gyms_count"`
	PayoutPerVisit  decimal.Decimal `json:"payout_per_visit"`
	VisitCount      int             `json:"visit_count"`
	TotalPayout     decimal.Decimal `json:"total_payout"`
}

type CreditsUserLine struct {
	UserID      string          `json:"user_id"`
	VisitCount  int             `json:"visit_count"`
	TotalPayout decimal.Decimal `json:"total_payout"`
}

// ClubPayoutCalculation is the computed breakdown for one club and period.
type ClubPayoutCalculation struct {
	ClubID          string              `json:"club_id"`
	ClubName        string              `json:"club_name"`
	Period          time.Time           `json:"period"`
	UnlimitedUsers  []UnlimitedUserLine `json:"unlimited_users"`
	UnlimitedAmount decimal.Decimal     `json:"unlimited_amount"`
	UnlimitedVisits int                 `json:"unlimited_visits"`
	CreditsUsers    []CreditsUserLine   `json:"credits_users"`
	CreditsAmount   decimal.Decimal     `json:"credits_amount"`
	CreditsVisits   int                 `json:"credits_visits"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	TotalVisits     int                 `json:"total_visits"`
	UniqueUsers     int                 `json:"unique_users"`
}

// Payout is the persisted row in club_payouts, unique by (club_id, period).
type Payout struct {
	ID                  snowflake.ID                           `gorm:"primaryKey" json:"id"`
	ClubID              string                                 `gorm:"column:club_id" json:"club_id"`
	ClubName            string                                 `gorm:"column:club_name" json:"club_name"`
	Period              time.Time                              `gorm:"column:period" json:"period"`
	UnlimitedAmount     decimal.Decimal                        `gorm:"column:unlimited_amount;type:numeric(14,2)" json:"unlimited_amount"`
	UnlimitedVisits     int                                    `gorm:"column:unlimited_visits" json:"unlimited_visits"`
	UnlimitedUsers      datatypes.JSONSlice[UnlimitedUserLine] `gorm:"column:unlimited_users" json:"unlimited_users"`
	CreditsAmount       decimal.Decimal                        `gorm:"column:credits_amount;type:numeric(14,2)" json:"credits_amount"`
	CreditsVisits       int                                    `gorm:"column:credits_visits" json:"credits_visits"`
	CreditsUsers        datatypes.JSONSlice[CreditsUserLine]   `gorm:"column:credits_users" json:"credits_users"`
	TotalAmount         decimal.Decimal                        `gorm:"column:total_amount;type:numeric(14,2)" json:"total_amount"`
	TotalVisits         int                                    `gorm:"column:total_visits" json:"total_visits"`
	UniqueUsers         int                                    `gorm:"column:unique_users" json:"unique_users"`
	Status              Status                                 `gorm:"column:status" json:"status"`
	RetryCount          int                                    `gorm:"column:retry_count" json:"retry_count"`
	TransferID          *string                                `gorm:"column:transfer_id" json:"transfer_id,omitempty"`
	ErrorMessage        *string                                `gorm:"column:error_message" json:"error_message,omitempty"`
	TransferAttemptedAt *time.Time                             `gorm:"column:transfer_attempted_at" json:"transfer_attempted_at,omitempty"`
	TransferCompletedAt *time.Time                             `gorm:"column:transfer_completed_at" json:"transfer_completed_at,omitempty"`
	CreatedAt           time.Time                              `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time                              `gorm:"column:updated_at" json:"updated_at"`
}

func (Payout) TableName() string { return "club_payouts" }

// PendingPayout is a pending row joined with its club's transfer settings.
type PendingPayout struct {
	Payout
	StripeAccountID *string `gorm:"column:stripe_account_id"`
	PayoutsEnabled  bool    `gorm:"column:payouts_enabled"`
}

// Destination returns the connected account id, or "" when none is configured.
func (p PendingPayout) Destination() string {
	if p.StripeAccountID == nil {
		return ""
	}
	return *p.StripeAccountID
}

// PayoutUpdate is a partial update; nil fields are left unchanged.
type PayoutUpdate struct {
	Status              *Status
	RetryCount          *int
	TransferID          *string
	ErrorMessage        *string
	ClearErrorMessage   bool
	TransferAttemptedAt *time.Time
	TransferCompletedAt *time.Time
	UpdatedAt           time.Time
}

type UpsertMode int

const (
	// UpsertModeRecalculateOnly inserts new rows and overwrites amounts of pending rows only.
	UpsertModeRecalculateOnly UpsertMode = iota
	// UpsertModeReset overwrites amounts and reopens the row as pending. Paid rows are refused.
	UpsertModeReset
)

func (m UpsertMode) String() string {
	if m == UpsertModeReset {
		return "reset"
	}
	return "recalculate"
}

// ParseUpsertMode maps the request mode onto an UpsertMode; "" is recalculate.
func ParseUpsertMode(raw string) (UpsertMode, error) {
	switch raw {
	case "", "recalculate":
		return UpsertModeRecalculateOnly, nil
	case "reset":
		return UpsertModeReset, nil
	default:
		return 0, ErrInvalidMode
	}
}

type UpsertAction string

const (
	UpsertActionInserted UpsertAction = "inserted"
	UpsertActionUpdated  UpsertAction = "updated"
	UpsertActionSkipped  UpsertAction = "skipped"
)

type UpsertResult struct {
	Payout Payout
	Action UpsertAction
	Reason string
}

// StatusCount is the number of payouts in a status for a period.
type StatusCount struct {
	Status Status `gorm:"column:status"`
	Count  int64  `gorm:"column:count"`
}

// PeriodTotals are the summed amounts across all clubs for a period.
type PeriodTotals struct {
	Clubs           int64           `gorm:"column:clubs"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount"`
	UnlimitedAmount decimal.Decimal `gorm:"column:unlimited_amount"`
	CreditsAmount   decimal.Decimal `gorm:"column:credits_amount"`
	TotalVisits     int64           `gorm:"column:total_visits"`
	UnlimitedVisits int64           `gorm:"column:unlimited_visits"`
	CreditsVisits   int64           `gorm:"column:credits_visits"`
	UniqueUsers     int64           `gorm:"column:unique_users"`
}
