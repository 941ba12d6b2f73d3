package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, payout Payout, mode UpsertMode) (UpsertResult, error)
	ListPending(ctx context.Context, db *gorm.DB, period time.Time, clubIDs []string) ([]PendingPayout, error)
	ClaimForTransfer(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update PayoutUpdate) error
	ListByClub(ctx context.Context, db *gorm.DB, clubID string, limit int) ([]Payout, error)
	Totals(ctx context.Context, db *gorm.DB, period time.Time) (PeriodTotals, error)
	CountByStatus(ctx context.Context, db *gorm.DB, period time.Time) ([]StatusCount, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	ListByPeriod(ctx context.Context, db *gorm.DB, period time.Time) ([]Payout, error)
}
