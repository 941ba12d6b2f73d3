// Package domain contains the read models for monthly club usage.
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SubscriptionType string

const (
	SubscriptionTypeUnlimited SubscriptionType = "unlimited"
	SubscriptionTypeCredits   SubscriptionType = "credits"
)

// UsageRecord is one row per user, club, period and subscription type.
type UsageRecord struct {
	UserID           string           `gorm:"column:user_id" json:"user_id"`
	ClubID           string           `gorm:"column:club_id" json:"club_id"`
	Period           time.Time        `gorm:"column:period" json:"period"`
	SubscriptionType SubscriptionType `gorm:"column:subscription_type" json:"subscription_type"`
	VisitCount       int              `gorm:"column:visit_count" json:"visit_count"`
	IsUniqueVisit    bool             `gorm:"column:is_unique_visit" json:"is_unique_visit"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// VisitRecord is a single physical visit, kept for audit.
type VisitRecord struct {
	UserID           string           `gorm:"column:user_id" json:"user_id"`
	ClubID           string           `gorm:"column:club_id" json:"club_id"`
	CreatedAt        time.Time        `gorm:"column:created_at" json:"created_at"`
	SubscriptionType SubscriptionType `gorm:"column:subscription_type" json:"subscription_type"`
	CostToClub       decimal.Decimal  `gorm:"column:cost_to_club" json:"cost_to_club"`
}

func (VisitRecord) TableName() string { return "visits" }

// VisitCount is the audited number of visits recorded for a club in a period.
type VisitCount struct {
	ClubID     string          `gorm:"column:club_id" json:"club_id"`
	Visits     int64           `gorm:"column:visits" json:"visits"`
	CostToClub decimal.Decimal `gorm:"column:cost_to_club" json:"cost_to_club"`
}

type Repository interface {
	ListForPeriod(ctx context.Context, db *gorm.DB, period time.Time, clubIDs []string) ([]UsageRecord, error)
	CountVisits(ctx context.Context, db *gorm.DB, period time.Time) ([]VisitCount, error)
}
