package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Club is a partner gym that receives monthly payouts.
type Club struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name            string    `gorm:"not null" json:"name"`
	StripeAccountID *string   `gorm:"column:stripe_account_id" json:"stripe_account_id,omitempty"`
	PayoutsEnabled  bool      `gorm:"column:payouts_enabled;not null;default:true" json:"payouts_enabled"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Club) TableName() string { return "clubs" }

// Destination returns the connected account id, or "" when none is configured.
func (c Club) Destination() string {
	if c.StripeAccountID == nil {
		return ""
	}
	return strings.TrimSpace(*c.StripeAccountID)
}

type Repository interface {
	List(ctx context.Context, db *gorm.DB, ids []string) ([]Club, error)
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Club, error)
}

var ErrNotFound = errors.New("club_not_found")

// Lookup indexes clubs by id.
type Lookup map[string]Club

func NewLookup(clubs []Club) Lookup {
	out := make(Lookup, len(clubs))
	for _, c := range clubs {
		out[c.ID] = c
	}
	return out
}
