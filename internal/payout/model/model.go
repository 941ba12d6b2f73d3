// Package model holds the two per-visit payout rate functions.
package model

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clubpay/internal/config"
)

// Rates are per-visit payouts in major currency units.
type Rates struct {
	UnlimitedOneGym        decimal.Decimal
	UnlimitedTwoGyms       decimal.Decimal
	UnlimitedThreePlusGyms decimal.Decimal
	CreditsPerVisit        decimal.Decimal
}

func DefaultRates() Rates {
	return FromConfig(config.DefaultPayoutConfig())
}

func FromConfig(cfg config.PayoutConfig) Rates {
	return Rates{
		UnlimitedOneGym:        decimal.NewFromFloat(cfg.UnlimitedOneGym),
		UnlimitedTwoGyms:       decimal.NewFromFloat(cfg.UnlimitedTwoGyms),
		UnlimitedThreePlusGyms: decimal.NewFromFloat(cfg.UnlimitedThreePlusGyms),
		CreditsPerVisit:        decimal.NewFromFloat(cfg.CreditsPerVisit),
	}
}

// Validate requires one gym >= two gyms >= three or more >= 0 and a non-negative credits rate.
func (r Rates) Validate() error {
	if r.UnlimitedThreePlusGyms.IsNegative() || r.CreditsPerVisit.IsNegative() {
		return config.ErrPayoutRateNegative
	}
	if r.UnlimitedOneGym.LessThan(r.UnlimitedTwoGyms) || r.UnlimitedTwoGyms.LessThan(r.UnlimitedThreePlusGyms) {
		return config.ErrPayoutRatesNotMonotonic
	}
	return nil
}

// UnlimitedPayoutPerVisit tiers by the distinct gyms the user visited this month across all clubs.
func (r Rates) UnlimitedPayoutPerVisit(uniqueGyms int) decimal.Decimal {
	switch {
	case uniqueGyms <= 0:
		return decimal.Zero
	case uniqueGyms == 1:
		return nonNegative(r.UnlimitedOneGym)
	case uniqueGyms == 2:
		return nonNegative(r.UnlimitedTwoGyms)
	default:
		return nonNegative(r.UnlimitedThreePlusGyms)
	}
}

func (r Rates) CreditsPayoutPerVisit() decimal.Decimal {
	return nonNegative(r.CreditsPerVisit)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
