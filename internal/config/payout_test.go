package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePayoutConfig(t *testing.T) {
	assert.NoError(t, ValidatePayoutConfig(DefaultPayoutConfig()))

	equal := PayoutConfig{UnlimitedOneGym: 400, UnlimitedTwoGyms: 400, UnlimitedThreePlusGyms: 400, CreditsPerVisit: 0, MaxTransferRetries: 1}
	assert.NoError(t, ValidatePayoutConfig(equal))

	inverted := DefaultPayoutConfig()
	inverted.UnlimitedTwoGyms = 600
	assert.ErrorIs(t, ValidatePayoutConfig(inverted), ErrPayoutRatesNotMonotonic)

	negative := DefaultPayoutConfig()
	negative.CreditsPerVisit = -1
	assert.ErrorIs(t, ValidatePayoutConfig(negative), ErrPayoutRateNegative)

	noRetries := DefaultPayoutConfig()
	noRetries.MaxTransferRetries = 0
	assert.ErrorIs(t, ValidatePayoutConfig(noRetries), ErrPayoutMaxRetries)
}

func TestStaticPayoutConfigHolder(t *testing.T) {
	cfg := DefaultPayoutConfig()
	cfg.CreditsPerVisit = 95
	holder := NewStaticPayoutConfigHolder(cfg)
	assert.Equal(t, 95.0, holder.Get().CreditsPerVisit)

	var nilHolder *PayoutConfigHolder
	assert.Equal(t, DefaultPayoutConfig(), nilHolder.Get())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PAYOUT_CURRENCY", "SEK")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("SCHEDULER_ENABLED_JOBS", "generate_payouts, send_transfers,")

	cfg := Load()
	assert.Equal(t, "sek", cfg.Stripe.Currency)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"generate_payouts", "send_transfers"}, cfg.Jobs.EnabledJobs)
}
