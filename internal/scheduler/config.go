package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/clubpay/internal/config"
)

const (
	JobGeneratePayouts = "generate_payouts"
	JobSendTransfers   = "send_transfers"
)

// Config controls cron expressions and per-job deadlines.
type Config struct {
	GeneratePayoutsCron string
	SendTransfersCron   string
	GenerateTimeout     time.Duration
	TransferTimeout     time.Duration
	EnabledJobs         []string
}

func DefaultConfig() Config {
	return Config{
		GeneratePayoutsCron: "0 3 1 * *",
		SendTransfersCron:   "0 4 * * *",
		GenerateTimeout:     5 * time.Minute,
		TransferTimeout:     10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		GeneratePayoutsCron: cfg.Jobs.GeneratePayoutCron,
		SendTransfersCron:   cfg.Jobs.SendTransfersCron,
		EnabledJobs:         cfg.Jobs.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.GeneratePayoutsCron) == "" {
		c.GeneratePayoutsCron = defaults.GeneratePayoutsCron
	}
	if strings.TrimSpace(c.SendTransfersCron) == "" {
		c.SendTransfersCron = defaults.SendTransfersCron
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaults.GenerateTimeout
	}
	if c.TransferTimeout <= 0 {
		c.TransferTimeout = defaults.TransferTimeout
	}
	return c
}
