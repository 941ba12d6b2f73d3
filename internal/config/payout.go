package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PayoutConfig holds the hot-reloadable payout rates in major currency units.
type PayoutConfig struct {
	UnlimitedOneGym        float64 `mapstructure:"unlimitedOneGym"`
	UnlimitedTwoGyms       float64 `mapstructure:"unlimitedTwoGyms"`
	UnlimitedThreePlusGyms float64 `mapstructure:"unlimitedThreePlusGyms"`
	CreditsPerVisit        float64 `mapstructure:"creditsPerVisit"`
	MaxTransferRetries     int     `mapstructure:"maxTransferRetries"`
}

func DefaultPayoutConfig() PayoutConfig {
	return PayoutConfig{
		UnlimitedOneGym:        550,
		UnlimitedTwoGyms:       450,
		UnlimitedThreePlusGyms: 350,
		CreditsPerVisit:        90,
		MaxTransferRetries:     3,
	}
}

var (
	ErrPayoutRatesNotMonotonic = errors.New("payout.unlimited rates must satisfy one >= two >= threePlus")
	ErrPayoutRateNegative      = errors.New("payout rates cannot be negative")
	ErrPayoutMaxRetries        = errors.New("payout.maxTransferRetries must be positive")
)

type PayoutConfigHolder struct {
	current atomic.Value // holds PayoutConfig
}

// NewPayoutConfigHolder loads payout.yml and watches it for changes.
func NewPayoutConfigHolder(log *zap.Logger) (*PayoutConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("payout.config")

	v := viper.New()
	v.SetConfigName("payout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/clubpay/config")
	v.AddConfigPath("/etc/clubpay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLUBPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayoutConfig()
	v.SetDefault("payout.unlimitedOneGym", defaults.UnlimitedOneGym)
	v.SetDefault("payout.unlimitedTwoGyms", defaults.UnlimitedTwoGyms)
	v.SetDefault("payout.unlimitedThreePlusGyms", defaults.UnlimitedThreePlusGyms)
	v.SetDefault("payout.creditsPerVisit", defaults.CreditsPerVisit)
	v.SetDefault("payout.maxTransferRetries", defaults.MaxTransferRetries)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg PayoutConfig
	if err := v.UnmarshalKey("payout", &cfg); err != nil {
		return nil, err
	}
	if err := ValidatePayoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticPayoutConfigHolder(cfg)
	if !fileFound {
		log.Info("payout config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PayoutConfig
		if err := v.UnmarshalKey("payout", &updated); err != nil {
			log.Warn("payout config reload failed", zap.Error(err))
			return
		}
		if err := ValidatePayoutConfig(updated); err != nil {
			log.Warn("invalid payout config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payout config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticPayoutConfigHolder wraps a fixed config, mostly for tests.
func NewStaticPayoutConfigHolder(cfg PayoutConfig) *PayoutConfigHolder {
	holder := &PayoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *PayoutConfigHolder) Get() PayoutConfig {
	if h == nil {
		return DefaultPayoutConfig()
	}
	return h.current.Load().(PayoutConfig)
}

func ValidatePayoutConfig(cfg PayoutConfig) error {
	if cfg.UnlimitedOneGym < 0 || cfg.UnlimitedTwoGyms < 0 || cfg.UnlimitedThreePlusGyms < 0 || cfg.CreditsPerVisit < 0 {
		return ErrPayoutRateNegative
	}
	if cfg.UnlimitedOneGym < cfg.UnlimitedTwoGyms || cfg.UnlimitedTwoGyms < cfg.UnlimitedThreePlusGyms {
		return ErrPayoutRatesNotMonotonic
	}
	if cfg.MaxTransferRetries <= 0 {
		return ErrPayoutMaxRetries
	}
	return nil
}
