package config

import "time"

// PaymentConfig tunes the simulated payment gateway.
type PaymentConfig struct {
	SuccessRate float64       // probability in [0,1] that a charge succeeds
	MinDelay    time.Duration // lower bound of simulated latency
	MaxDelay    time.Duration // upper bound of simulated latency
}

// LoadPaymentConfig reads PAYMENT_* variables.  Out of range values are
// clamped so the gateway always has a usable configuration.
func LoadPaymentConfig() PaymentConfig {
	cfg := PaymentConfig{
		SuccessRate: envFloat("PAYMENT_SUCCESS_RATE", 0.9),
		MinDelay:    envDur("PAYMENT_MIN_DELAY", time.Second),
		MaxDelay:    envDur("PAYMENT_MAX_DELAY", 2*time.Second),
	}
	if cfg.SuccessRate < 0 {
		cfg.SuccessRate = 0
	}
	if cfg.SuccessRate > 1 {
		cfg.SuccessRate = 1
	}
	if cfg.MinDelay < 0 {
		cfg.MinDelay = 0
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	return cfg
}
