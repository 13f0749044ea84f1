package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode defaults failed: %v", err)
	}
	if cfg.Otp.MaxAttempts != 5 || cfg.Otp.Length != 6 {
		t.Fatalf("unexpected otp defaults: %+v", cfg.Otp)
	}
	if cfg.Withdrawal.Currency != "USDT" || cfg.Withdrawal.Network != "BEP20" {
		t.Fatalf("unexpected withdrawal defaults: %+v", cfg.Withdrawal)
	}
	if len(cfg.Referral.Levels) != 3 {
		t.Fatalf("want 3 referral levels, got %d", len(cfg.Referral.Levels))
	}
	if cfg.Referral.Levels[0].UnlockDelayHours != 192 || cfg.Referral.Levels[1].UnlockDelayHours != 408 {
		t.Fatalf("unexpected unlock delays: %+v", cfg.Referral.Levels)
	}
	if cfg.Referral.Levels[0].RatePercent != 10 {
		t.Fatalf("unexpected level-1 rate: %v", cfg.Referral.Levels[0].RatePercent)
	}
}

func TestDecodeOverridesLevels(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("referral.levels", []map[string]interface{}{
		{"rate_percent": 7.5, "unlock_delay_hours": 24},
	})
	v.Set("ledger.max_retries", 9)
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(cfg.Referral.Levels) != 1 || cfg.Referral.Levels[0].RatePercent != 7.5 {
		t.Fatalf("levels override not applied: %+v", cfg.Referral.Levels)
	}
	if cfg.Ledger.MaxRetries != 9 {
		t.Fatalf("ledger retries override not applied: %d", cfg.Ledger.MaxRetries)
	}
}
