package config

import (
	"testing"
	"time"
)

func TestLoadAPIDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TOAST_API_ADDR", "")
	t.Setenv("TOAST_MARKET_MODE", "")

	cfg := LoadAPIFromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.MarketMode != "normal" {
		t.Fatalf("MarketMode = %q, want normal", cfg.MarketMode)
	}
	if cfg.InvestmentDuration != 2*time.Minute || cfg.VotingDuration != time.Minute {
		t.Fatalf("durations = %v/%v", cfg.InvestmentDuration, cfg.VotingDuration)
	}
	if cfg.MaxPlayers != 6 {
		t.Fatalf("MaxPlayers = %d, want 6", cfg.MaxPlayers)
	}
}

func TestLoadAPIHonorsPort(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TOAST_API_ADDR", ":7777")
	if cfg := LoadAPIFromEnv(); cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q, want PORT to win", cfg.Addr)
	}
}

func TestMarketModeRejectsUnknown(t *testing.T) {
	t.Setenv("TOAST_MARKET_MODE", "chaotic")
	if cfg := LoadAPIFromEnv(); cfg.MarketMode != "normal" {
		t.Fatalf("MarketMode = %q, want fallback to normal", cfg.MarketMode)
	}
}

func TestLoadBridgeNeedsATransport(t *testing.T) {
	t.Setenv("TOAST_DISCORD_TOKEN", "")
	t.Setenv("TOAST_WHATSAPP_DATABASE_URL", "")
	if _, err := LoadBridgeFromEnv(); err == nil {
		t.Fatal("LoadBridgeFromEnv accepted an empty bridge")
	}

	t.Setenv("TOAST_DISCORD_TOKEN", "token")
	cfg, err := LoadBridgeFromEnv()
	if err != nil {
		t.Fatalf("LoadBridgeFromEnv: %v", err)
	}
	if cfg.PollEvery != 5*time.Second {
		t.Fatalf("PollEvery = %v, want 5s", cfg.PollEvery)
	}
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("TOAST_TEST_DUR", "nonsense")
	if got := envDurationDefault("TOAST_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("envDurationDefault = %v, want fallback", got)
	}
	t.Setenv("TOAST_TEST_INT", "12x")
	if got := envIntDefault("TOAST_TEST_INT", 4); got != 4 {
		t.Fatalf("envIntDefault = %d, want fallback", got)
	}
}
