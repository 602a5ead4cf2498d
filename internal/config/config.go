package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// APIConfig configures the game API process. Everything has a default so
// a bare `toast-api` starts a playable server.
type APIConfig struct {
	Addr          string
	PublicBaseURL string
	DatabaseURL   string
	JWTSecret     string
	TokenTTL      time.Duration

	MarketMode         string
	MaxPlayers         int
	InvestmentDuration time.Duration
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	BotJitter          time.Duration
}

// BridgeConfig configures the chat bridge process.
type BridgeConfig struct {
	APIBaseURL          string
	DiscordToken        string
	DiscordChannelID    string
	WhatsAppDatabaseURL string
	WhatsAppRecipient   string
	OutboxPath          string
	PollEvery           time.Duration
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TOAST_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:          addr,
		PublicBaseURL: strings.TrimRight(envDefault("TOAST_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("TOAST_DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("TOAST_JWT_SECRET")),
		TokenTTL:      envDurationDefault("TOAST_TOKEN_TTL", 24*time.Hour),

		MarketMode:         envMarketModeDefault(),
		MaxPlayers:         envIntDefault("TOAST_MAX_PLAYERS", 6),
		InvestmentDuration: envDurationDefault("TOAST_INVESTMENT_DURATION", 2*time.Minute),
		DiscussionDuration: envDurationDefault("TOAST_DISCUSSION_DURATION", 3*time.Minute),
		VotingDuration:     envDurationDefault("TOAST_VOTING_DURATION", time.Minute),
		BotJitter:          envDurationDefault("TOAST_BOT_JITTER", 3*time.Second),
	}
}

func LoadBridgeFromEnv() (BridgeConfig, error) {
	cfg := BridgeConfig{
		APIBaseURL:          strings.TrimRight(envDefault("TOAST_API_BASE_URL", "http://localhost:8080"), "/"),
		DiscordToken:        strings.TrimSpace(os.Getenv("TOAST_DISCORD_TOKEN")),
		DiscordChannelID:    strings.TrimSpace(os.Getenv("TOAST_DISCORD_CHANNEL")),
		WhatsAppDatabaseURL: strings.TrimSpace(os.Getenv("TOAST_WHATSAPP_DATABASE_URL")),
		WhatsAppRecipient:   strings.TrimSpace(os.Getenv("TOAST_WHATSAPP_TO")),
		OutboxPath:          envDefault("TOAST_BRIDGE_OUTBOX", "toast-outbox.json"),
		PollEvery:           envDurationDefault("TOAST_BRIDGE_POLL_EVERY", 5*time.Second),
	}
	if cfg.DiscordToken == "" && cfg.WhatsAppDatabaseURL == "" {
		return cfg, fmt.Errorf("set TOAST_DISCORD_TOKEN or TOAST_WHATSAPP_DATABASE_URL; the bridge has nothing to relay")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("TOAST_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envMarketModeDefault() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("TOAST_MARKET_MODE")))
	switch v {
	case "calm", "normal", "wild":
		return v
	default:
		return "normal"
	}
}
