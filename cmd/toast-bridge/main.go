package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/GGBond-gogo/mrtoast/internal/bridge"
	"github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/config"
	"github.com/GGBond-gogo/mrtoast/internal/outbox"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.LoadBridgeFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	apiClient := cli.NewClient(cfg.APIBaseURL)
	box := outbox.New(cfg.OutboxPath)

	var notifiers []bridge.Notifier
	if cfg.DiscordToken != "" {
		d, err := bridge.NewDiscord(cfg.DiscordToken, cfg.DiscordChannelID, apiClient, logger)
		if err != nil {
			logger.Error("discord setup failed", "err", err)
			os.Exit(1)
		}
		if err := d.Open(); err != nil {
			logger.Error("discord connect failed", "err", err)
			os.Exit(1)
		}
		defer d.Close()
		notifiers = append(notifiers, d)
	}
	if cfg.WhatsAppDatabaseURL != "" {
		w, err := bridge.NewWhatsApp(ctx, cfg.WhatsAppDatabaseURL, cfg.WhatsAppRecipient, logger)
		if err != nil {
			logger.Error("whatsapp setup failed", "err", err)
			os.Exit(1)
		}
		if err := w.Connect(ctx); err != nil {
			logger.Error("whatsapp connect failed", "err", err)
			os.Exit(1)
		}
		defer w.Close()
		notifiers = append(notifiers, w)
	}

	relay := bridge.NewRelay(apiClient, box, cfg.PollEvery, logger, notifiers...)
	relay.Run(ctx)
}
