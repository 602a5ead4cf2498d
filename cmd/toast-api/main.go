package main

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GGBond-gogo/mrtoast/internal/ai"
	"github.com/GGBond-gogo/mrtoast/internal/api"
	"github.com/GGBond-gogo/mrtoast/internal/auth"
	"github.com/GGBond-gogo/mrtoast/internal/config"
	"github.com/GGBond-gogo/mrtoast/internal/db"
	"github.com/GGBond-gogo/mrtoast/internal/game"
	"github.com/GGBond-gogo/mrtoast/internal/gateway"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg := config.LoadAPIFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			logger.Error("token secret entropy unavailable", "err", err)
			os.Exit(1)
		}
		logger.Warn("TOAST_JWT_SECRET is empty; seat tokens will not survive a restart")
	}
	signer := auth.NewSigner(secret, cfg.TokenTTL)

	var store *db.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		store = db.NewStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("schema init failed", "err", err)
			os.Exit(1)
		}
	} else {
		logger.Info("no TOAST_DATABASE_URL set, archive and leaderboard disabled")
	}

	var archive game.Archiver
	if store != nil {
		archive = store
	}
	mgr := game.NewManager(logger, game.ManagerOptions{
		Defaults: game.Config{
			MaxPlayers:         cfg.MaxPlayers,
			MarketMode:         cfg.MarketMode,
			InvestmentDuration: cfg.InvestmentDuration,
			DiscussionDuration: cfg.DiscussionDuration,
			VotingDuration:     cfg.VotingDuration,
		},
		Archive: archive,
	})
	defer mgr.Stop()

	sched := game.NewScheduler(mgr, logger)
	go sched.Run(ctx)

	director := ai.NewDirector(mgr, logger, ai.Options{Jitter: cfg.BotJitter})
	go director.Run(ctx)

	hub := gateway.NewHub(mgr, signer, logger)
	server := api.New(cfg, logger, signer, mgr, store, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("toast api listening", "addr", cfg.Addr, "public_base", cfg.PublicBaseURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
