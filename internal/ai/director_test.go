package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager() *game.Manager {
	return game.NewManager(discardLogger(), game.ManagerOptions{})
}

// seatedTable starts a game with one human host and AI filling the rest,
// already watched by the Director.
func seatedTable(t *testing.T, ctx context.Context, mgr *game.Manager, d *Director, cfg game.Config) (*game.Handle, string) {
	t.Helper()
	cfg.AIFill = true
	if cfg.InvestmentDuration == 0 {
		cfg.InvestmentDuration = time.Hour
	}
	if cfg.DiscussionDuration == 0 {
		cfg.DiscussionDuration = time.Hour
	}
	if cfg.VotingDuration == 0 {
		cfg.VotingDuration = time.Hour
	}
	sum, err := mgr.CreateGame(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	host, err := mgr.Join(ctx, sum.GameID, "Hana", "")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if err := d.Watch(ctx, sum.GameID); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	h, err := mgr.Game(sum.GameID)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if err := h.AdvancePhase(ctx, host.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	return h, host.ID
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatchUnknownGame(t *testing.T) {
	mgr := testManager()
	defer mgr.Stop()
	d := NewDirector(mgr, discardLogger(), Options{Seed: 1})
	if err := d.Watch(context.Background(), "ZZZZZZ"); !errors.Is(err, game.ErrGameNotFound) {
		t.Fatalf("Watch unknown game: %v, want ErrGameNotFound", err)
	}
}

func TestWatchIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := testManager()
	defer mgr.Stop()
	d := NewDirector(mgr, discardLogger(), Options{Seed: 1})

	sum, err := mgr.CreateGame(ctx, game.Config{})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := d.Watch(ctx, sum.GameID); err != nil {
		t.Fatalf("first Watch: %v", err)
	}
	if err := d.Watch(ctx, sum.GameID); err != nil {
		t.Fatalf("second Watch: %v", err)
	}
	d.mu.Lock()
	n := len(d.tables)
	d.mu.Unlock()
	if n != 1 {
		t.Fatalf("tables = %d, want 1", n)
	}
}

func TestBotsTradeAndVote(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := testManager()
	defer mgr.Stop()
	d := NewDirector(mgr, discardLogger(), Options{Seed: 11})

	h, hostID := seatedTable(t, ctx, mgr, d, game.Config{MaxPlayers: 5, Seed: 7})

	botIDs := func(snap game.Snapshot) []string {
		ids := make([]string, 0, len(snap.Players))
		for _, pl := range snap.Players {
			if pl.IsAI {
				ids = append(ids, pl.ID)
			}
		}
		return ids
	}

	waitUntil(t, "every bot to open a position", func() bool {
		snap, err := h.Snapshot(ctx, "")
		if err != nil || snap.Phase != game.PhaseInvestment {
			return false
		}
		bots := botIDs(snap)
		if len(bots) != 4 {
			return false
		}
		for _, pl := range snap.Players {
			if pl.IsAI && len(pl.Holdings) == 0 {
				return false
			}
		}
		return true
	})

	snap, err := h.Snapshot(ctx, "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, pl := range snap.Players {
		if pl.IsAI && pl.MoneyMicros >= game.StartingMoneyMicros {
			t.Fatalf("bot %s traded without spending", pl.Name)
		}
	}

	d.mu.Lock()
	tbl := d.tables[h.ID()]
	d.mu.Unlock()
	if tbl == nil {
		t.Fatal("director lost the table")
	}
	tbl.mu.Lock()
	seated := len(tbl.bots)
	tbl.mu.Unlock()
	if seated != 4 {
		t.Fatalf("director seated %d bots, want 4", seated)
	}

	if err := h.AdvancePhase(ctx, hostID); err != nil {
		t.Fatalf("to discussion: %v", err)
	}
	if err := h.AdvancePhase(ctx, hostID); err != nil {
		t.Fatalf("to voting: %v", err)
	}

	waitUntil(t, "every bot to cast a vote", func() bool {
		snap, err := h.Snapshot(ctx, "")
		if err != nil || snap.Phase != game.PhaseVoting {
			return false
		}
		voters := 0
		for _, vs := range snap.Votes {
			voters += len(vs)
		}
		return voters >= 4
	})
}

func TestDirectorDetachesWhenGameEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mgr := testManager()
	defer mgr.Stop()
	d := NewDirector(mgr, discardLogger(), Options{Seed: 3})

	h, hostID := seatedTable(t, ctx, mgr, d, game.Config{MaxPlayers: 4, MaxRounds: 1, Seed: 9})

	for _, step := range []string{"discussion", "voting", "close"} {
		if err := h.AdvancePhase(ctx, hostID); err != nil {
			t.Fatalf("advance to %s: %v", step, err)
		}
	}

	waitUntil(t, "the director to drop the finished game", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.tables) == 0
	})
}

func TestDirectorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := testManager()
	defer mgr.Stop()
	d := NewDirector(mgr, discardLogger(), Options{Seed: 5})

	sum, err := mgr.CreateGame(ctx, game.Config{})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := d.Watch(ctx, sum.GameID); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	cancel()

	waitUntil(t, "the watcher to exit", func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.tables) == 0
	})
}
