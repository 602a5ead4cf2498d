package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/game"
	"github.com/GGBond-gogo/mrtoast/internal/outbox"
)

// Update kinds fanned out to the chat transports.
const (
	KindOpened = "opened"
	KindPhase  = "phase"
	KindRound  = "round"
	KindEnded  = "ended"
)

// Notifier is one chat surface the relay can speak through.
type Notifier interface {
	Name() string
	Wants(kind string) bool
	Notify(ctx context.Context, text string) error
}

const pollTimeout = 15 * time.Second

// Relay polls the lobby and narrates table life to its notifiers.
// Lines that cannot be delivered are parked in the outbox and retried
// on later polls.
type Relay struct {
	log       *slog.Logger
	api       *cli.Client
	box       *outbox.Outbox
	every     time.Duration
	notifiers []Notifier

	primed bool
	known  map[string]*tableState
}

type tableState struct {
	phase          game.Phase
	round          int
	announcedElims int
}

func NewRelay(api *cli.Client, box *outbox.Outbox, every time.Duration, logger *slog.Logger, notifiers ...Notifier) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if every <= 0 {
		every = 5 * time.Second
	}
	return &Relay{
		log:       logger.With("component", "bridge"),
		api:       api,
		box:       box,
		every:     every,
		notifiers: notifiers,
		known:     make(map[string]*tableState),
	}
}

// Run polls until the context ends. The first poll primes state without
// announcing, so a bridge restart does not replay old tables.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("bridge started", "poll_every", r.every.String(), "transports", len(r.notifiers))
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()
	r.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("bridge shutdown")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Relay) poll(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, pollTimeout)
	defer cancel()

	r.drainOutbox(ctx)

	sums, err := r.api.Games(ctx)
	if err != nil {
		r.log.Warn("lobby poll failed", "error", err)
		return
	}

	seen := make(map[string]bool, len(sums))
	for _, sum := range sums {
		seen[sum.GameID] = true
		st, ok := r.known[sum.GameID]
		if !ok {
			r.known[sum.GameID] = &tableState{phase: sum.Phase, round: sum.Round}
			if r.primed && sum.Phase == game.PhaseWaiting {
				r.say(ctx, KindOpened, fmt.Sprintf("Table %s is open with %d/%d seats. Join code: %s.",
					sum.GameID, sum.Players, sum.MaxPlayers, sum.GameID))
			}
			continue
		}
		if st.phase == sum.Phase && st.round == sum.Round {
			continue
		}
		st.phase, st.round = sum.Phase, sum.Round
		switch sum.Phase {
		case game.PhaseInvestment:
			r.announceRound(ctx, sum.GameID, st, sum.Round)
		case game.PhaseGameEnd:
			r.announceEnd(ctx, sum.GameID, st)
		default:
			r.say(ctx, KindPhase, fmt.Sprintf("Table %s has moved to %s (round %d).", sum.GameID, sum.Phase, sum.Round))
		}
	}
	for id := range r.known {
		if !seen[id] {
			delete(r.known, id)
		}
	}
	r.primed = true
}

// announceRound opens a trading round and reports whoever the previous
// vote sent packing.
func (r *Relay) announceRound(ctx context.Context, gameID string, st *tableState, round int) {
	snap, err := r.api.State(ctx, gameID, "")
	if err != nil {
		r.log.Warn("state fetch failed", "game_id", gameID, "error", err)
		r.say(ctx, KindRound, fmt.Sprintf("Round %d trading is open on table %s.", round, gameID))
		return
	}
	for _, name := range r.newlyEliminated(snap, st) {
		r.say(ctx, KindRound, fmt.Sprintf("%s was voted off table %s.", name, gameID))
	}
	r.say(ctx, KindRound, fmt.Sprintf("Round %d trading is open on table %s.", round, gameID))
}

func (r *Relay) announceEnd(ctx context.Context, gameID string, st *tableState) {
	snap, err := r.api.State(ctx, gameID, "")
	if err != nil {
		r.log.Warn("state fetch failed", "game_id", gameID, "error", err)
		r.say(ctx, KindEnded, fmt.Sprintf("Table %s is done.", gameID))
		return
	}
	var richest game.PlayerView
	for _, p := range snap.Players {
		if p.NetWorthMicros > richest.NetWorthMicros {
			richest = p
		}
	}
	text := fmt.Sprintf("Table %s is done after %d rounds: the %s side wins.", gameID, snap.Round, snap.Winner)
	if richest.Name != "" {
		text += fmt.Sprintf(" Top bankroll: %s with %.2f toast.", richest.Name, game.MicrosToToast(richest.NetWorthMicros))
	}
	r.say(ctx, KindEnded, text)
}

// newlyEliminated resolves eliminated ids past the announced watermark
// into player names.
func (r *Relay) newlyEliminated(snap game.Snapshot, st *tableState) []string {
	if len(snap.Eliminated) <= st.announcedElims {
		return nil
	}
	names := make(map[string]string, len(snap.Players))
	for _, p := range snap.Players {
		names[p.ID] = p.Name
	}
	var out []string
	for _, id := range snap.Eliminated[st.announcedElims:] {
		if name, ok := names[id]; ok {
			out = append(out, name)
		}
	}
	st.announcedElims = len(snap.Eliminated)
	return out
}

func (r *Relay) say(ctx context.Context, kind, text string) {
	for _, n := range r.notifiers {
		if !n.Wants(kind) {
			continue
		}
		if err := n.Notify(ctx, text); err != nil {
			r.log.Warn("notify failed, parking in outbox", "transport", n.Name(), "error", err)
			if pushErr := r.box.Push(outbox.Note{
				Channel:   n.Name(),
				Text:      text,
				CreatedAt: time.Now(),
			}); pushErr != nil {
				r.log.Error("outbox push failed", "error", pushErr)
			}
		}
	}
}

func (r *Relay) drainOutbox(ctx context.Context) {
	byName := make(map[string]Notifier, len(r.notifiers))
	for _, n := range r.notifiers {
		byName[n.Name()] = n
	}
	sent, err := r.box.Drain(func(n outbox.Note) error {
		nt, ok := byName[n.Channel]
		if !ok {
			return fmt.Errorf("no %s transport configured", n.Channel)
		}
		return nt.Notify(ctx, n.Text)
	})
	if sent > 0 {
		r.log.Info("outbox drained", "sent", sent)
	}
	if err != nil && sent == 0 {
		r.log.Debug("outbox still blocked", "error", err)
	}
}
