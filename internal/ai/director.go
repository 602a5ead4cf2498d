package ai

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

// Director runs every bot seated at the tables it watches. It observes the
// broadcast stream of each game, keeps a behavioral read on the players,
// and issues trades, chat, card plays and votes through the same command
// path human clients use.
type Director struct {
	log    *slog.Logger
	mgr    *game.Manager
	jitter time.Duration

	mu     sync.Mutex
	rnd    *rand.Rand
	tables map[string]*table
}

// Options tunes a Director. Zero Jitter makes bots act as soon as a phase
// opens, which keeps tests fast; servers pass a few seconds so bot actions
// spread out like human ones.
type Options struct {
	Seed   int64
	Jitter time.Duration
}

type table struct {
	gameID    string
	h         *game.Handle
	events    <-chan game.Event
	cancelSub func()

	mu       sync.Mutex
	analyzer *Analyzer
	bots     map[string]*bot
	ballot   map[string]string
	voted    []string
}

type bot struct {
	personality Personality
	rnd         *rand.Rand
}

func NewDirector(mgr *game.Manager, logger *slog.Logger, opts Options) *Director {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Director{
		log:    logger.With("component", "ai"),
		mgr:    mgr,
		jitter: opts.Jitter,
		rnd:    rand.New(rand.NewSource(seed)),
		tables: make(map[string]*table),
	}
}

// Run keeps the Director attached to every table the manager knows about
// until the context ends. New games are picked up within one sweep.
func (d *Director) Run(ctx context.Context) {
	d.log.Info("ai director started")
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	d.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			d.log.Info("ai director shutdown")
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Director) sweep(ctx context.Context) {
	for _, sum := range d.mgr.List() {
		if err := d.Watch(ctx, sum.GameID); err != nil && !errors.Is(err, game.ErrGameNotFound) {
			d.log.Warn("watch table", "game_id", sum.GameID, "error", err)
		}
	}
}

// Watch attaches the Director to a game. Idempotent; the watcher detaches
// itself when the game ends or the context is cancelled.
func (d *Director) Watch(ctx context.Context, gameID string) error {
	h, err := d.mgr.Game(gameID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	if _, ok := d.tables[h.ID()]; ok {
		d.mu.Unlock()
		return nil
	}
	events, cancel := h.Subscribe("", 64)
	t := &table{
		gameID:    h.ID(),
		h:         h,
		events:    events,
		cancelSub: cancel,
		analyzer:  NewAnalyzer(),
		bots:      make(map[string]*bot),
		ballot:    make(map[string]string),
	}
	d.tables[h.ID()] = t
	d.mu.Unlock()

	go d.run(ctx, t)
	return nil
}

// Stop detaches the Director from every table.
func (d *Director) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tables {
		t.cancelSub()
	}
}

func (d *Director) forget(gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tables[gameID]; ok {
		t.cancelSub()
		delete(d.tables, gameID)
	}
}

func (d *Director) run(ctx context.Context, t *table) {
	defer d.forget(t.gameID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			d.dispatch(ctx, t, ev)
			if ev.Type == game.EventGameEnd {
				d.log.Debug("table closed", "game_id", t.gameID)
				return
			}
		}
	}
}

func (d *Director) dispatch(ctx context.Context, t *table, ev game.Event) {
	switch ev.Type {
	case game.EventNewMessage:
		if msg, ok := ev.Payload.(game.MessageView); ok && msg.Type == game.MessageChat {
			t.mu.Lock()
			t.analyzer.ObserveMessage(msg.PlayerID, msg.Message)
			t.mu.Unlock()
		}
	case game.EventPlayerEliminated:
		if out, ok := ev.Payload.(game.PlayerEliminated); ok {
			t.mu.Lock()
			t.voted = append(t.voted, out.PlayerID)
			t.mu.Unlock()
		}
	case game.EventPhaseChange:
		if pc, ok := ev.Payload.(game.PhaseChange); ok {
			d.onPhase(ctx, t, pc)
		}
	}
}

func (d *Director) onPhase(ctx context.Context, t *table, pc game.PhaseChange) {
	snap, err := t.h.Snapshot(ctx, "")
	if err != nil {
		return
	}
	d.adopt(t, snap)

	switch pc.Phase {
	case game.PhaseInvestment:
		d.settleBallot(t)
		d.fanOut(ctx, t, snap, d.actInvest)
	case game.PhaseDiscussion:
		t.mu.Lock()
		t.analyzer.ObserveRound(snap)
		t.mu.Unlock()
		d.fanOut(ctx, t, snap, d.actDiscuss)
	case game.PhaseVoting:
		d.fanOut(ctx, t, snap, d.actVote)
	}
}

// adopt assigns a personality to every AI seat not met before.
func (d *Director) adopt(t *table, snap game.Snapshot) {
	fresh := make([]string, 0, len(snap.Players))
	t.mu.Lock()
	for _, pl := range snap.Players {
		if pl.IsAI {
			if _, ok := t.bots[pl.ID]; !ok {
				fresh = append(fresh, pl.ID)
			}
		}
	}
	t.mu.Unlock()
	if len(fresh) == 0 {
		return
	}

	d.mu.Lock()
	made := make(map[string]*bot, len(fresh))
	for _, id := range fresh {
		made[id] = &bot{
			personality: pickPersonality(d.rnd),
			rnd:         rand.New(rand.NewSource(d.rnd.Int63())),
		}
	}
	d.mu.Unlock()

	t.mu.Lock()
	for id, b := range made {
		t.bots[id] = b
		d.log.Debug("bot seated", "game_id", t.gameID, "player_id", id, "persona", b.personality.Name)
	}
	t.mu.Unlock()
}

// settleBallot folds the last observed vote round into the analyzer once
// the table moves on.
func (d *Director) settleBallot(t *table) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.ballot) == 0 {
		return
	}
	byTarget := make(map[string][]string)
	for voter, target := range t.ballot {
		byTarget[target] = append(byTarget[target], voter)
	}
	t.analyzer.ObserveBallot(byTarget, t.voted)
	t.ballot = make(map[string]string)
	t.voted = nil
}

func (d *Director) fanOut(ctx context.Context, t *table, snap game.Snapshot, act func(context.Context, *table, string)) {
	alive := make(map[string]bool, len(snap.Players))
	for _, pl := range snap.Players {
		alive[pl.ID] = pl.IsAlive
	}
	t.mu.Lock()
	ids := make([]string, 0, len(t.bots))
	for id := range t.bots {
		if alive[id] {
			ids = append(ids, id)
		}
	}
	t.mu.Unlock()

	for _, id := range ids {
		delay := d.delay()
		botID := id
		go func() {
			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
			}
			act(ctx, t, botID)
		}()
	}
}

func (d *Director) delay() time.Duration {
	if d.jitter <= 0 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	half := d.jitter / 2
	return half + time.Duration(d.rnd.Int63n(int64(half)+1))
}

func (d *Director) actInvest(ctx context.Context, t *table, botID string) {
	snap, err := t.h.Snapshot(ctx, botID)
	if err != nil || snap.Phase != game.PhaseInvestment || snap.You == nil || !snap.You.IsAlive {
		return
	}

	t.mu.Lock()
	b := t.bots[botID]
	if b == nil {
		t.mu.Unlock()
		return
	}
	plan, trade := planTrade(b.personality, *snap.You, snap.Market, b.rnd)
	playCard := b.rnd.Float64() < b.personality.cardChance()
	var card game.CardView
	var targetID string
	if playCard {
		var ok bool
		card, ok = pickCard(snap.Hand, snap.Role, b.rnd)
		if ok && card.NeedsTarget {
			scores := d.blendedScores(t, snap)
			targetID, ok = cardTarget(card, snap, botID, snap.Role, scores, b.rnd)
		}
		playCard = ok
	}
	t.mu.Unlock()

	if trade {
		if _, err := t.h.Invest(ctx, botID, plan.Symbol, plan.Action, plan.Shares); err != nil {
			d.report(t.gameID, botID, "invest", err)
		}
	}
	if playCard {
		if _, err := t.h.UseCard(ctx, botID, card.ID, targetID); err != nil {
			d.report(t.gameID, botID, "card", err)
		}
	}
}

func (d *Director) actDiscuss(ctx context.Context, t *table, botID string) {
	snap, err := t.h.Snapshot(ctx, botID)
	if err != nil || snap.Phase != game.PhaseDiscussion || snap.You == nil || !snap.You.IsAlive {
		return
	}

	t.mu.Lock()
	b := t.bots[botID]
	if b == nil {
		t.mu.Unlock()
		return
	}
	talk := b.rnd.Float64() < b.personality.chatChance()
	var line string
	if talk {
		line, talk = speak(b.personality, snap, botID, snap.You.Suspicion, b.rnd)
	}
	t.mu.Unlock()

	if talk {
		if _, err := t.h.SendMessage(ctx, botID, line); err != nil {
			d.report(t.gameID, botID, "chat", err)
		}
	}
}

func (d *Director) actVote(ctx context.Context, t *table, botID string) {
	snap, err := t.h.Snapshot(ctx, botID)
	if err != nil || snap.Phase != game.PhaseVoting || snap.You == nil || !snap.You.IsAlive {
		return
	}

	t.mu.Lock()
	b := t.bots[botID]
	if b == nil {
		t.mu.Unlock()
		return
	}
	for target, voters := range snap.Votes {
		for _, voter := range voters {
			t.ballot[voter] = target
		}
	}
	scores := d.blendedScores(t, snap)
	target, ok := voteTarget(snap, botID, snap.Role, scores)
	t.mu.Unlock()

	if !ok {
		return
	}
	if _, err := t.h.Vote(ctx, botID, target); err != nil {
		d.report(t.gameID, botID, "vote", err)
	} else {
		t.mu.Lock()
		t.ballot[botID] = target
		t.mu.Unlock()
	}
}

// blendedScores mixes the public suspicion meter with the Director's own
// behavioral estimate. Callers hold t.mu.
func (d *Director) blendedScores(t *table, snap game.Snapshot) map[string]int {
	scores := make(map[string]int, len(snap.Players))
	for _, pl := range snap.Players {
		scores[pl.ID] = (pl.Suspicion + t.analyzer.Suspicion(pl.ID)) / 2
	}
	return scores
}

// report logs a failed bot action. State conflicts are routine, a bot may
// fire just as the phase turns over, so they stay at debug.
func (d *Director) report(gameID, botID, action string, err error) {
	if game.Kind(err) == game.KindState {
		d.log.Debug("bot action out of turn", "game_id", gameID, "player_id", botID, "action", action, "error", err)
		return
	}
	d.log.Warn("bot action failed", "game_id", gameID, "player_id", botID, "action", action, "error", err)
}
