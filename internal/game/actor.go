package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PhaseStamp is a cheap read-only mirror of a game's clock state. The
// loop refreshes it after every command so the scheduler can poll
// deadlines without queueing work.
type PhaseStamp struct {
	Phase       Phase
	Round       int
	PlayerCount int
	Deadline    time.Time
	Touched     time.Time
}

type command struct {
	run   func(g *Game) (any, error)
	reply chan result
}

type result struct {
	val any
	err error
}

type subscriber struct {
	playerID string
	ch       chan Event
}

// Handle owns one game. All reads and writes funnel through a single
// goroutine, so the engine below it never needs a lock.
type Handle struct {
	id   string
	cmds chan command
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	subs   map[int64]*subscriber
	nextID int64

	stamp atomic.Value // PhaseStamp
	onEnd func(ArchiveRecord)
}

func newHandle(g *Game, onEnd func(ArchiveRecord)) *Handle {
	h := &Handle{
		id:    g.id,
		cmds:  make(chan command, 32),
		done:  make(chan struct{}),
		subs:  make(map[int64]*subscriber),
		onEnd: onEnd,
	}
	h.stamp.Store(PhaseStamp{Phase: g.phase, Touched: time.Now()})
	go h.loop(g)
	return h
}

func (h *Handle) ID() string { return h.id }

// Stamp returns the loop's last published clock state.
func (h *Handle) Stamp() PhaseStamp {
	return h.stamp.Load().(PhaseStamp)
}

// Close stops the loop and closes every subscriber channel.
func (h *Handle) Close() {
	h.once.Do(func() { close(h.done) })
}

// Done reports handle shutdown.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) loop(g *Game) {
	archived := false
	for {
		select {
		case <-h.done:
			h.closeSubs()
			return
		case cmd := <-h.cmds:
			val, err := cmd.run(g)
			events := g.drain()
			h.stamp.Store(PhaseStamp{
				Phase:       g.phase,
				Round:       g.round,
				PlayerCount: g.reg.len(),
				Deadline:    g.deadline,
				Touched:     time.Now(),
			})
			h.deliver(events)
			if cmd.reply != nil {
				cmd.reply <- result{val: val, err: err}
			}
			if g.phase == PhaseGameEnd && !archived {
				archived = true
				if h.onEnd != nil {
					rec := g.result()
					go h.onEnd(rec)
				}
			}
		}
	}
}

func (h *Handle) deliver(events []Event) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range events {
		for _, s := range h.subs {
			if ev.To != "" && ev.To != s.playerID {
				continue
			}
			select {
			case s.ch <- ev:
			default:
				// Slow consumer. Drop rather than stall the table.
			}
		}
	}
}

func (h *Handle) closeSubs() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		close(s.ch)
		delete(h.subs, id)
	}
}

// Subscribe attaches an event stream. playerID may be empty for a
// public observer; it gates delivery of private events only. The
// returned cancel is safe to call more than once.
func (h *Handle) Subscribe(playerID string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 32
	}
	ch := make(chan Event, buf)
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{playerID: playerID, ch: ch}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if s, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(s.ch)
		}
	}
	return ch, cancel
}

func (h *Handle) do(ctx context.Context, run func(g *Game) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := command{run: run, reply: make(chan result, 1)}
	select {
	case h.cmds <- cmd:
	case <-h.done:
		return nil, ErrGameNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res.val, res.err
	case <-h.done:
		return nil, ErrGameNotFound
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Join seats a human player and returns their public view.
func (h *Handle) Join(ctx context.Context, name string) (PlayerView, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		p, err := g.Join(name, false)
		if err != nil {
			return nil, err
		}
		return g.playerView(p, true), nil
	})
	if err != nil {
		return PlayerView{}, err
	}
	return val.(PlayerView), nil
}

// AddAI seats one scripted player on the host's behalf.
func (h *Handle) AddAI(ctx context.Context, actor string) (PlayerView, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		p, err := g.AddAI(actor)
		if err != nil {
			return nil, err
		}
		return g.playerView(p, false), nil
	})
	if err != nil {
		return PlayerView{}, err
	}
	return val.(PlayerView), nil
}

// AdvancePhase moves the game forward on the host's request.
func (h *Handle) AdvancePhase(ctx context.Context, actor string) error {
	_, err := h.do(ctx, func(g *Game) (any, error) {
		return nil, g.AdvancePhase(actor)
	})
	return err
}

// ForceTimeout fires an expired phase deadline.
func (h *Handle) ForceTimeout(ctx context.Context, phase Phase, round int) (bool, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.ForceTimeout(phase, round), nil
	})
	if err != nil {
		return false, err
	}
	return val.(bool), nil
}

// Invest executes a buy or sell order.
func (h *Handle) Invest(ctx context.Context, actor, symbol, action string, shares int64) (TradeRecord, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.Invest(actor, symbol, action, shares)
	})
	if err != nil {
		return TradeRecord{}, err
	}
	return val.(TradeRecord), nil
}

// UseCard plays a card from the actor's hand.
func (h *Handle) UseCard(ctx context.Context, actor, cardID, targetID string) (CardPlayed, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.UseCard(actor, cardID, targetID)
	})
	if err != nil {
		return CardPlayed{}, err
	}
	return val.(CardPlayed), nil
}

// Vote casts or replaces an elimination vote and returns the running
// counts.
func (h *Handle) Vote(ctx context.Context, actor, targetID string) (map[string]int, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.Vote(actor, targetID)
	})
	if err != nil {
		return nil, err
	}
	return val.(map[string]int), nil
}

// SendMessage appends a chat line.
func (h *Handle) SendMessage(ctx context.Context, actor, text string) (MessageView, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.SendMessage(actor, text)
	})
	if err != nil {
		return MessageView{}, err
	}
	return val.(MessageView), nil
}

// Snapshot returns the state view, personalized when viewer is a seated
// player id.
func (h *Handle) Snapshot(ctx context.Context, viewer string) (Snapshot, error) {
	val, err := h.do(ctx, func(g *Game) (any, error) {
		return g.snapshot(viewer), nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return val.(Snapshot), nil
}
