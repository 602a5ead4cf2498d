package game

import (
	"fmt"
	"time"
)

// Player is one seat at the table. Eliminated players stay in the roster
// with Alive false; they are never removed while the game lives.
type Player struct {
	ID           string
	Name         string
	IsAI         bool
	Role         Role
	RoleRevealed bool
	Alive        bool

	MoneyMicros int64
	Holdings    map[string]int64
	Hand        []Card

	Suspicion int
	Trust     int

	// FrozenRound marks a round in which the player may not invest.
	FrozenRound     int
	EliminatedRound int

	Trades  []TradeRecord
	VoteLog []VoteRecord

	JoinedAt time.Time
}

func newPlayer(id, name string, isAI bool, now time.Time) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		IsAI:        isAI,
		Alive:       true,
		MoneyMicros: StartingMoneyMicros,
		Holdings:    make(map[string]int64),
		Trust:       50,
		JoinedAt:    now,
	}
}

func (p *Player) debit(micros int64) error {
	if micros > p.MoneyMicros {
		return fmt.Errorf("%w: need %d micros, have %d", ErrInsufficientFunds, micros, p.MoneyMicros)
	}
	p.MoneyMicros -= micros
	return nil
}

func (p *Player) credit(micros int64) {
	p.MoneyMicros += micros
}

func (p *Player) addShares(symbol string, n int64) {
	p.Holdings[symbol] += n
}

func (p *Player) removeShares(symbol string, n int64) error {
	if p.Holdings[symbol] < n {
		return fmt.Errorf("%w: %s holds %d of %s", ErrInsufficientShares, p.Name, p.Holdings[symbol], symbol)
	}
	p.Holdings[symbol] -= n
	if p.Holdings[symbol] == 0 {
		delete(p.Holdings, symbol)
	}
	return nil
}

func (p *Player) bumpSuspicion(delta int) {
	p.Suspicion = clampScore(p.Suspicion + delta)
}

func (p *Player) bumpTrust(delta int) {
	p.Trust = clampScore(p.Trust + delta)
}

// eliminate flips Alive exactly once. A second call is a no-op.
func (p *Player) eliminate(round int) bool {
	if !p.Alive {
		return false
	}
	p.Alive = false
	p.RoleRevealed = true
	p.EliminatedRound = round
	return true
}

func (p *Player) holdCard(id string) (Card, bool) {
	for _, c := range p.Hand {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

func (p *Player) removeCard(id string) bool {
	for i, c := range p.Hand {
		if c.ID == id {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// NetWorthMicros is cash plus holdings marked at current prices.
func (p *Player) NetWorthMicros(m *Market) int64 {
	total := p.MoneyMicros
	for symbol, shares := range p.Holdings {
		if s, ok := m.stock(symbol); ok {
			total += shares * s.PriceMicros
		}
	}
	return total
}

// tradesInRound returns the orders the player executed in a round.
func (p *Player) tradesInRound(round int) []TradeRecord {
	var out []TradeRecord
	for _, t := range p.Trades {
		if t.Round == round {
			out = append(out, t)
		}
	}
	return out
}

// Registry is the canonical player store for one game. Every component
// reads and mutates player state through it.
type Registry struct {
	players map[string]*Player
	order   []string
}

func newRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

func (r *Registry) add(p *Player) {
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
}

func (r *Registry) get(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

func (r *Registry) len() int {
	return len(r.order)
}

// byJoinOrder returns players in the order they joined.
func (r *Registry) byJoinOrder() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id])
	}
	return out
}

func (r *Registry) alive() []*Player {
	var out []*Player
	for _, p := range r.byJoinOrder() {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

func (r *Registry) aliveByRole(role Role) int {
	n := 0
	for _, p := range r.players {
		if p.Alive && p.Role == role {
			n++
		}
	}
	return n
}
