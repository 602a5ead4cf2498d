package game

import "time"

// EventType names every engine emission.
type EventType string

const (
	EventGameState        EventType = "game_state_update"
	EventPhaseChange      EventType = "phase_change"
	EventNewMessage       EventType = "new_message"
	EventPlayerJoined     EventType = "player_joined"
	EventGameStarted      EventType = "game_started"
	EventRoleAssigned     EventType = "role_assigned"
	EventHandUpdate       EventType = "hand_update"
	EventCardPlayed       EventType = "card_played"
	EventMarketEvent      EventType = "market_event"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameEnd          EventType = "game_end"
)

// Event is one engine emission. To is empty for broadcasts, otherwise the
// id of the only player who may see it.
type Event struct {
	Type    EventType `json:"type"`
	GameID  string    `json:"game_id"`
	To      string    `json:"-"`
	Payload any       `json:"payload,omitempty"`
}

// PlayerView is the public face of a player. Role appears only once
// revealed, or on a snapshot personalized for the player themselves.
type PlayerView struct {
	ID              string           `json:"player_id"`
	Name            string           `json:"name"`
	IsAI            bool             `json:"is_ai"`
	IsAlive         bool             `json:"is_alive"`
	MoneyMicros     int64            `json:"money_micros"`
	Holdings        map[string]int64 `json:"holdings"`
	CardCount       int              `json:"card_count"`
	Suspicion       int              `json:"suspicion_level"`
	Trust           int              `json:"trust_level"`
	Role            Role             `json:"role,omitempty"`
	EliminatedRound int              `json:"eliminated_round,omitempty"`
	NetWorthMicros  int64            `json:"net_worth_micros"`
}

// CardView is the private face of a hand card.
type CardView struct {
	ID             string   `json:"card_id"`
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	Type           CardType `json:"type"`
	Rarity         Rarity   `json:"rarity"`
	Description    string   `json:"description"`
	NeedsTarget    bool     `json:"needs_target"`
	UndercoverOnly bool     `json:"undercover_only"`
}

type StockSnapshot struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Sector         string  `json:"sector"`
	PriceMicros    int64   `json:"price_micros"`
	ChangePct      float64 `json:"change_percent"`
	TotalReturnPct float64 `json:"total_return_percent"`
	Volatility     float64 `json:"volatility"`
	Volume         int64   `json:"volume"`
	History        []int64 `json:"history"`
}

type MarketEventView struct {
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Impact      map[string]float64 `json:"impact"`
	Round       int                `json:"round"`
}

type MarketView struct {
	Trend  Trend            `json:"trend"`
	Stocks []StockSnapshot  `json:"stocks"`
	Event  *MarketEventView `json:"event,omitempty"`
}

type MessageView struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PlayerID   string    `json:"player_id,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
	Message    string    `json:"message"`
	At         time.Time `json:"timestamp"`
}

// Snapshot is the full authoritative game state sent to observers. It is
// idempotent to re-render; reconnecting clients always receive a fresh one.
type Snapshot struct {
	GameID        string              `json:"game_id"`
	Phase         Phase               `json:"phase"`
	Round         int                 `json:"round"`
	MaxPlayers    int                 `json:"max_players"`
	HostID        string              `json:"host_id"`
	Players       []PlayerView        `json:"players"`
	Market        MarketView          `json:"stock_market"`
	Messages      []MessageView       `json:"messages"`
	Votes         map[string][]string `json:"votes"`
	TimeRemaining int                 `json:"time_remaining"`
	Winner        Role                `json:"winner,omitempty"`
	Eliminated    []string            `json:"eliminated_players"`

	// Viewer-private extras, set only on personalized snapshots.
	You  *PlayerView `json:"you,omitempty"`
	Hand []CardView  `json:"hand,omitempty"`
	Role Role        `json:"your_role,omitempty"`
}

type PhaseChange struct {
	Phase         Phase `json:"phase"`
	Round         int   `json:"round"`
	TimeRemaining int   `json:"time_remaining"`
}

type PlayerJoined struct {
	Player      PlayerView `json:"player"`
	PlayerCount int        `json:"player_count"`
	MaxPlayers  int        `json:"max_players"`
}

type GameStarted struct {
	Round           int `json:"round"`
	PlayerCount     int `json:"player_count"`
	UndercoverCount int `json:"undercover_count"`
}

type RoleAssigned struct {
	Role        Role   `json:"role"`
	Description string `json:"description"`
}

type HandUpdate struct {
	Cards []CardView `json:"cards"`
}

type CardPlayed struct {
	PlayerID   string         `json:"player_id"`
	PlayerName string         `json:"player_name"`
	Card       CardView       `json:"card"`
	TargetID   string         `json:"target_player_id,omitempty"`
	TargetName string         `json:"target_name,omitempty"`
	Message    string         `json:"message"`
	Extra      map[string]any `json:"extra,omitempty"`
}

type PlayerEliminated struct {
	PlayerID string         `json:"player_id"`
	Name     string         `json:"name"`
	Role     Role           `json:"role"`
	Round    int            `json:"round"`
	Counts   map[string]int `json:"vote_counts"`
}

type GameEnd struct {
	Winner     Role         `json:"winner"`
	Eliminated string       `json:"eliminated"`
	Players    []PlayerView `json:"players"`
	Rounds     int          `json:"rounds"`
}

func cardView(c Card) CardView {
	spec, _ := cardSpecByKey(c.Key)
	return CardView{
		ID:             c.ID,
		Key:            spec.Key,
		Name:           spec.Name,
		Type:           spec.Type,
		Rarity:         spec.Rarity,
		Description:    spec.Description,
		NeedsTarget:    spec.NeedsTarget,
		UndercoverOnly: spec.UndercoverOnly,
	}
}

func messageView(m Message) MessageView {
	return MessageView{
		ID:         m.ID,
		Type:       m.Type,
		PlayerID:   m.PlayerID,
		PlayerName: m.PlayerName,
		Message:    m.Text,
		At:         m.At,
	}
}

func marketEventView(ev *MarketEvent) *MarketEventView {
	if ev == nil {
		return nil
	}
	impact := make(map[string]float64, len(ev.Impact))
	for sym, v := range ev.Impact {
		impact[sym] = v
	}
	return &MarketEventView{
		Type:        ev.Type,
		Description: ev.Description,
		Impact:      impact,
		Round:       ev.Round,
	}
}

// playerView redacts hidden information unless the role has been revealed
// or the view is for the player themselves.
func (g *Game) playerView(p *Player, self bool) PlayerView {
	v := PlayerView{
		ID:              p.ID,
		Name:            p.Name,
		IsAI:            p.IsAI,
		IsAlive:         p.Alive,
		MoneyMicros:     p.MoneyMicros,
		CardCount:       len(p.Hand),
		Suspicion:       p.Suspicion,
		Trust:           p.Trust,
		EliminatedRound: p.EliminatedRound,
		NetWorthMicros:  p.NetWorthMicros(g.market),
		Holdings:        make(map[string]int64, len(p.Holdings)),
	}
	for sym, n := range p.Holdings {
		v.Holdings[sym] = n
	}
	if self || p.RoleRevealed {
		v.Role = p.Role
	}
	return v
}

func (g *Game) marketView() MarketView {
	mv := MarketView{
		Trend:  g.market.LastTrend,
		Event:  marketEventView(g.market.LastEvent()),
		Stocks: make([]StockSnapshot, 0, len(g.market.order)),
	}
	for _, s := range g.market.Stocks() {
		hist := make([]int64, len(s.History))
		copy(hist, s.History)
		mv.Stocks = append(mv.Stocks, StockSnapshot{
			Symbol:         s.Symbol,
			Name:           s.Name,
			Sector:         s.Sector,
			PriceMicros:    s.PriceMicros,
			ChangePct:      s.ChangePct(),
			TotalReturnPct: s.TotalReturnPct(),
			Volatility:     s.Volatility,
			Volume:         s.Volume,
			History:        hist,
		})
	}
	return mv
}

// snapshot builds the full state view. viewer is empty for the public
// broadcast shape; a player id personalizes role and hand.
func (g *Game) snapshot(viewer string) Snapshot {
	snap := Snapshot{
		GameID:        g.id,
		Phase:         g.phase,
		Round:         g.round,
		MaxPlayers:    g.cfg.MaxPlayers,
		HostID:        g.host,
		Market:        g.marketView(),
		Votes:         g.tally.ByTarget(),
		TimeRemaining: g.timeRemaining(),
		Winner:        g.winner,
		Eliminated:    append([]string(nil), g.eliminated...),
	}
	for _, p := range g.reg.byJoinOrder() {
		snap.Players = append(snap.Players, g.playerView(p, p.ID == viewer))
	}
	tail := g.messages
	if len(tail) > SnapshotMessageCap {
		tail = tail[len(tail)-SnapshotMessageCap:]
	}
	snap.Messages = make([]MessageView, 0, len(tail))
	for _, m := range tail {
		snap.Messages = append(snap.Messages, messageView(m))
	}
	if viewer != "" {
		if p, ok := g.reg.get(viewer); ok {
			you := g.playerView(p, true)
			snap.You = &you
			snap.Role = p.Role
			snap.Hand = make([]CardView, 0, len(p.Hand))
			for _, c := range p.Hand {
				snap.Hand = append(snap.Hand, cardView(c))
			}
		}
	}
	return snap
}

func (g *Game) emit(t EventType, to string, payload any) {
	g.pending = append(g.pending, Event{Type: t, GameID: g.id, To: to, Payload: payload})
}

func (g *Game) emitSnapshot() {
	g.emit(EventGameState, "", g.snapshot(""))
}

// drain hands the queued events to the actor loop for fan-out.
func (g *Game) drain() []Event {
	evs := g.pending
	g.pending = nil
	return evs
}
