package game

import "time"

// Phase is one stage of a round cycle.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInvestment Phase = "investment"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseGameEnd    Phase = "game_end"
)

// Active reports whether the phase accepts player commands.
func (p Phase) Active() bool {
	return p == PhaseInvestment || p == PhaseDiscussion || p == PhaseVoting
}

// Role is a player's hidden faction.
type Role string

const (
	RoleCivilian   Role = "civilian"
	RoleUndercover Role = "undercover"
)

// Rarity weights how often a card template is drawn. It never scales the
// effect itself.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// CardType groups card templates by theme.
type CardType string

const (
	CardMarketNews        CardType = "market_news"
	CardEventCrisis       CardType = "event_crisis"
	CardRoleInteraction   CardType = "role_interaction"
	CardUndercoverSpecial CardType = "undercover_special"
	CardFamilySplit       CardType = "family_split"
	CardConspiracyTrap    CardType = "conspiracy_trap"
	CardPublicOpinion     CardType = "public_opinion"
)

// Trend is the market-wide drift direction for one round.
type Trend string

const (
	TrendBull     Trend = "bull"
	TrendBear     Trend = "bear"
	TrendSideways Trend = "sideways"
)

// Money and prices are stored in micros. 1 toast = 1_000_000 micros.
const (
	MicrosPerToast      = 1_000_000
	StartingMoneyMicros = 10_000 * MicrosPerToast
	// MinPriceMicros is the price floor. A stock never trades at zero.
	MinPriceMicros = 10_000
)

const (
	MinPlayers        = 3
	MaxPlayersLimit   = 8
	DefaultMaxPlayers = 6
	DefaultMaxRounds  = 10
	StartingHandSize  = 3

	PriceHistoryCap    = 50
	MessageHistoryCap  = 200
	SnapshotMessageCap = 50

	// MaxOrderShares bounds one order so notionals stay well inside int64.
	MaxOrderShares = 1_000_000
	MaxMessageLen  = 500
	MaxNameLen     = 24
)

const (
	DefaultInvestmentDuration = 120 * time.Second
	DefaultDiscussionDuration = 180 * time.Second
	DefaultVotingDuration     = 60 * time.Second
)

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

const (
	MessageChat   = "chat"
	MessageSystem = "system"
)

// Config carries per-game tunables. Zero values fall back to defaults.
type Config struct {
	MaxPlayers         int
	MaxRounds          int
	InvestmentDuration time.Duration
	DiscussionDuration time.Duration
	VotingDuration     time.Duration
	MarketMode         string
	AIFill             bool
	Passcode           string
	Seed               int64
}

func (c Config) withDefaults() Config {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = DefaultMaxPlayers
	}
	if c.MaxPlayers < MinPlayers {
		c.MaxPlayers = MinPlayers
	}
	if c.MaxPlayers > MaxPlayersLimit {
		c.MaxPlayers = MaxPlayersLimit
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.InvestmentDuration <= 0 {
		c.InvestmentDuration = DefaultInvestmentDuration
	}
	if c.DiscussionDuration <= 0 {
		c.DiscussionDuration = DefaultDiscussionDuration
	}
	if c.VotingDuration <= 0 {
		c.VotingDuration = DefaultVotingDuration
	}
	if c.MarketMode == "" {
		c.MarketMode = "normal"
	}
	return c
}

// overlay returns c with every field set on o taking precedence.
// Booleans and per-game secrets always come from o.
func (c Config) overlay(o Config) Config {
	if o.MaxPlayers != 0 {
		c.MaxPlayers = o.MaxPlayers
	}
	if o.MaxRounds != 0 {
		c.MaxRounds = o.MaxRounds
	}
	if o.InvestmentDuration != 0 {
		c.InvestmentDuration = o.InvestmentDuration
	}
	if o.DiscussionDuration != 0 {
		c.DiscussionDuration = o.DiscussionDuration
	}
	if o.VotingDuration != 0 {
		c.VotingDuration = o.VotingDuration
	}
	if o.MarketMode != "" {
		c.MarketMode = o.MarketMode
	}
	c.AIFill = o.AIFill
	c.Passcode = o.Passcode
	c.Seed = o.Seed
	return c
}

// Stock is one tradable instrument.
type Stock struct {
	Symbol        string
	Name          string
	Sector        string
	PriceMicros   int64
	InitialMicros int64
	Volatility    float64
	History       []int64
	Volume        int64

	// netFlow is the current round's buy-minus-sell share volume. It feeds
	// the demand term of the next price update, then resets.
	netFlow int64
}

// ChangePct is the move of the latest price update, in percent.
func (s *Stock) ChangePct() float64 {
	if len(s.History) < 2 {
		return 0
	}
	prev := s.History[len(s.History)-2]
	if prev == 0 {
		return 0
	}
	return float64(s.PriceMicros-prev) / float64(prev) * 100
}

// TotalReturnPct is the move since game start, in percent.
func (s *Stock) TotalReturnPct() float64 {
	if s.InitialMicros == 0 {
		return 0
	}
	return float64(s.PriceMicros-s.InitialMicros) / float64(s.InitialMicros) * 100
}

// Card is one card instance in a player's hand.
type Card struct {
	ID  string
	Key string
}

// TradeRecord is one executed order.
type TradeRecord struct {
	Round       int       `json:"round"`
	Action      string    `json:"action"`
	Symbol      string    `json:"symbol"`
	Shares      int64     `json:"shares"`
	PriceMicros int64     `json:"price_micros"`
	CostMicros  int64     `json:"cost_micros"`
	At          time.Time `json:"at"`
}

// VoteRecord is one cast vote, kept per player for the post-game report.
type VoteRecord struct {
	Round  int
	Target string
	At     time.Time
}

// Message is one append-only chat or system line.
type Message struct {
	ID         string
	Type       string
	PlayerID   string
	PlayerName string
	Text       string
	At         time.Time
}

// MarketEvent is a round-scoped shock announced to the table.
type MarketEvent struct {
	Type        string
	Description string
	Impact      map[string]float64
	Round       int
}
