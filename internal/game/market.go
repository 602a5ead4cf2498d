package game

import (
	"fmt"
	"math"
	mathrand "math/rand"
	"strings"
	"time"
)

type stockSpec struct {
	Symbol     string
	Name       string
	Price      int64
	Volatility float64
	Sector     string
}

var stockCatalog = []stockSpec{
	{"AAPL", "Apple", 150 * MicrosPerToast, 0.12, "tech"},
	{"GOOGL", "Google", 2_800 * MicrosPerToast, 0.15, "tech"},
	{"TSLA", "Tesla", 800 * MicrosPerToast, 0.25, "auto"},
	{"AMZN", "Amazon", 3_300 * MicrosPerToast, 0.18, "retail"},
	{"MSFT", "Microsoft", 300 * MicrosPerToast, 0.10, "tech"},
	{"NVDA", "Nvidia", 220 * MicrosPerToast, 0.20, "tech"},
	{"META", "Meta", 320 * MicrosPerToast, 0.22, "social"},
	{"NFLX", "Netflix", 400 * MicrosPerToast, 0.16, "media"},
	{"BTC", "Bitcoin", 45_000 * MicrosPerToast, 0.30, "crypto"},
	{"ETH", "Ethereum", 3_000 * MicrosPerToast, 0.28, "crypto"},
}

// marketDynamics tunes the per-round price process.
type marketDynamics struct {
	NoiseScale    float64
	ShockProb     float64
	ShockScale    float64
	EventProb     float64
	PressureScale float64
	MaxPressure   float64
	MaxSwing      float64
}

func dynamicsFor(mode string) marketDynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return marketDynamics{
			NoiseScale:    0.55,
			ShockProb:     0.03,
			ShockScale:    0.10,
			EventProb:     0.15,
			PressureScale: 2_000,
			MaxPressure:   0.03,
			MaxSwing:      0.20,
		}
	case "wild":
		return marketDynamics{
			NoiseScale:    1.40,
			ShockProb:     0.25,
			ShockScale:    0.30,
			EventProb:     0.45,
			PressureScale: 600,
			MaxPressure:   0.08,
			MaxSwing:      0.50,
		}
	default:
		return marketDynamics{
			NoiseScale:    1.00,
			ShockProb:     0.10,
			ShockScale:    0.18,
			EventProb:     0.30,
			PressureScale: 1_000,
			MaxPressure:   0.05,
			MaxSwing:      0.35,
		}
	}
}

// Market owns the tradable instruments and their price process. It is not
// safe for concurrent use; the owning game serializes access.
type Market struct {
	stocks map[string]*Stock
	order  []string

	// Trend is the drift that will apply at the next round update. It is
	// re-rolled after every update; insider information reveals it early.
	Trend Trend
	// LastTrend is the drift that produced the current prices.
	LastTrend Trend

	pendingNews map[string]float64
	lastEvent   *MarketEvent
	dyn         marketDynamics
	rnd         *mathrand.Rand
}

// NewMarket builds the ten-stock board. The rand source is owned by the
// caller and shared with the rest of the game.
func NewMarket(mode string, rnd *mathrand.Rand) *Market {
	m := &Market{
		stocks:      make(map[string]*Stock, len(stockCatalog)),
		pendingNews: make(map[string]float64),
		dyn:         dynamicsFor(mode),
		rnd:         rnd,
	}
	for _, spec := range stockCatalog {
		m.stocks[spec.Symbol] = &Stock{
			Symbol:        spec.Symbol,
			Name:          spec.Name,
			Sector:        spec.Sector,
			PriceMicros:   spec.Price,
			InitialMicros: spec.Price,
			Volatility:    spec.Volatility,
			History:       []int64{spec.Price},
		}
		m.order = append(m.order, spec.Symbol)
	}
	m.rollTrend()
	m.LastTrend = TrendSideways
	return m
}

func (m *Market) stock(symbol string) (*Stock, bool) {
	s, ok := m.stocks[symbol]
	return s, ok
}

// Stocks returns the board in catalog order.
func (m *Market) Stocks() []*Stock {
	out := make([]*Stock, 0, len(m.order))
	for _, sym := range m.order {
		out = append(out, m.stocks[sym])
	}
	return out
}

// Symbols returns the tradable symbols in catalog order.
func (m *Market) Symbols() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Price returns the current price for a symbol.
func (m *Market) Price(symbol string) (int64, error) {
	s, ok := m.stock(normalizeSymbol(symbol))
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	return s.PriceMicros, nil
}

// Buy debits the player and credits the holding at the current price. The
// order is recorded for this round's volume aggregation.
func (m *Market) Buy(p *Player, symbol string, shares int64, round int, now time.Time) (TradeRecord, error) {
	return m.execute(p, ActionBuy, symbol, shares, round, now)
}

// Sell credits the player at the current price and debits the holding.
func (m *Market) Sell(p *Player, symbol string, shares int64, round int, now time.Time) (TradeRecord, error) {
	return m.execute(p, ActionSell, symbol, shares, round, now)
}

func (m *Market) execute(p *Player, action, symbol string, shares int64, round int, now time.Time) (TradeRecord, error) {
	var rec TradeRecord
	symbol = normalizeSymbol(symbol)
	if err := ValidateSymbol(symbol); err != nil {
		return rec, err
	}
	if shares <= 0 || shares > MaxOrderShares {
		return rec, fmt.Errorf("%w: amount must be between 1 and %d shares", ErrInvalidInput, int64(MaxOrderShares))
	}
	s, ok := m.stock(symbol)
	if !ok {
		return rec, fmt.Errorf("%w: %s", ErrStockNotFound, symbol)
	}
	notional, err := notionalMicros(shares, s.PriceMicros)
	if err != nil {
		return rec, err
	}

	switch action {
	case ActionBuy:
		if err := p.debit(notional); err != nil {
			return rec, err
		}
		p.addShares(symbol, shares)
		s.netFlow += shares
	case ActionSell:
		if err := p.removeShares(symbol, shares); err != nil {
			return rec, err
		}
		p.credit(notional)
		s.netFlow -= shares
	default:
		return rec, fmt.Errorf("%w: action must be buy or sell", ErrInvalidInput)
	}
	s.Volume += shares

	rec = TradeRecord{
		Round:       round,
		Action:      action,
		Symbol:      symbol,
		Shares:      shares,
		PriceMicros: s.PriceMicros,
		CostMicros:  notional,
		At:          now,
	}
	p.Trades = append(p.Trades, rec)
	return rec, nil
}

// QueueNews stages a market-moving effect for the next price update.
func (m *Market) QueueNews(symbol string, impact float64) {
	m.pendingNews[normalizeSymbol(symbol)] += impact
}

// QueueNewsAll stages a market-wide effect for the next price update.
func (m *Market) QueueNewsAll(impact float64) {
	for _, sym := range m.order {
		m.pendingNews[sym] += impact
	}
}

// PendingNews returns the queued impacts, sorted by symbol. Insider
// information exposes this to a single player.
func (m *Market) PendingNews() map[string]float64 {
	out := make(map[string]float64, len(m.pendingNews))
	for sym, impact := range m.pendingNews {
		if impact != 0 {
			out[sym] = impact
		}
	}
	return out
}

// RandomSymbol picks one tradable symbol.
func (m *Market) RandomSymbol() string {
	return m.order[m.rnd.Intn(len(m.order))]
}

// LastEvent returns the market event of the current round, if any.
func (m *Market) LastEvent() *MarketEvent {
	return m.lastEvent
}

// AdvanceRound applies one full price update: a possible market event, the
// pending trend drift, bounded noise, order-flow pressure, and any queued
// news. New prices are appended to history before the caller notifies
// anyone. The trend is re-rolled for the following round.
func (m *Market) AdvanceRound(round int) *MarketEvent {
	ev := m.rollEvent(round)
	if ev != nil {
		for sym, impact := range ev.Impact {
			m.pendingNews[sym] += impact
		}
	}

	trend := m.Trend
	for _, sym := range m.order {
		s := m.stocks[sym]
		ret := trendDrift(trend) + m.dyn.NoiseScale*s.Volatility*normalish(m.rnd.Float64())
		ret += m.pressure(s)
		ret += m.pendingNews[sym]
		if m.rnd.Float64() < m.dyn.ShockProb {
			ret += signedShock(m.rnd.Float64(), m.rnd.Float64(), m.dyn.ShockScale*s.Volatility)
		}
		ret = clampSwing(ret, m.dyn.MaxSwing)

		s.PriceMicros = evolvePrice(s.PriceMicros, ret)
		s.History = append(s.History, s.PriceMicros)
		if len(s.History) > PriceHistoryCap {
			s.History = s.History[len(s.History)-PriceHistoryCap:]
		}
		s.netFlow = 0
	}

	m.pendingNews = make(map[string]float64)
	m.lastEvent = ev
	m.LastTrend = trend
	m.rollTrend()
	return ev
}

// pressure converts the round's net order flow into a bounded return term.
func (m *Market) pressure(s *Stock) float64 {
	raw := float64(s.netFlow) / m.dyn.PressureScale
	if raw > m.dyn.MaxPressure {
		return m.dyn.MaxPressure
	}
	if raw < -m.dyn.MaxPressure {
		return -m.dyn.MaxPressure
	}
	return raw
}

func (m *Market) rollTrend() {
	u := m.rnd.Float64()
	switch {
	case u < 0.3:
		m.Trend = TrendBull
	case u < 0.6:
		m.Trend = TrendBear
	default:
		m.Trend = TrendSideways
	}
}

func (m *Market) rollEvent(round int) *MarketEvent {
	if m.rnd.Float64() > m.dyn.EventProb {
		return nil
	}
	ev := &MarketEvent{Round: round, Impact: make(map[string]float64)}
	switch m.rnd.Intn(5) {
	case 0:
		ev.Type = "tech_boom"
		ev.Description = "Tech rally! An AI breakthrough lifts the whole tech sector."
		m.impactSector(ev, "tech", 0.08)
	case 1:
		ev.Type = "market_crash"
		ev.Description = "Market panic! Global growth fears drag everything down."
		for _, sym := range m.order {
			ev.Impact[sym] = -0.05
		}
	case 2:
		ev.Type = "crypto_surge"
		ev.Description = "Crypto surge! Institutional buyers pile in."
		m.impactSector(ev, "crypto", 0.15)
	case 3:
		ev.Type = "auto_recall"
		ev.Description = "Mass auto recall! Safety findings hammer car makers."
		m.impactSector(ev, "auto", -0.12)
	case 4:
		ev.Type = "earnings_beat"
		ev.Description = "Blowout earnings! One name crushes expectations."
		ev.Impact[m.RandomSymbol()] = 0.10
	}
	return ev
}

func (m *Market) impactSector(ev *MarketEvent, sector string, impact float64) {
	for _, sym := range m.order {
		if m.stocks[sym].Sector == sector {
			ev.Impact[sym] = impact
		}
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func trendDrift(t Trend) float64 {
	switch t {
	case TrendBull:
		return 0.02
	case TrendBear:
		return -0.02
	default:
		return 0
	}
}

func normalish(seed float64) float64 {
	return (seed + seed - 1)
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

func clampSwing(ret, maxSwing float64) float64 {
	if ret > maxSwing {
		return maxSwing
	}
	if ret < -maxSwing {
		return -maxSwing
	}
	return ret
}

// evolvePrice applies a bounded return and floors the result so a stock
// never reaches zero.
func evolvePrice(priceMicros int64, ret float64) int64 {
	next := int64(math.Round(float64(priceMicros) * (1 + ret)))
	if next < MinPriceMicros {
		next = MinPriceMicros
	}
	return next
}
