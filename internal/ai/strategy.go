package ai

import (
	"math/rand"
	"sort"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

// tradePlan is one order the bot intends to place.
type tradePlan struct {
	Symbol string
	Action string
	Shares int64
}

// planTrade sizes one order for the round. A held position whose price has
// turned against the bot's risk appetite is dumped first; otherwise every
// stock is scored and a buy is sized against the bot's cash. It returns
// false when nothing scores, which only happens with an empty market or an
// empty wallet.
func planTrade(p Personality, you game.PlayerView, market game.MarketView, rnd *rand.Rand) (tradePlan, bool) {
	if plan, ok := planSell(p, you, market); ok {
		return plan, true
	}
	type scored struct {
		symbol string
		price  int64
		score  float64
	}
	ranked := make([]scored, 0, len(market.Stocks))
	for _, s := range market.Stocks {
		score := 0.5 + recentChange(s.History)*p.Analytical
		if p.Analytical > 0.7 {
			score -= s.Volatility * 0.1
		}
		score += (rnd.Float64()*2 - 1) * 0.1
		ranked = append(ranked, scored{symbol: s.Symbol, price: s.PriceMicros, score: clamp01(score)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	budget := int64(float64(you.MoneyMicros) * investRatio(p, you.MoneyMicros))
	for _, s := range ranked {
		if shares := game.MaxAffordableShares(budget, s.price); shares > 0 {
			return tradePlan{Symbol: s.symbol, Action: "buy", Shares: shares}, true
		}
	}
	return tradePlan{}, false
}

// planSell looks for a holding worth cutting. Risk-tolerant bots ride
// losses longer before they fold.
func planSell(p Personality, you game.PlayerView, market game.MarketView) (tradePlan, bool) {
	threshold := -0.02 - 0.08*p.RiskTolerance
	for _, s := range market.Stocks {
		shares := you.Holdings[s.Symbol]
		if shares <= 0 {
			continue
		}
		if recentChange(s.History) < threshold {
			return tradePlan{Symbol: s.Symbol, Action: "sell", Shares: shares}, true
		}
	}
	return tradePlan{}, false
}

// investRatio is the share of cash committed per round. Risk appetite sets
// the base, wallet size scales it, and the result stays within [0.1, 0.8].
func investRatio(p Personality, moneyMicros int64) float64 {
	ratio := 0.2 + p.RiskTolerance*0.6
	switch {
	case moneyMicros > 1000*game.MicrosPerToast:
		ratio *= 1.2
	case moneyMicros < 200*game.MicrosPerToast:
		ratio *= 0.5
	}
	if ratio < 0.1 {
		return 0.1
	}
	if ratio > 0.8 {
		return 0.8
	}
	return ratio
}

func recentChange(history []int64) float64 {
	if len(history) < 2 {
		return 0
	}
	prev := history[len(history)-2]
	last := history[len(history)-1]
	if prev <= 0 {
		return 0
	}
	return float64(last-prev) / float64(prev)
}

// voteTarget picks whom to vote out. Civilians chase the most suspect
// player; undercover bots vote against the least suspect one to thin the
// trusted core. Ties resolve in player join order so repeated runs agree.
func voteTarget(snap game.Snapshot, selfID string, role game.Role, scores map[string]int) (string, bool) {
	best := ""
	bestScore := 0
	for _, pl := range snap.Players {
		if pl.ID == selfID || !pl.IsAlive {
			continue
		}
		score := scores[pl.ID]
		if best == "" {
			best, bestScore = pl.ID, score
			continue
		}
		if role == game.RoleUndercover {
			if score < bestScore {
				best, bestScore = pl.ID, score
			}
		} else if score > bestScore {
			best, bestScore = pl.ID, score
		}
	}
	return best, best != ""
}

// cardTarget picks a victim or beneficiary for a targeted card.
func cardTarget(card game.CardView, snap game.Snapshot, selfID string, role game.Role, scores map[string]int, rnd *rand.Rand) (string, bool) {
	others := make([]game.PlayerView, 0, len(snap.Players))
	for _, pl := range snap.Players {
		if pl.ID != selfID && pl.IsAlive {
			others = append(others, pl)
		}
	}
	if len(others) == 0 {
		return "", false
	}
	switch {
	case card.Key == "build_trust":
		// Trust plays go to whoever the table already likes.
		best := others[0]
		for _, pl := range others[1:] {
			if pl.Trust > best.Trust {
				best = pl
			}
		}
		return best.ID, true
	case card.Type == game.CardConspiracyTrap:
		return others[rnd.Intn(len(others))].ID, true
	default:
		// Attack plays follow the voting logic: undercover bots smear the
		// trusted, civilians pile on the suspect.
		id, ok := voteTarget(snap, selfID, role, scores)
		return id, ok
	}
}

// pickCard chooses a playable card from the hand, or none. Undercover bots
// lean toward sabotage cards, civilians toward trust plays, with a chance
// of grabbing whatever is on hand instead.
func pickCard(hand []game.CardView, role game.Role, rnd *rand.Rand) (game.CardView, bool) {
	playable := make([]game.CardView, 0, len(hand))
	preferred := make([]game.CardView, 0, len(hand))
	for _, c := range hand {
		if c.UndercoverOnly && role != game.RoleUndercover {
			continue
		}
		playable = append(playable, c)
		if prefersCard(role, c.Type) {
			preferred = append(preferred, c)
		}
	}
	if len(playable) == 0 {
		return game.CardView{}, false
	}
	lean := 0.7
	if role == game.RoleUndercover {
		lean = 0.8
	}
	if len(preferred) > 0 && rnd.Float64() < lean {
		return preferred[rnd.Intn(len(preferred))], true
	}
	return playable[rnd.Intn(len(playable))], true
}

func prefersCard(role game.Role, t game.CardType) bool {
	if role == game.RoleUndercover {
		switch t {
		case game.CardEventCrisis, game.CardUndercoverSpecial, game.CardConspiracyTrap:
			return true
		}
		return false
	}
	switch t {
	case game.CardRoleInteraction, game.CardMarketNews:
		return true
	}
	return false
}
