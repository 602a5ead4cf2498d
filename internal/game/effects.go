package game

import "fmt"

// cardOutcome is the result of resolving a card. public is the table
// announcement. broadcastExtra rides on the card_played event for
// everyone; privateExtra goes back to the caller only.
type cardOutcome struct {
	public         string
	broadcastExtra map[string]any
	privateExtra   map[string]any
}

func (g *Game) applyCard(p *Player, spec cardSpec, target *Player) (cardOutcome, error) {
	var out cardOutcome
	switch spec.Key {
	case "good_news":
		sym := g.market.RandomSymbol()
		g.market.QueueNews(sym, 0.10)
		out.public = fmt.Sprintf("%s played Good News. %s is set to rally next round.", p.Name, sym)
		out.broadcastExtra = map[string]any{"symbol": sym, "impact": 0.10}

	case "market_crash":
		g.market.QueueNewsAll(-0.15)
		out.public = fmt.Sprintf("%s played Market Crash. The whole board is set to slide next round.", p.Name)

	case "insider_info":
		out.public = fmt.Sprintf("%s played Insider Info and studied something closely.", p.Name)
		out.privateExtra = map[string]any{
			"next_trend":   g.market.Trend,
			"pending_news": g.market.PendingNews(),
		}

	case "freeze_funds":
		target.FrozenRound = g.round + 1
		out.public = fmt.Sprintf("%s froze %s's funds for the next round.", p.Name, target.Name)
		out.broadcastExtra = map[string]any{"frozen_round": target.FrozenRound}

	case "audit_storm":
		report := g.auditReport()
		out.public = fmt.Sprintf("%s called an Audit Storm. Every trade this round is on the record.", p.Name)
		out.broadcastExtra = map[string]any{"round": g.round, "trades": report}

	case "build_trust":
		target.bumpTrust(20)
		p.bumpTrust(10)
		out.public = fmt.Sprintf("%s vouched for %s in front of the table.", p.Name, target.Name)

	case "spread_rumor":
		target.bumpSuspicion(15)
		out.public = fmt.Sprintf("%s spread a rumor about %s.", p.Name, target.Name)

	case "disguise":
		p.bumpSuspicion(-25)
		out.public = fmt.Sprintf("%s polished their public image.", p.Name)

	case "frame_up":
		target.bumpSuspicion(30)
		out.public = fmt.Sprintf("%s produced damning evidence against %s.", p.Name, target.Name)

	case "conflict":
		a, b, err := g.pickConflictPair(p)
		if err != nil {
			return out, err
		}
		a.bumpSuspicion(10)
		b.bumpSuspicion(10)
		out.public = fmt.Sprintf("%s stirred up a conflict between %s and %s.", p.Name, a.Name, b.Name)
		out.broadcastExtra = map[string]any{"players": []string{a.ID, b.ID}}

	case "vote_control":
		g.tally.Control(target.ID, p.ID)
		out.public = fmt.Sprintf("%s pulled strings around %s's vote this round.", p.Name, target.Name)

	case "media_exposure":
		target.RoleRevealed = true
		out.public = fmt.Sprintf("%s exposed %s in the press. They are %s.", p.Name, target.Name, roleLabel(target.Role))
		out.broadcastExtra = map[string]any{"player_id": target.ID, "revealed_role": target.Role}

	default:
		return out, fmt.Errorf("%w: %s", ErrCardNotFound, spec.Key)
	}
	return out, nil
}

// pickConflictPair picks two distinct living players other than the
// card user.
func (g *Game) pickConflictPair(p *Player) (*Player, *Player, error) {
	var pool []*Player
	for _, other := range g.reg.alive() {
		if other.ID != p.ID {
			pool = append(pool, other)
		}
	}
	if len(pool) < 2 {
		return nil, nil, fmt.Errorf("%w: conflict needs two other living players", ErrNotEnoughPlayers)
	}
	g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[0], pool[1], nil
}

// auditReport collects every living player's trades for the current
// round.
func (g *Game) auditReport() []map[string]any {
	var report []map[string]any
	for _, p := range g.reg.byJoinOrder() {
		if !p.Alive {
			continue
		}
		var trades []map[string]any
		for _, tr := range p.tradesInRound(g.round) {
			trades = append(trades, map[string]any{
				"action":       tr.Action,
				"symbol":       tr.Symbol,
				"shares":       tr.Shares,
				"price_micros": tr.PriceMicros,
			})
		}
		report = append(report, map[string]any{
			"player_id": p.ID,
			"name":      p.Name,
			"trades":    trades,
		})
	}
	return report
}
