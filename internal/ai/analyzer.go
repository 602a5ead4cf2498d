package ai

import (
	"strings"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

// Signal weights. Trading consistency dominates because erratic position
// changes are the strongest public tell at the table.
const (
	weightRisk        = 0.15
	weightConsistency = 0.25
	weightSocial      = 0.15
	weightAccusation  = 0.20
	weightDefensive   = 0.15
	weightVoting      = 0.10
)

var accusingWords = []string{"sus", "suspicious", "weird", "odd", "liar", "lying", "hiding", "shady"}

var defendingWords = []string{"not me", "wasn't me", "innocent", "trust me", "i swear", "honest", "believe me"}

// behavior is the visible track record of one player.
type behavior struct {
	rounds       int
	aggressive   int
	conservative int
	moderate     int
	messages     int
	accusing     int
	defending    int
	votesCast    int
	votesLanded  int
	lastHoldings map[string]int64
}

// Analyzer estimates how suspicious each player's public behavior looks,
// using only what an observer at the table could see. Scores feed the
// bots' vote and card targeting.
type Analyzer struct {
	players map[string]*behavior
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{players: make(map[string]*behavior)}
}

func (a *Analyzer) track(playerID string) *behavior {
	b, ok := a.players[playerID]
	if !ok {
		b = &behavior{lastHoldings: make(map[string]int64)}
		a.players[playerID] = b
	}
	return b
}

// ObserveRound folds one round's snapshot into every player's record. Call
// it once per round, after the trading window closes.
func (a *Analyzer) ObserveRound(snap game.Snapshot) {
	prices := make(map[string]int64, len(snap.Market.Stocks))
	for _, s := range snap.Market.Stocks {
		prices[s.Symbol] = s.PriceMicros
	}
	for _, pl := range snap.Players {
		if !pl.IsAlive {
			continue
		}
		b := a.track(pl.ID)
		b.rounds++
		traded := holdingsChanged(b.lastHoldings, pl.Holdings)
		invested := int64(0)
		for sym, shares := range pl.Holdings {
			invested += prices[sym] * shares
		}
		concentrated := pl.NetWorthMicros > 0 && invested*2 > pl.NetWorthMicros
		switch {
		case traded && concentrated:
			b.aggressive++
		case !traded:
			b.conservative++
		default:
			b.moderate++
		}
		b.lastHoldings = make(map[string]int64, len(pl.Holdings))
		for sym, shares := range pl.Holdings {
			b.lastHoldings[sym] = shares
		}
	}
}

// ObserveMessage scans one chat line for accusatory or defensive tells.
func (a *Analyzer) ObserveMessage(playerID, text string) {
	if playerID == "" {
		return
	}
	b := a.track(playerID)
	b.messages++
	lower := strings.ToLower(text)
	for _, w := range accusingWords {
		if strings.Contains(lower, w) {
			b.accusing++
			break
		}
	}
	for _, w := range defendingWords {
		if strings.Contains(lower, w) {
			b.defending++
			break
		}
	}
}

// ObserveBallot records a closed vote. votes maps target id to voter ids,
// eliminated lists the players the ballot removed.
func (a *Analyzer) ObserveBallot(votes map[string][]string, eliminated []string) {
	out := make(map[string]bool, len(eliminated))
	for _, id := range eliminated {
		out[id] = true
	}
	for target, voters := range votes {
		for _, voter := range voters {
			b := a.track(voter)
			b.votesCast++
			if out[target] {
				b.votesLanded++
			}
		}
	}
}

// Suspicion scores one player 0..100 from the six behavioral signals.
// Unknown players sit at the neutral baseline.
func (a *Analyzer) Suspicion(playerID string) int {
	b, ok := a.players[playerID]
	if !ok {
		b = &behavior{}
	}

	risk := 0.5
	consistency := 0.5
	social := 0.5
	if b.rounds > 0 {
		risk = float64(b.aggressive) / float64(b.rounds)
		most := b.aggressive
		if b.conservative > most {
			most = b.conservative
		}
		if b.moderate > most {
			most = b.moderate
		}
		consistency = float64(most) / float64(b.rounds)
		social = float64(b.messages) / float64(b.rounds) / 3
		if social > 1 {
			social = 1
		}
	}
	accusation := 0.5
	defensive := 0.5
	if b.messages > 0 {
		accusation = float64(b.accusing) / float64(b.messages)
		defensive = float64(b.defending) / float64(b.messages)
	}
	voting := 0.5
	if b.votesCast > 0 {
		voting = float64(b.votesLanded) / float64(b.votesCast)
	}

	score := abs(risk-0.5)*2*weightRisk +
		(1-consistency)*weightConsistency +
		abs(social-0.5)*2*weightSocial +
		(1-accusation)*weightAccusation +
		defensive*weightDefensive +
		(1-voting)*weightVoting
	return int(clamp01(score) * 100)
}

func holdingsChanged(prev, cur map[string]int64) bool {
	if len(prev) != len(cur) {
		return true
	}
	for sym, shares := range cur {
		if prev[sym] != shares {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
