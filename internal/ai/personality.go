package ai

import "math/rand"

// Personality weights every decision a bot makes. Traits are 0..1.
type Personality struct {
	Name          string
	Aggressive    float64
	RiskTolerance float64
	Social        float64
	Analytical    float64
	Suspicious    float64
}

var archetypes = []Personality{
	{Name: "aggressive investor", Aggressive: 0.8, RiskTolerance: 0.9, Social: 0.6, Analytical: 0.7, Suspicious: 0.5},
	{Name: "cautious analyst", Aggressive: 0.2, RiskTolerance: 0.3, Social: 0.4, Analytical: 0.9, Suspicious: 0.7},
	{Name: "social butterfly", Aggressive: 0.5, RiskTolerance: 0.6, Social: 0.9, Analytical: 0.5, Suspicious: 0.4},
	{Name: "quiet observer", Aggressive: 0.6, RiskTolerance: 0.7, Social: 0.3, Analytical: 0.8, Suspicious: 0.8},
	{Name: "steady hand", Aggressive: 0.5, RiskTolerance: 0.5, Social: 0.5, Analytical: 0.6, Suspicious: 0.5},
}

func pickPersonality(rnd *rand.Rand) Personality {
	return archetypes[rnd.Intn(len(archetypes))]
}

// chatChance is the probability the bot speaks during one discussion phase.
func (p Personality) chatChance() float64 {
	return clamp01(0.3 + 0.4*p.Social)
}

// cardChance is the probability the bot plays a card during one phase.
func (p Personality) cardChance() float64 {
	return clamp01(0.3 + 0.4*p.Aggressive + 0.2*p.Social)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
