package game

import (
	mathrand "math/rand"

	"github.com/google/uuid"
)

// cardSpec is one card template. Effect quantities are constants of the
// template; rarity only weights the draw.
type cardSpec struct {
	Key            string
	Name           string
	Type           CardType
	Rarity         Rarity
	Description    string
	NeedsTarget    bool
	UndercoverOnly bool
}

var cardCatalog = []cardSpec{
	{
		Key:         "good_news",
		Name:        "Good News",
		Type:        CardMarketNews,
		Rarity:      RarityCommon,
		Description: "A random stock rallies 10% at the next price update.",
	},
	{
		Key:         "market_crash",
		Name:        "Market Crash",
		Type:        CardMarketNews,
		Rarity:      RarityRare,
		Description: "Every stock drops 15% at the next price update.",
	},
	{
		Key:         "insider_info",
		Name:        "Insider Info",
		Type:        CardMarketNews,
		Rarity:      RarityEpic,
		Description: "Privately learn the next round's market direction and queued news.",
	},
	{
		Key:         "freeze_funds",
		Name:        "Frozen Funds",
		Type:        CardEventCrisis,
		Rarity:      RarityCommon,
		Description: "The target cannot invest during the next round.",
		NeedsTarget: true,
	},
	{
		Key:         "audit_storm",
		Name:        "Audit Storm",
		Type:        CardEventCrisis,
		Rarity:      RarityRare,
		Description: "Every living player's trades this round are made public.",
	},
	{
		Key:         "build_trust",
		Name:        "Build Trust",
		Type:        CardRoleInteraction,
		Rarity:      RarityCommon,
		Description: "Raise the target's trust by 20 and your own by 10.",
		NeedsTarget: true,
	},
	{
		Key:         "spread_rumor",
		Name:        "Spread Rumor",
		Type:        CardRoleInteraction,
		Rarity:      RarityCommon,
		Description: "Raise the target's suspicion by 15.",
		NeedsTarget: true,
	},
	{
		Key:            "disguise",
		Name:           "Disguise",
		Type:           CardUndercoverSpecial,
		Rarity:         RarityRare,
		Description:    "Lower your own suspicion by 25.",
		UndercoverOnly: true,
	},
	{
		Key:            "frame_up",
		Name:           "Frame-Up",
		Type:           CardUndercoverSpecial,
		Rarity:         RarityEpic,
		Description:    "Raise the target's suspicion by 30.",
		NeedsTarget:    true,
		UndercoverOnly: true,
	},
	{
		Key:         "conflict",
		Name:        "Conflict of Interest",
		Type:        CardFamilySplit,
		Rarity:      RarityRare,
		Description: "Two random other players each gain 10 suspicion.",
	},
	{
		Key:         "vote_control",
		Name:        "Vote Control",
		Type:        CardConspiracyTrap,
		Rarity:      RarityEpic,
		Description: "This round the target's vote is replaced by yours at the close.",
		NeedsTarget: true,
	},
	{
		Key:         "media_exposure",
		Name:        "Media Exposure",
		Type:        CardPublicOpinion,
		Rarity:      RarityLegendary,
		Description: "Publicly reveal the target's role.",
		NeedsTarget: true,
	},
}

var rarityWeights = []struct {
	Rarity Rarity
	Weight int
}{
	{RarityCommon, 50},
	{RarityRare, 30},
	{RarityEpic, 15},
	{RarityLegendary, 5},
}

func cardSpecByKey(key string) (cardSpec, bool) {
	for _, spec := range cardCatalog {
		if spec.Key == key {
			return spec, true
		}
	}
	return cardSpec{}, false
}

// Deck draws card instances with rarity-weighted template selection.
type Deck struct {
	rnd      *mathrand.Rand
	byRarity map[Rarity][]cardSpec
}

func newDeck(rnd *mathrand.Rand) *Deck {
	d := &Deck{rnd: rnd, byRarity: make(map[Rarity][]cardSpec)}
	for _, spec := range cardCatalog {
		d.byRarity[spec.Rarity] = append(d.byRarity[spec.Rarity], spec)
	}
	return d
}

// Draw picks a rarity by weight, then a template uniformly within it.
func (d *Deck) Draw() Card {
	total := 0
	for _, rw := range rarityWeights {
		total += rw.Weight
	}
	roll := d.rnd.Intn(total)
	rarity := rarityWeights[len(rarityWeights)-1].Rarity
	for _, rw := range rarityWeights {
		if roll < rw.Weight {
			rarity = rw.Rarity
			break
		}
		roll -= rw.Weight
	}
	pool := d.byRarity[rarity]
	spec := pool[d.rnd.Intn(len(pool))]
	return Card{ID: uuid.NewString(), Key: spec.Key}
}

func (d *Deck) DrawN(n int) []Card {
	out := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.Draw())
	}
	return out
}
