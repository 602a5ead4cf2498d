package ai

import (
	"math/rand"
	"strings"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

type emotion string

const (
	moodConfident  emotion = "confident"
	moodNervous    emotion = "nervous"
	moodSuspicious emotion = "suspicious"
	moodFriendly   emotion = "friendly"
	moodAggressive emotion = "aggressive"
	moodDefensive  emotion = "defensive"
	moodAnalytical emotion = "analytical"
)

// chatLine is one template. Empty phase or role means it fits anywhere.
// {player} and {stock} are filled from the live table.
type chatLine struct {
	text  string
	phase game.Phase
	role  game.Role
}

var chatLines = map[emotion][]chatLine{
	moodConfident: {
		{text: "My portfolio speaks for itself."},
		{text: "{stock} was the obvious play this round."},
		{text: "I know exactly who I'm voting for.", phase: game.PhaseVoting},
		{text: "Easy money if you read the market right."},
		{text: "My books are open. Audit me whenever.", role: game.RoleCivilian},
	},
	moodNervous: {
		{text: "This round feels off somehow."},
		{text: "I really hope I read {stock} right."},
		{text: "Can we not point fingers at me, please?"},
		{text: "These swings are making me sweat."},
	},
	moodSuspicious: {
		{text: "Has anyone else been watching {player}'s trades?"},
		{text: "{player} went quiet right when the market crashed. Interesting."},
		{text: "Someone at this table is dumping on purpose."},
		{text: "I don't buy {player}'s story for a second.", phase: game.PhaseDiscussion},
	},
	moodFriendly: {
		{text: "Good round, everyone. Well, for most of us."},
		{text: "{player}, that was a sharp call on {stock}."},
		{text: "Whatever happens with the vote, no hard feelings."},
		{text: "Anyone want to compare notes on {stock}?"},
	},
	moodAggressive: {
		{text: "{player} is playing us. Vote them out.", phase: game.PhaseVoting},
		{text: "Stop stalling and look at {player}'s numbers."},
		{text: "I'm going all in. Cowards don't win this game."},
		{text: "Someone tanked {stock} and I want a name."},
	},
	moodDefensive: {
		{text: "I lost money on that trade too, you know."},
		{text: "Check my trades, they're completely normal."},
		{text: "Why me? {player} has been way shadier."},
		{text: "I swear I'm playing this straight."},
		{text: "Forget about me, the real story is {stock}.", role: game.RoleUndercover},
	},
	moodAnalytical: {
		{text: "{stock} is moving against the trend. Worth watching."},
		{text: "The volume on {stock} doesn't match the story here."},
		{text: "Vote on patterns, not on vibes.", phase: game.PhaseVoting},
		{text: "Three rounds of data and {player}'s trades still make no sense."},
	},
}

var fallbackLines = []string{
	"Interesting round.",
	"Let's see how this plays out.",
	"The market never lies. People do.",
}

// pickEmotion mirrors how the bot feels about the table. Heat on itself
// comes first, then personality.
func pickEmotion(p Personality, ownSuspicion int, rnd *rand.Rand) emotion {
	switch {
	case ownSuspicion > 60:
		if rnd.Float64() < 0.7 {
			return moodDefensive
		}
		return moodAggressive
	case ownSuspicion > 30:
		if rnd.Float64() < 0.6 {
			return moodNervous
		}
		return moodSuspicious
	case p.Aggressive > 0.7:
		if rnd.Float64() < 0.6 {
			return moodAggressive
		}
		return moodConfident
	case p.Social > 0.7:
		if rnd.Float64() < 0.7 {
			return moodFriendly
		}
		return moodAnalytical
	case p.Suspicious > 0.7:
		if rnd.Float64() < 0.8 {
			return moodSuspicious
		}
		return moodAnalytical
	}
	calm := []emotion{moodConfident, moodAnalytical, moodFriendly}
	return calm[rnd.Intn(len(calm))]
}

// speak produces one line of table talk for the bot, or false when no
// template fits the moment.
func speak(p Personality, snap game.Snapshot, selfID string, ownSuspicion int, rnd *rand.Rand) (string, bool) {
	mood := pickEmotion(p, ownSuspicion, rnd)
	role := snap.Role

	fits := make([]chatLine, 0, 8)
	for _, l := range chatLines[mood] {
		if l.phase != "" && l.phase != snap.Phase {
			continue
		}
		if l.role != "" && l.role != role {
			continue
		}
		fits = append(fits, l)
	}
	var text string
	if len(fits) > 0 {
		text = fits[rnd.Intn(len(fits))].text
	} else {
		text = fallbackLines[rnd.Intn(len(fallbackLines))]
	}
	return fillSlots(text, snap, selfID, rnd)
}

func fillSlots(text string, snap game.Snapshot, selfID string, rnd *rand.Rand) (string, bool) {
	if strings.Contains(text, "{player}") {
		others := make([]string, 0, len(snap.Players))
		for _, pl := range snap.Players {
			if pl.ID != selfID && pl.IsAlive {
				others = append(others, pl.Name)
			}
		}
		if len(others) == 0 {
			return "", false
		}
		text = strings.ReplaceAll(text, "{player}", others[rnd.Intn(len(others))])
	}
	if strings.Contains(text, "{stock}") {
		if len(snap.Market.Stocks) == 0 {
			return "", false
		}
		sym := snap.Market.Stocks[rnd.Intn(len(snap.Market.Stocks))].Symbol
		text = strings.ReplaceAll(text, "{stock}", sym)
	}
	return text, true
}
