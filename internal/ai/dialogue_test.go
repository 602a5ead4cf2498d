package ai

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

func TestPickEmotionFollowsHeatThenPersonality(t *testing.T) {
	balanced := Personality{Aggressive: 0.5, Social: 0.5, Suspicious: 0.5}
	cases := []struct {
		name      string
		p         Personality
		suspicion int
		want      map[emotion]bool
	}{
		{"under fire", balanced, 70, map[emotion]bool{moodDefensive: true, moodAggressive: true}},
		{"warming seat", balanced, 40, map[emotion]bool{moodNervous: true, moodSuspicious: true}},
		{"hothead", Personality{Aggressive: 0.8}, 0, map[emotion]bool{moodAggressive: true, moodConfident: true}},
		{"chatterbox", Personality{Social: 0.9}, 0, map[emotion]bool{moodFriendly: true, moodAnalytical: true}},
		{"paranoid", Personality{Social: 0.3, Suspicious: 0.8}, 0, map[emotion]bool{moodSuspicious: true, moodAnalytical: true}},
		{"calm table", balanced, 0, map[emotion]bool{moodConfident: true, moodAnalytical: true, moodFriendly: true}},
	}
	rnd := rand.New(rand.NewSource(6))
	for _, tc := range cases {
		for range 100 {
			got := pickEmotion(tc.p, tc.suspicion, rnd)
			if !tc.want[got] {
				t.Fatalf("%s: emotion %q outside expected set", tc.name, got)
			}
		}
	}
}

func TestSpeakFillsEverySlot(t *testing.T) {
	rnd := rand.New(rand.NewSource(12))
	snap := game.Snapshot{
		Phase: game.PhaseDiscussion,
		Role:  game.RoleCivilian,
		Players: []game.PlayerView{
			{ID: "self", Name: "Me", IsAlive: true},
			{ID: "p2", Name: "Ruth", IsAlive: true},
		},
		Market: game.MarketView{Stocks: []game.StockSnapshot{{Symbol: "AAPL"}}},
	}
	for range 200 {
		line, ok := speak(Personality{Social: 0.9}, snap, "self", 0, rnd)
		if !ok {
			t.Fatal("speak returned nothing at a live table")
		}
		if line == "" || strings.ContainsAny(line, "{}") {
			t.Fatalf("unfilled template %q", line)
		}
	}
}

func TestSpeakAloneStaysSilentOrGeneric(t *testing.T) {
	rnd := rand.New(rand.NewSource(12))
	snap := game.Snapshot{
		Phase:   game.PhaseDiscussion,
		Players: []game.PlayerView{{ID: "self", Name: "Me", IsAlive: true}},
		Market:  game.MarketView{Stocks: []game.StockSnapshot{{Symbol: "AAPL"}}},
	}
	for range 200 {
		line, ok := speak(Personality{Suspicious: 0.8}, snap, "self", 80, rnd)
		if ok && strings.ContainsAny(line, "{}") {
			t.Fatalf("leaked template %q with nobody to name", line)
		}
	}
}

func TestChatCatalogShape(t *testing.T) {
	moods := []emotion{moodConfident, moodNervous, moodSuspicious, moodFriendly, moodAggressive, moodDefensive, moodAnalytical}
	for _, m := range moods {
		lines := chatLines[m]
		if len(lines) < 3 {
			t.Fatalf("emotion %q has only %d lines", m, len(lines))
		}
		for _, l := range lines {
			if strings.TrimSpace(l.text) == "" {
				t.Fatalf("emotion %q carries an empty line", m)
			}
			switch l.phase {
			case "", game.PhaseDiscussion, game.PhaseVoting:
			default:
				t.Fatalf("line %q is bound to unreachable phase %q", l.text, l.phase)
			}
		}
	}
	if len(fallbackLines) == 0 {
		t.Fatal("no fallback lines")
	}
}
