package ai

import (
	"testing"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

func roundSnap(players ...game.PlayerView) game.Snapshot {
	return game.Snapshot{
		Players: players,
		Market: game.MarketView{Stocks: []game.StockSnapshot{
			{Symbol: "AAPL", PriceMicros: toast(150)},
		}},
	}
}

func TestSuspicionBaseline(t *testing.T) {
	a := NewAnalyzer()
	got := a.Suspicion("ghost")
	if got < 30 || got > 40 {
		t.Fatalf("baseline suspicion = %d, want the neutral band", got)
	}
}

func TestAccusersReadLessSuspiciousThanDefenders(t *testing.T) {
	a := NewAnalyzer()
	for range 3 {
		a.ObserveMessage("accuser", "that trade was really suspicious")
		a.ObserveMessage("defender", "i swear it wasn't me")
	}
	accuser := a.Suspicion("accuser")
	quiet := a.Suspicion("quiet")
	defender := a.Suspicion("defender")
	if !(accuser < quiet && quiet < defender) {
		t.Fatalf("suspicion order accuser=%d quiet=%d defender=%d, want ascending", accuser, quiet, defender)
	}
}

func TestObserveMessageIgnoresSystemLines(t *testing.T) {
	a := NewAnalyzer()
	a.ObserveMessage("", "Round 2 begins.")
	if len(a.players) != 0 {
		t.Fatalf("tracked %d players from a system line", len(a.players))
	}
}

func TestVotingPatternRewardsLandedVotes(t *testing.T) {
	a := NewAnalyzer()
	a.ObserveBallot(map[string][]string{
		"out":  {"sharp"},
		"stay": {"blunt"},
	}, []string{"out"})

	sharp := a.Suspicion("sharp")
	blunt := a.Suspicion("blunt")
	if sharp >= blunt {
		t.Fatalf("sharp=%d blunt=%d, want landed votes to score lower", sharp, blunt)
	}
	if diff := blunt - sharp; diff < 8 || diff > 12 {
		t.Fatalf("voting signal moved the score by %d, want about 10", diff)
	}
}

func TestObserveRoundBucketsStrategies(t *testing.T) {
	a := NewAnalyzer()

	steady := game.PlayerView{ID: "steady", IsAlive: true, NetWorthMicros: toast(10_000), Holdings: map[string]int64{}}
	flipper := game.PlayerView{ID: "flip", IsAlive: true, NetWorthMicros: toast(10_000)}

	flipper.Holdings = map[string]int64{"AAPL": 40}
	a.ObserveRound(roundSnap(steady, flipper))
	flipper.Holdings = map[string]int64{}
	a.ObserveRound(roundSnap(steady, flipper))
	a.ObserveRound(roundSnap(steady, flipper))

	s := a.Suspicion("steady")
	f := a.Suspicion("flip")
	if s < 48 || s > 57 {
		t.Fatalf("steady suspicion = %d, want the quiet-player band", s)
	}
	if f <= s {
		t.Fatalf("flipper=%d steady=%d, want erratic trading to score higher", f, s)
	}
}

func TestObserveRoundSkipsTheDead(t *testing.T) {
	a := NewAnalyzer()
	dead := game.PlayerView{ID: "dead", IsAlive: false, Holdings: map[string]int64{"AAPL": 5}}
	a.ObserveRound(roundSnap(dead))
	if b := a.players["dead"]; b != nil && b.rounds != 0 {
		t.Fatalf("counted %d rounds for an eliminated player", b.rounds)
	}
}

func TestHoldingsChanged(t *testing.T) {
	cases := []struct {
		name string
		prev map[string]int64
		cur  map[string]int64
		want bool
	}{
		{"both empty", map[string]int64{}, map[string]int64{}, false},
		{"nil prev empty cur", nil, map[string]int64{}, false},
		{"new position", map[string]int64{}, map[string]int64{"AAPL": 3}, true},
		{"resized position", map[string]int64{"AAPL": 3}, map[string]int64{"AAPL": 5}, true},
		{"closed position", map[string]int64{"AAPL": 3}, map[string]int64{}, true},
		{"unchanged", map[string]int64{"AAPL": 3}, map[string]int64{"AAPL": 3}, false},
	}
	for _, tc := range cases {
		if got := holdingsChanged(tc.prev, tc.cur); got != tc.want {
			t.Errorf("%s: holdingsChanged = %v, want %v", tc.name, got, tc.want)
		}
	}
}
