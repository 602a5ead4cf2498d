package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/cli"
	"github.com/GGBond-gogo/mrtoast/internal/game"
	"github.com/GGBond-gogo/mrtoast/internal/outbox"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLobby is a minimal stand-in for the toast API.
type fakeLobby struct {
	mu    sync.Mutex
	games []game.GameSummary
	snaps map[string]game.Snapshot
}

func (f *fakeLobby) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/games", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"games": f.games})
	})
	mux.HandleFunc("/v1/games/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/games/"), "/state")
		f.mu.Lock()
		snap, ok := f.snaps[id]
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "game not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(snap)
	})
	return mux
}

func (f *fakeLobby) set(sum game.GameSummary, snap game.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i := range f.games {
		if f.games[i].GameID == sum.GameID {
			f.games[i] = sum
			found = true
		}
	}
	if !found {
		f.games = append(f.games, sum)
	}
	if f.snaps == nil {
		f.snaps = make(map[string]game.Snapshot)
	}
	f.snaps[sum.GameID] = snap
}

func (f *fakeLobby) remove(gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := f.games[:0]
	for _, g := range f.games {
		if g.GameID != gameID {
			keep = append(keep, g)
		}
	}
	f.games = keep
	delete(f.snaps, gameID)
}

// memoNotifier records lines and can be toggled to fail.
type memoNotifier struct {
	name  string
	only  string
	fail  bool
	lines []string
}

func (m *memoNotifier) Name() string { return m.name }

func (m *memoNotifier) Wants(kind string) bool {
	return m.only == "" || m.only == kind
}

func (m *memoNotifier) Notify(_ context.Context, text string) error {
	if m.fail {
		return errors.New("transport down")
	}
	m.lines = append(m.lines, text)
	return nil
}

func (m *memoNotifier) joined() string { return strings.Join(m.lines, "\n") }

func newRelayFixture(t *testing.T, notifiers ...Notifier) (*Relay, *fakeLobby) {
	t.Helper()
	lobby := &fakeLobby{}
	ts := httptest.NewServer(lobby.handler())
	t.Cleanup(ts.Close)
	box := outbox.New(filepath.Join(t.TempDir(), "outbox.json"))
	r := NewRelay(cli.NewClient(ts.URL), box, time.Second, discardLogger(), notifiers...)
	return r, lobby
}

func waitingTable(id string, players int) game.GameSummary {
	return game.GameSummary{GameID: id, Phase: game.PhaseWaiting, Players: players, MaxPlayers: 6}
}

func TestFirstPollPrimesSilently(t *testing.T) {
	n := &memoNotifier{name: "discord"}
	r, lobby := newRelayFixture(t, n)
	lobby.set(waitingTable("AAAAAA", 1), game.Snapshot{GameID: "AAAAAA"})

	r.poll(context.Background())
	if len(n.lines) != 0 {
		t.Fatalf("primer announced: %v", n.lines)
	}

	lobby.set(waitingTable("BBBBBB", 2), game.Snapshot{GameID: "BBBBBB"})
	r.poll(context.Background())
	if len(n.lines) != 1 || !strings.Contains(n.lines[0], "BBBBBB") {
		t.Fatalf("lines = %v", n.lines)
	}
	if !strings.Contains(n.lines[0], "2/6 seats") {
		t.Fatalf("open line = %q", n.lines[0])
	}
}

func TestRelayNarratesPhasesAndEliminations(t *testing.T) {
	n := &memoNotifier{name: "discord"}
	r, lobby := newRelayFixture(t, n)

	sum := game.GameSummary{GameID: "CCCCCC", Phase: game.PhaseInvestment, Round: 1, Players: 4, MaxPlayers: 6}
	snap := game.Snapshot{
		GameID: "CCCCCC",
		Players: []game.PlayerView{
			{ID: "p1", Name: "Hana", IsAlive: true},
			{ID: "p2", Name: "Ravi", IsAlive: true},
		},
	}
	lobby.set(sum, snap)
	r.poll(context.Background())

	sum.Phase = game.PhaseDiscussion
	lobby.set(sum, snap)
	r.poll(context.Background())
	if len(n.lines) != 1 || !strings.Contains(n.lines[0], "discussion") {
		t.Fatalf("lines = %v", n.lines)
	}

	sum.Phase = game.PhaseVoting
	lobby.set(sum, snap)
	r.poll(context.Background())

	sum.Phase = game.PhaseInvestment
	sum.Round = 2
	snap.Round = 2
	snap.Eliminated = []string{"p2"}
	snap.Players[1].IsAlive = false
	lobby.set(sum, snap)
	r.poll(context.Background())

	out := n.joined()
	if !strings.Contains(out, "Ravi was voted off") {
		t.Fatalf("no elimination line in %q", out)
	}
	if !strings.Contains(out, "Round 2 trading is open") {
		t.Fatalf("no round line in %q", out)
	}

	// The same elimination must not be announced twice.
	before := len(n.lines)
	sum.Round = 3
	lobby.set(sum, snap)
	r.poll(context.Background())
	var fresh []string
	fresh = append(fresh, n.lines[before:]...)
	for _, line := range fresh {
		if strings.Contains(line, "voted off") {
			t.Fatalf("elimination repeated: %v", fresh)
		}
	}
}

func TestRelayReportsGameEnd(t *testing.T) {
	discord := &memoNotifier{name: "discord"}
	wa := &memoNotifier{name: "whatsapp", only: KindEnded}
	r, lobby := newRelayFixture(t, discord, wa)

	sum := game.GameSummary{GameID: "DDDDDD", Phase: game.PhaseVoting, Round: 3, Players: 4, MaxPlayers: 6}
	snap := game.Snapshot{GameID: "DDDDDD", Round: 3}
	lobby.set(sum, snap)
	r.poll(context.Background())

	sum.Phase = game.PhaseGameEnd
	snap.Phase = game.PhaseGameEnd
	snap.Winner = game.RoleCivilian
	snap.Players = []game.PlayerView{
		{ID: "p1", Name: "Hana", NetWorthMicros: 12_000 * game.MicrosPerToast},
		{ID: "p2", Name: "Ravi", NetWorthMicros: 9_000 * game.MicrosPerToast},
	}
	lobby.set(sum, snap)
	r.poll(context.Background())

	if len(wa.lines) != 1 {
		t.Fatalf("whatsapp lines = %v", wa.lines)
	}
	line := wa.lines[0]
	if !strings.Contains(line, "civilian side wins") || !strings.Contains(line, "Hana") {
		t.Fatalf("end line = %q", line)
	}
	if discord.joined() != line {
		t.Fatalf("discord saw %q, want only the end line", discord.joined())
	}
}

func TestRelayParksAndRetriesThroughOutbox(t *testing.T) {
	n := &memoNotifier{name: "discord", fail: true}
	r, lobby := newRelayFixture(t, n)

	lobby.set(waitingTable("EEEEEE", 1), game.Snapshot{GameID: "EEEEEE"})
	r.poll(context.Background())

	lobby.set(waitingTable("FFFFFF", 1), game.Snapshot{GameID: "FFFFFF"})
	r.poll(context.Background())

	parked, err := r.box.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(parked) != 1 || parked[0].Channel != "discord" {
		t.Fatalf("parked = %+v", parked)
	}

	n.fail = false
	r.poll(context.Background())
	if len(n.lines) == 0 || !strings.Contains(n.lines[0], "FFFFFF") {
		t.Fatalf("retry did not deliver the parked line: %v", n.lines)
	}
	left, err := r.box.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("outbox still holds %+v", left)
	}
}

func TestRelayForgetsReapedTables(t *testing.T) {
	n := &memoNotifier{name: "discord"}
	r, lobby := newRelayFixture(t, n)

	lobby.set(waitingTable("GGGGGG", 1), game.Snapshot{GameID: "GGGGGG"})
	r.poll(context.Background())
	if len(r.known) != 1 {
		t.Fatalf("known = %d", len(r.known))
	}

	lobby.remove("GGGGGG")
	r.poll(context.Background())
	if len(r.known) != 0 {
		t.Fatalf("reaped table still tracked: %v", r.known)
	}
}
