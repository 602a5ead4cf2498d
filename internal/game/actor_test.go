package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func testManager() *Manager {
	return NewManager(discardLogger(), ManagerOptions{})
}

func waitFor(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed while waiting for %s", typ)
			}
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestManagerCreateAndJoin(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(sum.GameID) != 6 || sum.Phase != PhaseWaiting || sum.MaxPlayers != DefaultMaxPlayers {
		t.Fatalf("summary %+v", sum)
	}

	pv, err := m.Join(ctx, sum.GameID, "Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if pv.ID == "" || pv.Name != "Alice" {
		t.Fatalf("player view %+v", pv)
	}

	// Lowercase join codes resolve too.
	if _, err := m.Join(ctx, " "+strings.ToLower(sum.GameID)+" ", "Bob", ""); err != nil {
		t.Fatalf("lowercase join: %v", err)
	}

	if _, err := m.Join(ctx, "NOSUCH", "Carol", ""); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("want ErrGameNotFound, got %v", err)
	}
}

func TestManagerPasscode(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1, Passcode: "snack"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sum.Private {
		t.Fatalf("expected a private table")
	}

	if _, err := m.Join(ctx, sum.GameID, "Alice", "wrong"); !errors.Is(err, ErrBadPasscode) {
		t.Fatalf("want ErrBadPasscode, got %v", err)
	}
	if _, err := m.Join(ctx, sum.GameID, "Alice", "snack"); err != nil {
		t.Fatalf("join with passcode: %v", err)
	}

	list := m.List()
	if len(list) != 1 || !list[0].Private {
		t.Fatalf("list %+v", list)
	}
}

func TestManagerDefaults(t *testing.T) {
	m := NewManager(discardLogger(), ManagerOptions{
		Defaults: Config{MaxPlayers: 4, InvestmentDuration: 5 * time.Second},
	})
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sum.MaxPlayers != 4 {
		t.Fatalf("defaults should apply, got %d seats", sum.MaxPlayers)
	}

	sum, err = m.CreateGame(ctx, Config{Seed: 1, MaxPlayers: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sum.MaxPlayers != 7 {
		t.Fatalf("explicit config should win, got %d seats", sum.MaxPlayers)
	}
}

func TestHandleConcurrentJoins(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1, MaxPlayers: 8})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := m.Join(ctx, sum.GameID, fmt.Sprintf("Player %d", n), ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent join: %v", err)
	}

	h, err := m.Game(sum.GameID)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	snap, err := h.Snapshot(ctx, "")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Players) != 5 {
		t.Fatalf("players %d want 5", len(snap.Players))
	}
	if h.Stamp().PlayerCount != 5 {
		t.Fatalf("stamp players %d want 5", h.Stamp().PlayerCount)
	}
}

func TestSubscribeDeliversEvents(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ch, cancel, err := m.Subscribe(sum.GameID, "", 32)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := m.Join(ctx, sum.GameID, "Alice", ""); err != nil {
		t.Fatalf("join: %v", err)
	}

	ev := waitFor(t, ch, EventPlayerJoined)
	joined := ev.Payload.(PlayerJoined)
	if joined.Player.Name != "Alice" {
		t.Fatalf("payload %+v", joined)
	}
	waitFor(t, ch, EventGameState)
}

func TestPrivateEventsAreGated(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	host, err := m.Join(ctx, sum.GameID, "Host", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, name := range []string{"Bob", "Carol"} {
		if _, err := m.Join(ctx, sum.GameID, name, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	hostCh, cancelHost, err := m.Subscribe(sum.GameID, host.ID, 64)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelHost()
	obsCh, cancelObs, err := m.Subscribe(sum.GameID, "", 64)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancelObs()

	h, err := m.Game(sum.GameID)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	if err := h.AdvancePhase(ctx, host.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	role := waitFor(t, hostCh, EventRoleAssigned)
	if role.To != host.ID {
		t.Fatalf("role event addressed to %q", role.To)
	}

	// Role assignments precede the phase change, so by the time the
	// observer sees phase_change any leak would already have arrived.
	deadline := time.After(2 * time.Second)
	for {
		var ev Event
		select {
		case ev = <-obsCh:
		case <-deadline:
			t.Fatalf("observer never saw the phase change")
		}
		if ev.Type == EventRoleAssigned || ev.Type == EventHandUpdate {
			t.Fatalf("observer must not receive private %s events", ev.Type)
		}
		if ev.Type == EventPhaseChange {
			return
		}
	}
}

func TestManagerFireDue(t *testing.T) {
	m := testManager()
	defer m.Stop()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	host, err := m.Join(ctx, sum.GameID, "Host", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, name := range []string{"Bob", "Carol"} {
		if _, err := m.Join(ctx, sum.GameID, name, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	h, err := m.Game(sum.GameID)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	clock := &testClock{now: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
	if _, err := h.do(ctx, func(g *Game) (any, error) {
		g.now = clock.Now
		return nil, nil
	}); err != nil {
		t.Fatalf("install clock: %v", err)
	}
	if err := h.AdvancePhase(ctx, host.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if fired := m.FireDue(ctx, clock.Now()); fired != 0 {
		t.Fatalf("nothing is due yet, fired %d", fired)
	}

	clock.advance(DefaultInvestmentDuration + time.Second)
	if fired := m.FireDue(ctx, clock.Now()); fired != 1 {
		t.Fatalf("fired %d want 1", fired)
	}
	if st := h.Stamp(); st.Phase != PhaseDiscussion {
		t.Fatalf("phase %s want discussion", st.Phase)
	}
}

func TestManagerReapsIdleLobbies(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ch, cancel, err := m.Subscribe(sum.GameID, "", 8)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if n := m.Reap(time.Now()); n != 0 {
		t.Fatalf("fresh lobby reaped")
	}
	if n := m.Reap(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("reaped %d want 1", n)
	}
	if _, err := m.Game(sum.GameID); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("want ErrGameNotFound, got %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			// Buffered events may drain first; the close must follow.
			for range ch {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber channel should close on reap")
	}
}

func TestClosedHandleRejectsCommands(t *testing.T) {
	m := testManager()
	ctx := context.Background()

	sum, err := m.CreateGame(ctx, Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h, err := m.Game(sum.GameID)
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	m.Stop()

	if _, err := h.Join(ctx, "Ghost"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("want ErrGameNotFound, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	m := testManager()
	defer m.Stop()

	sum, err := m.CreateGame(context.Background(), Config{Seed: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Join(ctx, sum.GameID, "Alice", ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
