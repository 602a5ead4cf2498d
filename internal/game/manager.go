package game

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/auth"
)

// Archiver persists finished games. Implementations must be safe for
// concurrent use; a nil Archiver disables archiving.
type Archiver interface {
	Archive(ctx context.Context, rec ArchiveRecord) error
}

const (
	endedRetention   = 5 * time.Minute
	waitingRetention = time.Hour
	archiveTimeout   = 10 * time.Second
)

type entry struct {
	h            *Handle
	created      time.Time
	maxPlayers   int
	private      bool
	passcodeHash []byte
}

// GameSummary is one row of the public lobby list.
type GameSummary struct {
	GameID     string    `json:"game_id"`
	Phase      Phase     `json:"phase"`
	Round      int       `json:"round"`
	Players    int       `json:"players"`
	MaxPlayers int       `json:"max_players"`
	Private    bool      `json:"private"`
	CreatedAt  time.Time `json:"created_at"`
}

// Manager tracks every live game in the process.
type Manager struct {
	log      *slog.Logger
	archive  Archiver
	defaults Config

	mu    sync.RWMutex
	games map[string]*entry
}

type ManagerOptions struct {
	// Defaults backfills unset fields of each per-game Config.
	Defaults Config
	Archive  Archiver
}

func NewManager(logger *slog.Logger, opts ManagerOptions) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		log:      logger,
		archive:  opts.Archive,
		defaults: opts.Defaults,
		games:    make(map[string]*entry),
	}
}

// CreateGame opens a new table. A non-empty cfg.Passcode makes it
// private; the passcode is hashed here and never stored in the clear.
func (m *Manager) CreateGame(ctx context.Context, cfg Config) (GameSummary, error) {
	cfg = m.defaults.overlay(cfg).withDefaults()

	var hash []byte
	if cfg.Passcode != "" {
		var err error
		hash, err = auth.HashPasscode(cfg.Passcode)
		if err != nil {
			return GameSummary{}, fmt.Errorf("hash passcode: %w", err)
		}
		cfg.Passcode = ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var id string
	for range 8 {
		candidate := NewGameID()
		if _, taken := m.games[candidate]; !taken {
			id = candidate
			break
		}
	}
	if id == "" {
		return GameSummary{}, fmt.Errorf("could not allocate a free game code")
	}

	g := NewGame(id, cfg, m.log)
	e := &entry{
		h:            newHandle(g, m.archiveHook(id)),
		created:      time.Now(),
		maxPlayers:   cfg.MaxPlayers,
		private:      len(hash) > 0,
		passcodeHash: hash,
	}
	m.games[id] = e
	m.log.Info("game created",
		"game_id", id,
		"max_players", cfg.MaxPlayers,
		"market_mode", cfg.MarketMode,
		"private", e.private,
	)
	return summarize(id, e), nil
}

// Join seats a player, checking the passcode on private tables.
func (m *Manager) Join(ctx context.Context, gameID, name, passcode string) (PlayerView, error) {
	e, err := m.lookup(gameID)
	if err != nil {
		return PlayerView{}, err
	}
	if e.private {
		if err := auth.VerifyPasscode(e.passcodeHash, passcode); err != nil {
			return PlayerView{}, ErrBadPasscode
		}
	}
	return e.h.Join(ctx, name)
}

// Game returns the live handle for a join code.
func (m *Manager) Game(id string) (*Handle, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.h, nil
}

// Subscribe attaches an event stream to a game. An empty playerID
// observes public events only.
func (m *Manager) Subscribe(gameID, playerID string, buf int) (<-chan Event, func(), error) {
	e, err := m.lookup(gameID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := e.h.Subscribe(playerID, buf)
	return ch, cancel, nil
}

// List returns every live game, newest first.
func (m *Manager) List() []GameSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]GameSummary, 0, len(m.games))
	for id, e := range m.games {
		out = append(out, summarize(id, e))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// FireDue advances every game whose phase deadline has passed and
// returns how many moved. Safe to call from a ticker at any cadence.
func (m *Manager) FireDue(ctx context.Context, now time.Time) int {
	type due struct {
		h  *Handle
		st PhaseStamp
	}
	m.mu.RLock()
	var dues []due
	for _, e := range m.games {
		st := e.h.Stamp()
		if !st.Phase.Active() || st.Deadline.IsZero() || now.Before(st.Deadline) {
			continue
		}
		dues = append(dues, due{h: e.h, st: st})
	}
	m.mu.RUnlock()

	fired := 0
	for _, d := range dues {
		ok, err := d.h.ForceTimeout(ctx, d.st.Phase, d.st.Round)
		if err != nil {
			continue
		}
		if ok {
			fired++
		}
	}
	return fired
}

// Reap drops finished games past their retention window and waiting
// lobbies nobody has touched for an hour. Returns the number removed.
func (m *Manager) Reap(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.games {
		st := e.h.Stamp()
		expired := (st.Phase == PhaseGameEnd && now.Sub(st.Touched) > endedRetention) ||
			(st.Phase == PhaseWaiting && now.Sub(st.Touched) > waitingRetention)
		if !expired {
			continue
		}
		e.h.Close()
		delete(m.games, id)
		m.log.Info("game reaped", "game_id", id, "phase", st.Phase)
		n++
	}
	return n
}

// Stop closes every game. Used on server shutdown.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.games {
		e.h.Close()
		delete(m.games, id)
	}
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.games[NormalizeGameID(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return e, nil
}

func (m *Manager) archiveHook(id string) func(ArchiveRecord) {
	if m.archive == nil {
		return nil
	}
	return func(rec ArchiveRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := m.archive.Archive(ctx, rec); err != nil {
			m.log.Error("archive game", "game_id", id, "error", err)
		}
	}
}

func summarize(id string, e *entry) GameSummary {
	st := e.h.Stamp()
	return GameSummary{
		GameID:     id,
		Phase:      st.Phase,
		Round:      st.Round,
		Players:    st.PlayerCount,
		MaxPlayers: e.maxPlayers,
		Private:    e.private,
		CreatedAt:  e.created,
	}
}
