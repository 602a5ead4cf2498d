package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id    TEXT PRIMARY KEY,
	winner     TEXT NOT NULL,
	rounds     INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS game_players (
	game_id          TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
	player_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	role             TEXT NOT NULL,
	is_ai            BOOLEAN NOT NULL,
	alive            BOOLEAN NOT NULL,
	net_worth_micros BIGINT NOT NULL,
	suspicion        INT NOT NULL,
	trust            INT NOT NULL,
	won              BOOLEAN NOT NULL,
	PRIMARY KEY (game_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_game_players_name ON game_players (name);
`

// Store archives finished games. Live games never touch the database;
// this is purely the trophy shelf.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, log: logger}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Archive writes one finished game and its final standings. Re-archiving
// the same game id is a no-op so delivery may be retried.
func (s *Store) Archive(ctx context.Context, rec game.ArchiveRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO games (game_id, winner, rounds, created_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (game_id) DO NOTHING`,
		rec.GameID, string(rec.Winner), rec.Rounds, rec.CreatedAt, rec.EndedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	for _, p := range rec.Players {
		if _, err := tx.Exec(ctx,
			`INSERT INTO game_players
			 (game_id, player_id, name, role, is_ai, alive, net_worth_micros, suspicion, trust, won)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.GameID, p.ID, p.Name, string(p.Role), p.IsAI, p.Alive,
			p.NetWorthMicros, p.Suspicion, p.Trust, p.Role == rec.Winner); err != nil {
			return fmt.Errorf("insert player %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

// GameRow is one archived game in list form.
type GameRow struct {
	GameID    string    `json:"game_id"`
	Winner    string    `json:"winner"`
	Rounds    int       `json:"rounds"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"created_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// History lists the most recently finished games.
func (s *Store) History(ctx context.Context, limit int) ([]GameRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT g.game_id, g.winner, g.rounds, g.created_at, g.ended_at,
		        count(p.player_id)
		   FROM games g
		   LEFT JOIN game_players p USING (game_id)
		  GROUP BY g.game_id
		  ORDER BY g.ended_at DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]GameRow, 0, limit)
	for rows.Next() {
		var row GameRow
		if err := rows.Scan(&row.GameID, &row.Winner, &row.Rounds, &row.CreatedAt, &row.EndedAt, &row.Players); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LeaderboardRow aggregates one human player's archived results by name.
type LeaderboardRow struct {
	Name            string `json:"name"`
	Games           int    `json:"games"`
	Wins            int    `json:"wins"`
	BestWorthMicros int64  `json:"best_net_worth_micros"`
}

// Leaderboard ranks human players by wins, then by their best finishing
// net worth. Bots are excluded.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT name,
		        count(*) AS games,
		        count(*) FILTER (WHERE won) AS wins,
		        max(net_worth_micros) AS best
		   FROM game_players
		  WHERE NOT is_ai
		  GROUP BY name
		  ORDER BY wins DESC, best DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]LeaderboardRow, 0, limit)
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Name, &row.Games, &row.Wins, &row.BestWorthMicros); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
