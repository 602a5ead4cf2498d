package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/db"
	"github.com/GGBond-gogo/mrtoast/internal/game"
)

// APIError is a non-2xx reply from the toast API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether the error is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type CreateOptions struct {
	MaxPlayers int    `json:"max_players,omitempty"`
	MaxRounds  int    `json:"max_rounds,omitempty"`
	MarketMode string `json:"market_mode,omitempty"`
	Passcode   string `json:"passcode,omitempty"`
	AIFill     *bool  `json:"ai_fill,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

type CreateReply struct {
	Game    game.GameSummary `json:"game"`
	JoinURL string           `json:"join_url"`
	Player  *game.PlayerView `json:"player,omitempty"`
	Token   string           `json:"token,omitempty"`
}

type JoinReply struct {
	Player game.PlayerView `json:"player"`
	Token  string          `json:"token"`
}

type AdvanceReply struct {
	Phase game.Phase `json:"phase"`
	Round int        `json:"round"`
}

func (c *Client) CreateGame(ctx context.Context, opts CreateOptions) (CreateReply, error) {
	var out CreateReply
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", "", opts, &out)
	return out, err
}

func (c *Client) Join(ctx context.Context, gameID, name, passcode string) (JoinReply, error) {
	var out JoinReply
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/join", "", map[string]any{
		"player_name": name,
		"passcode":    passcode,
	}, &out)
	return out, err
}

func (c *Client) Games(ctx context.Context) ([]game.GameSummary, error) {
	var out struct {
		Games []game.GameSummary `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games", "", nil, &out)
	return out.Games, err
}

// State fetches the snapshot. An empty token yields the public view.
func (c *Client) State(ctx context.Context, gameID, token string) (game.Snapshot, error) {
	var out game.Snapshot
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/games/"+url.PathEscape(gameID)+"/state", token, nil, &out)
	return out, err
}

func (c *Client) Invest(ctx context.Context, gameID, token, symbol, action string, shares int64) (game.TradeRecord, error) {
	var out game.TradeRecord
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/invest", token, map[string]any{
		"stock_symbol": symbol,
		"action":       action,
		"shares":       shares,
	}, &out)
	return out, err
}

func (c *Client) UseCard(ctx context.Context, gameID, token, cardID, targetID string) (game.CardPlayed, error) {
	var out game.CardPlayed
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/cards", token, map[string]any{
		"card_id":          cardID,
		"target_player_id": targetID,
	}, &out)
	return out, err
}

func (c *Client) Vote(ctx context.Context, gameID, token, targetID string) (map[string]int, error) {
	var out struct {
		Counts map[string]int `json:"vote_counts"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/votes", token, map[string]any{
		"target_player_id": targetID,
	}, &out)
	return out.Counts, err
}

func (c *Client) SendMessage(ctx context.Context, gameID, token, text string) (game.MessageView, error) {
	var out game.MessageView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/messages", token, map[string]any{
		"message": text,
	}, &out)
	return out, err
}

func (c *Client) Advance(ctx context.Context, gameID, token string) (AdvanceReply, error) {
	var out AdvanceReply
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/advance", token, nil, &out)
	return out, err
}

func (c *Client) AddAI(ctx context.Context, gameID, token string) (game.PlayerView, error) {
	var out game.PlayerView
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games/"+url.PathEscape(gameID)+"/ai", token, nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, limit int) ([]db.GameRow, error) {
	var out struct {
		Games []db.GameRow `json:"games"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, historyPath("/v1/history", limit), "", nil, &out)
	return out.Games, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]db.LeaderboardRow, error) {
	var out struct {
		Leaders []db.LeaderboardRow `json:"leaders"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, historyPath("/v1/leaderboard", limit), "", nil, &out)
	return out.Leaders, err
}

// JoinURL is the public address players scan or type to join a table.
func (c *Client) JoinURL(gameID string) string {
	return c.BaseURL + "/join/" + game.NormalizeGameID(gameID)
}

func historyPath(base string, limit int) string {
	if limit <= 0 {
		return base
	}
	return fmt.Sprintf("%s?limit=%d", base, limit)
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			msg = envelope.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
