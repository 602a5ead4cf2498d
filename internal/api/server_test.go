package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GGBond-gogo/mrtoast/internal/auth"
	"github.com/GGBond-gogo/mrtoast/internal/config"
	"github.com/GGBond-gogo/mrtoast/internal/game"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type apiFixture struct {
	ts     *httptest.Server
	mgr    *game.Manager
	signer *auth.Signer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mgr := game.NewManager(discardLogger(), game.ManagerOptions{
		Defaults: game.Config{
			InvestmentDuration: time.Hour,
			DiscussionDuration: time.Hour,
			VotingDuration:     time.Hour,
		},
	})
	signer := auth.NewSigner([]byte("test-secret"), time.Hour)
	cfg := config.APIConfig{PublicBaseURL: "http://toast.test"}
	srv := New(cfg, discardLogger(), signer, mgr, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		mgr.Stop()
	})
	return &apiFixture{ts: ts, mgr: mgr, signer: signer}
}

// call issues a JSON request and decodes the JSON reply.
func (f *apiFixture) call(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, out
}

// seat creates a table with a seated host and returns ids and token.
func (f *apiFixture) seat(t *testing.T, body map[string]any) (gameID, playerID, token string) {
	t.Helper()
	if body == nil {
		body = map[string]any{}
	}
	body["player_name"] = "Hana"
	status, out := f.call(t, http.MethodPost, "/v1/games", "", body)
	if status != http.StatusCreated {
		t.Fatalf("create = %d %v", status, out)
	}
	sum, _ := out["game"].(map[string]any)
	player, _ := out["player"].(map[string]any)
	tok, _ := out["token"].(string)
	if sum == nil || player == nil || tok == "" {
		t.Fatalf("create reply missing fields: %v", out)
	}
	return sum["game_id"].(string), player["player_id"].(string), tok
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	status, out := f.call(t, http.MethodGet, "/healthz", "", nil)
	if status != http.StatusOK || out["ok"] != true {
		t.Fatalf("healthz = %d %v", status, out)
	}
}

func TestCreateListsAndJoins(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, _ := f.seat(t, map[string]any{"max_players": 5})

	status, out := f.call(t, http.MethodGet, "/v1/games", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d %v", status, out)
	}
	games, _ := out["games"].([]any)
	if len(games) != 1 {
		t.Fatalf("lobby has %d games, want 1", len(games))
	}
	row := games[0].(map[string]any)
	if row["game_id"] != gameID || row["players"] != float64(1) {
		t.Fatalf("lobby row = %v", row)
	}

	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/join", "", map[string]any{"player_name": "Ravi"})
	if status != http.StatusOK {
		t.Fatalf("join = %d %v", status, out)
	}
	if tok, _ := out["token"].(string); tok == "" {
		t.Fatalf("join reply missing token: %v", out)
	}
}

func TestJoinAcceptsLowercaseCode(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, _ := f.seat(t, nil)
	status, out := f.call(t, http.MethodPost, "/v1/games/"+strings.ToLower(gameID)+"/join", "", map[string]any{"player_name": "Ravi"})
	if status != http.StatusOK {
		t.Fatalf("lowercase join = %d %v", status, out)
	}
}

func TestPrivateTableNeedsPasscode(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, _ := f.seat(t, map[string]any{"passcode": "crumbs"})

	status, out := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/join", "", map[string]any{"player_name": "Ravi", "passcode": "wrong"})
	if status != http.StatusForbidden {
		t.Fatalf("wrong passcode = %d %v", status, out)
	}
	status, _ = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/join", "", map[string]any{"player_name": "Ravi", "passcode": "crumbs"})
	if status != http.StatusOK {
		t.Fatalf("right passcode = %d", status)
	}
}

func TestStatePersonalizesWithToken(t *testing.T) {
	f := newAPIFixture(t)
	gameID, playerID, token := f.seat(t, nil)

	status, out := f.call(t, http.MethodGet, "/v1/games/"+gameID+"/state", "", nil)
	if status != http.StatusOK {
		t.Fatalf("public state = %d %v", status, out)
	}
	if _, ok := out["you"]; ok {
		t.Fatalf("public snapshot leaked a viewer: %v", out["you"])
	}

	status, out = f.call(t, http.MethodGet, "/v1/games/"+gameID+"/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("private state = %d %v", status, out)
	}
	you, _ := out["you"].(map[string]any)
	if you == nil || you["player_id"] != playerID {
		t.Fatalf("personalized snapshot missing viewer: %v", out["you"])
	}
}

func TestStateUnknownGame(t *testing.T) {
	f := newAPIFixture(t)
	status, out := f.call(t, http.MethodGet, "/v1/games/ZZZZZZ/state", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown game = %d %v", status, out)
	}
}

func TestSeatRoutesRejectBadTokens(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, _ := f.seat(t, nil)

	status, _ := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/advance", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", status)
	}

	status, _ = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/advance", "garbage", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d, want 401", status)
	}

	other, err := f.signer.Mint("ZZZZZZ", "someone", "Else", time.Now())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	status, out := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/advance", other, nil)
	if status != http.StatusForbidden {
		t.Fatalf("foreign token = %d %v, want 403", status, out)
	}
}

func TestPlayThroughInvestment(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, token := f.seat(t, map[string]any{"max_players": 5})

	status, out := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/advance", token, nil)
	if status != http.StatusOK || out["phase"] != "investment" {
		t.Fatalf("advance = %d %v", status, out)
	}

	status, out = f.call(t, http.MethodGet, "/v1/games/"+gameID+"/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("state = %d %v", status, out)
	}
	market, _ := out["stock_market"].(map[string]any)
	stocks, _ := market["stocks"].([]any)
	if len(stocks) == 0 {
		t.Fatal("market has no stocks")
	}
	symbol := stocks[0].(map[string]any)["symbol"].(string)

	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/invest", token, map[string]any{
		"stock_symbol": symbol, "action": "buy", "shares": 1,
	})
	if status != http.StatusOK {
		t.Fatalf("invest = %d %v", status, out)
	}
	if out["symbol"] != symbol || out["shares"] != float64(1) {
		t.Fatalf("trade = %v", out)
	}

	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/messages", token, map[string]any{"message": "watch the tape"})
	if status != http.StatusOK || out["message"] != "watch the tape" {
		t.Fatalf("message = %d %v", status, out)
	}
}

func TestDomainErrorStatuses(t *testing.T) {
	f := newAPIFixture(t)
	gameID, playerID, token := f.seat(t, map[string]any{"max_players": 5})

	// Voting before the table starts is a phase violation.
	status, out := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/votes", token, map[string]any{"target_player_id": playerID})
	if status != http.StatusConflict {
		t.Fatalf("vote in lobby = %d %v, want 409", status, out)
	}

	if status, out := f.call(t, http.MethodPost, "/v1/games/"+gameID+"/advance", token, nil); status != http.StatusOK {
		t.Fatalf("advance = %d %v", status, out)
	}

	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/invest", token, map[string]any{
		"stock_symbol": "not a ticker", "action": "buy", "shares": 1,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("bad symbol = %d %v, want 400", status, out)
	}

	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/invest", token, map[string]any{
		"stock_symbol": "ZZZZ", "action": "buy", "shares": 1,
	})
	if status != http.StatusNotFound {
		t.Fatalf("unknown symbol = %d %v, want 404", status, out)
	}

	// A million shares of anything outruns the starting bankroll.
	stStatus, st := f.call(t, http.MethodGet, "/v1/games/"+gameID+"/state", "", nil)
	if stStatus != http.StatusOK {
		t.Fatalf("state = %d", stStatus)
	}
	market, _ := st["stock_market"].(map[string]any)
	stocks, _ := market["stocks"].([]any)
	symbol := stocks[0].(map[string]any)["symbol"].(string)
	status, out = f.call(t, http.MethodPost, "/v1/games/"+gameID+"/invest", token, map[string]any{
		"stock_symbol": symbol, "action": "buy", "shares": 1_000_000,
	})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("overdraft = %d %v, want 422", status, out)
	}
}

func TestHistoryNeedsDatabase(t *testing.T) {
	f := newAPIFixture(t)
	status, out := f.call(t, http.MethodGet, "/v1/history", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("history = %d %v, want 503", status, out)
	}
	status, out = f.call(t, http.MethodGet, "/v1/leaderboard", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("leaderboard = %d %v, want 503", status, out)
	}
}

func TestQRCodeServesPNG(t *testing.T) {
	f := newAPIFixture(t)
	gameID, _, _ := f.seat(t, nil)

	resp, err := f.ts.Client().Get(f.ts.URL + "/v1/games/" + gameID + "/qr.png")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("qr status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("qr content type = %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read qr: %v", err)
	}
	if len(raw) < 8 || !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Fatalf("qr body does not look like a png (%d bytes)", len(raw))
	}
}
