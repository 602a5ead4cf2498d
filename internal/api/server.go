package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/GGBond-gogo/mrtoast/internal/auth"
	"github.com/GGBond-gogo/mrtoast/internal/config"
	"github.com/GGBond-gogo/mrtoast/internal/db"
	"github.com/GGBond-gogo/mrtoast/internal/game"
)

type contextKey string

const seatContextKey contextKey = "seat"

// Seat identifies the authenticated player behind a request.
type Seat struct {
	GameID   string
	PlayerID string
	Name     string
}

type Server struct {
	cfg    config.APIConfig
	log    *slog.Logger
	signer *auth.Signer
	mgr    *game.Manager
	store  *db.Store
	hub    http.Handler
	mux    *chi.Mux
}

// New assembles the HTTP surface. store may be nil when no database is
// configured; hub may be nil to run without websockets.
func New(cfg config.APIConfig, logger *slog.Logger, signer *auth.Signer, mgr *game.Manager, store *db.Store, hub http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		log:    logger,
		signer: signer,
		mgr:    mgr,
		store:  store,
		hub:    hub,
		mux:    chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	if s.hub != nil {
		r.Handle("/ws", s.hub)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/games", s.handleGameList)
		r.Post("/games", s.handleGameCreate)
		r.Post("/games/{game_id}/join", s.handleGameJoin)
		r.Get("/games/{game_id}/state", s.handleGameState)
		r.Get("/games/{game_id}/qr.png", s.handleGameQR)

		r.Get("/history", s.handleHistory)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Group(func(r chi.Router) {
			r.Use(s.seatMiddleware)
			r.Post("/games/{game_id}/invest", s.handleInvest)
			r.Post("/games/{game_id}/cards", s.handleUseCard)
			r.Post("/games/{game_id}/votes", s.handleVote)
			r.Post("/games/{game_id}/messages", s.handleMessage)
			r.Post("/games/{game_id}/advance", s.handleAdvance)
			r.Post("/games/{game_id}/ai", s.handleAddAI)
		})
	})
}

// seatMiddleware resolves the bearer token to a seat and rejects tokens
// minted for a different table than the one in the URL.
func (s *Server) seatMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.signer.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, fmt.Sprintf("invalid token: %v", err))
			return
		}
		if claims.GameID != game.NormalizeGameID(chi.URLParam(r, "game_id")) {
			writeError(w, http.StatusForbidden, "token is for another game")
			return
		}
		ctx := context.WithValue(r.Context(), seatContextKey, Seat{
			GameID:   claims.GameID,
			PlayerID: claims.PlayerID,
			Name:     claims.Name,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func seatFromContext(ctx context.Context) (Seat, error) {
	v := ctx.Value(seatContextKey)
	seat, ok := v.(Seat)
	if !ok || seat.PlayerID == "" {
		return Seat{}, errors.New("missing seat context")
	}
	return seat, nil
}

func (s *Server) handleGameList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": s.mgr.List()})
}

func (s *Server) handleGameCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MaxPlayers int    `json:"max_players"`
		MaxRounds  int    `json:"max_rounds"`
		MarketMode string `json:"market_mode"`
		Passcode   string `json:"passcode"`
		AIFill     *bool  `json:"ai_fill"`
		PlayerName string `json:"player_name"`
	}
	// An empty body creates a table with server defaults.
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	aiFill := true
	if in.AIFill != nil {
		aiFill = *in.AIFill
	}
	sum, err := s.mgr.CreateGame(r.Context(), game.Config{
		MaxPlayers: in.MaxPlayers,
		MaxRounds:  in.MaxRounds,
		MarketMode: in.MarketMode,
		Passcode:   in.Passcode,
		AIFill:     aiFill,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := map[string]any{
		"game":     sum,
		"join_url": fmt.Sprintf("%s/join/%s", s.cfg.PublicBaseURL, sum.GameID),
	}
	if name := strings.TrimSpace(in.PlayerName); name != "" {
		pv, err := s.mgr.Join(r.Context(), sum.GameID, name, in.Passcode)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		token, err := s.signer.Mint(sum.GameID, pv.ID, pv.Name, time.Now())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out["player"] = pv
		out["token"] = token
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGameJoin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PlayerName string `json:"player_name"`
		Passcode   string `json:"passcode"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := game.NormalizeGameID(chi.URLParam(r, "game_id"))
	pv, err := s.mgr.Join(r.Context(), id, in.PlayerName, in.Passcode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := s.signer.Mint(id, pv.ID, pv.Name, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"player": pv, "token": token})
}

// handleGameState serves the public snapshot, or the personalized one when
// the request carries a token for this table.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "game_id")
	h, err := s.mgr.Game(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	viewer := ""
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		claims, err := s.signer.Verify(token)
		if err == nil && claims.GameID == game.NormalizeGameID(id) {
			viewer = claims.PlayerID
		}
	}
	snap, err := h.Snapshot(r.Context(), viewer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGameQR(w http.ResponseWriter, r *http.Request) {
	id := game.NormalizeGameID(chi.URLParam(r, "game_id"))
	if _, err := s.mgr.Game(id); err != nil {
		writeDomainError(w, err)
		return
	}
	png, err := qrcode.Encode(fmt.Sprintf("%s/join/%s", s.cfg.PublicBaseURL, id), qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleInvest(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Symbol string `json:"stock_symbol"`
		Action string `json:"action"`
		Shares int64  `json:"shares"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rec, err := h.Invest(r.Context(), seat.PlayerID, in.Symbol, in.Action, in.Shares)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUseCard(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		CardID   string `json:"card_id"`
		TargetID string `json:"target_player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.UseCard(r.Context(), seat.PlayerID, in.CardID, in.TargetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		TargetID string `json:"target_player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	counts, err := h.Vote(r.Context(), seat.PlayerID, in.TargetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vote_counts": counts})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	mv, err := h.SendMessage(r.Context(), seat.PlayerID, in.Message)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.AdvancePhase(r.Context(), seat.PlayerID); err != nil {
		writeDomainError(w, err)
		return
	}
	st := h.Stamp()
	writeJSON(w, http.StatusOK, map[string]any{"phase": st.Phase, "round": st.Round})
}

func (s *Server) handleAddAI(w http.ResponseWriter, r *http.Request) {
	seat, err := seatFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	h, err := s.mgr.Game(seat.GameID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pv, err := h.AddAI(r.Context(), seat.PlayerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "match history requires a database")
		return
	}
	rows, err := s.store.History(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": rows})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "leaderboard requires a database")
		return
	}
	rows, err := s.store.Leaderboard(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaders": rows})
}

// writeDomainError maps engine failures onto HTTP statuses. A wrong
// passcode reads as forbidden rather than a plain validation failure.
func writeDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, game.ErrBadPasscode) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	switch game.Kind(err) {
	case game.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case game.KindState:
		writeError(w, http.StatusConflict, err.Error())
	case game.KindResource:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case game.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
