package gateway

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/GGBond-gogo/mrtoast/internal/auth"
	"github.com/GGBond-gogo/mrtoast/internal/game"
)

// Hub upgrades websocket connections and pins each one to a seat or an
// observer slot on one game. Fan-out itself lives on the game handle;
// the hub only authenticates and wires pumps.
type Hub struct {
	log      *slog.Logger
	mgr      *game.Manager
	signer   *auth.Signer
	upgrader websocket.Upgrader
}

func NewHub(mgr *game.Manager, signer *auth.Signer, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:    logger.With("component", "gateway"),
		mgr:    mgr,
		signer: signer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws. A session token binds the socket to its
// seat; without one, ?game_id= opens a read-only observer stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var gameID, playerID string
	if token := socketToken(r); token != "" {
		claims, err := h.signer.Verify(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		gameID, playerID = claims.GameID, claims.PlayerID
	} else {
		gameID = game.NormalizeGameID(r.URL.Query().Get("game_id"))
		if gameID == "" {
			http.Error(w, "token or game_id required", http.StatusUnauthorized)
			return
		}
	}

	handle, err := h.mgr.Game(gameID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	snap, err := handle.Snapshot(r.Context(), playerID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	events, cancel, err := h.mgr.Subscribe(gameID, playerID, 64)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		return
	}

	c := newClient(h.log, conn, handle, gameID, playerID, events, cancel)
	c.seed(snap)
	go c.writePump()
	go c.readPump()
	h.log.Info("socket connected", "game_id", gameID, "player_id", playerID, "observer", playerID == "")
}

func socketToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
