package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GGBond-gogo/mrtoast/internal/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	commandTimeout = 10 * time.Second
)

// Socket-only event types. Everything else on the wire is a game event.
const (
	eventError      game.EventType = "error"
	eventCardResult game.EventType = "card_result"
)

// inbound is one client command. Flat fields; type picks the operation.
type inbound struct {
	Type     string `json:"type"`
	Symbol   string `json:"stock_symbol,omitempty"`
	Action   string `json:"action,omitempty"`
	Shares   int64  `json:"shares,omitempty"`
	CardID   string `json:"card_id,omitempty"`
	TargetID string `json:"target_player_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

type client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	h        *game.Handle
	gameID   string
	playerID string
	events   <-chan game.Event
	cancel   func()
	direct   chan game.Event
}

func newClient(logger *slog.Logger, conn *websocket.Conn, h *game.Handle, gameID, playerID string, events <-chan game.Event, cancel func()) *client {
	return &client{
		log:      logger,
		conn:     conn,
		h:        h,
		gameID:   gameID,
		playerID: playerID,
		events:   events,
		cancel:   cancel,
		direct:   make(chan game.Event, 16),
	}
}

// seed queues the initial state snapshot before the pumps start.
func (c *client) seed(snap game.Snapshot) {
	c.direct <- game.Event{Type: game.EventGameState, GameID: c.gameID, Payload: snap}
}

func (c *client) readPump() {
	defer func() {
		c.cancel()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handle(data)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "game closed"))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case ev := <-c.direct:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		c.fail("", "malformed message", game.KindValidation)
		return
	}
	if c.playerID == "" && in.Type != "sync" {
		c.fail(in.Type, "observer connections are read only", game.KindState)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch in.Type {
	case "invest":
		if _, err := c.h.Invest(ctx, c.playerID, in.Symbol, in.Action, in.Shares); err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
		}
	case "use_card":
		played, err := c.h.UseCard(ctx, c.playerID, in.CardID, in.TargetID)
		if err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
			return
		}
		// The public card_played already went out on the broadcast
		// stream; this copy carries the caller's private extras.
		c.push(game.Event{Type: eventCardResult, GameID: c.gameID, Payload: played})
	case "vote":
		if _, err := c.h.Vote(ctx, c.playerID, in.TargetID); err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
		}
	case "send_message":
		if _, err := c.h.SendMessage(ctx, c.playerID, in.Message); err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
		}
	case "advance_phase":
		if err := c.h.AdvancePhase(ctx, c.playerID); err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
		}
	case "add_ai":
		if _, err := c.h.AddAI(ctx, c.playerID); err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
		}
	case "sync":
		snap, err := c.h.Snapshot(ctx, c.playerID)
		if err != nil {
			c.fail(in.Type, err.Error(), game.Kind(err))
			return
		}
		c.push(game.Event{Type: game.EventGameState, GameID: c.gameID, Payload: snap})
	default:
		c.fail(in.Type, "unknown message type", game.KindValidation)
	}
}

// fail reports a rejected command to this socket only.
func (c *client) fail(op, msg, kind string) {
	c.push(game.Event{Type: eventError, GameID: c.gameID, Payload: map[string]any{
		"op":    op,
		"error": msg,
		"kind":  kind,
	}})
}

func (c *client) push(ev game.Event) {
	select {
	case c.direct <- ev:
	default:
		c.log.Warn("socket reply dropped", "game_id", c.gameID, "player_id", c.playerID, "type", ev.Type)
	}
}
