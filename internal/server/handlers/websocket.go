// internal/server/handlers/websocket.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mapnav/internal/service/session"
)

// WebSocketClient represents a connected dashboard
type WebSocketClient struct {
	conn    *websocket.Conn
	send    chan []byte
	session *session.Session
	log     zerolog.Logger
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// SessionWebSocketHandler streams session events to a dashboard and
// accepts gesture messages back
func SessionWebSocketHandler(manager *session.Manager, logger zerolog.Logger) http.HandlerFunc {
	log := logger.With().Str("component", "ws").Logger()
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "Invalid session ID", http.StatusBadRequest)
			return
		}
		s, ok := manager.Get(id)
		if !ok {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("failed to upgrade to websocket")
			return
		}

		client := &WebSocketClient{
			conn:    conn,
			send:    make(chan []byte, 256),
			session: s,
			log:     log.With().Str("session", id.String()).Logger(),
		}

		// Every session event flows through the send channel; a slow
		// dashboard drops events rather than blocking the engine.
		s.OnEvent(func(ev session.Event) {
			data, err := json.Marshal(ev)
			if err != nil {
				return
			}
			select {
			case client.send <- data:
			default:
				client.log.Debug().Str("type", string(ev.Type)).Msg("event dropped for slow client")
			}
		})

		go client.writePump()
		go client.readPump()

		client.log.Info().Msg("dashboard connected")
	}
}

// gestureMessage is one incoming dashboard gesture
type gestureMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
}

// readPump pumps gestures from the WebSocket connection into the session
func (c *WebSocketClient) readPump() {
	config := DefaultWebSocketConfig()

	defer func() {
		c.session.OnEvent(nil)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			break
		}
		c.processGesture(message)
	}
}

// writePump pumps session events to the WebSocket connection
func (c *WebSocketClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued events to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processGesture applies one incoming gesture to the session
func (c *WebSocketClient) processGesture(message []byte) {
	var msg gestureMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.Debug().Err(err).Msg("unparsable gesture message")
		return
	}
	c.session.Touch()

	switch msg.Type {
	case "click":
		if err := c.session.Click(context.Background(), msg.X, msg.Y); err != nil {
			c.log.Debug().Err(err).Msg("click rejected")
		}
	case "hover":
		c.session.Hover(msg.X, msg.Y)
	case "box_begin":
		c.session.BeginBoxSelect(msg.X, msg.Y)
	case "box_end":
		// The selection reaches the dashboard as a box_select event.
		c.session.EndBoxSelect(msg.X, msg.Y)
	case "box_cancel":
		c.session.CancelBoxSelect()
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown gesture type")
	}
}
