package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handsynth/internal/logging"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// clientMessage is sent by the browser. The only action is "start_audio",
// sent from the page's click handler.
type clientMessage struct {
	Action string `json:"action"`
}

// StateHandler streams engine states to WebSocket clients.
type StateHandler struct {
	pipeline Pipeline
	engine   Engine
}

// NewStateHandler creates a handler. engine may be nil, in which case
// start requests are ignored.
func NewStateHandler(p Pipeline, e Engine) *StateHandler {
	return &StateHandler{pipeline: p, engine: e}
}

// ServeHTTP upgrades the connection and forwards every published state
// until either side goes away.
func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	states, unsubscribe := h.pipeline.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		h.readLoop(conn)
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			msg, err := json.Marshal(s)
			if err != nil {
				logging.Error("encode state", "err", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

func (h *StateHandler) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Action == "start_audio" && h.engine != nil {
			if err := h.engine.StartAudio(); err != nil {
				logging.Error("start audio", "err", err)
			}
		}
	}
}
