package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"trivia-arena/internal/app"
	"trivia-arena/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	registry *Registry
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, registry *Registry) *WSHandler {
	return &WSHandler{
		engine:   engine,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinQueuePayload struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type answerPayload struct {
	Room   string `json:"room"`
	Answer string `json:"answer"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and wires the connection into the match
// engine. The player identifies via the userId query parameter; events
// flow out through the registry.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan app.Event, 32),
		done:   make(chan struct{}),
	}
	if prev := h.registry.register(c); prev != nil {
		// Only one live connection per player; the old one is terminated.
		log.Printf("displacing previous connection for %s", userID)
		prev.close()
	}

	go func() {
		for {
			select {
			case ev := <-c.send:
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("ws write error for %s: %v", userID, err)
					c.close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(c, inbound)
	}

	if h.registry.unregister(c) {
		h.engine.Disconnected(userID)
	}
	c.close()
}

func (h *WSHandler) dispatch(c *client, msg inboundMessage) {
	switch msg.Type {
	case "join-queue":
		var p joinQueuePayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				h.sendError(c, "invalid join-queue payload")
				return
			}
		}
		h.engine.JoinQueue(c.userID, p.Category, domain.Difficulty(p.Difficulty))
	case "leave-queue":
		h.engine.LeaveQueue(c.userID)
	case "join-room":
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			h.sendError(c, "invalid join-room payload")
			return
		}
		h.engine.JoinRoom(p.Room, c.userID)
	case "submit-answer":
		var p answerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			h.sendError(c, "invalid submit-answer payload")
			return
		}
		h.engine.SubmitAnswer(p.Room, c.userID, p.Answer)
	case "time-expired-ack":
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			return
		}
		h.engine.TimeExpiredAck(p.Room, c.userID)
	case "quit":
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Room == "" {
			h.sendError(c, "invalid quit payload")
			return
		}
		h.engine.Quit(p.Room, c.userID)
	default:
		h.sendError(c, "unsupported message type")
	}
}

func (h *WSHandler) sendError(c *client, message string) {
	h.registry.Send(c.userID, app.Event{Type: "error", Payload: errorPayload{Message: message}})
}
