package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/spreadmap/internal/batch"
)

// Progress event types.
const (
	EventStatus   = "status"
	EventStart    = "start"
	EventProgress = "progress"
	EventError    = "error"
	EventComplete = "complete"
)

// ProgressEvent is one message on /ws/extract.
type ProgressEvent struct {
	Type    string         `json:"type"`
	State   string         `json:"state,omitempty"`
	Current int            `json:"current,omitempty"`
	Total   int            `json:"total,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Summary *batch.Summary `json:"summary,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type subscriber struct {
	mu   sync.Mutex
	conn WebSocketConnWriter
}

func (c *subscriber) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// progressHub fans batch progress out to every connected subscriber. It is
// the batch.ProgressCallback of server-started runs.
type progressHub struct {
	mu    sync.Mutex
	subs  map[*subscriber]struct{}
	total int
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[*subscriber]struct{})}
}

func (h *progressHub) add(conn WebSocketConnWriter) *subscriber {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *progressHub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

func (h *progressHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *progressHub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()
	for sub := range subs {
		if c, ok := sub.conn.(*websocket.Conn); ok {
			_ = c.Close()
		}
	}
}

func (h *progressHub) broadcast(ev ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to encode progress event", "error", err)
		return
	}
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(data); err != nil {
			slog.Debug("Dropping progress subscriber", "error", err)
			h.remove(sub)
			continue
		}
		websocketMessagesTotal.WithLabelValues("sent").Inc()
	}
}

func (h *progressHub) OnStart(total int) {
	h.mu.Lock()
	h.total = total
	h.mu.Unlock()
	h.broadcast(ProgressEvent{Type: EventStart, State: batch.Running.String(), Total: total})
}

func (h *progressHub) OnProgress(current, total int) {
	h.broadcast(ProgressEvent{Type: EventProgress, Current: current, Total: total})
}

func (h *progressHub) OnError(current int, err error) {
	h.mu.Lock()
	total := h.total
	h.mu.Unlock()
	h.broadcast(ProgressEvent{Type: EventError, Current: current, Total: total, Reason: err.Error()})
}

func (h *progressHub) OnComplete(s batch.Summary) {
	h.broadcast(ProgressEvent{Type: EventComplete, State: s.State.String(), Summary: &s})
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// progressWebSocketHandler streams batch progress events. A client message
// {"type":"abort"} aborts the active run.
func (s *Server) progressWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	sub := s.hub.add(conn)
	defer s.hub.remove(sub)

	hello, _ := json.Marshal(ProgressEvent{Type: EventStatus, State: s.orch.State().String()})
	if err := sub.send(hello); err != nil {
		return
	}
	s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType != websocket.TextMessage {
			continue
		}
		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == "abort" {
			slog.Info("Abort requested over WebSocket")
			s.orch.Abort()
		}
	}
}
