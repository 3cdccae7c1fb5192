package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Run message types
const (
	MsgAnswerRecorded MessageType = "answer_recorded"
	MsgRunFinished    MessageType = "run_finished"
	MsgError          MessageType = "error"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket subscribers of evaluation runs
type Hub struct {
	// Run -> subscribers
	conns map[string]map[*Connection]struct{}

	mu sync.RWMutex

	// Channels for coordination
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	stopOnce   sync.Once

	logger *zap.Logger
}

// Connection represents a WebSocket connection
type Connection struct {
	RunID      string
	ReviewerID string
	Send       chan []byte
	Hub        *Hub
}

// BroadcastMessage is a message to broadcast. Close disconnects the run's
// subscribers once everything queued before it has been delivered.
type BroadcastMessage struct {
	RunID   string
	Message *Message
	Close   bool
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		conns:      make(map[string]map[*Connection]struct{}),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for runID, subs := range h.conns {
				for conn := range subs {
					close(conn.Send)
				}
				delete(h.conns, runID)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.conns[conn.RunID] == nil {
				h.conns[conn.RunID] = make(map[*Connection]struct{})
			}
			h.conns[conn.RunID][conn] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("Subscriber connected", zap.String("run_id", conn.RunID), zap.String("reviewer_id", conn.ReviewerID))

		case conn := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.conns[conn.RunID]; ok {
				if _, ok := subs[conn]; ok {
					delete(subs, conn)
					close(conn.Send)
					if len(subs) == 0 {
						delete(h.conns, conn.RunID)
					}
					h.logger.Debug("Subscriber disconnected", zap.String("run_id", conn.RunID))
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			if msg.Close {
				h.mu.Lock()
				for conn := range h.conns[msg.RunID] {
					close(conn.Send)
				}
				delete(h.conns, msg.RunID)
				h.mu.Unlock()
				continue
			}
			h.mu.RLock()
			data, err := json.Marshal(msg.Message)
			if err != nil {
				h.mu.RUnlock()
				h.logger.Warn("Failed to encode message", zap.String("run_id", msg.RunID), zap.Error(err))
				continue
			}
			for conn := range h.conns[msg.RunID] {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		close(conn.Send)
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Subscribers returns the number of connections watching runID
func (h *Hub) Subscribers(runID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[runID])
}

// BroadcastToRun sends a message to every subscriber of a run (implements service.Broadcaster)
func (h *Hub) BroadcastToRun(runID string, msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("Failed to encode payload", zap.String("run_id", runID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{
		RunID: runID,
		Message: &Message{
			Type:    MessageType(msgType),
			Payload: data,
		},
	}:
	case <-h.done:
	}
}

// CloseRun disconnects every subscriber of a run (implements service.Broadcaster)
func (h *Hub) CloseRun(runID string) {
	select {
	case h.broadcast <- &BroadcastMessage{RunID: runID, Close: true}:
	case <-h.done:
	}
}

// Stop shuts the hub down and closes every connection
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
