package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// RoomAnnouncements carries question_published events for the index page.
	RoomAnnouncements = "polls:announcements"

	EventVoteCast          = "vote_cast"
	EventQuestionPublished = "question_published"

	publishTimeout = 5 * time.Second
)

// QuestionRoom is the room (and Redis channel) for a question's live results.
func QuestionRoom(questionID int64) string {
	return "question:" + strconv.FormatInt(questionID, 10)
}

// Publisher publishes an event to other instances.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload []byte) error
}

// Subscriber subscribes to a room's channel and invokes handler for incoming events.
type Subscriber interface {
	Subscribe(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains room -> set of connections and broadcasts messages.
// With Redis configured, events go through pub/sub so every instance delivers them once.
type Hub struct {
	rooms  map[string]map[string]*Client
	subs   map[string]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a hub. pub and sub may be nil for a single-instance deployment.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Register adds a client to its room. The room's Redis subscription is opened outside the hub lock,
// and a room left without one (a failed Subscribe) is retried by its next client.
func (h *Hub) Register(c *Client) {
	var cancel func()
	if h.sub != nil && !h.subscribed(c.Room) {
		cancel = h.subscribe(c.Room)
	}

	h.mu.Lock()
	if h.rooms[c.Room] == nil {
		h.rooms[c.Room] = make(map[string]*Client)
	}
	h.rooms[c.Room][c.ID] = c
	if cancel != nil {
		if _, ok := h.subs[c.Room]; ok {
			// A concurrent Register won the race.
			defer cancel()
		} else {
			h.subs[c.Room] = cancel
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

func (h *Hub) subscribed(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[room]
	return ok
}

func (h *Hub) subscribe(room string) func() {
	cancel, err := h.sub.Subscribe(room, func(event string, payload []byte) {
		h.Broadcast(room, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("room subscribe failed", zap.String("room", room), zap.Error(err))
		return nil
	}
	return cancel
}

// Unregister removes a client. Cancels the room's Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.Room]; ok {
		if _, ok := m[c.ID]; ok {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.rooms, c.Room)
			if cancel, ok := h.subs[c.Room]; ok {
				cancel()
				delete(h.subs, c.Room)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// Broadcast sends a message to the clients of a room on this instance only.
func (h *Hub) Broadcast(room, event string, payload any) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to a room across all instances. With Redis it publishes, and the
// subscription callback does the local broadcast. Local clients of a room whose subscription
// could not be opened, or of any room when the publish fails, are served directly.
func (h *Hub) Publish(room, event string, payload any) {
	if h.pub == nil {
		h.Broadcast(room, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	subscribed := h.subscribed(room)
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.pub.Publish(ctx, room, event, data); err != nil {
		h.logger.Warn("publish failed, broadcasting locally", zap.String("room", room), zap.Error(err))
		h.Broadcast(room, event, json.RawMessage(data))
		return
	}
	if !subscribed {
		h.Broadcast(room, event, json.RawMessage(data))
	}
}

// RoomSize returns the number of clients connected to a room on this instance.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
