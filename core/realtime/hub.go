package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"Soundcheck/logger"
)

// Event names.
const (
	EventNewFeedback      = "new-feedback"
	EventNewReply         = "new-reply"
	EventFeedbackResolved = "feedback-resolved"
	EventTrackUploaded    = "track-uploaded"
	EventTrackDeleted     = "track-deleted"
	EventTrackPromoted    = "track-promoted"
)

// Message is the JSON frame written to sockets.
type Message struct {
	Type      string      `json:"type"`
	Channel   string      `json:"channel,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Session is a connected subscriber.
type Session interface {
	ID() string
	// Deliver queues msg without blocking and reports false when the
	// session's buffer is full.
	Deliver(msg []byte) bool
	Close()
}

// Publisher forwards locally broadcast frames to other server instances.
type Publisher interface {
	Publish(channel string, frame []byte)
}

type outbound struct {
	channel string
	frame   []byte
}

// Hub delivers broadcasts to the sessions joined to a channel. A single Run
// goroutine drains the queue, so each channel's events reach a session in the
// order they were broadcast.
type Hub struct {
	registry *RoomRegistry

	mu       sync.RWMutex
	sessions map[string]Session

	register   chan Session
	unregister chan Session
	broadcast  chan outbound
	done       chan struct{}
	stopOnce   sync.Once

	relay Publisher
}

// NewHub creates a hub with a broadcast queue of queueSize frames.
func NewHub(registry *RoomRegistry, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		registry:   registry,
		sessions:   make(map[string]Session),
		register:   make(chan Session),
		unregister: make(chan Session),
		broadcast:  make(chan outbound, queueSize),
		done:       make(chan struct{}),
	}
}

// SetRelay attaches a cross-instance publisher. Call before Run.
func (h *Hub) SetRelay(p Publisher) {
	h.relay = p
}

// Registry returns the membership tracker the hub dispatches through.
func (h *Hub) Registry() *RoomRegistry {
	return h.registry
}

// Run is the hub's dispatch loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s.ID()] = s
			h.mu.Unlock()
			logger.Debug("session registered", logger.String("session", s.ID()))

		case s := <-h.unregister:
			h.removeSession(s)

		case msg := <-h.broadcast:
			h.dispatch(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop ends Run and closes every session.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a session. It returns once Run has recorded it.
func (h *Hub) Register(s Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

// Unregister removes a session and all its subscriptions.
func (h *Hub) Unregister(s Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *Hub) removeSession(s Session) {
	h.mu.Lock()
	current, ok := h.sessions[s.ID()]
	if ok && current == s {
		delete(h.sessions, s.ID())
	}
	h.mu.Unlock()
	if !ok || current != s {
		return
	}

	left := h.registry.Disconnect(s.ID())
	s.Close()
	logger.Debug("session unregistered",
		logger.String("session", s.ID()),
		logger.Int("channels", len(left)))
}

// Broadcast queues event for every session joined to channel. It never
// blocks: when the queue is full the event is dropped and logged.
func (h *Hub) Broadcast(channel, event string, payload interface{}) {
	frame, err := json.Marshal(Message{
		Type:      event,
		Channel:   channel,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Error("failed to encode broadcast",
			logger.String("channel", channel),
			logger.String("event", event),
			logger.ErrorField(err))
		return
	}
	h.enqueue(channel, frame)
	if h.relay != nil {
		h.relay.Publish(channel, frame)
	}
}

// DeliverRemote queues a frame received from another instance for local
// sessions only.
func (h *Hub) DeliverRemote(channel string, frame []byte) {
	h.enqueue(channel, frame)
}

func (h *Hub) enqueue(channel string, frame []byte) {
	select {
	case h.broadcast <- outbound{channel: channel, frame: frame}:
	default:
		logger.Warn("broadcast queue full, dropping event", logger.String("channel", channel))
	}
}

func (h *Hub) dispatch(msg outbound) {
	ids := h.registry.Sessions(msg.channel)
	if len(ids) == 0 {
		return
	}

	h.mu.RLock()
	targets := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := h.sessions[id]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.Deliver(msg.frame) {
			logger.Warn("session buffer full, dropping message",
				logger.String("session", s.ID()),
				logger.String("channel", msg.channel))
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, s := range h.sessions {
		h.registry.Disconnect(id)
		s.Close()
	}
	h.sessions = make(map[string]Session)
}

// SessionCount returns the number of registered sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
