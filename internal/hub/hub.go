// Package hub tracks which live connections are members of which channels
// and fans durably stored messages out to them.
package hub

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prepwise/server/internal/model"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNotMember      = errors.New("not a channel member")
	ErrEmptyContent   = errors.New("empty message content")
)

// sendBuffer is the per-session outbound queue. A member whose queue is full
// misses the event; delivery over the live channel is at-most-once.
const sendBuffer = 64

type MessageAppender interface {
	AppendMessage(ctx context.Context, channel, authorID, authorName, content, messageType string) (model.ChannelMessage, error)
}

type Hub struct {
	rooms  map[string]*room
	store  MessageAppender
	logger *zap.Logger
}

// room holds one channel's live members. pubMu serializes the durable
// append and the following fan-out, so within a channel every member
// observes messages in store order.
type room struct {
	name    string
	mu      sync.RWMutex
	pubMu   sync.Mutex
	members map[*Session]struct{}
}

// NewHub pre-builds a room per valid channel name. The room map is
// read-only afterwards, so lookups never contend across channels.
func NewHub(channels []string, store MessageAppender, logger *zap.Logger) *Hub {
	rooms := make(map[string]*room, len(channels))
	for _, name := range channels {
		rooms[name] = &room{name: name, members: make(map[*Session]struct{})}
	}
	return &Hub{rooms: rooms, store: store, logger: logger}
}

// Valid reports whether the name is in the enumerated channel set.
func (h *Hub) Valid(channel string) bool {
	_, ok := h.rooms[channel]
	return ok
}

func (h *Hub) Channels() []string {
	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	return names
}

type Session struct {
	ID   string
	User model.User

	mu     sync.Mutex
	send   chan Event
	joined map[string]struct{}
	closed bool
}

func NewSession(user model.User) *Session {
	return &Session{
		ID:     uuid.NewString(),
		User:   user,
		send:   make(chan Event, sendBuffer),
		joined: make(map[string]struct{}),
	}
}

// Events is the session's outbound queue, drained by the connection's write
// pump.
func (s *Session) Events() <-chan Event {
	return s.send
}

// Send enqueues an event without blocking. Events to a full or closed queue
// are dropped.
func (s *Session) Send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- event:
		return true
	default:
		eventsDropped.Inc()
		return false
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Register counts the session as a live connection.
func (h *Hub) Register(s *Session) {
	connectionsActive.Inc()
	h.logger.Info("connection admitted", zap.String("session_id", s.ID), zap.String("user_id", s.User.ID))
}

// Join adds the session to a channel and tells the other members.
func (h *Hub) Join(s *Session, channel string) error {
	r, ok := h.rooms[channel]
	if !ok {
		return ErrUnknownChannel
	}

	r.mu.Lock()
	r.members[s] = struct{}{}
	r.mu.Unlock()

	s.mu.Lock()
	s.joined[channel] = struct{}{}
	s.mu.Unlock()

	h.broadcastPresence(r, s, EventPresenceJoined)
	return nil
}

// Leave removes the session from a channel and tells the other members.
func (h *Hub) Leave(s *Session, channel string) error {
	r, ok := h.rooms[channel]
	if !ok {
		return ErrUnknownChannel
	}
	r.mu.Lock()
	_, wasMember := r.members[s]
	delete(r.members, s)
	r.mu.Unlock()

	s.mu.Lock()
	delete(s.joined, channel)
	s.mu.Unlock()

	if wasMember {
		h.broadcastPresence(r, s, EventPresenceLeft)
	}
	return nil
}

// Disconnect removes the session from every channel it joined and closes
// its queue.
func (h *Hub) Disconnect(s *Session) {
	s.mu.Lock()
	joined := make([]string, 0, len(s.joined))
	for channel := range s.joined {
		joined = append(joined, channel)
	}
	s.mu.Unlock()

	for _, channel := range joined {
		_ = h.Leave(s, channel)
	}
	s.close()
	connectionsActive.Dec()
	h.logger.Info("connection closed", zap.String("session_id", s.ID), zap.String("user_id", s.User.ID))
}

// Publish durably appends the message and fans the stored record out to
// every current member of the channel, including the publisher. Fan-out
// never happens unless the append succeeded.
func (h *Hub) Publish(ctx context.Context, s *Session, channel, content, messageType string) (model.ChannelMessage, error) {
	r, ok := h.rooms[channel]
	if !ok {
		return model.ChannelMessage{}, ErrUnknownChannel
	}

	r.mu.RLock()
	_, isMember := r.members[s]
	r.mu.RUnlock()
	if !isMember {
		return model.ChannelMessage{}, ErrNotMember
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return model.ChannelMessage{}, ErrEmptyContent
	}
	if messageType == "" {
		messageType = "text"
	}

	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	msg, err := h.store.AppendMessage(ctx, channel, s.User.ID, s.User.DisplayName, content, messageType)
	if err != nil {
		return model.ChannelMessage{}, err
	}

	event := Event{Type: EventNewMessage, Data: messagePayload(msg)}
	for _, member := range r.snapshot() {
		member.Send(event)
	}
	messagesPublished.WithLabelValues(channel).Inc()
	return msg, nil
}

// Members returns the users currently joined to a channel.
func (h *Hub) Members(channel string) ([]model.User, error) {
	r, ok := h.rooms[channel]
	if !ok {
		return nil, ErrUnknownChannel
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]model.User, 0, len(r.members))
	for member := range r.members {
		users = append(users, member.User)
	}
	return users, nil
}

func (r *room) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Session, 0, len(r.members))
	for member := range r.members {
		members = append(members, member)
	}
	return members
}

func (h *Hub) broadcastPresence(r *room, s *Session, eventType string) {
	event := Event{Type: eventType, Data: PresencePayload{
		PrincipalID: s.User.ID,
		DisplayName: s.User.DisplayName,
		Channel:     r.name,
	}}
	for _, member := range r.snapshot() {
		if member == s {
			continue
		}
		member.Send(event)
	}
}
