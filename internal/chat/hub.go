package chat

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/umar/forum-livechat/internal/models"
	"github.com/umar/forum-livechat/internal/rooms"
	"golang.org/x/time/rate"
)

// PresenceMirror receives the online counts whenever they change. It must not block.
type PresenceMirror interface {
	Publish(counts map[string]int, online []string)
}

// Journal receives room lifecycle events. It must not block.
type Journal interface {
	Record(event models.RoomEvent)
}

type noopMirror struct{}

func (noopMirror) Publish(map[string]int, []string) {}

type noopJournal struct{}

func (noopJournal) Record(models.RoomEvent) {}

type inbound struct {
	client    *Client
	msg       WSMessage
	decodeErr error
	throttled bool
}

type Options struct {
	Mirror  PresenceMirror
	Journal Journal
	Logger  *slog.Logger

	// SendBuffer is the outbound queue length per connection.
	SendBuffer      int
	// EventsPerSecond limits inbound events per connection; zero disables it.
	EventsPerSecond float64
	EventBurst      int
}

// Hub owns every connection and is the only goroutine that mutates rooms.
type Hub struct {
	clients map[*Client]bool
	evict   map[*Client]bool

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound
	sweep      chan struct{}
	done       chan struct{}

	registry *rooms.Registry
	presence *rooms.Presence
	mirror   PresenceMirror
	journal  Journal
	logger   *slog.Logger

	sendBuffer      int
	eventsPerSecond float64
	eventBurst      int
}

func NewHub(registry *rooms.Registry, presence *rooms.Presence, opts Options) *Hub {
	h := &Hub{
		clients:         make(map[*Client]bool),
		evict:           make(map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		inbound:         make(chan *inbound, 256),
		sweep:           make(chan struct{}, 1),
		done:            make(chan struct{}),
		registry:        registry,
		presence:        presence,
		mirror:          opts.Mirror,
		journal:         opts.Journal,
		logger:          opts.Logger,
		sendBuffer:      opts.SendBuffer,
		eventsPerSecond: opts.EventsPerSecond,
		eventBurst:      opts.EventBurst,
	}
	if h.mirror == nil {
		h.mirror = noopMirror{}
	}
	if h.journal == nil {
		h.journal = noopJournal{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = 256
	}
	if h.eventBurst <= 0 {
		h.eventBurst = 1
	}
	return h
}

// Run processes registrations, events and sweeps until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case in := <-h.inbound:
			h.dispatch(in)
		case <-h.sweep:
			h.sweepRooms()
		}
		h.flushEvictions()
	}
}

// Register hands a new connection to the hub. It returns false once the hub
// has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// RequestSweep asks the hub to re-check room expiry. Requests made while one
// is already pending are merged.
func (h *Hub) RequestSweep() {
	select {
	case h.sweep <- struct{}{}:
	default:
	}
}

func (h *Hub) deliver(in *inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) newClient(conn *websocket.Conn, identity models.Identity, verified bool) *Client {
	limit := rate.Inf
	if h.eventsPerSecond > 0 {
		limit = rate.Limit(h.eventsPerSecond)
	}
	return &Client{
		hub:      h,
		conn:     conn,
		identity: identity,
		verified: verified,
		rooms:    make(map[string]string),
		send:     make(chan []byte, h.sendBuffer),
		limiter:  rate.NewLimiter(limit, h.eventBurst),
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c] = true
	h.logger.Info("client connected", "user_id", c.identity.ID, "verified", c.verified)

	h.sendTo(c, h.roomsMessage())
	h.sendTo(c, h.countsMessage())
	h.publishPresence()
}

func (h *Hub) removeClient(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	delete(h.evict, c)
	close(c.send)
	h.logger.Info("client disconnected", "user_id", c.identity.ID)

	h.leaveAll(c)
	h.publishPresence()
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// sendTo enqueues data without blocking. A connection whose queue is full is
// dropped after the current event finishes.
func (h *Hub) sendTo(c *Client, data []byte) {
	if !h.clients[c] || data == nil {
		return
	}
	select {
	case c.send <- data:
	default:
		if !h.evict[c] {
			h.logger.Warn("dropping slow client", "user_id", c.identity.ID)
		}
		h.evict[c] = true
	}
}

func (h *Hub) flushEvictions() {
	for len(h.evict) > 0 {
		for c := range h.evict {
			delete(h.evict, c)
			h.removeClient(c)
		}
	}
}

func (h *Hub) broadcastAll(data []byte) {
	for c := range h.clients {
		h.sendTo(c, data)
	}
}

// broadcastRoom sends data to every connection subscribed to roomID except exclude.
func (h *Hub) broadcastRoom(roomID string, data []byte, exclude *Client) {
	for c := range h.clients {
		if c == exclude {
			continue
		}
		if _, ok := c.rooms[roomID]; ok {
			h.sendTo(c, data)
		}
	}
}

// subscribedElsewhere reports whether another live connection of userID is
// still in roomID.
func (h *Hub) subscribedElsewhere(roomID, userID string, except *Client) bool {
	for c := range h.clients {
		if c == except {
			continue
		}
		if uid, ok := c.rooms[roomID]; ok && uid == userID {
			return true
		}
	}
	return false
}

func (h *Hub) roomsMessage() []byte {
	payload := RoomsPayload{}
	for _, s := range h.registry.Rooms() {
		payload[s.ID] = newRoomView(s)
	}
	return h.encode(TypeRooms, payload)
}

func (h *Hub) countsMessage() []byte {
	payload := CurrentUserPayload{}
	for id, n := range h.presence.Counts() {
		payload[id] = OnlineCount{OnlineUser: n}
	}
	return h.encode(TypeCurrentUser, payload)
}

func (h *Hub) encode(msgType string, payload interface{}) []byte {
	data, err := NewWSMessage(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode message", "type", msgType, "error", err)
		return nil
	}
	return data
}

func (h *Hub) broadcastRooms() {
	h.broadcastAll(h.roomsMessage())
}

func (h *Hub) broadcastCounts() {
	h.broadcastAll(h.countsMessage())
	h.publishPresence()
}

func (h *Hub) sendInChat(roomID string) {
	members := h.presence.Members(roomID)
	if members == nil {
		members = []string{}
	}
	h.broadcastRoom(roomID, h.encode(TypeInChat, InChatPayload{RoomID: roomID, InChat: members}), nil)
}

func (h *Hub) publishPresence() {
	seen := make(map[string]bool)
	online := make([]string, 0, len(h.clients))
	for c := range h.clients {
		if id := c.identity.ID; id != "" && !seen[id] {
			seen[id] = true
			online = append(online, id)
		}
	}
	h.mirror.Publish(h.presence.Counts(), online)
}

func (h *Hub) record(roomID, kind, actorID string) {
	h.journal.Record(models.RoomEvent{
		RoomID:  roomID,
		Kind:    kind,
		ActorID: actorID,
		At:      h.registry.Now(),
	})
}

func (h *Hub) sweepRooms() {
	now := h.registry.Now()
	changed := h.registry.Sweep(now)
	if len(changed) == 0 {
		return
	}
	for _, id := range changed {
		status, err := h.registry.Status(id, now)
		if err != nil {
			continue
		}
		if status == rooms.StatusClosed {
			h.logger.Info("room closed", "room_id", id)
			h.record(id, models.RoomClosed, "")
		}
	}
	h.broadcastRooms()
}
