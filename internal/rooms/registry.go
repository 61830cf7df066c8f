package rooms

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/umar/forum-livechat/internal/models"
)

// DefaultTTL is how long a room accepts messages after creation. The extra
// millisecond keeps countdowns starting at a full "48" hours.
const DefaultTTL = 48*time.Hour + time.Millisecond

type room struct {
	id          string
	name        string
	creatorID   string
	creatorName string
	subForum    string
	userLimit   int
	messages    []models.Message
	expiresAt   time.Time
	reopened    bool
	members     []string

	// observed is the status last reported by Sweep.
	observed Status
}

func (rm *room) summary(now time.Time) models.RoomSummary {
	return models.RoomSummary{
		ID:          rm.id,
		Name:        rm.name,
		CreatorID:   rm.creatorID,
		CreatorName: rm.creatorName,
		SubForum:    rm.subForum,
		UserLimit:   rm.userLimit,
		ExpiresAt:   rm.expiresAt,
		Reopened:    rm.reopened,
		Status:      StatusAt(now, rm.expiresAt).String(),
	}
}

func (rm *room) memberIndex(userID string) int {
	for i, id := range rm.members {
		if id == userID {
			return i
		}
	}
	return -1
}

// Registry is the in-memory table of live chat rooms.
//
// The chat hub is its only writer; the RWMutex exists so HTTP handlers can
// read snapshots while the hub is running.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	order []string

	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

type Option func(*Registry)

func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		r.newID = newID
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms: make(map[string]*room),
		ttl:   DefaultTTL,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Now() time.Time {
	return r.now()
}

func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// CreateRoom inserts a new active room with the creator as its first member.
func (r *Registry) CreateRoom(name, creatorID, creatorName string, userLimit int, subForum string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: room name is required", ErrInvalidRoom)
	case creatorID == "":
		return "", fmt.Errorf("%w: creator id is required", ErrInvalidRoom)
	case userLimit < 1:
		return "", fmt.Errorf("%w: user limit must be at least 1", ErrInvalidRoom)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for r.rooms[id] != nil {
		id = r.newID()
	}
	r.rooms[id] = &room{
		id:          id,
		name:        name,
		creatorID:   creatorID,
		creatorName: creatorName,
		subForum:    subForum,
		userLimit:   userLimit,
		messages:    []models.Message{},
		expiresAt:   r.now().Add(r.ttl),
		members:     []string{creatorID},
		observed:    StatusActive,
	}
	r.order = append(r.order, id)
	return id, nil
}

// ReopenRoom extends the expiry of a room once. A zero newExpiresAt means
// "one more TTL from now".
func (r *Registry) ReopenRoom(roomID string, newExpiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.reopened {
		return ErrAlreadyReopened
	}
	now := r.now()
	if newExpiresAt.IsZero() {
		newExpiresAt = now.Add(r.ttl)
	}
	if !newExpiresAt.After(now) {
		return ErrInvalidExpiry
	}
	rm.expiresAt = newExpiresAt
	rm.reopened = true
	rm.observed = StatusAt(now, newExpiresAt)
	return nil
}

// DeleteRoom removes the room together with its messages and members.
func (r *Registry) DeleteRoom(roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(r.rooms, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) IsExpired(roomID string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false, ErrRoomNotFound
	}
	return !now.Before(rm.expiresAt), nil
}

func (r *Registry) Status(roomID string, now time.Time) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return StatusDeleted, ErrRoomNotFound
	}
	return StatusAt(now, rm.expiresAt), nil
}

func (r *Registry) Room(roomID string) (models.RoomSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomSummary{}, ErrRoomNotFound
	}
	return rm.summary(r.now()), nil
}

func (r *Registry) CreatorOf(roomID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return "", ErrRoomNotFound
	}
	return rm.creatorID, nil
}

// Rooms returns every room in creation order.
func (r *Registry) Rooms() []models.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	out := make([]models.RoomSummary, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.rooms[id].summary(now))
	}
	return out
}

// AppendMessage stamps msg with the current time and adds it to the room log.
// Content is trimmed; blank content and closed rooms are rejected.
func (r *Registry) AppendMessage(roomID string, msg models.Message) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.Message{}, ErrRoomNotFound
	}
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" {
		return models.Message{}, ErrEmptyMessage
	}
	now := r.now()
	if StatusAt(now, rm.expiresAt) == StatusClosed {
		return models.Message{}, ErrRoomClosed
	}
	msg.SentAt = now
	msg.Time = models.DisplayTime(now)
	rm.messages = append(rm.messages, msg)
	return msg, nil
}

func (r *Registry) Messages(roomID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]models.Message, len(rm.messages))
	copy(out, rm.messages)
	return out, nil
}

// Sweep re-evaluates every room against now and returns the ids whose status
// changed since the previous sweep, in creation order.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []string
	for _, id := range r.order {
		rm := r.rooms[id]
		if status := StatusAt(now, rm.expiresAt); status != rm.observed {
			rm.observed = status
			changed = append(changed, id)
		}
	}
	return changed
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
