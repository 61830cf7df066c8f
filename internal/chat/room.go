package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/umar/forum-livechat/internal/models"
	"github.com/umar/forum-livechat/internal/rooms"
)

var (
	errNotMember        = errors.New("you have not joined this room")
	errInvalidPayload   = errors.New("invalid payload")
	errIdentityMismatch = errors.New("userId does not match the connected user")
	errRateLimited      = errors.New("too many events, slow down")
	errUnknownEvent     = errors.New("unknown event type")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{rooms.ErrRoomNotFound, "ROOM_NOT_FOUND"},
	{rooms.ErrCapacityExceeded, "ROOM_FULL"},
	{rooms.ErrEmptyMessage, "EMPTY_MESSAGE"},
	{rooms.ErrNotRoomOwner, "NOT_ROOM_OWNER"},
	{rooms.ErrAlreadyReopened, "ALREADY_REOPENED"},
	{rooms.ErrRoomClosed, "ROOM_CLOSED"},
	{rooms.ErrRoomNotClosed, "ROOM_NOT_CLOSED"},
	{rooms.ErrInvalidRoom, "INVALID_ROOM"},
	{rooms.ErrInvalidExpiry, "INVALID_EXPIRY"},
	{errNotMember, "NOT_MEMBER"},
	{errInvalidPayload, "INVALID_PAYLOAD"},
	{errIdentityMismatch, "IDENTITY_MISMATCH"},
	{errRateLimited, "RATE_LIMITED"},
	{errUnknownEvent, "UNKNOWN_EVENT"},
}

func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "INTERNAL_ERROR"
}

func (h *Hub) sendError(c *Client, roomID string, err error) {
	code := errorCode(err)
	if code == "INTERNAL_ERROR" {
		h.logger.Error("event failed", "error", err, "room_id", roomID, "user_id", c.identity.ID)
	} else {
		h.logger.Debug("event rejected", "code", code, "room_id", roomID, "user_id", c.identity.ID)
	}
	h.sendTo(c, h.encode(TypeError, ErrorPayload{
		Message: err.Error(),
		Code:    code,
		RoomID:  roomID,
	}))
}

func (h *Hub) dispatch(in *inbound) {
	c := in.client
	if !h.clients[c] {
		return
	}
	if in.throttled {
		h.sendError(c, "", errRateLimited)
		return
	}
	if in.decodeErr != nil {
		h.sendError(c, "", fmt.Errorf("%w: %v", errInvalidPayload, in.decodeErr))
		return
	}

	switch in.msg.Type {
	case TypeCreateRoom:
		h.handleCreateRoom(c, in.msg.Payload)
	case TypeJoinRoom:
		h.handleJoinRoom(c, in.msg.Payload)
	case TypeSendRoomMessage:
		h.handleSendRoomMessage(c, in.msg.Payload)
	case TypeReopenRoom:
		h.handleReopenRoom(c, in.msg.Payload)
	case TypeDisconnectRoom:
		h.handleDisconnectRoom(c, in.msg.Payload)
	case TypeConfirmDeleteRoom:
		h.handleConfirmDeleteRoom(c, in.msg.Payload)
	case TypePing:
		h.sendTo(c, h.encode(TypePong, nil))
	default:
		h.sendError(c, "", fmt.Errorf("%w: %q", errUnknownEvent, in.msg.Type))
	}
}

func (h *Hub) decode(c *Client, raw json.RawMessage, out interface{}) bool {
	if err := decodePayload(raw, out); err != nil {
		h.sendError(c, "", fmt.Errorf("%w: %v", errInvalidPayload, err))
		return false
	}
	return true
}

// actor resolves who is acting for this event. A token-bound connection always
// acts as its token user. Otherwise the payload's userId is trusted; callers
// adopt it as the connection's identity only once their operation succeeds.
func (h *Hub) actor(c *Client, claimedID, name, avatar string) (models.Identity, error) {
	if c.verified {
		if claimedID != "" && claimedID != c.identity.ID {
			return models.Identity{}, errIdentityMismatch
		}
		return c.identity, nil
	}

	who := c.identity
	if claimedID != "" {
		who.ID = claimedID
	}
	if name != "" {
		who.Name = name
	}
	if avatar != "" {
		who.Avatar = avatar
	}
	if who.ID == "" {
		return models.Identity{}, fmt.Errorf("%w: userId is required", errInvalidPayload)
	}
	return who, nil
}

// lookup short-circuits every room-scoped event on a missing room.
func (h *Hub) lookup(c *Client, roomID string) (models.RoomSummary, bool) {
	room, err := h.registry.Room(roomID)
	if err != nil {
		h.sendError(c, roomID, err)
		return models.RoomSummary{}, false
	}
	return room, true
}

func (h *Hub) handleCreateRoom(c *Client, raw json.RawMessage) {
	var p CreateRoomPayload
	if !h.decode(c, raw, &p) {
		return
	}
	who, err := h.actor(c, p.UserID, p.CreatorName, p.Avatar)
	if err != nil {
		h.sendError(c, "", err)
		return
	}

	roomID, err := h.registry.CreateRoom(p.RoomName, who.ID, who.Name, p.UserLimit, p.SubForum)
	if err != nil {
		h.sendError(c, "", err)
		return
	}
	c.identity = who
	c.rooms[roomID] = who.ID
	h.logger.Info("room created", "room_id", roomID, "user_id", who.ID, "user_limit", p.UserLimit)
	h.record(roomID, models.RoomCreated, who.ID)

	h.sendTo(c, h.encode(TypeJoinedRoom, JoinedRoomPayload{RoomID: roomID, Messages: []models.Message{}}))
	h.broadcastRooms()
	h.broadcastCounts()
	h.sendInChat(roomID)
}

func (h *Hub) handleJoinRoom(c *Client, raw json.RawMessage) {
	var p JoinRoomPayload
	if !h.decode(c, raw, &p) {
		return
	}
	if _, ok := h.lookup(c, p.RoomID); !ok {
		return
	}
	who, err := h.actor(c, p.UserID, p.Name, p.Avatar)
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	// A connection stays in a room as the user it first joined as.
	if prev, ok := c.rooms[p.RoomID]; ok && prev != who.ID {
		h.sendError(c, p.RoomID, errIdentityMismatch)
		return
	}

	added, err := h.presence.Join(p.RoomID, who.ID)
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	c.identity = who
	c.rooms[p.RoomID] = who.ID
	if added {
		h.logger.Info("user joined room", "room_id", p.RoomID, "user_id", who.ID)
	}

	messages, err := h.registry.Messages(p.RoomID)
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	h.sendTo(c, h.encode(TypeJoinedRoom, JoinedRoomPayload{RoomID: p.RoomID, Messages: messages}))
	h.broadcastCounts()
	h.sendInChat(p.RoomID)
}

func (h *Hub) handleSendRoomMessage(c *Client, raw json.RawMessage) {
	var p SendRoomMessagePayload
	if !h.decode(c, raw, &p) {
		return
	}
	if _, ok := h.lookup(c, p.RoomID); !ok {
		return
	}
	userID, subscribed := c.rooms[p.RoomID]
	if !subscribed || !h.presence.IsMember(p.RoomID, userID) {
		h.sendError(c, p.RoomID, errNotMember)
		return
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	who, err := h.actor(c, p.UserID, p.Name, p.Avatar)
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}

	msg, err := h.registry.AppendMessage(p.RoomID, models.Message{
		Content:      p.Message,
		AuthorID:     userID,
		AuthorName:   who.Name,
		AuthorAvatar: who.Avatar,
	})
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}

	h.broadcastRoom(p.RoomID, h.encode(TypeRoomMessage, RoomMessagePayload{
		RoomID:  p.RoomID,
		Message: msg.Content,
		Name:    msg.AuthorName,
		Time:    msg.Time,
		Avatar:  msg.AuthorAvatar,
	}), c)
}

func (h *Hub) handleReopenRoom(c *Client, raw json.RawMessage) {
	var p ReopenRoomPayload
	if !h.decode(c, raw, &p) {
		return
	}
	room, ok := h.lookup(c, p.RoomID)
	if !ok {
		return
	}
	who, err := h.actor(c, p.UserID, "", "")
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	if room.CreatorID != who.ID {
		h.sendError(c, p.RoomID, rooms.ErrNotRoomOwner)
		return
	}
	if !rooms.CanReopen(h.registry.Now(), room.ExpiresAt, room.Reopened) {
		if room.Reopened {
			h.sendError(c, p.RoomID, rooms.ErrAlreadyReopened)
		} else {
			h.sendError(c, p.RoomID, rooms.ErrRoomNotClosed)
		}
		return
	}

	if err := h.registry.ReopenRoom(p.RoomID, p.NewExpiresAt); err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	h.logger.Info("room reopened", "room_id", p.RoomID, "user_id", who.ID)
	h.record(p.RoomID, models.RoomReopened, who.ID)
	h.broadcastRooms()
}

func (h *Hub) handleDisconnectRoom(c *Client, raw json.RawMessage) {
	var p DisconnectRoomPayload
	if !h.decode(c, raw, &p) {
		return
	}
	if _, ok := h.lookup(c, p.RoomID); !ok {
		delete(c.rooms, p.RoomID)
		return
	}

	userID, subscribed := c.rooms[p.RoomID]
	if !subscribed {
		who, err := h.actor(c, p.UserID, "", "")
		if err != nil {
			h.sendError(c, p.RoomID, err)
			return
		}
		userID = who.ID
	}
	delete(c.rooms, p.RoomID)

	if !h.subscribedElsewhere(p.RoomID, userID, c) && h.presence.Leave(p.RoomID, userID) {
		h.logger.Info("user left room", "room_id", p.RoomID, "user_id", userID)
	}
	h.broadcastCounts()
	h.sendInChat(p.RoomID)
}

func (h *Hub) handleConfirmDeleteRoom(c *Client, raw json.RawMessage) {
	var p ConfirmDeleteRoomPayload
	if !h.decode(c, raw, &p) {
		return
	}
	room, ok := h.lookup(c, p.RoomID)
	if !ok {
		return
	}
	who, err := h.actor(c, p.UserID, "", "")
	if err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	if room.CreatorID != who.ID {
		h.sendError(c, p.RoomID, rooms.ErrNotRoomOwner)
		return
	}
	if !p.Confirmed {
		return
	}

	if err := h.registry.DeleteRoom(p.RoomID); err != nil {
		h.sendError(c, p.RoomID, err)
		return
	}
	h.logger.Info("room deleted", "room_id", p.RoomID, "user_id", who.ID)
	h.record(p.RoomID, models.RoomDeleted, who.ID)

	h.broadcastRoom(p.RoomID, h.encode(TypeRoomDeleted, RoomDeletedPayload{RoomID: p.RoomID}), nil)
	for cl := range h.clients {
		delete(cl.rooms, p.RoomID)
	}
	h.broadcastRooms()
	h.broadcastCounts()
}

// leaveAll drops a closed connection from every room it had joined.
func (h *Hub) leaveAll(c *Client) {
	changed := false
	for roomID, userID := range c.rooms {
		delete(c.rooms, roomID)
		if h.subscribedElsewhere(roomID, userID, c) {
			continue
		}
		if h.presence.Leave(roomID, userID) {
			changed = true
			h.sendInChat(roomID)
		}
	}
	if changed {
		h.broadcastCounts()
	}
}
