package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umar/forum-livechat/internal/models"
	"github.com/umar/forum-livechat/internal/rooms"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

type recordingJournal struct {
	events []models.RoomEvent
}

func (j *recordingJournal) Record(e models.RoomEvent) { j.events = append(j.events, e) }

func (j *recordingJournal) kinds() []string {
	var out []string
	for _, e := range j.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingMirror struct {
	counts map[string]int
	online []string
	calls  int
}

func (m *recordingMirror) Publish(counts map[string]int, online []string) {
	m.counts = counts
	m.online = online
	m.calls++
}

type fixture struct {
	hub      *Hub
	registry *rooms.Registry
	presence *rooms.Presence
	clock    *testClock
	journal  *recordingJournal
	mirror   *recordingMirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)}
	seq := 0
	registry := rooms.NewRegistry(
		rooms.WithClock(clock.Now),
		rooms.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("room-%d", seq)
		}),
	)
	presence := rooms.NewPresence(registry)
	f := &fixture{
		registry: registry,
		presence: presence,
		clock:    clock,
		journal:  &recordingJournal{},
		mirror:   &recordingMirror{},
	}
	f.hub = NewHub(registry, presence, Options{
		Mirror:     f.mirror,
		Journal:    f.journal,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		SendBuffer: 64,
	})
	return f
}

// connect registers a connection without a socket. Trusted connections get
// their identity from the query string in production; here it is set directly.
func (f *fixture) connect(t *testing.T, who models.Identity, verified bool) *Client {
	t.Helper()
	c := f.hub.newClient(nil, who, verified)
	f.hub.addClient(c)
	f.hub.flushEvictions()
	drain(c)
	return c
}

func (f *fixture) disconnect(c *Client) {
	f.hub.removeClient(c)
	f.hub.flushEvictions()
}

func (f *fixture) send(t *testing.T, c *Client, msgType string, payload map[string]interface{}) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	f.hub.dispatch(&inbound{client: c, msg: WSMessage{Type: msgType, Payload: raw}})
	f.hub.flushEvictions()
}

func (f *fixture) createRoom(t *testing.T, c *Client, name string, limit int) string {
	t.Helper()
	f.send(t, c, TypeCreateRoom, map[string]interface{}{
		"roomName":    name,
		"userId":      c.identity.ID,
		"userLimit":   limit,
		"creatorName": c.identity.Name,
		"subForum":    "general",
	})
	msgs := drain(c)
	require.NotEmpty(t, msgs)
	require.Equal(t, TypeJoinedRoom, msgs[0].Type, "got %+v", msgs)
	var joined JoinedRoomPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &joined))
	return joined.RoomID
}

func (f *fixture) join(t *testing.T, c *Client, roomID string) {
	t.Helper()
	f.send(t, c, TypeJoinRoom, map[string]interface{}{"roomId": roomID, "userId": c.identity.ID})
}

// drain returns everything queued for c without blocking.
func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func ofType(msgs []WSMessage, msgType string) []WSMessage {
	var out []WSMessage
	for _, m := range msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func lastError(t *testing.T, msgs []WSMessage) ErrorPayload {
	t.Helper()
	errs := ofType(msgs, TypeError)
	require.NotEmpty(t, errs, "expected an ERROR in %+v", msgs)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(errs[len(errs)-1].Payload, &p))
	return p
}

func decodeAs[T any](t *testing.T, msg WSMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(msg.Payload, &out))
	return out
}

var (
	alice = models.Identity{ID: "userA", Name: "alice"}
	bob   = models.Identity{ID: "userB", Name: "bob", Avatar: "/b.png"}
	carol = models.Identity{ID: "userC", Name: "carol"}
)

func TestConnectSendsSnapshots(t *testing.T) {
	f := newFixture(t)
	owner := f.connect(t, alice, false)
	roomID := f.createRoom(t, owner, "General", 3)

	c := f.hub.newClient(nil, bob, false)
	f.hub.addClient(c)
	msgs := drain(c)

	require.Len(t, msgs, 2)
	assert.Equal(t, TypeRooms, msgs[0].Type)
	assert.Equal(t, TypeCurrentUser, msgs[1].Type)

	roomsPayload := decodeAs[RoomsPayload](t, msgs[0])
	require.Contains(t, roomsPayload, roomID)
	assert.Equal(t, "General", roomsPayload[roomID].Name)
	assert.Equal(t, f.clock.Now().Add(rooms.DefaultTTL).UnixMilli(), roomsPayload[roomID].ExpiresAt)
	assert.Equal(t, CurrentUserPayload{roomID: {OnlineUser: 1}}, decodeAs[CurrentUserPayload](t, msgs[1]))
}

func TestCreateRoomBroadcasts(t *testing.T) {
	f := newFixture(t)
	owner := f.connect(t, alice, false)
	watcher := f.connect(t, bob, false)

	f.send(t, owner, TypeCreateRoom, map[string]interface{}{
		"roomName":    "General",
		"userId":      "userA",
		"userLimit":   "2",
		"creatorName": "alice",
		"subForum":    "golang",
	})

	ownerMsgs := drain(owner)
	require.Len(t, ownerMsgs, 4)
	assert.Equal(t, []string{TypeJoinedRoom, TypeRooms, TypeCurrentUser, TypeInChat},
		[]string{ownerMsgs[0].Type, ownerMsgs[1].Type, ownerMsgs[2].Type, ownerMsgs[3].Type})
	inChat := decodeAs[InChatPayload](t, ownerMsgs[3])
	assert.Equal(t, []string{"userA"}, inChat.InChat)

	watcherMsgs := drain(watcher)
	assert.Len(t, ofType(watcherMsgs, TypeRooms), 1)
	assert.Len(t, ofType(watcherMsgs, TypeCurrentUser), 1)
	assert.Empty(t, ofType(watcherMsgs, TypeInChat), "only room subscribers get IN_CHAT")

	room, err := f.registry.Room(inChat.RoomID)
	require.NoError(t, err)
	assert.Equal(t, 2, room.UserLimit)
	assert.Equal(t, "golang", room.SubForum)
	assert.Equal(t, []string{models.RoomCreated}, f.journal.kinds())
	assert.Equal(t, map[string]int{inChat.RoomID: 1}, f.mirror.counts)
}

func TestCreateRoomInvalid(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, alice, false)

	f.send(t, c, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userId": "userA", "userLimit": 0})
	assert.Equal(t, "INVALID_ROOM", lastError(t, drain(c)).Code)

	f.send(t, c, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userId": "userA", "userLimit": "lots"})
	assert.Equal(t, "INVALID_PAYLOAD", lastError(t, drain(c)).Code)

	f.send(t, c, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userId": "userA", "userLimit": 2.7})
	assert.Equal(t, "INVALID_PAYLOAD", lastError(t, drain(c)).Code)

	anon := f.connect(t, models.Identity{}, false)
	f.send(t, anon, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userLimit": 2})
	assert.Equal(t, "INVALID_PAYLOAD", lastError(t, drain(anon)).Code)

	assert.Equal(t, 0, f.registry.Len())
}

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	c := f.connect(t, carol, false)
	roomID := f.createRoom(t, a, "Pair", 2)

	f.join(t, a, roomID)
	assert.Empty(t, ofType(drain(a), TypeError))

	f.join(t, b, roomID)
	assert.Len(t, ofType(drain(b), TypeJoinedRoom), 1)

	f.join(t, c, roomID)
	errPayload := lastError(t, drain(c))
	assert.Equal(t, "ROOM_FULL", errPayload.Code)
	assert.Equal(t, roomID, errPayload.RoomID)

	assert.Equal(t, 2, f.presence.CountFor(roomID))
	assert.NotContains(t, c.rooms, roomID)
}

func TestJoinSendsHistoryAndPresence(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)

	f.send(t, a, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "first", "name": "alice"})
	drain(a)

	f.join(t, b, roomID)
	msgs := drain(b)
	joined := ofType(msgs, TypeJoinedRoom)
	require.Len(t, joined, 1)
	payload := decodeAs[JoinedRoomPayload](t, joined[0])
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "first", payload.Messages[0].Content)
	assert.Equal(t, "14:30", payload.Messages[0].Time)

	counts := ofType(msgs, TypeCurrentUser)
	require.NotEmpty(t, counts)
	assert.Equal(t, 2, decodeAs[CurrentUserPayload](t, counts[len(counts)-1])[roomID].OnlineUser)

	aMsgs := drain(a)
	inChat := ofType(aMsgs, TypeInChat)
	require.NotEmpty(t, inChat)
	assert.Equal(t, []string{"userA", "userB"}, decodeAs[InChatPayload](t, inChat[0]).InChat)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, alice, false)

	f.join(t, c, "nope")
	errPayload := lastError(t, drain(c))
	assert.Equal(t, "ROOM_NOT_FOUND", errPayload.Code)
	assert.Equal(t, "nope", errPayload.RoomID)
}

func TestSendRoomMessageRelay(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	outsider := f.connect(t, carol, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(a)
	drain(b)
	drain(outsider)

	for _, text := range []string{"one", "two", "three"} {
		f.send(t, b, TypeSendRoomMessage, map[string]interface{}{
			"roomId": roomID, "message": text, "name": "bob", "avatar": "/b.png",
		})
	}

	relayed := ofType(drain(a), TypeRoomMessage)
	require.Len(t, relayed, 3)
	var got []string
	for _, m := range relayed {
		p := decodeAs[RoomMessagePayload](t, m)
		assert.Equal(t, "bob", p.Name)
		assert.Equal(t, "/b.png", p.Avatar)
		assert.Equal(t, "14:30", p.Time)
		got = append(got, p.Message)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)

	assert.Empty(t, ofType(drain(b), TypeRoomMessage), "sender does not get its own message back")
	assert.Empty(t, drain(outsider))
}

func TestSendRoomMessageRejections(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	outsider := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)

	f.send(t, a, TypeSendRoomMessage, map[string]interface{}{"roomId": "missing", "message": "hi"})
	assert.Equal(t, "ROOM_NOT_FOUND", lastError(t, drain(a)).Code)

	f.send(t, outsider, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "hi"})
	assert.Equal(t, "NOT_MEMBER", lastError(t, drain(outsider)).Code)

	f.send(t, a, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "   "})
	assert.Equal(t, "EMPTY_MESSAGE", lastError(t, drain(a)).Code)

	msgs, err := f.registry.Messages(roomID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestExpireThenReopen(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(b)

	f.send(t, a, TypeReopenRoom, map[string]interface{}{"roomId": roomID})
	assert.Equal(t, "ROOM_NOT_CLOSED", lastError(t, drain(a)).Code)

	f.clock.t = f.clock.t.Add(rooms.DefaultTTL)
	f.hub.sweepRooms()
	closedRooms := ofType(drain(b), TypeRooms)
	require.Len(t, closedRooms, 1)
	assert.Equal(t, "closed", decodeAs[RoomsPayload](t, closedRooms[0])[roomID].Status)

	f.send(t, a, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "anyone?"})
	assert.Equal(t, "ROOM_CLOSED", lastError(t, drain(a)).Code)

	f.send(t, b, TypeReopenRoom, map[string]interface{}{"roomId": roomID})
	assert.Equal(t, "NOT_ROOM_OWNER", lastError(t, drain(b)).Code)

	newExpiry := f.clock.Now().Add(2 * time.Hour)
	f.send(t, a, TypeReopenRoom, map[string]interface{}{"roomId": roomID, "newExpiresAt": newExpiry.UnixMilli()})
	reopened := ofType(drain(b), TypeRooms)
	require.Len(t, reopened, 1)
	view := decodeAs[RoomsPayload](t, reopened[0])[roomID]
	assert.True(t, view.Reopened)
	assert.Equal(t, newExpiry.UnixMilli(), view.ExpiresAt)
	assert.Equal(t, "active", view.Status)

	f.send(t, a, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "we're back"})
	assert.Len(t, ofType(drain(b), TypeRoomMessage), 1)

	f.send(t, a, TypeReopenRoom, map[string]interface{}{"roomId": roomID})
	assert.Equal(t, "ALREADY_REOPENED", lastError(t, drain(a)).Code)

	f.clock.t = newExpiry
	f.send(t, a, TypeReopenRoom, map[string]interface{}{"roomId": roomID})
	assert.Equal(t, "ALREADY_REOPENED", lastError(t, drain(a)).Code)

	assert.Equal(t, []string{models.RoomCreated, models.RoomClosed, models.RoomReopened}, f.journal.kinds())
}

func TestReopenRejectsPastExpiry(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.clock.t = f.clock.t.Add(rooms.DefaultTTL + time.Hour)

	f.send(t, a, TypeReopenRoom, map[string]interface{}{
		"roomId":       roomID,
		"newExpiresAt": f.clock.Now().Add(-time.Minute).Format(time.RFC3339),
	})
	assert.Equal(t, "INVALID_EXPIRY", lastError(t, drain(a)).Code)

	room, err := f.registry.Room(roomID)
	require.NoError(t, err)
	assert.False(t, room.Reopened)
}

func TestJoinClosedRoom(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.clock.t = f.clock.t.Add(rooms.DefaultTTL)

	f.join(t, b, roomID)
	assert.Equal(t, "ROOM_CLOSED", lastError(t, drain(b)).Code)

	f.join(t, a, roomID)
	assert.Len(t, ofType(drain(a), TypeJoinedRoom), 1, "existing members can still open the room")
}

func TestDisconnectRoom(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(a)

	f.send(t, b, TypeDisconnectRoom, map[string]interface{}{"roomId": roomID, "userId": "userB"})

	assert.Equal(t, 1, f.presence.CountFor(roomID))
	assert.NotContains(t, b.rooms, roomID)
	inChat := ofType(drain(a), TypeInChat)
	require.NotEmpty(t, inChat)
	assert.Equal(t, []string{"userA"}, decodeAs[InChatPayload](t, inChat[0]).InChat)

	f.send(t, a, TypeDisconnectRoom, map[string]interface{}{"roomId": roomID, "userId": "userA"})
	assert.Equal(t, 0, f.presence.CountFor(roomID))
	_, err := f.registry.Room(roomID)
	assert.NoError(t, err, "empty rooms are kept")

	f.send(t, b, TypeDisconnectRoom, map[string]interface{}{"roomId": "gone", "userId": "userB"})
	assert.Equal(t, "ROOM_NOT_FOUND", lastError(t, drain(b)).Code)
}

func TestConfirmDeleteRoom(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	watcher := f.connect(t, carol, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(b)
	drain(watcher)

	f.send(t, b, TypeConfirmDeleteRoom, map[string]interface{}{"roomId": roomID, "confirmed": true})
	assert.Equal(t, "NOT_ROOM_OWNER", lastError(t, drain(b)).Code)

	f.send(t, a, TypeConfirmDeleteRoom, map[string]interface{}{"roomId": roomID, "confirmed": false})
	_, err := f.registry.Room(roomID)
	require.NoError(t, err, "cancelled delete keeps the room")

	f.send(t, a, TypeConfirmDeleteRoom, map[string]interface{}{"roomId": roomID, "confirmed": "true"})
	_, err = f.registry.Room(roomID)
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)

	bMsgs := drain(b)
	deleted := ofType(bMsgs, TypeRoomDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, roomID, decodeAs[RoomDeletedPayload](t, deleted[0]).RoomID)
	assert.NotContains(t, b.rooms, roomID)

	watcherMsgs := drain(watcher)
	assert.Empty(t, ofType(watcherMsgs, TypeRoomDeleted))
	roomsMsgs := ofType(watcherMsgs, TypeRooms)
	require.Len(t, roomsMsgs, 1)
	assert.NotContains(t, decodeAs[RoomsPayload](t, roomsMsgs[0]), roomID)

	f.send(t, b, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "hello?"})
	assert.Equal(t, "ROOM_NOT_FOUND", lastError(t, drain(b)).Code)
	f.join(t, b, roomID)
	assert.Equal(t, "ROOM_NOT_FOUND", lastError(t, drain(b)).Code)

	assert.Equal(t, []string{models.RoomCreated, models.RoomDeleted}, f.journal.kinds())
}

func TestTransportCloseLeavesRooms(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(a)

	f.disconnect(b)

	assert.Equal(t, []string{"userA"}, f.presence.Members(roomID))
	inChat := ofType(drain(a), TypeInChat)
	require.NotEmpty(t, inChat)
	assert.Equal(t, []string{"userA"}, decodeAs[InChatPayload](t, inChat[0]).InChat)
	assert.Equal(t, []string{"userA"}, f.mirror.online)

	drain(b)
	_, open := <-b.send
	assert.False(t, open, "send channel is closed on removal")

	f.disconnect(b)
}

func TestSecondTabKeepsMembership(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	tab1 := f.connect(t, bob, false)
	tab2 := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, tab1, roomID)
	f.join(t, tab2, roomID)
	assert.Equal(t, 2, f.presence.CountFor(roomID))

	f.disconnect(tab1)
	assert.True(t, f.presence.IsMember(roomID, "userB"))

	f.send(t, tab2, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "still here"})
	assert.Empty(t, ofType(drain(tab2), TypeError))

	f.disconnect(tab2)
	assert.False(t, f.presence.IsMember(roomID, "userB"))
}

func TestVerifiedIdentity(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, true)

	f.send(t, a, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userId": "userB", "userLimit": 2})
	assert.Equal(t, "IDENTITY_MISMATCH", lastError(t, drain(a)).Code)

	roomID := f.createRoom(t, a, "Mine", 2)
	room, err := f.registry.Room(roomID)
	require.NoError(t, err)
	assert.Equal(t, "userA", room.CreatorID)
	assert.Equal(t, "alice", room.CreatorName)

	b := f.connect(t, bob, true)
	f.join(t, b, roomID)
	drain(a)
	f.send(t, b, TypeSendRoomMessage, map[string]interface{}{"roomId": roomID, "message": "hi", "name": "mallory"})
	relayed := ofType(drain(a), TypeRoomMessage)
	require.Len(t, relayed, 1)
	assert.Equal(t, "bob", decodeAs[RoomMessagePayload](t, relayed[0]).Name, "token name wins over payload")
}

func TestRejoinAsAnotherUserIsRefused(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	roomID := f.createRoom(t, a, "General", 5)
	f.join(t, b, roomID)
	drain(b)

	f.send(t, b, TypeJoinRoom, map[string]interface{}{"roomId": roomID, "userId": "userX"})
	errPayload := lastError(t, drain(b))
	assert.Equal(t, "IDENTITY_MISMATCH", errPayload.Code)
	assert.Equal(t, roomID, errPayload.RoomID)
	assert.Equal(t, []string{"userA", "userB"}, f.presence.Members(roomID))
	assert.Equal(t, "userB", b.rooms[roomID])

	f.join(t, b, roomID)
	assert.Empty(t, ofType(drain(b), TypeError))

	f.disconnect(b)
	assert.Equal(t, []string{"userA"}, f.presence.Members(roomID))
	assert.Equal(t, 1, f.presence.CountFor(roomID))
}

func TestRejectedEventsKeepConnectionIdentity(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	b := f.connect(t, bob, false)
	c := f.connect(t, carol, false)
	roomID := f.createRoom(t, a, "Pair", 2)
	f.join(t, b, roomID)

	f.send(t, c, TypeJoinRoom, map[string]interface{}{"roomId": roomID, "userId": "userQ", "name": "mallory"})
	assert.Equal(t, "ROOM_FULL", lastError(t, drain(c)).Code)
	assert.Equal(t, carol, c.identity)

	f.send(t, c, TypeCreateRoom, map[string]interface{}{"roomName": "x", "userId": "userQ", "userLimit": 0})
	assert.Equal(t, "INVALID_ROOM", lastError(t, drain(c)).Code)
	assert.Equal(t, carol, c.identity)

	drain(b)
	other := f.createRoom(t, b, "Other", 3)
	f.send(t, c, TypeJoinRoom, map[string]interface{}{"roomId": other, "userId": "userQ", "name": "quinn"})
	assert.Empty(t, ofType(drain(c), TypeError))
	assert.Equal(t, models.Identity{ID: "userQ", Name: "quinn"}, c.identity)
}

func TestPingUnknownAndMalformed(t *testing.T) {
	f := newFixture(t)
	c := f.connect(t, alice, false)

	f.send(t, c, TypePing, nil)
	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, TypePong, msgs[0].Type)

	f.send(t, c, "DANCE", nil)
	assert.Equal(t, "UNKNOWN_EVENT", lastError(t, drain(c)).Code)

	f.hub.dispatch(&inbound{client: c, decodeErr: fmt.Errorf("unexpected EOF")})
	assert.Equal(t, "INVALID_PAYLOAD", lastError(t, drain(c)).Code)

	f.hub.dispatch(&inbound{client: c, msg: WSMessage{Type: TypePing}, throttled: true})
	assert.Equal(t, "RATE_LIMITED", lastError(t, drain(c)).Code)
}

func TestSlowClientIsDropped(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	slow := f.connect(t, bob, false)

	for i := 0; i < cap(slow.send)+1; i++ {
		f.send(t, a, TypeCreateRoom, map[string]interface{}{
			"roomName": fmt.Sprintf("r%d", i), "userId": "userA", "userLimit": 2,
		})
		drain(a)
	}

	assert.False(t, f.hub.clients[slow])
	assert.True(t, f.hub.clients[a])
}

func TestSweepWithoutChangesIsQuiet(t *testing.T) {
	f := newFixture(t)
	a := f.connect(t, alice, false)
	f.createRoom(t, a, "General", 5)

	f.hub.sweepRooms()
	assert.Empty(t, drain(a))
}
