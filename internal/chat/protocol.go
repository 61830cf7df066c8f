package chat

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/umar/forum-livechat/internal/models"
)

const (
	TypeCreateRoom        = "CREATE_ROOM"
	TypeJoinRoom          = "JOIN_ROOM"
	TypeSendRoomMessage   = "SEND_ROOM_MESSAGE"
	TypeReopenRoom        = "REOPEN_ROOM"
	TypeDisconnectRoom    = "DISCONNECT_ROOM"
	TypeConfirmDeleteRoom = "CONFIRM_DELETE_ROOM"
	TypePing              = "PING"

	TypeRooms       = "ROOMS"
	TypeJoinedRoom  = "JOINED_ROOM"
	TypeRoomMessage = "ROOM_MESSAGE"
	TypeCurrentUser = "CURRENT_USER"
	TypeInChat      = "IN_CHAT"
	TypeRoomDeleted = "ROOM_DELETED"
	TypeError       = "ERROR"
	TypePong        = "PONG"
)

type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound payloads. Field names follow the browser client; values are decoded
// weakly so "5" and 5 are both accepted for userLimit.

type CreateRoomPayload struct {
	RoomName    string `mapstructure:"roomName"`
	UserID      string `mapstructure:"userId"`
	UserLimit   int    `mapstructure:"userLimit"`
	CreatorName string `mapstructure:"creatorName"`
	SubForum    string `mapstructure:"subForum"`
	Avatar      string `mapstructure:"avatar"`
}

type JoinRoomPayload struct {
	RoomID string `mapstructure:"roomId"`
	UserID string `mapstructure:"userId"`
	Name   string `mapstructure:"name"`
	Avatar string `mapstructure:"avatar"`
}

type SendRoomMessagePayload struct {
	RoomID  string `mapstructure:"roomId"`
	UserID  string `mapstructure:"userId"`
	Message string `mapstructure:"message"`
	Name    string `mapstructure:"name"`
	Avatar  string `mapstructure:"avatar"`
}

type ReopenRoomPayload struct {
	RoomID       string    `mapstructure:"roomId"`
	UserID       string    `mapstructure:"userId"`
	NewExpiresAt time.Time `mapstructure:"newExpiresAt"`
}

type DisconnectRoomPayload struct {
	RoomID string `mapstructure:"roomId"`
	UserID string `mapstructure:"userId"`
}

type ConfirmDeleteRoomPayload struct {
	RoomID    string `mapstructure:"roomId"`
	UserID    string `mapstructure:"userId"`
	Confirmed bool   `mapstructure:"confirmed"`
}

// Outbound payloads.

type RoomView struct {
	ID          string `json:"roomId"`
	Name        string `json:"name"`
	CreatorID   string `json:"creatorId"`
	CreatorName string `json:"creatorName"`
	SubForum    string `json:"subForum"`
	UserLimit   int    `json:"userLimit"`
	ExpiresAt   int64  `json:"expiresAt"`
	Reopened    bool   `json:"reopened"`
	Status      string `json:"status"`
}

func newRoomView(s models.RoomSummary) RoomView {
	return RoomView{
		ID:          s.ID,
		Name:        s.Name,
		CreatorID:   s.CreatorID,
		CreatorName: s.CreatorName,
		SubForum:    s.SubForum,
		UserLimit:   s.UserLimit,
		ExpiresAt:   s.ExpiresAt.UnixMilli(),
		Reopened:    s.Reopened,
		Status:      s.Status,
	}
}

type RoomsPayload map[string]RoomView

type JoinedRoomPayload struct {
	RoomID   string           `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

type RoomMessagePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Time    string `json:"time"`
	Avatar  string `json:"avatar"`
}

type OnlineCount struct {
	OnlineUser int `json:"onlineUser"`
}

type CurrentUserPayload map[string]OnlineCount

type InChatPayload struct {
	RoomID string   `json:"roomId"`
	InChat []string `json:"inChat"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	RoomID  string `json:"roomId,omitempty"`
}

func NewWSMessage(msgType string, payload interface{}) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	msg := WSMessage{Type: msgType, Payload: p}
	return json.Marshal(msg)
}

// decodePayload decodes a raw JSON payload into out. A missing payload decodes
// as an empty object.
func decodePayload(raw json.RawMessage, out interface{}) error {
	fields := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			integerHook,
			timestampHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(fields)
}

var timeType = reflect.TypeOf(time.Time{})

// timestampHook turns unix milliseconds (as a number or digit string) into a
// time.Time. Anything else falls through to the RFC 3339 hook.
func timestampHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case float64:
		return time.UnixMilli(int64(v)), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
	}
	return data, nil
}

// integerHook refuses JSON numbers that would lose precision when stored in an
// int field, such as 2.7 or 1e20.
func integerHook(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	v, ok := data.(float64)
	if !ok || to.Kind() != reflect.Int {
		return data, nil
	}
	if v != math.Trunc(v) {
		return nil, fmt.Errorf("%v is not a whole number", v)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return nil, fmt.Errorf("%v is out of range", v)
	}
	return int(v), nil
}
