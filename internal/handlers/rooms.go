package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/umar/forum-livechat/internal/models"
	"github.com/umar/forum-livechat/internal/rooms"
)

// ListRooms returns every live room with its online count, oldest first.
func ListRooms(registry *rooms.Registry, presence *rooms.Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subForum := r.URL.Query().Get("subForum")
		counts := presence.Counts()

		out := []models.RoomWithPresence{}
		for _, room := range registry.Rooms() {
			if subForum != "" && room.SubForum != subForum {
				continue
			}
			out = append(out, models.RoomWithPresence{RoomSummary: room, OnlineUsers: counts[room.ID]})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetRoom(registry *rooms.Registry, presence *rooms.Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]

		room, err := registry.Room(roomID)
		if err != nil {
			writeRoomError(w, roomID, err)
			return
		}
		writeJSON(w, http.StatusOK, models.RoomWithPresence{
			RoomSummary: room,
			OnlineUsers: presence.CountFor(roomID),
		})
	}
}

func writeRoomError(w http.ResponseWriter, roomID string, err error) {
	if errors.Is(err, rooms.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	slog.Error("failed to load room", "room_id", roomID, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
