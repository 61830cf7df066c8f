package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/umar/forum-livechat/internal/auth"
	"github.com/umar/forum-livechat/internal/rooms"
)

// GetMessages returns a room's history to a caller who is currently in it.
func GetMessages(registry *rooms.Registry, presence *rooms.Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]
		who, _ := auth.IdentityFromContext(r.Context())

		messages, err := registry.Messages(roomID)
		if err != nil {
			writeRoomError(w, roomID, err)
			return
		}
		if !presence.IsMember(roomID, who.ID) {
			writeError(w, http.StatusForbidden, "not a member of this room")
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}
