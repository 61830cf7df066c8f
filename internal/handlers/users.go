package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/umar/forum-livechat/internal/rooms"
)

type membersResponse struct {
	RoomID string   `json:"roomId"`
	InChat []string `json:"inChat"`
}

// GetMembers lists the user ids currently in a room, in join order.
func GetMembers(presence *rooms.Presence) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]

		members := presence.Members(roomID)
		if members == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, membersResponse{RoomID: roomID, InChat: members})
	}
}
