package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/umar/forum-livechat/internal/models"
)

// EventLister reads journaled lifecycle events, newest first.
type EventLister func(ctx context.Context, roomID string, limit int) ([]models.RoomEvent, error)

// GetRoomEvents serves the moderation history of a room. Deleted rooms keep
// their history.
func GetRoomEvents(list EventLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 500 {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}

		events, err := list(r.Context(), roomID, limit)
		if err != nil {
			slog.Error("failed to list room events", "room_id", roomID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if events == nil {
			events = []models.RoomEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
