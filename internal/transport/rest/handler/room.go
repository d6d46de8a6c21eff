package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"typerace/internal/cache"
	"typerace/internal/service"
)

// RoomHandler serves read-only room views.
type RoomHandler struct {
	roomSvc     *service.RoomService
	leaderboard cache.LeaderboardCache
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(roomSvc *service.RoomService, leaderboard cache.LeaderboardCache) *RoomHandler {
	return &RoomHandler{roomSvc: roomSvc, leaderboard: leaderboard}
}

// Get handles GET /v1/rooms/{id}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, ok := h.roomSvc.GetSnapshot(id)
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Leaderboard handles GET /v1/rooms/{id}/leaderboard.
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if h.leaderboard == nil {
		writeError(w, http.StatusNotImplemented, "leaderboard not enabled")
		return
	}

	id := mux.Vars(r)["id"]
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.leaderboard.GetTop(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
