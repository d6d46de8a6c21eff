package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"typerace/internal/cache"
	"typerace/internal/service"
	"typerace/internal/transport/rest/handler"
	"typerace/internal/transport/ws"
)

// Container holds all dependencies for the router.
type Container struct {
	RoomService *service.RoomService
	Leaderboard cache.LeaderboardCache // may be nil
	WSHub       *ws.Hub
}

// NewRouter creates the API router. The client protocol is the WebSocket
// endpoint; the REST routes are read-only views for dashboards and checks.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(c.RoomService, c.Leaderboard)
	wsHandler := ws.NewHandler(c.WSHub, c.RoomService)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")
	v1.HandleFunc("/rooms/{id}", roomHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/rooms/{id}/leaderboard", roomHandler.Leaderboard).Methods("GET", "OPTIONS")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
