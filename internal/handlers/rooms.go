// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/svalle/lamente/internal/room"
)

// ListRoomsHandler answers GET /rooms with a JSON listing of active rooms.
func ListRoomsHandler(registry *room.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(registry.Snapshot())
	}
}
