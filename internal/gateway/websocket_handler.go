package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for game connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleGameConnection handles WebSocket connections for a specific game
func (h *WebSocketHandler) HandleGameConnection(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}

	// Default to a read-only viewer when no role is given
	role := Role(r.URL.Query().Get("role"))
	switch role {
	case RoleOperator, RoleViewer, RoleTeam:
	case "":
		role = RoleViewer
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	// Team connections must identify themselves to press the buzzer.
	// In production this would come from a JWT token or session.
	var teamID *uuid.UUID
	if role == RoleTeam {
		id, err := uuid.Parse(r.URL.Query().Get("team_id"))
		if err != nil {
			http.Error(w, "team_id is required for team connections", http.StatusBadRequest)
			return
		}
		teamID = &id
	}

	if err := h.connectionManager.UpgradeConnection(w, r, gameID, role, teamID); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID).
			Str("role", string(role)).
			Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}

	// Connection is now handled by the connection manager
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/game", h.HandleGameConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
