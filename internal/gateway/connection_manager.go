package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/techclash/arena/internal/arbiter"
	"github.com/techclash/arena/internal/clock"
	"github.com/techclash/arena/internal/engine"
	"github.com/techclash/arena/internal/events"
)

// EngineClient is what the gateway needs from the engine: buzzes go in,
// snapshots come out. The engine's command loop serializes everything else.
type EngineClient interface {
	Press(ctx context.Context, gameID string, questionID, teamID uuid.UUID) (engine.PressAck, error)
	Snapshot(ctx context.Context, gameID string) (*engine.Snapshot, error)
}

// ConnectionManager manages websocket subscriptions per game and fans engine
// events out to them. It never owns game state: unsubscribing a connection
// leaves the engine untouched.
type ConnectionManager struct {
	// Connection pools organized by game ID
	gameConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	engine   EngineClient

	broadcastCh chan BroadcastMessage
}

// Connection represents one subscribed websocket client.
type Connection struct {
	ID      string
	GameID  string
	Role    Role
	TeamID  *uuid.UUID // set for team connections only
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	// closed marks Send as closed; guarded by Manager.mu.
	closed bool
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents an event to fan out to a game's subscribers.
type BroadcastMessage struct {
	GameID string
	Event  *events.Event
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new websocket connection manager.
func NewConnectionManager(config ConnectionConfig, eng EngineClient) *ConnectionManager {
	return &ConnectionManager{
		gameConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		engine:      eng,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket subscription and
// immediately queues a state snapshot, so a reconnecting client converges
// before the next periodic tick.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, gameID string, role Role, teamID *uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		GameID:      gameID,
		Role:        role,
		TeamID:      teamID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)
	connection.sendSnapshot(r.Context())

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("game_id", gameID).
		Str("role", string(role)).
		Msg("websocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.gameConnections[conn.GameID] == nil {
		cm.gameConnections[conn.GameID] = make(map[*Connection]bool)
	}
	cm.gameConnections[conn.GameID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("game_id", conn.GameID).
		Int("total_connections", len(cm.gameConnections[conn.GameID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.gameConnections[conn.GameID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			conn.closed = true
			close(conn.Send)

			if len(connections) == 0 {
				delete(cm.gameConnections, conn.GameID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("game_id", conn.GameID).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToGame sends an event to all subscribers of a game. Delivery is
// at most once per connection; a dropped tick is superseded by the next one.
func (cm *ConnectionManager) BroadcastToGame(gameID string, event *events.Event) {
	select {
	case cm.broadcastCh <- BroadcastMessage{GameID: gameID, Event: event}:
	default:
		log.Warn().Str("game_id", gameID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.gameConnections[message.GameID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the pool so the lock is not held during sends.
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	frame := OutboundMessage{
		Type:      string(message.Event.Type),
		GameID:    message.Event.GameID,
		Timestamp: message.Event.Timestamp,
		Payload:   message.Event.Payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.trySend(data) {
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("game_id", message.GameID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	totalConnections := 0
	gameCounts := make(map[string]int)

	for gameID, connections := range cm.gameConnections {
		count := len(connections)
		totalConnections += count
		gameCounts[gameID] = count
	}

	return map[string]interface{}{
		"total_connections": totalConnections,
		"active_games":      len(cm.gameConnections),
		"game_connections":  gameCounts,
	}
}

// writePump handles sending messages to the websocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the websocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes an inbound frame: buzzer presses from team
// connections and snapshot requests from anyone.
func (c *Connection) handleClientMessage(message []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("bad_message", "message is not valid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case inboundTypePress:
		c.handlePress(ctx, msg)
	case inboundTypeRequestSnapshot:
		c.sendSnapshot(ctx)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message")
	}
}

func (c *Connection) handlePress(ctx context.Context, msg InboundMessage) {
	if c.Role != RoleTeam || c.TeamID == nil {
		c.sendError("forbidden", "only team connections may press")
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		c.sendError("bad_message", "invalid question_id")
		return
	}

	ack, err := c.Manager.engine.Press(ctx, c.GameID, questionID, *c.TeamID)
	if err != nil {
		c.sendError(pressErrorCode(err), err.Error())
		return
	}
	c.sendMessage(messageTypePressAck, ack)
}

// sendSnapshot queues the authoritative game state to this connection only.
// No events are replayed from history; current truth is enough.
func (c *Connection) sendSnapshot(ctx context.Context) {
	snap, err := c.Manager.engine.Snapshot(ctx, c.GameID)
	if err != nil {
		if errors.Is(err, engine.ErrNotActive) {
			// No live round yet: the client renders an idle clock.
			snap = &engine.Snapshot{
				GameID:     c.GameID,
				ClockState: clock.StateIdle,
				TakenAt:    time.Now(),
			}
		} else {
			c.sendError("unknown_game", err.Error())
			return
		}
	}
	c.sendMessage(messageTypeSnapshot, snap)
}

func (c *Connection) sendError(code, message string) {
	c.sendMessage(messageTypeError, ErrorPayload{Code: code, Message: message})
}

func (c *Connection) sendMessage(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal outbound payload")
		return
	}
	frame, err := json.Marshal(OutboundMessage{
		Type:      msgType,
		GameID:    c.GameID,
		Timestamp: time.Now(),
		Payload:   data,
	})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal outbound frame")
		return
	}
	if !c.trySend(frame) {
		log.Warn().
			Str("connection_id", c.ID).
			Str("type", msgType).
			Msg("send buffer full or connection gone, dropping message")
	}
}

// trySend queues a frame unless the connection was already unregistered.
// Holding the manager lock orders the send against close(Send) in
// unregisterConnection; sends come from the read pump and the broadcast
// goroutine while unregisters come from either pump or a slow-connection
// drop, so the channel may close between any two frames.
func (c *Connection) trySend(data []byte) bool {
	c.Manager.mu.RLock()
	defer c.Manager.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func pressErrorCode(err error) string {
	switch {
	case errors.Is(err, arbiter.ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, arbiter.ErrDuplicateAttempt):
		return "duplicate_attempt"
	case errors.Is(err, arbiter.ErrUnknownTeam):
		return "unknown_team"
	case errors.Is(err, arbiter.ErrNoWindow):
		return "no_window"
	case errors.Is(err, engine.ErrRoundNotRunning):
		return "round_not_running"
	case errors.Is(err, engine.ErrNotActive), errors.Is(err, engine.ErrUnknownGame):
		return "unknown_game"
	default:
		return "internal"
	}
}
