package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/services/status"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope of every message sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusUpdate is a status snapshot tagged with the server instance
type StatusUpdate struct {
	status.Snapshot
	ServerInstanceID string `json:"server_instance_id"`
}

// EventUpdate forwards a bus event to clients
type EventUpdate struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// WebSocketHandler streams auth and extraction progress to browser clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	status           *status.Service
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	recordThrottler  *rate.Limiter // Nil disables throttling of record events
	serverInstanceID string        // Clients use it to detect a server restart
}

// NewWebSocketHandler creates the status stream handler
func NewWebSocketHandler(statusService *status.Service, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		status:           statusService,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ThrottleInterval.Duration() > 0 {
		h.recordThrottler = rate.NewLimiter(rate.Every(config.ThrottleInterval.Duration()), 1)
		logger.Debug().
			Dur("interval", config.ThrottleInterval.Duration()).
			Msg("Throttler initialized for record events")
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket upgrades the connection and keeps it open until the client leaves
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.sendStatus(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	// Clients only read; drain to notice the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastStatus sends the current snapshot to all clients
func (h *WebSocketHandler) BroadcastStatus() {
	h.broadcast(WSMessage{Type: "status", Payload: h.currentStatus()})
}

// BroadcastEvent forwards a bus event to all clients
func (h *WebSocketHandler) BroadcastEvent(event interfaces.Event) {
	h.broadcast(WSMessage{
		Type:    "event",
		Payload: EventUpdate{Event: string(event.Type), Data: event.Payload},
	})
}

// SubscribeToEvents forwards auth and run events. Record events are throttled;
// every forwarded event is followed by a fresh snapshot.
func (h *WebSocketHandler) SubscribeToEvents(eventService interfaces.EventService) error {
	if eventService == nil {
		return nil
	}

	forward := func(ctx context.Context, event interfaces.Event) error {
		h.BroadcastEvent(event)
		h.BroadcastStatus()
		return nil
	}

	for _, eventType := range []interfaces.EventType{
		interfaces.EventAuthStateChanged,
		interfaces.EventRunStarted,
		interfaces.EventRunFinished,
	} {
		if err := eventService.Subscribe(eventType, forward); err != nil {
			return err
		}
	}

	return eventService.Subscribe(interfaces.EventRecordProcessed, func(ctx context.Context, event interfaces.Event) error {
		if h.recordThrottler != nil && !h.recordThrottler.Allow() {
			return nil
		}
		return forward(ctx, event)
	})
}

// StartStatusBroadcaster sends periodic snapshots until ctx is done
func (h *WebSocketHandler) StartStatusBroadcaster(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	common.SafeGoWithContext(ctx, h.logger, "statusBroadcaster", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.ClientCount() > 0 {
					h.BroadcastStatus()
				}
			}
		}
	})
}

func (h *WebSocketHandler) currentStatus() StatusUpdate {
	update := StatusUpdate{ServerInstanceID: h.serverInstanceID}
	if h.status != nil {
		update.Snapshot = h.status.Snapshot()
	} else {
		update.Timestamp = time.Now()
	}
	return update
}

func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	data, err := json.Marshal(WSMessage{Type: "status", Payload: h.currentStatus()})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal initial status")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial status")
		}
	}
}

func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}
