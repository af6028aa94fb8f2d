// Package realtime delivers newly triggered alerts to connected websocket
// clients. The core's contract ends at "this list triggered this tick";
// everything here is delivery.
package realtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/alimda/cryptofolio/internal/domain"
)

// Hub fans messages out to the connected clients. Dead connections are
// dropped on write failure.
type Hub struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:     log.With().Str("component", "realtime").Logger(),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// AddClient registers a connection for broadcasts.
func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

// RemoveClient unregisters and closes a connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJSON writes v to every client, dropping those that fail.
func (h *Hub) BroadcastJSON(v any) {
	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.RUnlock()

	for _, conn := range clients {
		if err := conn.WriteJSON(v); err != nil {
			h.log.Debug().Err(err).Msg("Dropping unresponsive websocket client")
			h.RemoveClient(conn)
		}
	}
}

// AlertNotification is the wire form of one fired alert.
type AlertNotification struct {
	Type    string           `json:"type"`
	Alert   domain.AlertRule `json:"alert"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// NotifyTriggered broadcasts one notification per fired rule.
func (h *Hub) NotifyTriggered(rules []domain.AlertRule, snapshot *domain.PriceSnapshot) {
	for _, rule := range rules {
		notification := AlertNotification{
			Type:    "alert_triggered",
			Alert:   rule,
			Message: alertMessage(rule, snapshot),
			At:      time.Now().UTC(),
		}
		h.BroadcastJSON(notification)
	}
}

var conditionPhrases = map[domain.AlertCondition]string{
	domain.ConditionAbove:      "rose above",
	domain.ConditionBelow:      "dropped below",
	domain.ConditionChangeUp:   "gained more than",
	domain.ConditionChangeDown: "lost more than",
}

// alertMessage renders a human-readable description of a fired rule.
func alertMessage(rule domain.AlertRule, snapshot *domain.PriceSnapshot) string {
	unit := "$"
	suffix := ""
	if rule.Condition.UsesChange() {
		unit = ""
		suffix = "%"
	}

	msg := fmt.Sprintf("%s %s %s%s%s", rule.AssetID,
		conditionPhrases[rule.Condition], unit, rule.Threshold.String(), suffix)

	if snapshot != nil {
		if price, ok := snapshot.Prices[rule.AssetID]; ok {
			msg += fmt.Sprintf(" (current price $%s)", price.String())
		}
	}
	return msg
}
