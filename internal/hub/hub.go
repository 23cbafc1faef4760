package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/evmarket/internal/metrics"
)

// Server-to-client event names.
const (
	EventReceiveMessage = "ReceiveMessage"
	EventUserJoined     = "UserJoined"
	EventUserLeft       = "UserLeft"
	EventError          = "Error"
)

// Frame is the envelope written to clients.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub routes events to the connections that joined a named group. Group
// names are stringified conversation ids. Membership is in-memory only.
type Hub struct {
	mu          sync.RWMutex
	conns       map[*Conn]struct{}
	groups      map[string]map[*Conn]struct{}
	memberships map[*Conn]map[string]struct{}
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		conns:       make(map[*Conn]struct{}),
		groups:      make(map[string]map[*Conn]struct{}),
		memberships: make(map[*Conn]map[string]struct{}),
	}
}

// Register tracks a newly opened connection.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		return
	}
	h.conns[c] = struct{}{}
	metrics.HubConnections.Inc()
}

// Join adds c to group and announces it to the group's members, c included.
// Joining a group twice is a no-op.
func (h *Hub) Join(c *Conn, group string) error {
	if group == "" {
		return fmt.Errorf("group name is required")
	}

	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("connection %s is not registered", c.ID)
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Conn]struct{})
		h.groups[group] = members
	}
	if _, already := members[c]; already {
		h.mu.Unlock()
		return nil
	}
	members[c] = struct{}{}
	if h.memberships[c] == nil {
		h.memberships[c] = make(map[string]struct{})
	}
	h.memberships[c][group] = struct{}{}
	h.mu.Unlock()

	slog.Debug("Connection joined group", "conn_id", c.ID, "user_id", c.UserID, "group", group)
	h.Publish(group, EventUserJoined, fmt.Sprintf("%s has joined the group %s.", c.ID, group))
	return nil
}

// Leave removes c from group and announces it to the remaining members.
// Leaving a group that c never joined is a no-op.
func (h *Hub) Leave(c *Conn, group string) {
	h.mu.Lock()
	if !h.removeLocked(c, group) {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	slog.Debug("Connection left group", "conn_id", c.ID, "user_id", c.UserID, "group", group)
	h.Publish(group, EventUserLeft, fmt.Sprintf("%s has left the group %s.", c.ID, group))
}

// Disconnect removes c from every group without announcements and closes
// its send queue.
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	for group := range h.memberships[c] {
		h.removeLocked(c, group)
	}
	delete(h.memberships, c)
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		metrics.HubConnections.Dec()
	}
	h.mu.Unlock()

	c.close()
}

// removeLocked drops one membership. h.mu must be held.
func (h *Hub) removeLocked(c *Conn, group string) bool {
	members, ok := h.groups[group]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, group)
	}
	if groups := h.memberships[c]; groups != nil {
		delete(groups, group)
	}
	return true
}

// Publish delivers an event to the members of group at call time. It never
// blocks: a connection whose queue is full misses the event. It returns how
// many connections the event was queued for.
func (h *Hub) Publish(group, event string, data any) int {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		slog.Error("Failed to encode hub event", "event", event, "group", group, "error", err)
		return 0
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.enqueue(frame) {
			delivered++
			metrics.HubEventsDelivered.WithLabelValues(event).Inc()
			continue
		}
		metrics.HubEventsDropped.WithLabelValues(event).Inc()
		slog.Warn("Hub connection queue full, dropping event",
			"conn_id", c.ID, "user_id", c.UserID, "event", event, "group", group)
	}
	return delivered
}

// SendTo queues an event for a single connection, for replies such as errors.
func (h *Hub) SendTo(c *Conn, event string, data any) bool {
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return false
	}
	return c.enqueue(frame)
}

// Members returns the number of connections in group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// GroupsOf returns the groups c currently belongs to.
func (h *Hub) GroupsOf(c *Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.memberships[c]))
	for g := range h.memberships[c] {
		out = append(out, g)
	}
	return out
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
