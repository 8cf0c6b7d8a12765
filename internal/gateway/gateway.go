// Package gateway is the group-addressed publish/subscribe fabric.
// Delivery is at-most-once and best-effort: a publish to a group reaches
// current members only, and a send failure drops the message for that
// member. The offer timeout is the correctness backstop for non-delivery.
package gateway

import (
	"log/slog"
	"sync"
)

// Group names follow the wire contract the mobile clients already use.
const AllDrivers = "drivers"

func DriverGroup(driverID string) string       { return "drivers_" + driverID }
func PassengerGroup(passengerID string) string { return "passenger_" + passengerID }

// Sender is one connected participant's outbound channel.
type Sender interface {
	Send(v any) error
}

// Hub maps group ids to their current members.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[Sender]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{groups: make(map[string]map[Sender]struct{}), logger: logger}
}

func (h *Hub) Join(group string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[Sender]struct{})
		h.groups[group] = members
	}
	members[s] = struct{}{}
}

func (h *Hub) Leave(group string, s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// LeaveAll removes the sender from every group it belongs to.
func (h *Hub) LeaveAll(s Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for group, members := range h.groups {
		delete(members, s)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Publish sends v to every current member of the group. No queuing for
// absent members, no acknowledgement.
func (h *Hub) Publish(group string, v any) {
	h.mu.RLock()
	members := make([]Sender, 0, len(h.groups[group]))
	for s := range h.groups[group] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		if err := s.Send(v); err != nil {
			h.logger.Warn("publish dropped", "group", group, "error", err)
		}
	}
}

// MemberCount is used by tests and the ops surface.
func (h *Hub) MemberCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
