// AngelaMos | 2026
// hub.go

package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

type Group string

const (
	GroupDashboard Group = "dashboard"
	GroupMobile    Group = "mobile"
)

func ParseGroup(s string) (Group, bool) {
	switch Group(s) {
	case GroupDashboard, GroupMobile:
		return Group(s), true
	}
	return "", false
}

const EventTreePlanted = "tree-planted"

type Event struct {
	Type      string  `json:"type"`
	MissionID int64   `json:"missionId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// Hub tracks connected observers per group. A client belongs to exactly
// one group at a time.
type Hub struct {
	mu      sync.RWMutex
	groups  map[Group]map[*Client]struct{}
	member  map[*Client]Group
	dropped atomic.Int64
	closed  bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		groups: map[Group]map[*Client]struct{}{
			GroupDashboard: {},
			GroupMobile:    {},
		},
		member: make(map[*Client]Group),
		logger: logger,
	}
}

// join moves c into g. It reports false once the hub is closed.
func (h *Hub) join(c *Client, g Group) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	if prev, ok := h.member[c]; ok {
		delete(h.groups[prev], c)
	}
	h.groups[g][c] = struct{}{}
	h.member[c] = g
	return true
}

// leave removes c and closes its send channel. Safe to call twice.
func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.member[c]
	if !ok {
		return
	}
	delete(h.groups[g], c)
	delete(h.member, c)
	close(c.send)
}

// Broadcast queues payload for every client in g and returns how many
// accepted it. Clients whose buffer is full miss the frame.
func (h *Hub) Broadcast(g Group, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.groups[g] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Warn("realtime frame dropped for slow client",
				"group", string(g),
			)
		}
	}

	return delivered
}

func (h *Hub) Count(g Group) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[g])
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client and refuses later joins.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for c, g := range h.member {
		delete(h.groups[g], c)
		delete(h.member, c)
		close(c.send)
	}
}
