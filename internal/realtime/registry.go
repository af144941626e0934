// README: Connection registry maps each account to its single live push connection.
package realtime

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tripnow/internal/observability"
	"tripnow/internal/types"
)

var (
	ErrNotConnected = errors.New("account has no live connection")
	ErrSlowConsumer = errors.New("connection send buffer full")
	ErrClosed       = errors.New("connection closed")
)

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

// ParseRole accepts the client spellings of the two roles.
func ParseRole(v string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "rider", "user":
		return RoleRider, true
	case "driver", "captain":
		return RoleDriver, true
	}
	return "", false
}

// Message is the wire envelope for every push event.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Sender interface {
	Send(msg Message) error
}

// Handle identifies one registration. Only the holder of the current
// handle can remove an account's entry.
type Handle struct {
	AccountID types.ID
	ID        string
}

type entry struct {
	handle string
	role   Role
	conn   Sender
}

type Registry struct {
	mu      sync.RWMutex
	entries map[types.ID]entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[types.ID]entry)}
}

// Connect makes conn the account's live connection, replacing any earlier
// one. The replaced connection is not closed here.
func (r *Registry) Connect(accountID types.ID, role Role, conn Sender) Handle {
	h := Handle{AccountID: accountID, ID: uuid.NewString()}

	r.mu.Lock()
	prev, replaced := r.entries[accountID]
	r.entries[accountID] = entry{handle: h.ID, role: role, conn: conn}
	r.mu.Unlock()

	if replaced {
		observability.ConnectedClients.WithLabelValues(string(prev.role)).Dec()
	}
	observability.ConnectedClients.WithLabelValues(string(role)).Inc()
	return h
}

// Disconnect removes the entry only if h is still the current handle, so a
// late disconnect from a superseded connection leaves the newer one alone.
func (r *Registry) Disconnect(h Handle) bool {
	r.mu.Lock()
	e, ok := r.entries[h.AccountID]
	if !ok || e.handle != h.ID {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, h.AccountID)
	r.mu.Unlock()

	observability.ConnectedClients.WithLabelValues(string(e.role)).Dec()
	return true
}

// Send delivers one event to the account's live connection.
func (r *Registry) Send(accountID types.ID, event string, payload any) error {
	r.mu.RLock()
	e, ok := r.entries[accountID]
	r.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return e.conn.Send(Message{Event: event, Data: payload})
}

func (r *Registry) IsOnline(accountID types.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[accountID]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
