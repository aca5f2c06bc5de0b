package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Role is a connection's declared role. Connections default to display
// until they send an explicit register handshake.
type Role string

// Connection roles.
const (
	RoleDisplay Role = "display"
	RoleAdmin   Role = "admin"
	RoleBot     Role = "bot"
)

// ConnInfo describes one live push-socket session.
type ConnInfo struct {
	ID            string
	Role          Role
	Remote        string
	EstablishedAt time.Time
}

// Counts is a point-in-time census of all transports.
type Counts struct {
	Displays    []ConnInfo
	AdminCount  int
	BotCount    int
	LegacyCount int
	Total       int
}

// Registry owns all live connection records. Adapters hold a reference;
// nothing reads it as ambient global state.
type Registry struct {
	mu       sync.Mutex
	conns    map[string]*ConnInfo
	legacy   map[string]time.Time
	onChange func(Counts)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns:  make(map[string]*ConnInfo),
		legacy: make(map[string]time.Time),
	}
}

// SetOnChange installs a hook invoked after every census change. The
// hook runs outside the registry lock.
func (r *Registry) SetOnChange(hook func(Counts)) {
	r.mu.Lock()
	r.onChange = hook
	r.mu.Unlock()
}

// NewID returns a fresh opaque session identifier.
func (r *Registry) NewID() string {
	return xid.New().String()
}

// Register records a new push-socket connection.
func (r *Registry) Register(id string, role Role, remote string) {
	r.mu.Lock()
	r.conns[id] = &ConnInfo{ID: id, Role: role, Remote: remote, EstablishedAt: time.Now()}
	counts, hook := r.snapshotLocked()
	r.mu.Unlock()
	notify(hook, counts)
}

// UpdateRole changes a connection's role. Returns false for unknown ids.
func (r *Registry) UpdateRole(id string, role Role) bool {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		conn.Role = role
	}
	counts, hook := r.snapshotLocked()
	r.mu.Unlock()
	if ok {
		notify(hook, counts)
	}
	return ok
}

// Unregister removes a push-socket connection.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	counts, hook := r.snapshotLocked()
	r.mu.Unlock()
	notify(hook, counts)
}

// RegisterLegacy records a raw-socket connection. The legacy transport
// has no role concept; these count only toward the legacy total.
func (r *Registry) RegisterLegacy(id string) {
	r.mu.Lock()
	r.legacy[id] = time.Now()
	counts, hook := r.snapshotLocked()
	r.mu.Unlock()
	notify(hook, counts)
}

// UnregisterLegacy removes a raw-socket connection.
func (r *Registry) UnregisterLegacy(id string) {
	r.mu.Lock()
	delete(r.legacy, id)
	counts, hook := r.snapshotLocked()
	r.mu.Unlock()
	notify(hook, counts)
}

// Snapshot returns the current census.
func (r *Registry) Snapshot() Counts {
	r.mu.Lock()
	counts, _ := r.snapshotLocked()
	r.mu.Unlock()
	return counts
}

func (r *Registry) snapshotLocked() (Counts, func(Counts)) {
	counts := Counts{LegacyCount: len(r.legacy)}
	for _, conn := range r.conns {
		switch conn.Role {
		case RoleAdmin:
			counts.AdminCount++
		case RoleBot:
			counts.BotCount++
		default:
			counts.Displays = append(counts.Displays, *conn)
		}
	}
	sort.Slice(counts.Displays, func(i, j int) bool {
		return counts.Displays[i].ID < counts.Displays[j].ID
	})
	counts.Total = len(r.conns) + len(r.legacy)
	return counts, r.onChange
}

func notify(hook func(Counts), counts Counts) {
	if hook != nil {
		hook(counts)
	}
}
