package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/catalog"
)

// DefaultAnimation is shown when no persisted state exists.
const DefaultAnimation = "anim1.html"

// DisplayState is the authoritative record of what is currently shown.
// Current is empty when nothing is displayed.
type DisplayState struct {
	Current string
	Kind    catalog.Kind
}

// NotFoundError reports a rejected change with the remediation listing.
type NotFoundError struct {
	ID        string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("media %q not found", e.ID)
}

// PersistError reports that the durable write failed after the in-memory
// state already applied. Memory stays authoritative.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist state: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// persistedState is the on-disk layout of state.json.
type persistedState struct {
	CurrentAnimation *string `json:"current_animation"`
}

// Store owns the display state. All mutation goes through Apply and
// Clear; Snapshot never blocks on a writer.
type Store struct {
	path    string
	catalog *catalog.Catalog
	log     *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[DisplayState]
}

// NewStore loads the persisted state from path, defaulting when the file
// is absent or corrupt.
func NewStore(path string, cat *catalog.Catalog, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{path: path, catalog: cat, log: log}
	s.current.Store(s.load())
	return s
}

func (s *Store) load() *DisplayState {
	data, err := os.ReadFile(s.path)
	if err == nil {
		var persisted persistedState
		if json.Unmarshal(data, &persisted) == nil {
			if persisted.CurrentAnimation == nil {
				return &DisplayState{Kind: catalog.KindNone}
			}
			kind, resolveErr := s.catalog.Resolve(*persisted.CurrentAnimation)
			if resolveErr != nil {
				// Stale identifier is tolerated; surfaced lazily on read.
				kind = catalog.KindNone
			}
			return &DisplayState{Current: *persisted.CurrentAnimation, Kind: kind}
		}
		s.log.Warn("state file corrupt, using default", zap.String("path", s.path))
	}
	fallback := DefaultAnimation
	st := &DisplayState{Current: fallback, Kind: catalog.KindAnimation}
	if err := s.persist(&fallback); err != nil {
		s.log.Warn("initial state write failed", zap.Error(err))
	}
	return st
}

// Apply validates id against the catalog and replaces the current state.
// A *NotFoundError leaves state untouched. A *PersistError means the
// change applied in memory but the durable write failed.
func (s *Store) Apply(id string) (catalog.Kind, error) {
	kind, err := s.catalog.Resolve(id)
	if err != nil {
		return catalog.KindNone, &NotFoundError{ID: id, Available: s.catalog.ListAll()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&DisplayState{Current: id, Kind: kind})
	if err := s.persist(&id); err != nil {
		s.log.Error("state persist failed", zap.String("media", id), zap.Error(err))
		return kind, &PersistError{Err: err}
	}
	return kind, nil
}

// Clear sets the state to nothing-displayed. It never fails; a persist
// error is logged only.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(&DisplayState{Kind: catalog.KindNone})
	if err := s.persist(nil); err != nil {
		s.log.Error("state persist failed on clear", zap.Error(err))
	}
}

// Snapshot returns the current state without blocking writers.
func (s *Store) Snapshot() DisplayState {
	return *s.current.Load()
}

func (s *Store) persist(current *string) error {
	payload, err := json.MarshalIndent(persistedState{CurrentAnimation: current}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
