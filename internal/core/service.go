package core

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
)

// ScenePair maps one external scene name to a media identifier.
type ScenePair struct {
	Scene string
	Media string
}

// SceneMapping is an ordered scene translation table; first match wins.
type SceneMapping []ScenePair

// defaultSceneTable is the built-in fallback when neither an inline nor
// a configured mapping matches. Scene names compare case-insensitively.
var defaultSceneTable = SceneMapping{
	{Scene: "gaming", Media: "anim1.html"},
	{Scene: "chatting", Media: "anim2.html"},
	{Scene: "brb", Media: "anim3.html"},
	{Scene: "be right back", Media: "anim3.html"},
	{Scene: "starting", Media: "anim1.html"},
	{Scene: "ending", Media: "anim2.html"},
}

// Result describes an accepted media change.
type Result struct {
	Previous  string
	Current   string
	MediaType catalog.Kind
	Message   string
}

// StatusSnapshot is the full status served to any transport.
type StatusSnapshot struct {
	Current      string
	MediaType    catalog.Kind
	Animations   []string
	Videos       []string
	AllMedia     []string
	Counts       registry.Counts
	OBSConnected bool
}

// Service is the single mutation path shared by every trigger adapter.
// Adapters translate their wire formats and delegate here.
type Service struct {
	state    *state.Store
	catalog  *catalog.Catalog
	bus      *bus.Bus
	registry *registry.Registry
	mapping  SceneMapping
	log      *zap.Logger

	obsConnected func() bool
}

// NewService wires the trigger service.
func NewService(st *state.Store, cat *catalog.Catalog, b *bus.Bus, reg *registry.Registry, mapping SceneMapping, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{state: st, catalog: cat, bus: b, registry: reg, mapping: mapping, log: log}
}

// SetOBSProbe installs the external-tool connectivity probe used in
// status reports.
func (s *Service) SetOBSProbe(probe func() bool) {
	s.obsConnected = probe
}

// Trigger applies a media change and broadcasts it. A *state.NotFoundError
// rejects without mutation; a persistence failure is logged and the
// change still counts as accepted (memory is the fast path).
func (s *Service) Trigger(id string, cause bus.Cause) (Result, error) {
	previous := s.state.Snapshot().Current

	kind, err := s.state.Apply(id)
	if err != nil {
		var persistErr *state.PersistError
		if errors.As(err, &persistErr) {
			s.log.Warn("state change not yet durable", zap.String("media", id), zap.Error(err))
		} else {
			return Result{}, err
		}
	}

	result := Result{
		Previous:  previous,
		Current:   id,
		MediaType: kind,
		Message:   fmt.Sprintf("Media changed to '%s' (%s)", id, kind),
	}
	s.bus.Publish(bus.MediaChanged{
		Previous:  previous,
		Current:   id,
		MediaType: kind,
		Cause:     cause,
		Message:   result.Message,
	})
	s.log.Info("media changed",
		zap.String("media", id),
		zap.String("kind", string(kind)),
		zap.String("cause", string(cause)),
	)
	return result, nil
}

// Stop clears the display unconditionally and broadcasts the change.
func (s *Service) Stop(cause bus.Cause) Result {
	previous := s.state.Snapshot().Current
	s.state.Clear()

	result := Result{
		Previous:  previous,
		MediaType: catalog.KindNone,
		Message:   "All media stopped",
	}
	s.bus.Publish(bus.MediaChanged{
		Previous:  previous,
		MediaType: catalog.KindNone,
		Cause:     cause,
		Message:   result.Message,
	})
	s.log.Info("media stopped", zap.String("cause", string(cause)))
	return result
}

// ResolveScene translates a scene name to a media identifier. The inline
// mapping wins over the configured table, which wins over the built-in
// defaults. Reports false when nothing matches.
func (s *Service) ResolveScene(scene string, inline map[string]string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(scene))
	if needle == "" {
		return "", false
	}
	for key, media := range inline {
		if strings.ToLower(key) == needle {
			return media, true
		}
	}
	for _, pair := range s.mapping {
		if strings.ToLower(pair.Scene) == needle {
			return pair.Media, true
		}
	}
	for _, pair := range defaultSceneTable {
		if pair.Scene == needle {
			return pair.Media, true
		}
	}
	return "", false
}

// SceneChange resolves a scene and, when mapped, triggers the media.
// The second return reports whether the scene mapped at all.
func (s *Service) SceneChange(scene string, inline map[string]string, cause bus.Cause) (Result, bool, error) {
	media, ok := s.ResolveScene(scene, inline)
	if !ok {
		s.log.Info("no mapping for scene", zap.String("scene", scene))
		return Result{}, false, nil
	}
	result, err := s.Trigger(media, cause)
	return result, true, err
}

// Status assembles the full status snapshot.
func (s *Service) Status() StatusSnapshot {
	snap := s.state.Snapshot()
	status := StatusSnapshot{
		Current:    snap.Current,
		MediaType:  snap.Kind,
		Animations: s.catalog.ListAnimations(),
		Videos:     s.catalog.ListVideos(),
		AllMedia:   s.catalog.ListAll(),
		Counts:     s.registry.Snapshot(),
	}
	if s.obsConnected != nil {
		status.OBSConnected = s.obsConnected()
	}
	return status
}

// CurrentKind reports the kind of the currently displayed media.
func (s *Service) CurrentKind() catalog.Kind {
	return s.state.Snapshot().Kind
}
