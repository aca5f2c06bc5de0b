package filetrigger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
)

type fixture struct {
	service     *core.Service
	events      <-chan bus.Event
	triggerPath string
	scenePath   string
}

func newFixture(t *testing.T, media ...string) *fixture {
	t.Helper()
	animations := t.TempDir()
	for _, name := range media {
		if err := os.WriteFile(filepath.Join(animations, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write media: %v", err)
		}
	}

	cat := catalog.New(animations, t.TempDir())
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"), cat, zap.NewNop())
	b := bus.New(zap.NewNop())
	service := core.NewService(store, cat, b, registry.New(), nil, zap.NewNop())

	dataDir := t.TempDir()
	f := &fixture{
		service:     service,
		triggerPath: filepath.Join(dataDir, "trigger.txt"),
		scenePath:   filepath.Join(dataDir, "obs_current_scene.json"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(cancel)

	events, unsubscribe := b.Subscribe()
	t.Cleanup(unsubscribe)
	f.events = events

	module := NewModule(zap.NewNop(), service, f.triggerPath, f.scenePath, 20*time.Millisecond)
	go func() { _ = module.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	return f
}

func (f *fixture) nextMediaChanged(t *testing.T) bus.MediaChanged {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-f.events:
			if changed, ok := ev.(bus.MediaChanged); ok {
				return changed
			}
		case <-deadline:
			t.Fatal("timeout waiting for media change")
		}
	}
}

func TestTriggerFileConsumed(t *testing.T) {
	f := newFixture(t, "a.html")

	if err := os.WriteFile(f.triggerPath, []byte("a.html\n"), 0o644); err != nil {
		t.Fatalf("write trigger: %v", err)
	}

	changed := f.nextMediaChanged(t)
	if changed.Current != "a.html" || changed.Cause != bus.CauseFile {
		t.Fatalf("event = %+v", changed)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(f.triggerPath); os.IsNotExist(err) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("trigger file not deleted")
}

func TestTriggerFileUnknownMediaLeavesState(t *testing.T) {
	f := newFixture(t, "a.html")

	if err := os.WriteFile(f.triggerPath, []byte("missing.html"), 0o644); err != nil {
		t.Fatalf("write trigger: %v", err)
	}

	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(150 * time.Millisecond):
	}
	if status := f.service.Status(); status.Current != state.DefaultAnimation {
		t.Fatalf("status = %+v", status)
	}
}

func TestSceneFileChangeMapsToMedia(t *testing.T) {
	f := newFixture(t, "anim1.html")

	if err := state.WriteSceneRecord(f.scenePath, "Gaming", time.Now()); err != nil {
		t.Fatalf("write scene: %v", err)
	}

	changed := f.nextMediaChanged(t)
	if changed.Current != "anim1.html" || changed.Cause != bus.CauseScene {
		t.Fatalf("event = %+v", changed)
	}
}

func TestSceneFileSameSceneNotRetriggered(t *testing.T) {
	f := newFixture(t, "anim1.html")

	if err := state.WriteSceneRecord(f.scenePath, "Gaming", time.Now()); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	f.nextMediaChanged(t)

	// Touch with the same scene; only the timestamp moves.
	if err := state.WriteSceneRecord(f.scenePath, "Gaming", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("write scene: %v", err)
	}
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}
