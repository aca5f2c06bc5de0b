package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
)

type fixture struct {
	service *Service
	events  <-chan bus.Event
	cancel  context.CancelFunc
}

func newFixture(t *testing.T, mapping SceneMapping, media ...string) *fixture {
	t.Helper()
	animations := t.TempDir()
	videos := t.TempDir()
	for _, name := range media {
		dir := animations
		if filepath.Ext(name) != ".html" {
			dir = videos
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write media: %v", err)
		}
	}

	cat := catalog.New(animations, videos)
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"), cat, zap.NewNop())
	b := bus.New(zap.NewNop())
	reg := registry.New()

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(cancel)

	events, unsubscribe := b.Subscribe()
	t.Cleanup(unsubscribe)

	return &fixture{
		service: NewService(store, cat, b, reg, mapping, zap.NewNop()),
		events:  events,
		cancel:  cancel,
	}
}

func (f *fixture) nextMediaChanged(t *testing.T) bus.MediaChanged {
	t.Helper()
	select {
	case ev := <-f.events:
		changed, ok := ev.(bus.MediaChanged)
		if !ok {
			t.Fatalf("unexpected event %T", ev)
		}
		return changed
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for media change")
		return bus.MediaChanged{}
	}
}

func TestTriggerPublishesWithCause(t *testing.T) {
	f := newFixture(t, nil, "a.html")

	result, err := f.service.Trigger("a.html", bus.CauseHTTP)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.MediaType != catalog.KindAnimation {
		t.Fatalf("result = %+v", result)
	}

	changed := f.nextMediaChanged(t)
	if changed.Current != "a.html" || changed.Cause != bus.CauseHTTP {
		t.Fatalf("event = %+v", changed)
	}
}

func TestTriggerRejectedLeavesStateAndPublishesNothing(t *testing.T) {
	f := newFixture(t, nil, "a.html")
	if _, err := f.service.Trigger("a.html", bus.CauseHTTP); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	f.nextMediaChanged(t)

	_, err := f.service.Trigger("missing.mp4", bus.CauseHTTP)
	var notFound *state.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(notFound.Available) != 1 || notFound.Available[0] != "a.html" {
		t.Fatalf("available = %v", notFound.Available)
	}

	if status := f.service.Status(); status.Current != "a.html" {
		t.Fatalf("status = %+v", status)
	}
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTriggerEchoesPrevious(t *testing.T) {
	f := newFixture(t, nil, "a.html", "b.html")
	if _, err := f.service.Trigger("a.html", bus.CauseSocket); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	f.nextMediaChanged(t)

	result, err := f.service.Trigger("b.html", bus.CauseSocket)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if result.Previous != "a.html" {
		t.Fatalf("previous = %q", result.Previous)
	}
	if changed := f.nextMediaChanged(t); changed.Previous != "a.html" {
		t.Fatalf("event previous = %q", changed.Previous)
	}
}

func TestStopPublishesEmptyCurrent(t *testing.T) {
	f := newFixture(t, nil, "a.html")
	if _, err := f.service.Trigger("a.html", bus.CauseHTTP); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	f.nextMediaChanged(t)

	f.service.Stop(bus.CauseStop)
	changed := f.nextMediaChanged(t)
	if changed.Current != "" || changed.Cause != bus.CauseStop {
		t.Fatalf("event = %+v", changed)
	}
	if status := f.service.Status(); status.Current != "" || status.MediaType != catalog.KindNone {
		t.Fatalf("status = %+v", status)
	}
}

func TestSceneChangeDefaultTable(t *testing.T) {
	f := newFixture(t, nil, "anim1.html")

	result, mapped, err := f.service.SceneChange("Gaming", nil, bus.CauseScene)
	if err != nil || !mapped {
		t.Fatalf("scene change: mapped=%v err=%v", mapped, err)
	}
	if result.Current != "anim1.html" {
		t.Fatalf("result = %+v", result)
	}
	if changed := f.nextMediaChanged(t); changed.Current != "anim1.html" || changed.Cause != bus.CauseScene {
		t.Fatalf("event = %+v", changed)
	}
}

func TestSceneChangeInlineMappingWins(t *testing.T) {
	f := newFixture(t, nil, "special.html")

	inline := map[string]string{"Gaming": "special.html"}
	result, mapped, err := f.service.SceneChange("gaming", inline, bus.CauseScene)
	if err != nil || !mapped {
		t.Fatalf("scene change: mapped=%v err=%v", mapped, err)
	}
	if result.Current != "special.html" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSceneChangeConfiguredMappingFirstMatchWins(t *testing.T) {
	mapping := SceneMapping{
		{Scene: "intro", Media: "first.html"},
		{Scene: "intro", Media: "second.html"},
	}
	f := newFixture(t, mapping, "first.html", "second.html")

	result, mapped, err := f.service.SceneChange("INTRO", nil, bus.CauseScene)
	if err != nil || !mapped {
		t.Fatalf("scene change: mapped=%v err=%v", mapped, err)
	}
	if result.Current != "first.html" {
		t.Fatalf("result = %+v", result)
	}
}

func TestSceneChangeNoMappingIsNoOp(t *testing.T) {
	f := newFixture(t, nil, "anim1.html")

	_, mapped, err := f.service.SceneChange("unknown scene", nil, bus.CauseScene)
	if err != nil || mapped {
		t.Fatalf("expected no-op, mapped=%v err=%v", mapped, err)
	}
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStatusListsPartitionedByKind(t *testing.T) {
	f := newFixture(t, nil, "b.html", "a.html", "clip.mp4")

	status := f.service.Status()
	if len(status.Animations) != 2 || len(status.Videos) != 1 {
		t.Fatalf("status = %+v", status)
	}
	if status.AllMedia[0] != "a.html" || status.AllMedia[2] != "clip.mp4" {
		t.Fatalf("ordering = %v", status.AllMedia)
	}
}
