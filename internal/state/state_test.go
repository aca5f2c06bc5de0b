package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/catalog"
)

func newTestStore(t *testing.T, media ...string) (*Store, string) {
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
	path := filepath.Join(t.TempDir(), "state.json")
	return NewStore(path, catalog.New(animations, videos), zap.NewNop()), path
}

func TestApplyAcceptsCataloguedMedia(t *testing.T) {
	store, path := newTestStore(t, "a.html")

	kind, err := store.Apply("a.html")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if kind != catalog.KindAnimation {
		t.Fatalf("kind = %v", kind)
	}
	if snap := store.Snapshot(); snap.Current != "a.html" {
		t.Fatalf("snapshot = %+v", snap)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	var persisted struct {
		CurrentAnimation *string `json:"current_animation"`
	}
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if persisted.CurrentAnimation == nil || *persisted.CurrentAnimation != "a.html" {
		t.Fatalf("persisted = %v", persisted.CurrentAnimation)
	}
}

func TestApplyRejectsUnknownMediaWithoutMutation(t *testing.T) {
	store, _ := newTestStore(t, "a.html")
	if _, err := store.Apply("a.html"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	_, err := store.Apply("missing.mp4")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(notFound.Available) != 1 || notFound.Available[0] != "a.html" {
		t.Fatalf("available = %v", notFound.Available)
	}
	if snap := store.Snapshot(); snap.Current != "a.html" {
		t.Fatalf("state mutated on rejection: %+v", snap)
	}
}

func TestApplyIdempotentOnRepeat(t *testing.T) {
	store, _ := newTestStore(t, "a.html")
	for i := 0; i < 2; i++ {
		if _, err := store.Apply("a.html"); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	if snap := store.Snapshot(); snap.Current != "a.html" || snap.Kind != catalog.KindAnimation {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestClearAlwaysSucceeds(t *testing.T) {
	store, _ := newTestStore(t, "a.html")
	if _, err := store.Apply("a.html"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	store.Clear()
	if snap := store.Snapshot(); snap.Current != "" || snap.Kind != catalog.KindNone {
		t.Fatalf("snapshot after clear = %+v", snap)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	animations := t.TempDir()
	if err := os.WriteFile(filepath.Join(animations, "b.html"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	cat := catalog.New(animations, t.TempDir())
	path := filepath.Join(t.TempDir(), "state.json")

	first := NewStore(path, cat, zap.NewNop())
	if _, err := first.Apply("b.html"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	second := NewStore(path, cat, zap.NewNop())
	if snap := second.Snapshot(); snap.Current != "b.html" || snap.Kind != catalog.KindAnimation {
		t.Fatalf("reloaded snapshot = %+v", snap)
	}
}

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	if snap := store.Snapshot(); snap.Current != DefaultAnimation {
		t.Fatalf("default snapshot = %+v", snap)
	}
}

func TestLoadDefaultsWhenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	store := NewStore(path, catalog.New(t.TempDir(), t.TempDir()), zap.NewNop())
	if snap := store.Snapshot(); snap.Current != DefaultAnimation {
		t.Fatalf("corrupt snapshot = %+v", snap)
	}
}

func TestWriteSceneRecordPreservesForeignFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs_current_scene.json")
	if err := os.WriteFile(path, []byte(`{"scene":"old","timestamp":1,"note":"keep"}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := WriteSceneRecord(path, "Gaming", time.Unix(42, 0)); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["scene"] != "Gaming" {
		t.Fatalf("scene = %v", fields["scene"])
	}
	if fields["note"] != "keep" {
		t.Fatalf("foreign field lost: %v", fields)
	}

	record, err := ReadSceneRecord(path)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	if record.Scene != "Gaming" || record.Timestamp != 42 {
		t.Fatalf("record = %+v", record)
	}
}
