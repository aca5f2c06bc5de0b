package mqttbridge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeEndpoint struct {
	mu        sync.Mutex
	messages  []published
	handlers  map[string]func(string, []byte)
	published chan published
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		handlers:  make(map[string]func(string, []byte)),
		published: make(chan published, 8),
	}
}

func (f *fakeEndpoint) publish(topic string, retained bool, payload []byte) error {
	msg := published{topic: topic, retained: retained, payload: payload}
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	f.published <- msg
	return nil
}

func (f *fakeEndpoint) subscribe(topic string, handler func(string, []byte)) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeEndpoint) close() {}

func newService(t *testing.T, media ...string) *core.Service {
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
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(cancel)
	return core.NewService(store, cat, b, registry.New(), nil, zap.NewNop())
}

func TestEmbeddedBrokerRequiresAuthConfig(t *testing.T) {
	if _, err := newEmbeddedBroker(zap.NewNop(), false, "", ""); err == nil {
		t.Fatal("expected error without auth config")
	}
}

func TestEmbeddedBrokerInlineRoundTrip(t *testing.T) {
	broker, err := newEmbeddedBroker(zap.NewNop(), true, "", "")
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	t.Cleanup(broker.close)

	received := make(chan []byte, 1)
	if err := broker.subscribe("tva/v1/#", func(_ string, payload []byte) {
		received <- payload
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := broker.publish("tva/v1/state", false, []byte("payload")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "payload" {
			t.Fatalf("payload = %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChangeMirrorsStateAndEvent(t *testing.T) {
	service := newService(t)
	b := bus.New(zap.NewNop())
	m := NewModule(zap.NewNop(), service, b, Config{})
	ep := newFakeEndpoint()

	m.publishChange(ep, bus.MediaChanged{
		Previous:  "a.html",
		Current:   "clip.mp4",
		MediaType: catalog.KindVideo,
		Cause:     bus.CauseHTTP,
		Message:   "Media changed to 'clip.mp4' (video)",
	})

	stateMsg := <-ep.published
	if stateMsg.topic != "tva/v1/state" || !stateMsg.retained {
		t.Fatalf("state = %+v", stateMsg)
	}
	var st statePayload
	if err := json.Unmarshal(stateMsg.payload, &st); err != nil || st.CurrentAnimation != "clip.mp4" {
		t.Fatalf("state payload = %s err %v", stateMsg.payload, err)
	}

	eventMsg := <-ep.published
	if eventMsg.topic != "tva/v1/events" || eventMsg.retained {
		t.Fatalf("event = %+v", eventMsg)
	}
	var ev eventPayload
	if err := json.Unmarshal(eventMsg.payload, &ev); err != nil || ev.Cause != "http_trigger" || ev.PreviousAnimation != "a.html" {
		t.Fatalf("event payload = %s err %v", eventMsg.payload, err)
	}
}

func TestTriggerCommandFeedsService(t *testing.T) {
	service := newService(t, "a.html")
	b := bus.New(zap.NewNop())
	m := NewModule(zap.NewNop(), service, b, Config{})

	m.handleTrigger("tva/v1/cmd/trigger", []byte(`{"animation":"a.html"}`))
	if status := service.Status(); status.Current != "a.html" {
		t.Fatalf("status = %+v", status)
	}
}

func TestTriggerCommandBadPayloadIgnored(t *testing.T) {
	service := newService(t, "a.html")
	b := bus.New(zap.NewNop())
	m := NewModule(zap.NewNop(), service, b, Config{})

	m.handleTrigger("tva/v1/cmd/trigger", []byte(`garbage`))
	m.handleTrigger("tva/v1/cmd/trigger", []byte(`{}`))
	m.handleTrigger("tva/v1/cmd/trigger", []byte(`{"animation":"missing.html"}`))
	if status := service.Status(); status.Current != state.DefaultAnimation {
		t.Fatalf("status = %+v", status)
	}
}
