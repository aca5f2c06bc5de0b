package obslink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/state"
	"github.com/mikey-austin/tv_animator/pkg/tva"
)

const (
	healthInterval       = 30 * time.Second
	healthTimeout        = 5 * time.Second
	connectTimeout       = 10 * time.Second
	baseReconnectDelay   = 2 * time.Second
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 10
	reconnectCooldown    = 5 * time.Minute
)

// reconnectDelay returns how long to wait after the given number of
// consecutive failures, and whether the failure counter should reset
// because the attempt cap was reached.
func reconnectDelay(failures int) (time.Duration, bool) {
	if failures >= maxReconnectAttempts {
		return reconnectCooldown, true
	}
	delay := baseReconnectDelay << (failures - 1)
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay, false
}

// Module maintains the outbound link to the streaming tool. It observes
// scene changes, mirrors them to the scene file and publishes them on
// the bus; it never triggers media directly.
type Module struct {
	log          *zap.Logger
	bus          *bus.Bus
	settingsPath string
	scenePath    string

	mu                sync.Mutex
	settings          Settings
	client            *client
	connected         bool
	shouldBeConnected bool
	monitorRunning    bool
	failures          int
	nextRetry         time.Time
	lastHealth        time.Time
}

// NewModule creates the link module. Persisted settings override the
// configured defaults; the settings file is the operator's last word.
func NewModule(log *zap.Logger, b *bus.Bus, settingsPath, scenePath string, defaults Settings) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:          log,
		bus:          b,
		settingsPath: settingsPath,
		scenePath:    scenePath,
		settings:     loadSettings(settingsPath, defaults),
	}
}

// Run drives the connection monitor until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	m.mu.Lock()
	m.monitorRunning = true
	m.shouldBeConnected = m.settings.Enabled
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.monitorRunning = false
		client := m.client
		m.client = nil
		m.connected = false
		m.mu.Unlock()
		if client != nil {
			client.close()
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick is one monitor pass: health-check a live link, or schedule and
// run a reconnect attempt for a dead one. The mutex is never held
// across network calls.
func (m *Module) tick(ctx context.Context) {
	m.mu.Lock()
	connected := m.connected
	should := m.shouldBeConnected
	client := m.client
	dueHealth := connected && time.Since(m.lastHealth) >= healthInterval
	dueRetry := !connected && should && time.Now().After(m.nextRetry)
	if dueHealth {
		m.lastHealth = time.Now()
	}
	m.mu.Unlock()

	switch {
	case dueHealth:
		checkCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := client.getVersion(checkCtx)
		cancel()
		if err != nil {
			m.log.Warn("health check failed", zap.Error(err))
			client.close()
			m.markDisconnected()
		}
	case dueRetry:
		if err := m.tryConnect(ctx); err != nil {
			m.mu.Lock()
			m.failures++
			delay, reset := reconnectDelay(m.failures)
			if reset {
				m.log.Warn("reconnect attempts exhausted, cooling down",
					zap.Int("attempts", m.failures), zap.Duration("cooldown", delay))
				m.failures = 0
			}
			m.nextRetry = time.Now().Add(delay)
			failures := m.failures
			m.mu.Unlock()
			m.log.Info("connect failed",
				zap.Error(err), zap.Duration("retry_in", delay), zap.Int("failures", failures))
		}
	}
}

// tryConnect dials and installs a fresh client.
func (m *Module) tryConnect(ctx context.Context) error {
	m.mu.Lock()
	url := fmt.Sprintf("ws://%s:%d", m.settings.Host, m.settings.Port)
	password := m.settings.Password
	m.mu.Unlock()

	c := newClient(m.log, m.handleEvent, m.markDisconnected)
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := c.connect(dialCtx, url, password); err != nil {
		return err
	}

	m.mu.Lock()
	old := m.client
	m.client = c
	m.connected = true
	m.failures = 0
	m.lastHealth = time.Now()
	m.mu.Unlock()
	if old != nil {
		old.close()
	}

	m.log.Info("tool link established", zap.String("url", url))
	return nil
}

func (m *Module) markDisconnected() {
	m.mu.Lock()
	wasConnected := m.connected
	m.connected = false
	m.nextRetry = time.Time{}
	m.mu.Unlock()
	if wasConnected {
		m.log.Warn("tool link lost")
	}
}

// handleEvent mirrors program scene changes to the scene file and the
// bus. Observation only; the scene-file watcher decides whether the
// display changes.
func (m *Module) handleEvent(eventType string, payload json.RawMessage) {
	if !sceneEventTypes[eventType] {
		return
	}
	scene := extractScene(payload)
	if scene == "" {
		m.log.Debug("scene event without scene name", zap.String("event_type", eventType))
		return
	}

	now := time.Now()
	if err := state.WriteSceneRecord(m.scenePath, scene, now); err != nil {
		m.log.Warn("scene record write failed", zap.String("scene", scene), zap.Error(err))
	}
	m.bus.Publish(bus.SceneObserved{Scene: scene, TS: now.Unix()})
	m.log.Info("scene observed", zap.String("scene", scene))
}

// Status reports the link state for the admin API.
func (m *Module) Status() tva.OBSStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return tva.OBSStatus{
		Connected:            m.connected,
		ShouldBeConnected:    m.shouldBeConnected,
		AutoReconnectEnabled: m.monitorRunning && m.shouldBeConnected,
		Host:                 m.settings.Host,
		Port:                 m.settings.Port,
	}
}

// Connect marks the link wanted, persists that intent and attempts an
// immediate dial. A dial failure is returned but the monitor keeps
// retrying in the background.
func (m *Module) Connect() error {
	m.mu.Lock()
	m.shouldBeConnected = true
	m.failures = 0
	m.nextRetry = time.Time{}
	m.settings.Enabled = true
	settings := m.settings
	path := m.settingsPath
	alreadyConnected := m.connected
	m.mu.Unlock()

	if err := saveSettings(path, settings); err != nil {
		m.log.Warn("settings save failed", zap.Error(err))
	}
	if alreadyConnected {
		return nil
	}
	return m.tryConnect(context.Background())
}

// Disconnect drops the link. While the persisted settings mark the link
// enabled the request is refused unless forced; force also flips the
// persisted intent off.
func (m *Module) Disconnect(force bool) error {
	m.mu.Lock()
	if m.settings.Enabled && !force {
		m.mu.Unlock()
		m.log.Info("disconnect refused, link enabled in settings")
		return fmt.Errorf("link is enabled in settings; use force to disconnect")
	}
	m.shouldBeConnected = false
	m.connected = false
	client := m.client
	m.client = nil
	var settings *Settings
	if force && m.settings.Enabled {
		m.settings.Enabled = false
		s := m.settings
		settings = &s
	}
	path := m.settingsPath
	m.mu.Unlock()

	if client != nil {
		client.close()
	}
	if settings != nil {
		if err := saveSettings(path, *settings); err != nil {
			m.log.Warn("settings save failed", zap.Error(err))
		}
	}
	m.log.Info("tool link disconnected", zap.Bool("force", force))
	return nil
}
