package filetrigger

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/state"
)

// Module polls the trigger file and the scene mirror file. Both watchers
// run off the same ticker; read errors are logged and polling continues.
type Module struct {
	log         *zap.Logger
	service     *core.Service
	triggerPath string
	scenePath   string
	interval    time.Duration

	triggerMtime time.Time
	lastScene    string
	sceneLoaded  bool
}

// NewModule creates the file watcher module.
func NewModule(log *zap.Logger, service *core.Service, triggerPath, scenePath string, interval time.Duration) *Module {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Module{
		log:         log,
		service:     service,
		triggerPath: triggerPath,
		scenePath:   scenePath,
		interval:    interval,
	}
}

// Run polls until ctx is cancelled.
func (m *Module) Run(ctx context.Context) error {
	// Seed baselines so pre-existing files do not fire on startup.
	if info, err := os.Stat(m.triggerPath); err == nil {
		m.triggerMtime = info.ModTime()
	}
	if record, err := state.ReadSceneRecord(m.scenePath); err == nil {
		m.lastScene = record.Scene
		m.sceneLoaded = true
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info("file watchers started",
		zap.String("trigger_file", m.triggerPath),
		zap.String("scene_file", m.scenePath),
		zap.Duration("interval", m.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.pollTrigger()
			m.pollScene()
		}
	}
}

// pollTrigger fires on a newer mtime. The file is consumed and deleted;
// writes between polls coalesce into the last one.
func (m *Module) pollTrigger() {
	info, err := os.Stat(m.triggerPath)
	if err != nil {
		return
	}
	if !info.ModTime().After(m.triggerMtime) {
		return
	}
	m.triggerMtime = info.ModTime()

	data, err := os.ReadFile(m.triggerPath)
	if err != nil {
		m.log.Warn("trigger file read failed", zap.Error(err))
		return
	}
	if err := os.Remove(m.triggerPath); err != nil {
		m.log.Warn("trigger file remove failed", zap.Error(err))
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return
	}
	if _, err := m.service.Trigger(id, bus.CauseFile); err != nil {
		m.log.Warn("trigger file rejected", zap.String("media", id), zap.Error(err))
	}
}

func (m *Module) pollScene() {
	record, err := state.ReadSceneRecord(m.scenePath)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("scene file read failed", zap.Error(err))
		}
		return
	}
	if m.sceneLoaded && record.Scene == m.lastScene {
		return
	}
	m.lastScene = record.Scene
	m.sceneLoaded = true

	m.log.Info("scene file changed", zap.String("scene", record.Scene))
	if _, _, err := m.service.SceneChange(record.Scene, nil, bus.CauseScene); err != nil {
		m.log.Warn("scene change rejected", zap.String("scene", record.Scene), zap.Error(err))
	}
}
