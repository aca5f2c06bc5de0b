package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tv_animator/internal/bus"
	"github.com/mikey-austin/tv_animator/internal/catalog"
	"github.com/mikey-austin/tv_animator/internal/core"
	"github.com/mikey-austin/tv_animator/internal/modules/filetrigger"
	"github.com/mikey-austin/tv_animator/internal/modules/httpapi"
	"github.com/mikey-austin/tv_animator/internal/modules/mqttbridge"
	"github.com/mikey-austin/tv_animator/internal/modules/obslink"
	"github.com/mikey-austin/tv_animator/internal/modules/pushsock"
	"github.com/mikey-austin/tv_animator/internal/modules/rawsock"
	"github.com/mikey-austin/tv_animator/internal/registry"
	"github.com/mikey-austin/tv_animator/internal/state"
	"github.com/mikey-austin/tv_animator/internal/tvad"
)

func main() {
	var (
		configPath  string
		listen      string
		dataDir     string
		logLevel    string
		logFormat   string
		logOutput   string
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := tvad.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&listen, "listen", "", "HTTP listen address override")
	flag.StringVar(&dataDir, "data-dir", "", "data directory override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := tvad.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, listen, dataDir, logLevel, logFormat, logOutput)

	if printConfig {
		fmt.Fprintf(os.Stdout,
			"listen=%s data_dir=%s animations_dir=%s videos_dir=%s log_level=%s log_format=%s\n",
			cfg.Server.Listen, cfg.Server.DataDir, cfg.Server.AnimationsDir,
			cfg.Server.VideosDir, cfg.Server.LogLevel, cfg.Server.LogFormat)
		return
	}
	if dryRun {
		return
	}

	logger := tvad.NewLogger(tvad.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("tvad starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("data_dir", cfg.Server.DataDir),
		zap.String("animations_dir", cfg.Server.AnimationsDir),
		zap.String("videos_dir", cfg.Server.VideosDir),
	)

	modules, err := buildModules(cfg, logger)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := tvad.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *tvad.Config, listen, dataDir, logLevel, logFormat, logOutput string) {
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if dataDir != "" {
		cfg.Server.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
}

func buildModules(cfg tvad.Config, logger *zap.Logger) ([]tvad.ModuleRunner, error) {
	cat := catalog.New(cfg.Server.AnimationsDir, cfg.Server.VideosDir)
	store := state.NewStore(cfg.StatePath(), cat, logger.With(zap.String("component", "state")))
	eventBus := bus.New(logger.With(zap.String("component", "bus")))
	reg := registry.New()

	var mapping core.SceneMapping
	for _, pair := range cfg.SceneMappings {
		mapping = append(mapping, core.ScenePair{Scene: pair.Scene, Media: pair.Media})
	}
	service := core.NewService(store, cat, eventBus, reg, mapping, logger.With(zap.String("component", "core")))

	modules := []tvad.ModuleRunner{{Name: "bus", Run: eventBus.Run}}

	var obs *obslink.Module
	if cfg.Modules.OBS.Enabled {
		obs = obslink.NewModule(
			logger.With(zap.String("module", "obs_link")),
			eventBus,
			cfg.OBSSettingsPath(),
			cfg.Modules.FileTrigger.SceneFile,
			obslink.Settings{
				Host:     cfg.Modules.OBS.Host,
				Port:     cfg.Modules.OBS.Port,
				Password: cfg.Modules.OBS.Password,
				Enabled:  true,
			},
		)
		service.SetOBSProbe(func() bool { return obs.Status().Connected })
		modules = append(modules, tvad.ModuleRunner{Name: "obs_link", Run: obs.Run})
	}

	if cfg.Modules.HTTP.Enabled {
		hub := pushsock.NewHub(logger.With(zap.String("module", "push_socket")), service, reg, eventBus)
		modules = append(modules, tvad.ModuleRunner{Name: "push_socket", Run: hub.Run})

		var controller httpapi.OBSController
		if obs != nil {
			controller = obs
		}
		api := httpapi.NewModule(
			logger.With(zap.String("module", "http")),
			cfg.Server.Listen, service, reg, eventBus, controller, hub,
		)
		modules = append(modules, tvad.ModuleRunner{Name: "http", Run: api.Run})
	}

	if cfg.Modules.RawSocket.Enabled {
		listen := cfg.Modules.RawSocket.Listen
		if listen == "" {
			derived, err := rawsock.DeriveListen(cfg.Server.Listen)
			if err != nil {
				return nil, err
			}
			listen = derived
		}
		raw := rawsock.NewModule(logger.With(zap.String("module", "raw_socket")), listen, service, reg)
		modules = append(modules, tvad.ModuleRunner{Name: "raw_socket", Run: raw.Run})
	}

	if cfg.Modules.FileTrigger.Enabled {
		watcher := filetrigger.NewModule(
			logger.With(zap.String("module", "file_trigger")),
			service,
			cfg.Modules.FileTrigger.TriggerFile,
			cfg.Modules.FileTrigger.SceneFile,
			time.Duration(cfg.Modules.FileTrigger.PollIntervalMS)*time.Millisecond,
		)
		modules = append(modules, tvad.ModuleRunner{Name: "file_trigger", Run: watcher.Run})
	}

	if cfg.Modules.MQTTBridge.Enabled {
		bridge := mqttbridge.NewModule(
			logger.With(zap.String("module", "mqtt_bridge")),
			service, eventBus,
			mqttbridge.Config{
				Listen:         cfg.Modules.MQTTBridge.Listen,
				BrokerURL:      cfg.Modules.MQTTBridge.BrokerURL,
				AllowAnonymous: cfg.Modules.MQTTBridge.AllowAnonymous,
				Username:       cfg.Modules.MQTTBridge.Username,
				Password:       cfg.Modules.MQTTBridge.Password,
				TopicBase:      cfg.Modules.MQTTBridge.TopicBase,
			},
		)
		modules = append(modules, tvad.ModuleRunner{Name: "mqtt_bridge", Run: bridge.Run})
	}

	return modules, nil
}
