package tvad

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/mikey-austin/tv_animator/pkg/tva"
)

// Config is the top-level configuration for tvad.
type Config struct {
	Server        ServerConfig         `toml:"server"`
	SceneMappings []SceneMappingConfig `toml:"scene_mappings"`
	Modules       ModulesConfig        `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Listen        string `toml:"listen"`
	DataDir       string `toml:"data_dir"`
	AnimationsDir string `toml:"animations_dir"`
	VideosDir     string `toml:"videos_dir"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogOutput     string `toml:"log_output"`
}

// SceneMappingConfig is one ordered scene-to-media translation entry.
type SceneMappingConfig struct {
	Scene string `toml:"scene"`
	Media string `toml:"media"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	HTTP        HTTPConfig        `toml:"http"`
	RawSocket   RawSocketConfig   `toml:"raw_socket"`
	FileTrigger FileTriggerConfig `toml:"file_trigger"`
	OBS         OBSConfig         `toml:"obs"`
	MQTTBridge  MQTTBridgeConfig  `toml:"mqtt_bridge"`
}

// HTTPConfig configures the HTTP API and push-socket module.
type HTTPConfig struct {
	Enabled bool `toml:"enabled"`
}

// RawSocketConfig configures the legacy raw-socket listener. When
// Listen is empty the listener binds the HTTP port plus one.
type RawSocketConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// FileTriggerConfig configures the poll-watchers.
type FileTriggerConfig struct {
	Enabled        bool   `toml:"enabled"`
	TriggerFile    string `toml:"trigger_file"`
	SceneFile      string `toml:"scene_file"`
	PollIntervalMS int64  `toml:"poll_interval_ms"`
}

// OBSConfig configures the external-tool push-event client.
type OBSConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
}

// MQTTBridgeConfig configures the MQTT bridge. With BrokerURL unset an
// embedded broker is started on Listen.
type MQTTBridgeConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	BrokerURL      string `toml:"broker_url"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TopicBase      string `toml:"topic_base"`
}

// LoadConfig loads a config file from path. A missing file yields the
// defaults so the daemon can run without any configuration.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return Config{}, err
		case err == nil && info.IsDir():
			return Config{}, errors.New("config path is a directory")
		case err == nil:
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, err
			}
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "data"
	}
	if cfg.Server.AnimationsDir == "" {
		cfg.Server.AnimationsDir = "animations"
	}
	if cfg.Server.VideosDir == "" {
		cfg.Server.VideosDir = "videos"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
	}
	if cfg.Modules.FileTrigger.TriggerFile == "" {
		cfg.Modules.FileTrigger.TriggerFile = filepath.Join(cfg.Server.DataDir, "trigger.txt")
	}
	if cfg.Modules.FileTrigger.SceneFile == "" {
		cfg.Modules.FileTrigger.SceneFile = filepath.Join(cfg.Server.DataDir, "config", "obs_current_scene.json")
	}
	if cfg.Modules.FileTrigger.PollIntervalMS <= 0 {
		cfg.Modules.FileTrigger.PollIntervalMS = 500
	}
	if cfg.Modules.OBS.Host == "" {
		cfg.Modules.OBS.Host = "localhost"
	}
	if cfg.Modules.OBS.Port == 0 {
		cfg.Modules.OBS.Port = 4455
	}
	if cfg.Modules.MQTTBridge.Listen == "" {
		cfg.Modules.MQTTBridge.Listen = "127.0.0.1:1883"
	}
	if cfg.Modules.MQTTBridge.TopicBase == "" {
		cfg.Modules.MQTTBridge.TopicBase = tva.BaseTopic
	}
}

// StatePath returns the durable display-state file location.
func (c Config) StatePath() string {
	return filepath.Join(c.Server.DataDir, "state.json")
}

// OBSSettingsPath returns the persisted OBS connection settings location.
func (c Config) OBSSettingsPath() string {
	return filepath.Join(c.Server.DataDir, "config", "obs_settings.json")
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tva", "tvad.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tva", "tvad.toml"), nil
}
