package tvad

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Modules.FileTrigger.PollIntervalMS != 500 {
		t.Fatalf("poll interval = %d", cfg.Modules.FileTrigger.PollIntervalMS)
	}
	if cfg.Modules.OBS.Port != 4455 {
		t.Fatalf("obs port = %d", cfg.Modules.OBS.Port)
	}
	if got := cfg.StatePath(); got != filepath.Join("data", "state.json") {
		t.Fatalf("state path = %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvad.toml")
	body := `
[server]
listen = ":9000"
data_dir = "/var/lib/tva"
log_level = "debug"

[[scene_mappings]]
scene = "Gaming"
media = "special.html"

[[scene_mappings]]
scene = "BRB"
media = "brb.mp4"

[modules.http]
enabled = true

[modules.obs]
enabled = true
host = "obs.local"
password = "secret"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Listen != ":9000" || cfg.Server.LogLevel != "debug" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if len(cfg.SceneMappings) != 2 || cfg.SceneMappings[0].Media != "special.html" {
		t.Fatalf("mappings = %+v", cfg.SceneMappings)
	}
	if !cfg.Modules.OBS.Enabled || cfg.Modules.OBS.Host != "obs.local" {
		t.Fatalf("obs = %+v", cfg.Modules.OBS)
	}
	if got := cfg.Modules.FileTrigger.TriggerFile; got != filepath.Join("/var/lib/tva", "trigger.txt") {
		t.Fatalf("trigger file = %q", got)
	}
	if got := cfg.OBSSettingsPath(); got != filepath.Join("/var/lib/tva", "config", "obs_settings.json") {
		t.Fatalf("obs settings path = %q", got)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tvad.toml")
	if err := os.WriteFile(path, []byte("[server\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected decode error")
	}
}
