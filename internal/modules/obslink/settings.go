package obslink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Settings is the persisted connection intent. The file outlives the
// process so a restart resumes the operator's last decision.
type Settings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	Enabled  bool   `json:"enabled"`
}

// loadSettings reads the settings file, seeding from defaults when it
// is absent or unreadable.
func loadSettings(path string, defaults Settings) Settings {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults
	}
	settings := defaults
	if err := json.Unmarshal(data, &settings); err != nil {
		return defaults
	}
	return settings
}

// saveSettings writes the settings atomically.
func saveSettings(path string, settings Settings) error {
	payload, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
