package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SceneRecord is the small persisted record of the last scene observed
// on the remote tool. The scene-mirror watcher consumes it on its own
// schedule, decoupling observation from action.
type SceneRecord struct {
	Scene     string `json:"scene"`
	Timestamp int64  `json:"timestamp"`
}

// ReadSceneRecord loads the record at path.
func ReadSceneRecord(path string) (SceneRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SceneRecord{}, err
	}
	var record SceneRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return SceneRecord{}, err
	}
	return record, nil
}

// WriteSceneRecord updates scene and timestamp in the record at path,
// preserving any other fields already present. The write is atomic:
// temp file then rename.
func WriteSceneRecord(path string, scene string, now time.Time) error {
	fields := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		// Foreign fields survive; a corrupt file is replaced outright.
		_ = json.Unmarshal(data, &fields)
	}
	fields["scene"] = scene
	fields["timestamp"] = now.Unix()

	payload, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
