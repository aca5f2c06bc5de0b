package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind classifies a media identifier by file extension.
type Kind string

// Media kinds.
const (
	KindAnimation Kind = "animation"
	KindVideo     Kind = "video"
	KindNone      Kind = "none"
)

// ErrNotFound is returned when an identifier resolves to no catalogued file.
var ErrNotFound = errors.New("media not found")

var animationExts = map[string]bool{
	".html": true,
	".htm":  true,
}

var videoExts = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
}

// Catalog resolves media identifiers against the two watched directories.
type Catalog struct {
	animationsDir string
	videosDir     string
}

// New creates a catalog over the animation and video directories. The
// directories do not need to exist; absence reads as an empty catalog.
func New(animationsDir, videosDir string) *Catalog {
	return &Catalog{animationsDir: animationsDir, videosDir: videosDir}
}

// Resolve checks that id names an existing catalogued file and returns
// its kind. Unknown extensions never resolve, even if a file exists.
func (c *Catalog) Resolve(id string) (Kind, error) {
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) {
		return KindNone, ErrNotFound
	}
	ext := strings.ToLower(filepath.Ext(id))
	switch {
	case animationExts[ext]:
		if fileExists(filepath.Join(c.animationsDir, id)) {
			return KindAnimation, nil
		}
	case videoExts[ext]:
		if fileExists(filepath.Join(c.videosDir, id)) {
			return KindVideo, nil
		}
	}
	return KindNone, ErrNotFound
}

// ListAnimations returns the animation identifiers, lexically sorted.
func (c *Catalog) ListAnimations() []string {
	return listDir(c.animationsDir, animationExts)
}

// ListVideos returns the video identifiers, lexically sorted.
func (c *Catalog) ListVideos() []string {
	return listDir(c.videosDir, videoExts)
}

// ListAll returns animations then videos, each lexically sorted. The
// ordering is part of the API contract.
func (c *Catalog) ListAll() []string {
	animations := c.ListAnimations()
	videos := c.ListVideos()
	all := make([]string, 0, len(animations)+len(videos))
	all = append(all, animations...)
	all = append(all, videos...)
	return all
}

func listDir(dir string, exts map[string]bool) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if exts[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
