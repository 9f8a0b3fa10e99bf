package gaps

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofrs/flock"

	"github.com/anatolykoptev/go_gap/internal/engine"
)

var cacheKeyRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// SourceCache stores one JSON file per video id. Entries never expire; they
// are removed only by Clear. Get and Put hold a shared lock on the directory
// and Clear holds it exclusively, so a clear never interleaves with a write.
type SourceCache struct {
	dir      string
	lockPath string
}

// NewSourceCache opens (and creates) the cache directory.
func NewSourceCache(dir string) (*SourceCache, error) {
	if dir == "" {
		return nil, errors.New("source cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("source cache: %w", err)
	}
	return &SourceCache{dir: dir, lockPath: filepath.Join(dir, ".lock")}, nil
}

// Dir returns the cache directory.
func (c *SourceCache) Dir() string { return c.dir }

func (c *SourceCache) path(videoID string) (string, error) {
	if !cacheKeyRE.MatchString(videoID) {
		return "", fmt.Errorf("source cache: invalid video id %q", videoID)
	}
	return filepath.Join(c.dir, videoID+".json"), nil
}

// Get returns the cached result for videoID. Entries without metadata or
// without a transcript field are treated as misses.
func (c *SourceCache) Get(videoID string) (IngestResult, bool) {
	p, err := c.path(videoID)
	if err != nil {
		return IngestResult{}, false
	}
	fl := flock.New(c.lockPath)
	if err := fl.RLock(); err != nil {
		slog.Debug("source cache: shared lock failed", slog.Any("error", err))
		return IngestResult{}, false
	}
	defer fl.Unlock()

	data, err := os.ReadFile(p)
	if err != nil {
		engine.IncrSourceCacheMiss()
		return IngestResult{}, false
	}
	var r IngestResult
	if err := json.Unmarshal(data, &r); err != nil || r.Metadata == nil || r.Transcript == nil {
		slog.Debug("source cache: invalid entry, refetching", slog.String("id", videoID))
		engine.IncrSourceCacheMiss()
		return IngestResult{}, false
	}
	engine.IncrSourceCacheHit()
	r.FromCache = true
	return r, true
}

// Put writes r atomically (temp file + rename). Concurrent writers for the
// same id resolve last-write-wins.
func (c *SourceCache) Put(videoID string, r IngestResult) error {
	p, err := c.path(videoID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("source cache: marshal %s: %w", videoID, err)
	}

	fl := flock.New(c.lockPath)
	if err := fl.RLock(); err != nil {
		return fmt.Errorf("source cache: lock: %w", err)
	}
	defer fl.Unlock()

	tmp, err := os.CreateTemp(c.dir, videoID+".*.tmp")
	if err != nil {
		return fmt.Errorf("source cache: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("source cache: write %s: %w", videoID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("source cache: close %s: %w", videoID, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("source cache: rename %s: %w", videoID, err)
	}
	return nil
}

// Clear removes every cached entry and returns how many were removed.
func (c *SourceCache) Clear() (int, error) {
	fl := flock.New(c.lockPath)
	if err := fl.Lock(); err != nil {
		return 0, fmt.Errorf("source cache: lock: %w", err)
	}
	defer fl.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("source cache: %w", err)
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp")) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
			return removed, fmt.Errorf("source cache: remove %s: %w", name, err)
		}
		if strings.HasSuffix(name, ".json") {
			removed++
		}
	}
	slog.Info("source cache cleared", slog.String("dir", c.dir), slog.Int("removed", removed))
	return removed, nil
}
