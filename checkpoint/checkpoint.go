// Package checkpoint persists Phase 1 results as timestamped JSON files.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sameep-scrape/model"
)

// ErrNoCheckpoint is returned by Latest when the directory holds no checkpoint
var ErrNoCheckpoint = errors.New("no checkpoint found")

// Filename builds <prefix>-<ISO8601 without colons>.json for t
func Filename(prefix string, t time.Time) string {
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z"), ":", "")
	return fmt.Sprintf("%s-%s.json", prefix, stamp)
}

// Save writes run to a new file in dir and returns its path. Counters are
// recomputed before writing.
func Save(dir, prefix string, run *model.CollectionRun, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	path := filepath.Join(dir, Filename(prefix, now))
	if err := write(path, run); err != nil {
		return "", err
	}
	return path, nil
}

// Rewrite replaces an existing checkpoint in place. The new content is
// written to a temporary file first, so readers never see a partial file.
func Rewrite(path string, run *model.CollectionRun) error {
	return write(path, run)
}

func write(path string, run *model.CollectionRun) error {
	run.Recount()
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// Load reads a checkpoint. Stored counters are checked against the tree and
// then replaced by recomputed ones; drift is reported through drift so the
// caller can log it, but the run is still usable.
func Load(path string) (run *model.CollectionRun, drift error, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	run = &model.CollectionRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	drift = run.Verify()
	run.Recount()
	return run, drift, nil
}

// Latest returns the lexicographically greatest checkpoint for prefix in dir
func Latest(dir, prefix string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches[0], nil
}
