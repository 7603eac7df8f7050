package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifacts stores trained model state as JSON files, one directory per
// location key under <root>/models/.
type Artifacts struct {
	root string
}

// NewArtifacts returns an artifact store rooted at dir/models.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{root: filepath.Join(dir, "models")}
}

func (a *Artifacts) keyDir(key string) string {
	return filepath.Join(a.root, key)
}

// Save marshals v and writes it as <key>/<name>.json. The write goes through
// a temp file so a crash never leaves a truncated artifact behind.
func (a *Artifacts) Save(key, name string, v any) error {
	dir := a.keyDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifacts: create dir for %s: %w", key, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("artifacts: marshal %s/%s: %w", key, name, err)
	}
	path := filepath.Join(dir, name+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifacts: write %s/%s: %w", key, name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("artifacts: commit %s/%s: %w", key, name, err)
	}
	return nil
}

// Load reads <key>/<name>.json into v. Returns ErrNotFound when the artifact
// does not exist.
func (a *Artifacts) Load(key, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(a.keyDir(key), name+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: artifact %s/%s", ErrNotFound, key, name)
	}
	if err != nil {
		return fmt.Errorf("artifacts: read %s/%s: %w", key, name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("artifacts: decode %s/%s: %w", key, name, err)
	}
	return nil
}

// Exists reports whether any artifacts exist for a location.
func (a *Artifacts) Exists(key string) bool {
	entries, err := os.ReadDir(a.keyDir(key))
	return err == nil && len(entries) > 0
}

// Delete removes all artifacts for one location.
func (a *Artifacts) Delete(key string) error {
	if err := os.RemoveAll(a.keyDir(key)); err != nil {
		return fmt.Errorf("artifacts: delete %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes every stored artifact.
func (a *Artifacts) DeleteAll() error {
	if err := os.RemoveAll(a.root); err != nil {
		return fmt.Errorf("artifacts: delete all: %w", err)
	}
	return nil
}
