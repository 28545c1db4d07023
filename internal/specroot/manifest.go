package specroot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/specd/internal/spec"
)

// ManifestName is the serialized Spec within each spec root.
const ManifestName = "spec.yaml"

// LoadManifest reads and validates the spec manifest in dir.
func LoadManifest(dir string) (*spec.Spec, error) {
	path := filepath.Join(dir, ManifestName)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var s spec.Spec
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &s, nil
}

// SaveManifest writes the manifest atomically via a temp file rename, so
// a crash mid-write never leaves a truncated manifest behind.
func SaveManifest(dir string, s *spec.Spec) error {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	tmp, err := os.CreateTemp(dir, ".spec-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish manifest: %w", err)
	}
	return nil
}

// ManifestStore persists engine state into a spec root's manifest.
type ManifestStore struct {
	dir string
}

// NewManifestStore creates a store writing to the given spec root.
func NewManifestStore(dir string) *ManifestStore {
	return &ManifestStore{dir: dir}
}

// Save writes the spec to the manifest.
func (st *ManifestStore) Save(_ context.Context, s *spec.Spec) error {
	return SaveManifest(st.dir, s)
}
