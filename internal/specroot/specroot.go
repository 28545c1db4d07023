// Package specroot manages the on-disk layout of a spec workspace.
//
// A workspace groups spec roots by lifecycle folder:
//
//	<base>/pending/<name>/
//	<base>/active/<name>/
//	<base>/completed/<name>/
//	<base>/archived/<name>/
//
// Each spec root holds README.md, REFLECTION_LOG.md, handoffs/, outputs/,
// and the spec.yaml manifest. There is no other persisted state: the
// manifest plus the markdown artifacts fully reconstruct the engine's
// view of the spec.
package specroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/reflection"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Folder is a lifecycle folder within the workspace.
type Folder string

const (
	FolderPending   Folder = "pending"
	FolderActive    Folder = "active"
	FolderCompleted Folder = "completed"
	FolderArchived  Folder = "archived"
)

// Folders returns the lifecycle folders in lifecycle order.
func Folders() []Folder {
	return []Folder{FolderPending, FolderActive, FolderCompleted, FolderArchived}
}

// Terminal reports whether specs in this folder are expected to carry a
// terminal status.
func (f Folder) Terminal() bool {
	return f == FolderCompleted || f == FolderArchived
}

// statusFor maps a folder onto the manifest status a manual move sets.
func (f Folder) statusFor() spec.Status {
	switch f {
	case FolderPending:
		return spec.StatusPending
	case FolderCompleted:
		return spec.StatusCompleted
	case FolderArchived:
		return spec.StatusArchived
	default:
		return spec.StatusActive
	}
}

var (
	// ErrSpecExists is returned when bootstrapping over an existing spec.
	ErrSpecExists = errors.New("spec already exists")
	// ErrSpecNotFound is returned when no folder contains the named spec.
	ErrSpecNotFound = errors.New("spec not found")
	// ErrMoveRefused is returned when a manual move is not permitted by
	// the spec's machine state.
	ErrMoveRefused = errors.New("move refused")
)

// Root is a spec workspace on disk.
type Root struct {
	base string
}

// New creates a workspace handle rooted at base.
func New(base string) *Root {
	return &Root{base: base}
}

// Base returns the workspace base directory.
func (r *Root) Base() string { return r.base }

// Dir returns the spec root directory for a name within a folder.
func (r *Root) Dir(f Folder, name string) string {
	return filepath.Join(r.base, string(f), name)
}

// Find locates a named spec, returning its root directory and folder.
func (r *Root) Find(name string) (string, Folder, error) {
	for _, f := range Folders() {
		dir := r.Dir(f, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, f, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrSpecNotFound, name)
}

// List returns the spec names under one folder, sorted by the directory
// listing order (lexical).
func (r *Root) List(f Folder) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.base, string(f)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s folder: %w", f, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Bootstrap creates a fresh spec root under pending/: the README
// skeleton, an empty reflection log, the handoffs and outputs
// directories, and the spec.yaml manifest. It refuses to touch an
// existing spec of the same name in any folder.
func (r *Root) Bootstrap(name, title string) (*spec.Spec, error) {
	if name == "" {
		return nil, errors.New("spec name is required")
	}
	if _, f, err := r.Find(name); err == nil {
		return nil, fmt.Errorf("%w: %s (in %s)", ErrSpecExists, name, f)
	}

	dir := r.Dir(FolderPending, name)
	for _, sub := range []string{dir, filepath.Join(dir, handoff.DirName), filepath.Join(dir, OutputsDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create spec root: %w", err)
		}
	}

	s := &spec.Spec{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    spec.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := SaveManifest(dir, s); err != nil {
		return nil, err
	}

	readme := fmt.Sprintf("# %s\n\n## Goals\n\n- TBD\n\n## Non-goals\n\n- TBD\n\n## Success criteria\n\n- TBD\n", title)
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return nil, fmt.Errorf("write README: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, reflection.LogFileName), []byte("# Reflection log\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write reflection log: %w", err)
	}
	return s, nil
}

// Move relocates a spec between lifecycle folders and rewrites its
// manifest status to match. This is the only manual status override and
// is refused unless the machine state permits it: a spec moves to
// pending only from Blocked, and to completed or archived only once the
// engine reports it Completed (or already Archived).
func (r *Root) Move(name string, target Folder) error {
	switch target {
	case FolderPending, FolderCompleted, FolderArchived:
	default:
		return fmt.Errorf("%w: cannot move to %s manually", ErrMoveRefused, target)
	}

	dir, from, err := r.Find(name)
	if err != nil {
		return err
	}
	if from == target {
		return nil
	}
	s, err := LoadManifest(dir)
	if err != nil {
		return err
	}

	permitted := false
	switch target {
	case FolderPending:
		permitted = s.Status == spec.StatusBlocked
	case FolderCompleted:
		permitted = s.Status == spec.StatusCompleted
	case FolderArchived:
		permitted = s.Status == spec.StatusCompleted || s.Status == spec.StatusArchived
	}
	if !permitted {
		return fmt.Errorf("%w: spec %s is %s, cannot move to %s", ErrMoveRefused, name, s.Status, target)
	}

	dest := r.Dir(target, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s folder: %w", target, err)
	}
	if err := os.Rename(dir, dest); err != nil {
		return fmt.Errorf("move spec root: %w", err)
	}

	s.Status = target.statusFor()
	if err := SaveManifest(dest, s); err != nil {
		// The directory moved but the manifest did not update; report
		// rather than attempting a second rename.
		return fmt.Errorf("update manifest after move: %w", err)
	}
	return nil
}

// Violation is one folder/status disagreement found by CheckStatus.
type Violation struct {
	Name   string
	Folder Folder
	Status spec.Status
	Reason string
}

// CheckStatus validates folder/status agreement across the workspace: a
// spec in a terminal folder must carry a terminal status, and a spec
// with a terminal status must not linger in pending or active.
func (r *Root) CheckStatus() ([]Violation, error) {
	var violations []Violation
	for _, f := range Folders() {
		names, err := r.List(f)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			s, err := LoadManifest(r.Dir(f, name))
			if err != nil {
				violations = append(violations, Violation{
					Name: name, Folder: f, Reason: fmt.Sprintf("unreadable manifest: %v", err),
				})
				continue
			}
			switch {
			case f.Terminal() && !s.Status.Terminal():
				violations = append(violations, Violation{
					Name: name, Folder: f, Status: s.Status,
					Reason: fmt.Sprintf("folder %s expects a terminal status, manifest says %s", f, s.Status),
				})
			case !f.Terminal() && s.Status.Terminal():
				violations = append(violations, Violation{
					Name: name, Folder: f, Status: s.Status,
					Reason: fmt.Sprintf("status %s belongs in a terminal folder, found in %s", s.Status, f),
				})
			}
		}
	}
	return violations, nil
}
