package specroot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

func TestBootstrap(t *testing.T) {
	r := New(t.TempDir())

	s, err := r.Bootstrap("auth-rework", "Rework the auth layer")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, spec.StatusPending, s.Status)

	dir := r.Dir(FolderPending, "auth-rework")
	assert.FileExists(t, filepath.Join(dir, "README.md"))
	assert.FileExists(t, filepath.Join(dir, "REFLECTION_LOG.md"))
	assert.FileExists(t, filepath.Join(dir, ManifestName))
	assert.DirExists(t, filepath.Join(dir, "handoffs"))
	assert.DirExists(t, filepath.Join(dir, "outputs"))

	readme, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "## Goals")
	assert.Contains(t, string(readme), "## Non-goals")
	assert.Contains(t, string(readme), "## Success criteria")
}

func TestBootstrap_RefusesExisting(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Bootstrap("auth-rework", "v1")
	require.NoError(t, err)

	_, err = r.Bootstrap("auth-rework", "v2")
	assert.ErrorIs(t, err, ErrSpecExists)
}

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := &spec.Spec{
		ID:         "spec-rt",
		Title:      "Round trip",
		Status:     spec.StatusActive,
		PhaseIndex: 1,
		Phases: []spec.Phase{
			{Seq: 0, Name: "design", Tasks: []spec.Task{{ID: "t1", Description: "d", Size: spec.SizeSmall, Done: true}}},
			{Seq: 1, Name: "build", EntryGate: spec.Gate{Checks: []spec.Check{{Kind: spec.CheckArtifactExists, Artifact: "design.md"}}}},
		},
		Factors:   spec.Factors{Phases: 2, Uncertainty: 1},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, SaveManifest(dir, s))

	got, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, 1, got.PhaseIndex)
	assert.Equal(t, spec.CheckArtifactExists, got.Phases[1].EntryGate.Checks[0].Kind)
	assert.True(t, got.Phases[0].Tasks[0].Done)
}

func TestLoadManifest_MisnumberedPhases(t *testing.T) {
	dir := t.TempDir()
	s := reconstructableSpec()
	s.Phases[0].Seq = 1
	s.Phases[1].Seq = 2
	require.NoError(t, SaveManifest(dir, s))

	_, err := LoadManifest(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq")

	// Reconstruct refuses the manifest outright instead of reporting
	// phantom handoff inconsistencies against misnumbered phases.
	_, err = Reconstruct(dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInconsistentRoot)
}

func TestLoadManifest_InvalidStatus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte("id: x\nstatus: zombie\n"), 0o644))
	_, err := LoadManifest(dir)
	assert.Error(t, err)
}

func TestManifestStore_Save(t *testing.T) {
	dir := t.TempDir()
	st := NewManifestStore(dir)
	require.NoError(t, st.Save(context.Background(), &spec.Spec{ID: "s", Status: spec.StatusActive}))

	got, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, "s", got.ID)
}

func TestOutputsChecker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, OutputsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OutputsDir, "design.md"), []byte("# design\n"), 0o644))

	c := NewOutputsChecker(dir)
	assert.True(t, c.Exists("design.md"))
	assert.False(t, c.Exists("missing.md"))
	assert.False(t, c.Exists("../spec.yaml"), "artifacts are flat names")

	names, err := c.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"design.md"}, names)
}

func TestMove_Permissions(t *testing.T) {
	tests := []struct {
		name    string
		status  spec.Status
		target  Folder
		allowed bool
	}{
		{"completed to completed folder", spec.StatusCompleted, FolderCompleted, true},
		{"active refused completed folder", spec.StatusActive, FolderCompleted, false},
		{"blocked back to pending", spec.StatusBlocked, FolderPending, true},
		{"active refused pending", spec.StatusActive, FolderPending, false},
		{"completed to archived", spec.StatusCompleted, FolderArchived, true},
		{"pending refused archived", spec.StatusPending, FolderArchived, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(t.TempDir())
			s, err := r.Bootstrap("m", "move test")
			require.NoError(t, err)

			// Simulate the engine having driven the spec to the state
			// under test, then relocate it to the active folder.
			s.Status = tt.status
			dir := r.Dir(FolderPending, "m")
			if tt.status != spec.StatusPending {
				active := r.Dir(FolderActive, "m")
				require.NoError(t, os.MkdirAll(filepath.Dir(active), 0o755))
				require.NoError(t, os.Rename(dir, active))
				dir = active
			}
			require.NoError(t, SaveManifest(dir, s))

			err = r.Move("m", tt.target)
			if !tt.allowed {
				require.ErrorIs(t, err, ErrMoveRefused)
				return
			}
			require.NoError(t, err)
			got, err := LoadManifest(r.Dir(tt.target, "m"))
			require.NoError(t, err)
			assert.Equal(t, tt.target.statusFor(), got.Status)
		})
	}
}

func TestMove_UnknownSpec(t *testing.T) {
	r := New(t.TempDir())
	assert.ErrorIs(t, r.Move("ghost", FolderCompleted), ErrSpecNotFound)
}

func TestCheckStatus(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Bootstrap("ok", "fine")
	require.NoError(t, err)

	// A completed-folder spec whose manifest still says active.
	bad := r.Dir(FolderCompleted, "liar")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, SaveManifest(bad, &spec.Spec{ID: "liar", Status: spec.StatusActive}))

	// An active-folder spec whose manifest is already terminal.
	stale := r.Dir(FolderActive, "stale")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, SaveManifest(stale, &spec.Spec{ID: "stale", Status: spec.StatusCompleted}))

	violations, err := r.CheckStatus()
	require.NoError(t, err)
	require.Len(t, violations, 2)

	byName := map[string]Violation{}
	for _, v := range violations {
		byName[v.Name] = v
	}
	assert.Equal(t, FolderCompleted, byName["liar"].Folder)
	assert.Equal(t, spec.StatusActive, byName["liar"].Status)
	assert.Equal(t, FolderActive, byName["stale"].Folder)
}

func reconstructableSpec() *spec.Spec {
	return &spec.Spec{
		ID:         "spec-rec",
		Title:      "Reconstructable",
		Status:     spec.StatusActive,
		PhaseIndex: 1,
		Phases: []spec.Phase{
			{Seq: 0, Name: "design",
				Tasks:             []spec.Task{{ID: "t1", Description: "d", Size: spec.SizeSmall, Done: true}},
				RequiredArtifacts: []string{"design.md"}},
			{Seq: 1, Name: "build",
				Tasks: []spec.Task{{ID: "t2", Description: "b", Size: spec.SizeMedium}}},
		},
	}
}

func writeCompletePhaseZero(t *testing.T, dir string, s *spec.Spec) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, OutputsDir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OutputsDir, "design.md"), []byte("# design\n"), 0o644))

	m, err := handoff.NewManager(dir, nil)
	require.NoError(t, err)
	// Checkpoint before the advance, while phase 0 is still current.
	prior := *s
	prior.PhaseIndex = 0
	_, err = m.Checkpoint(context.Background(), handoff.CheckpointRequest{
		Spec:      &prior,
		Cause:     budget.ZoneGreen,
		Usage:     budget.Snapshot{Working: 100},
		Tiers:     handoff.TierPayload{Working: []string{"design complete"}},
		NextSteps: []string{"begin build"},
	})
	require.NoError(t, err)
}

func TestReconstruct_Consistent(t *testing.T) {
	dir := t.TempDir()
	s := reconstructableSpec()
	writeCompletePhaseZero(t, dir, s)
	require.NoError(t, SaveManifest(dir, s))

	got, err := Reconstruct(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PhaseIndex)
	assert.Equal(t, spec.StatusActive, got.Status)
}

func TestReconstruct_Inconsistencies(t *testing.T) {
	t.Run("missing handoff pair", func(t *testing.T) {
		dir := t.TempDir()
		s := reconstructableSpec()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, OutputsDir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, OutputsDir, "design.md"), []byte("x"), 0o644))
		require.NoError(t, SaveManifest(dir, s))

		_, err := Reconstruct(dir)
		require.ErrorIs(t, err, ErrInconsistentRoot)
		assert.Contains(t, err.Error(), "handoff pair")
	})

	t.Run("missing required artifact", func(t *testing.T) {
		dir := t.TempDir()
		s := reconstructableSpec()
		writeCompletePhaseZero(t, dir, s)
		require.NoError(t, os.Remove(filepath.Join(dir, OutputsDir, "design.md")))
		require.NoError(t, SaveManifest(dir, s))

		_, err := Reconstruct(dir)
		require.ErrorIs(t, err, ErrInconsistentRoot)
		assert.Contains(t, err.Error(), "design.md")
	})

	t.Run("undone task in completed phase", func(t *testing.T) {
		dir := t.TempDir()
		s := reconstructableSpec()
		writeCompletePhaseZero(t, dir, s)
		s.Phases[0].Tasks[0].Done = false
		require.NoError(t, SaveManifest(dir, s))

		_, err := Reconstruct(dir)
		require.ErrorIs(t, err, ErrInconsistentRoot)
		assert.Contains(t, err.Error(), "t1")
	})

	t.Run("completed status with phases left", func(t *testing.T) {
		dir := t.TempDir()
		s := reconstructableSpec()
		writeCompletePhaseZero(t, dir, s)
		s.Status = spec.StatusCompleted
		require.NoError(t, SaveManifest(dir, s))

		_, err := Reconstruct(dir)
		require.ErrorIs(t, err, ErrInconsistentRoot)
	})
}

func TestWatcher_SeesNewArtifact(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	changes := make(chan string, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		_ = w.Run(ctx, func(path string) { changes <- path })
	}()

	// Give the watch loop a moment to start before writing.
	time.Sleep(50 * time.Millisecond)
	target := filepath.Join(dir, OutputsDir, "design.md")
	require.NoError(t, os.WriteFile(target, []byte("# design\n"), 0o644))

	select {
	case path := <-changes:
		assert.Contains(t, path, "design.md")
	case <-ctx.Done():
		t.Fatal("no event before timeout")
	}
}
