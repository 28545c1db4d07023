// Package handoff serializes and restores the state needed to resume a
// spec in a new session.
//
// A checkpoint produces an immutable artifact pair: the handoff document
// (HANDOFF_P{N}.md) and the orchestrator prompt
// (P{N}_ORCHESTRATOR_PROMPT.md). The pair is written atomically from the
// caller's perspective: either both files exist after Checkpoint returns
// or neither does. Artifacts are never mutated; a correction writes a
// superseding revision pair.
package handoff

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Handoff errors.
var (
	// ErrIncompleteBudgetCategorization is returned when session usage
	// cannot be apportioned into the four memory tiers. The engine never
	// silently drops uncategorized context.
	ErrIncompleteBudgetCategorization = errors.New("incomplete budget categorization")
	// ErrCorruptHandoff is returned when required fields are missing
	// from an artifact.
	ErrCorruptHandoff = errors.New("corrupt handoff")
	// ErrStaleHandoff is returned when the spec's phase index has
	// already advanced past the artifact's phase, meaning a newer
	// handoff exists.
	ErrStaleHandoff = errors.New("stale handoff")
)

// TierPayload is the tiered context payload of a handoff, mirroring the
// budget's memory tiers. Working, episodic, and semantic carry content
// fragments; procedural carries links only.
type TierPayload struct {
	Working    []string `yaml:"working,omitempty"`
	Episodic   []string `yaml:"episodic,omitempty"`
	Semantic   []string `yaml:"semantic,omitempty"`
	Procedural []string `yaml:"procedural,omitempty"`
}

// BudgetUsage records the consumption counters at checkpoint time. Only
// the numbers travel in the artifact; tracker state itself is reset at
// the start of the next session.
type BudgetUsage struct {
	Working     int `yaml:"working"`
	Episodic    int `yaml:"episodic"`
	Semantic    int `yaml:"semantic"`
	Procedural  int `yaml:"procedural"`
	DirectReads int `yaml:"direct_reads"`
	LargeReads  int `yaml:"large_reads"`
	Delegations int `yaml:"delegations"`
}

// Artifact is one immutable handoff snapshot.
type Artifact struct {
	// ID is the unique identifier for this artifact.
	ID string `yaml:"id"`
	// SpecID is the machine-resumable spec pointer.
	SpecID string `yaml:"spec_id"`
	// SpecTitle is carried for the prompt rendering.
	SpecTitle string `yaml:"spec_title"`
	// Phase is the phase sequence number the handoff belongs to.
	Phase int `yaml:"phase"`
	// PhaseName is the phase name at checkpoint time.
	PhaseName string `yaml:"phase_name"`
	// Revision distinguishes superseding artifacts for the same phase,
	// starting at 1.
	Revision int `yaml:"revision"`
	// Cause is the zone that triggered the checkpoint (red for forced
	// checkpoints, green/yellow for natural phase boundaries).
	Cause budget.Zone `yaml:"cause"`
	// Usage is the budget consumption at checkpoint time.
	Usage BudgetUsage `yaml:"usage"`
	// Tiers is the categorized context payload.
	Tiers TierPayload `yaml:"tiers"`
	// PendingTasks are the tasks not yet complete at checkpoint time.
	PendingTasks []spec.Task `yaml:"pending_tasks,omitempty"`
	// NextSteps are free-form next-step tasks for the resuming session.
	NextSteps []string `yaml:"next_steps,omitempty"`
	// CreatedAt is when the artifact was written.
	CreatedAt time.Time `yaml:"created_at"`
}

// resumable reports whether the artifact carries enough to resume: a
// spec pointer, a phase pointer, and at least one pending or next-step
// task.
func (a *Artifact) resumable() bool {
	return a.SpecID != "" && a.Phase >= 0 && (len(a.PendingTasks) > 0 || len(a.NextSteps) > 0)
}

// Resumption is the restored state handed to a new session.
type Resumption struct {
	// Artifact is the handoff that was resumed.
	Artifact *Artifact
	// Spec is the spec being resumed.
	Spec *spec.Spec
	// Phase is the phase to continue.
	Phase *spec.Phase
	// PendingTasks are the tasks to pick up, exactly the tasks not yet
	// complete at checkpoint time.
	PendingTasks []spec.Task
}
