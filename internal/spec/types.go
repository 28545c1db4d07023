package spec

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a Spec.
//
// Transitions are append-only: a Blocked spec must be explicitly reopened,
// and Completed/Archived are terminal. The engine never reverts a status
// silently.
type Status string

const (
	// StatusPending indicates the spec has been created but not activated.
	StatusPending Status = "pending"
	// StatusActive indicates the spec is being executed.
	StatusActive Status = "active"
	// StatusBlocked indicates an entry gate failed and an operator must reopen.
	StatusBlocked Status = "blocked"
	// StatusCompleted indicates all phases finished. Terminal.
	StatusCompleted Status = "completed"
	// StatusArchived indicates the spec has been archived. Terminal.
	StatusArchived Status = "archived"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusBlocked, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

// TaskSize is the estimated size of a task.
type TaskSize string

const (
	SizeSmall  TaskSize = "small"
	SizeMedium TaskSize = "medium"
	SizeLarge  TaskSize = "large"
)

// Weight returns the sizing weight (1/2/3) used for budget accounting.
// Unknown sizes weigh as medium.
func (s TaskSize) Weight() int {
	switch s {
	case SizeSmall:
		return 1
	case SizeLarge:
		return 3
	default:
		return 2
	}
}

// Capability identifies a class of external capability provider a task can
// be delegated to. The set is closed so routing is exhaustively matchable;
// tasks are never dispatched against an open-ended agent name.
type Capability string

const (
	// CapabilityReader handles read-heavy work: surveying artifacts,
	// gathering context across many files.
	CapabilityReader Capability = "reader"
	// CapabilityWriter produces source-like output.
	CapabilityWriter Capability = "writer"
	// CapabilityTester produces or executes verification.
	CapabilityTester Capability = "tester"
	// CapabilityFixer repairs a previously failed task.
	CapabilityFixer Capability = "fixer"
	// CapabilityResearcher investigates open questions with no
	// predetermined output shape.
	CapabilityResearcher Capability = "researcher"
)

// Valid returns true if the capability is a known class.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityReader, CapabilityWriter, CapabilityTester, CapabilityFixer, CapabilityResearcher:
		return true
	default:
		return false
	}
}

// Capabilities returns all capability classes.
func Capabilities() []Capability {
	return []Capability{
		CapabilityReader,
		CapabilityWriter,
		CapabilityTester,
		CapabilityFixer,
		CapabilityResearcher,
	}
}

// Task is a leaf unit of work inside a phase. Tasks are created when a
// phase starts and archived when it completes.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `yaml:"id" json:"id"`
	// Description is a human-readable description of the work.
	Description string `yaml:"description" json:"description"`
	// Size is the estimated task size (small/medium/large).
	Size TaskSize `yaml:"size" json:"size"`
	// ArtifactReads is how many existing artifacts the task must read.
	ArtifactReads int `yaml:"artifact_reads,omitempty" json:"artifact_reads,omitempty"`
	// ProducesSource indicates the task emits source-like output.
	ProducesSource bool `yaml:"produces_source,omitempty" json:"produces_source,omitempty"`
	// Verification indicates the task verifies prior output.
	Verification bool `yaml:"verification,omitempty" json:"verification,omitempty"`
	// Retry indicates the task repairs a previously failed task.
	Retry bool `yaml:"retry,omitempty" json:"retry,omitempty"`
	// Exploratory indicates open-ended research work.
	Exploratory bool `yaml:"exploratory,omitempty" json:"exploratory,omitempty"`
	// Done marks the task complete.
	Done bool `yaml:"done" json:"done"`
}

// Phase is an ordered, gated stage within a Spec.
//
// A phase is complete only when its exit gate holds and every required
// artifact exists. The engine refuses to advance otherwise.
type Phase struct {
	// Seq is the zero-based sequence number within the spec.
	Seq int `yaml:"seq" json:"seq"`
	// Name is the phase name, e.g. "design" or "implementation".
	Name string `yaml:"name" json:"name"`
	// Tasks are the leaf work units of this phase.
	Tasks []Task `yaml:"tasks,omitempty" json:"tasks,omitempty"`
	// EntryGate must hold before the phase may start.
	EntryGate Gate `yaml:"entry_gate,omitempty" json:"entry_gate,omitempty"`
	// ExitGate must hold before the phase may complete.
	ExitGate Gate `yaml:"exit_gate,omitempty" json:"exit_gate,omitempty"`
	// RequiredArtifacts are named outputs that must exist at phase
	// completion, e.g. a handoff pair.
	RequiredArtifacts []string `yaml:"required_artifacts,omitempty" json:"required_artifacts,omitempty"`
}

// PendingTasks returns the tasks not yet marked done, in declaration order.
func (p *Phase) PendingTasks() []Task {
	var pending []Task
	for _, t := range p.Tasks {
		if !t.Done {
			pending = append(pending, t)
		}
	}
	return pending
}

// Factors are the complexity inputs scored before activation. Each is an
// integer count; the classifier applies fixed weights.
type Factors struct {
	// Phases is the number of planned phases.
	Phases int `yaml:"phases" json:"phases"`
	// AgentTypes is the number of distinct capability classes involved.
	AgentTypes int `yaml:"agent_types" json:"agent_types"`
	// CrossPackageDeps counts dependencies spanning package boundaries.
	CrossPackageDeps int `yaml:"cross_package_deps" json:"cross_package_deps"`
	// ExternalDeps counts dependencies on systems outside the workspace.
	ExternalDeps int `yaml:"external_deps" json:"external_deps"`
	// Uncertainty counts open design questions.
	Uncertainty int `yaml:"uncertainty" json:"uncertainty"`
	// ResearchRequired counts required research spikes.
	ResearchRequired int `yaml:"research_required" json:"research_required"`
}

// Spec is a unit of multi-phase work tracked by the engine.
type Spec struct {
	// ID is the unique identifier for this spec.
	ID string `yaml:"id" json:"id"`
	// Title is the human-readable spec title.
	Title string `yaml:"title" json:"title"`
	// Status is the current lifecycle state.
	Status Status `yaml:"status" json:"status"`
	// PhaseIndex is the index of the current phase. It is the sole source
	// of truth for progress; transitions for one spec are serialized on it.
	PhaseIndex int `yaml:"phase_index" json:"phase_index"`
	// Phases are the ordered, gated stages of the spec.
	Phases []Phase `yaml:"phases" json:"phases"`
	// Factors are the complexity inputs used at activation.
	Factors Factors `yaml:"factors" json:"factors"`
	// CreatedAt is when the spec was created.
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Validate checks the spec's structural invariants: a known status and
// phases numbered contiguously from zero, so a phase's Seq always
// indexes the Phases slice.
func (s *Spec) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	for i := range s.Phases {
		if s.Phases[i].Seq != i {
			return fmt.Errorf("phase at position %d declares seq %d; phases must be numbered 0..%d in order",
				i, s.Phases[i].Seq, len(s.Phases)-1)
		}
	}
	return nil
}

// CurrentPhase returns the phase at the current index, or nil when the
// spec has no remaining phases.
func (s *Spec) CurrentPhase() *Phase {
	if s.PhaseIndex < 0 || s.PhaseIndex >= len(s.Phases) {
		return nil
	}
	return &s.Phases[s.PhaseIndex]
}

// CompletedPhases returns the number of phases already advanced past.
func (s *Spec) CompletedPhases() int {
	return s.PhaseIndex
}
