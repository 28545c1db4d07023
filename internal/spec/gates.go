package spec

import (
	"fmt"
)

// CheckKind identifies a gate predicate. Predicates are data, not code, so
// engine state stays reconstructable from the on-disk manifest.
type CheckKind string

const (
	// CheckAlways holds unconditionally.
	CheckAlways CheckKind = "always"
	// CheckArtifactExists holds when the named artifact exists.
	CheckArtifactExists CheckKind = "artifact-exists"
	// CheckPhaseComplete holds when the given phase has been advanced past.
	CheckPhaseComplete CheckKind = "phase-complete"
	// CheckTasksDone holds when every task of the current phase is done.
	CheckTasksDone CheckKind = "tasks-done"
)

// Check is a single gate predicate.
type Check struct {
	// Kind selects the predicate.
	Kind CheckKind `yaml:"kind" json:"kind"`
	// Artifact names the artifact for artifact-exists checks.
	Artifact string `yaml:"artifact,omitempty" json:"artifact,omitempty"`
	// Phase is the phase sequence number for phase-complete checks.
	Phase int `yaml:"phase,omitempty" json:"phase,omitempty"`
}

// Describe returns a short human-readable form of the check, used when
// reporting an unmet gate.
func (c Check) Describe() string {
	switch c.Kind {
	case CheckArtifactExists:
		return fmt.Sprintf("artifact-exists:%s", c.Artifact)
	case CheckPhaseComplete:
		return fmt.Sprintf("phase-complete:%d", c.Phase)
	case CheckTasksDone:
		return "tasks-done"
	default:
		return string(c.Kind)
	}
}

// Gate is a conjunction of checks guarding a phase transition. An empty
// gate always holds.
type Gate struct {
	Checks []Check `yaml:"checks,omitempty" json:"checks,omitempty"`
}

// GateInput supplies the facts gates are evaluated against.
type GateInput struct {
	// ArtifactExists reports whether a named artifact exists. Nil means
	// no artifacts exist.
	ArtifactExists func(name string) bool
	// PhasesDone is the number of phases already advanced past.
	PhasesDone int
	// TasksDone reports whether every task of the phase under evaluation
	// is complete.
	TasksDone bool
}

// Eval evaluates the gate and returns whether it holds plus the unmet
// checks in declaration order. Unknown check kinds never hold, so a
// manifest typo blocks rather than silently passes.
func (g Gate) Eval(in GateInput) (bool, []string) {
	var unmet []string
	for _, c := range g.Checks {
		ok := false
		switch c.Kind {
		case CheckAlways:
			ok = true
		case CheckArtifactExists:
			ok = in.ArtifactExists != nil && in.ArtifactExists(c.Artifact)
		case CheckPhaseComplete:
			ok = in.PhasesDone > c.Phase
		case CheckTasksDone:
			ok = in.TasksDone
		}
		if !ok {
			unmet = append(unmet, c.Describe())
		}
	}
	return len(unmet) == 0, unmet
}
