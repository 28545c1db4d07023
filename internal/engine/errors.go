package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Engine errors. Gate failures are reported, never retried: they encode
// a genuine precondition violation, not a transient fault.
var (
	// ErrRequiresDecomposition is returned when a very-high-complexity
	// spec is activated without an explicit phase split.
	ErrRequiresDecomposition = errors.New("requires decomposition")
	// ErrExitGateNotMet is returned when the current phase's exit gate
	// or required artifacts are unmet.
	ErrExitGateNotMet = errors.New("exit gate not met")
	// ErrEntryGateNotMet is returned when the next phase's entry gate is
	// unmet; the spec transitions to Blocked rather than faulting.
	ErrEntryGateNotMet = errors.New("entry gate not met")
	// ErrCheckpointNotRequired is returned when a forced checkpoint is
	// requested outside the red zone.
	ErrCheckpointNotRequired = errors.New("checkpoint not required")
	// ErrBudgetRed is returned when a new task dispatch is refused
	// because the session budget is red. Work in flight is never
	// aborted; refusal to start is the only cancellation this engine
	// knows.
	ErrBudgetRed = errors.New("budget red")
	// ErrInvalidTransition is returned for lifecycle transitions not in
	// the state machine.
	ErrInvalidTransition = errors.New("invalid transition")
)

// GateError reports an unmet gate with the specific predicates and
// artifact names, so callers never surface a generic failure.
type GateError struct {
	// Kind is "entry" or "exit".
	Kind string
	// Phase is the phase sequence number the gate guards.
	Phase int
	// Unmet lists the failed predicates/artifacts in declaration order.
	Unmet []string
	// Err is the sentinel (ErrEntryGateNotMet or ErrExitGateNotMet).
	Err error
}

// Error implements the error interface.
func (e *GateError) Error() string {
	return fmt.Sprintf("%s gate for phase %d not met: %s", e.Kind, e.Phase, strings.Join(e.Unmet, ", "))
}

// Unwrap allows errors.Is against the gate sentinels.
func (e *GateError) Unwrap() error {
	return e.Err
}

func exitGateError(phase int, unmet []string) error {
	return &GateError{Kind: "exit", Phase: phase, Unmet: unmet, Err: ErrExitGateNotMet}
}

func entryGateError(phase int, unmet []string) error {
	return &GateError{Kind: "entry", Phase: phase, Unmet: unmet, Err: ErrEntryGateNotMet}
}
