// Package engine implements the phase state machine that sequences a
// spec through gated phases, dispatches its tasks, and checkpoints when
// the session budget runs out.
//
// One Machine owns one Spec exclusively for its lifetime: all
// transitions are serialized on the machine's mutex, and the spec's
// phase index is the sole source of truth for progress. Different specs
// run in parallel with no shared mutable state beyond the pattern
// registry's append-only store.
//
// Suspension points exist only at phase boundaries (AdvancePhase) and
// forced checkpoints (ForceCheckpoint). A task in flight is never
// interrupted; once the budget is red the engine refuses to start new
// tasks instead of aborting running ones.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/classify"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/reflection"
	"github.com/fyrsmithlabs/specd/internal/registry"
	"github.com/fyrsmithlabs/specd/internal/route"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/engine"

// tokensPerWeight is the working-tier token estimate per task size unit.
const tokensPerWeight = 100

// ArtifactChecker reports whether a named phase artifact exists. The
// spec root backs this with outputs/ on disk; tests use a map.
type ArtifactChecker interface {
	Exists(name string) bool
}

// ArtifactMap is a map-backed ArtifactChecker.
type ArtifactMap map[string]bool

// Exists reports whether the named artifact is present.
func (m ArtifactMap) Exists(name string) bool { return m[name] }

// Executor runs a routed task to completion. Delegation is a blocking
// call: the engine observes the result before budget accounting and
// gate evaluation proceed.
type Executor interface {
	Execute(ctx context.Context, t spec.Task, d route.Decision) error
}

// NopExecutor treats every task as externally performed and successful.
type NopExecutor struct{}

// Execute does nothing.
func (NopExecutor) Execute(ctx context.Context, t spec.Task, d route.Decision) error { return nil }

// Store persists spec state after a transition. Nil disables persistence.
type Store interface {
	Save(ctx context.Context, s *spec.Spec) error
}

// Config wires the machine's collaborators.
type Config struct {
	Classifier *classify.Classifier
	Tracker    *budget.Tracker
	Router     *route.Router
	Handoffs   *handoff.Manager
	Reflections reflection.Log
	Registry   *registry.Service
	Artifacts  ArtifactChecker
	Executor   Executor
	Store      Store
	Logger     *zap.Logger
}

// Machine sequences one spec through its phases.
type Machine struct {
	mu sync.Mutex

	spec        *spec.Spec
	classifier  *classify.Classifier
	tracker     *budget.Tracker
	router      *route.Router
	handoffs    *handoff.Manager
	reflections reflection.Log
	registry    *registry.Service
	artifacts   ArtifactChecker
	executor    Executor
	store       Store
	logger      *zap.Logger

	tracer         trace.Tracer
	advanceCounter metric.Int64Counter
}

// NewMachine creates the state machine for one spec. The classifier,
// tracker, router, and handoff manager are required; reflections,
// registry, and store are optional.
func NewMachine(s *spec.Spec, cfg Config) (*Machine, error) {
	if s == nil {
		return nil, errors.New("spec is required")
	}
	// Phase seq numbers index the Phases slice in the gate paths; a
	// misnumbered manifest must be refused here, not panic later.
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	if cfg.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if cfg.Tracker == nil {
		return nil, errors.New("budget tracker is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}
	if cfg.Handoffs == nil {
		return nil, errors.New("handoff manager is required")
	}
	if cfg.Artifacts == nil {
		cfg.Artifacts = ArtifactMap{}
	}
	if cfg.Executor == nil {
		cfg.Executor = NopExecutor{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	meter := otel.Meter(instrumentationName)
	advances, err := meter.Int64Counter("specd.engine.phase_advances",
		metric.WithDescription("Successful phase advances"))
	if err != nil {
		return nil, fmt.Errorf("create advance counter: %w", err)
	}

	return &Machine{
		spec:           s,
		classifier:     cfg.Classifier,
		tracker:        cfg.Tracker,
		router:         cfg.Router,
		handoffs:       cfg.Handoffs,
		reflections:    cfg.Reflections,
		registry:       cfg.Registry,
		artifacts:      cfg.Artifacts,
		executor:       cfg.Executor,
		store:          cfg.Store,
		logger:         cfg.Logger,
		tracer:         otel.Tracer(instrumentationName),
		advanceCounter: advances,
	}, nil
}

// Spec returns a copy of the owned spec's current state.
func (m *Machine) Spec() spec.Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.spec
}

// Zone returns the current session zone.
func (m *Machine) Zone() budget.Zone {
	return m.tracker.Zone()
}

// BeginSession starts a fresh session: budget counters reset to zero.
func (m *Machine) BeginSession(sessionID string) {
	m.tracker.BeginSession(sessionID)
}

// Activate moves a pending spec to active at phase 0.
//
// Activation is a hard validation point: a spec classifying as very
// high complexity is refused with ErrRequiresDecomposition and must be
// split into phases (or sub-specs) before it can run. Phase 0's entry
// gate is evaluated immediately; an unmet gate blocks the spec.
func (m *Machine) Activate(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "engine.Activate")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusPending {
		return fmt.Errorf("%w: cannot activate %s spec", ErrInvalidTransition, m.spec.Status)
	}
	if len(m.spec.Phases) == 0 {
		return fmt.Errorf("%w: spec %s has no phases", ErrInvalidTransition, m.spec.ID)
	}

	score, tier := m.classifier.Classify(m.spec.Factors)
	span.SetAttributes(
		attribute.String("spec.id", m.spec.ID),
		attribute.Int("spec.complexity", score),
		attribute.String("spec.tier", string(tier)),
	)
	if tier == classify.TierVeryHigh {
		return fmt.Errorf("spec %s scored %d (%s): %w",
			m.spec.ID, score, tier, ErrRequiresDecomposition)
	}

	m.spec.Status = spec.StatusActive
	m.spec.PhaseIndex = 0

	if ok, unmet := m.entryGateLocked(0); !ok {
		m.spec.Status = spec.StatusBlocked
		if err := m.saveLocked(ctx); err != nil {
			return err
		}
		return entryGateError(0, unmet)
	}

	if err := m.saveLocked(ctx); err != nil {
		return err
	}
	m.logger.Info("spec activated",
		zap.String("spec_id", m.spec.ID),
		zap.Int("complexity", score),
		zap.String("tier", string(tier)))
	return nil
}

// DispatchResult reports how a task ran and where the budget landed.
type DispatchResult struct {
	Decision route.Decision
	Zone     budget.Zone
}

// Dispatch routes and executes one pending task of the current phase,
// then charges the budget for it. A red budget refuses new dispatches
// with ErrBudgetRed; the caller must checkpoint and resume in a fresh
// session.
func (m *Machine) Dispatch(ctx context.Context, taskID string) (*DispatchResult, error) {
	ctx, span := m.tracer.Start(ctx, "engine.Dispatch")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusActive {
		return nil, fmt.Errorf("%w: cannot dispatch on %s spec", ErrInvalidTransition, m.spec.Status)
	}
	if m.tracker.Zone() == budget.ZoneRed {
		return nil, fmt.Errorf("%w: checkpoint before starting new tasks", ErrBudgetRed)
	}

	phase := m.spec.CurrentPhase()
	if phase == nil {
		return nil, fmt.Errorf("%w: no current phase", ErrInvalidTransition)
	}
	var task *spec.Task
	for i := range phase.Tasks {
		if phase.Tasks[i].ID == taskID {
			task = &phase.Tasks[i]
			break
		}
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found in phase %d", taskID, phase.Seq)
	}
	if task.Done {
		return nil, fmt.Errorf("task %s is already complete", taskID)
	}

	decision := m.router.Route(*task)
	span.SetAttributes(
		attribute.String("task.id", task.ID),
		attribute.Bool("task.delegated", decision.Delegate),
	)

	// Blocking call: the result is observed before accounting proceeds.
	if err := m.executor.Execute(ctx, *task, decision); err != nil {
		return nil, fmt.Errorf("execute task %s: %w", taskID, err)
	}
	task.Done = true

	zone, err := m.chargeLocked(*task, decision)
	if err != nil {
		return nil, err
	}
	if err := m.saveLocked(ctx); err != nil {
		return nil, err
	}

	m.logger.Info("task dispatched",
		zap.String("spec_id", m.spec.ID),
		zap.String("task_id", task.ID),
		zap.Bool("delegated", decision.Delegate),
		zap.String("zone", string(zone)))
	return &DispatchResult{Decision: decision, Zone: zone}, nil
}

// chargeLocked records the budget cost of a completed task: one
// delegation if routed out, one direct read per artifact consulted
// (large reads for large tasks), and a working-tier token estimate from
// the size weight.
func (m *Machine) chargeLocked(t spec.Task, d route.Decision) (budget.Zone, error) {
	zone := m.tracker.Zone()
	record := func(u budget.Usage) error {
		z, err := m.tracker.Record(u)
		if err != nil {
			var exceeded *budget.ErrBudgetExceeded
			if errors.As(err, &exceeded) {
				// The task already ran; the cap breach latches red so
				// the next dispatch is refused.
				zone = budget.ZoneRed
				return nil
			}
			return err
		}
		zone = z
		return nil
	}

	if d.Delegate {
		if err := record(budget.Delegation()); err != nil {
			return zone, err
		}
	}
	for i := 0; i < t.ArtifactReads; i++ {
		if err := record(budget.DirectRead()); err != nil {
			return zone, err
		}
	}
	if t.Size == spec.SizeLarge {
		if err := record(budget.LargeFileRead()); err != nil {
			return zone, err
		}
	}
	if err := record(budget.Tokens(budget.TierWorking, t.Size.Weight()*tokensPerWeight)); err != nil {
		return zone, err
	}
	return zone, nil
}

// AdvanceRequest carries the phase-boundary payload: the handoff tiers,
// next steps for the new session, and an optional reflection entry.
type AdvanceRequest struct {
	Tiers     handoff.TierPayload
	NextSteps []string
	Reflection *reflection.Entry
}

// AdvancePhase completes the current phase and moves to the next.
//
// The exit gate and required artifacts are checked first; failure
// reports ErrExitGateNotMet with the unmet names and nothing changes,
// so calling AdvancePhase again without new progress fails the same way
// rather than double-advancing. On success a handoff pair is written
// for the transition, the reflection entry (if any) is appended and
// ingested into the pattern registry, and the next phase's entry gate
// is evaluated; an unmet entry gate leaves the spec Blocked.
func (m *Machine) AdvancePhase(ctx context.Context, req AdvanceRequest) error {
	ctx, span := m.tracer.Start(ctx, "engine.AdvancePhase")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusActive {
		return fmt.Errorf("%w: cannot advance %s spec", ErrInvalidTransition, m.spec.Status)
	}
	phase := m.spec.CurrentPhase()
	if phase == nil {
		return fmt.Errorf("%w: no current phase", ErrInvalidTransition)
	}

	if ok, unmet := m.exitGateLocked(phase); !ok {
		return exitGateError(phase.Seq, unmet)
	}

	// Phase boundary: emit the handoff pair before mutating state, so a
	// failed write leaves the spec untouched.
	if _, err := m.handoffs.Checkpoint(ctx, handoff.CheckpointRequest{
		Spec:      m.spec,
		Usage:     m.tracker.Snapshot(),
		Cause:     m.tracker.Zone(),
		Tiers:     req.Tiers,
		NextSteps: m.nextStepsFor(req),
	}); err != nil {
		return fmt.Errorf("phase-boundary handoff: %w", err)
	}

	if err := m.reflectLocked(ctx, phase.Seq, req.Reflection); err != nil {
		return err
	}

	m.spec.PhaseIndex++
	m.advanceCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("spec.id", m.spec.ID)))

	if m.spec.PhaseIndex >= len(m.spec.Phases) {
		m.spec.Status = spec.StatusCompleted
		if err := m.saveLocked(ctx); err != nil {
			return err
		}
		m.logger.Info("spec completed", zap.String("spec_id", m.spec.ID))
		return nil
	}

	next := m.spec.CurrentPhase()
	if ok, unmet := m.entryGateLocked(next.Seq); !ok {
		m.spec.Status = spec.StatusBlocked
		if err := m.saveLocked(ctx); err != nil {
			return err
		}
		m.logger.Warn("spec blocked on entry gate",
			zap.String("spec_id", m.spec.ID),
			zap.Int("phase", next.Seq),
			zap.Strings("unmet", unmet))
		return entryGateError(next.Seq, unmet)
	}

	if err := m.saveLocked(ctx); err != nil {
		return err
	}
	m.logger.Info("phase advanced",
		zap.String("spec_id", m.spec.ID),
		zap.Int("phase", m.spec.PhaseIndex))
	return nil
}

// nextStepsFor defaults the handoff next steps to the upcoming phase
// when the caller provided none, so a phase-boundary artifact with no
// pending tasks still resumes.
func (m *Machine) nextStepsFor(req AdvanceRequest) []string {
	if len(req.NextSteps) > 0 {
		return req.NextSteps
	}
	if m.spec.PhaseIndex+1 < len(m.spec.Phases) {
		return []string{fmt.Sprintf("begin phase %d (%s)",
			m.spec.PhaseIndex+1, m.spec.Phases[m.spec.PhaseIndex+1].Name)}
	}
	return []string{"archive the completed spec"}
}

// ForceCheckpoint suspends the session at a task boundary. It is only
// legal while the tracker reports red; the spec stays Active and a new
// session must resume from the artifact to continue.
func (m *Machine) ForceCheckpoint(ctx context.Context, tiers handoff.TierPayload, nextSteps []string) (*handoff.Artifact, error) {
	ctx, span := m.tracer.Start(ctx, "engine.ForceCheckpoint")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusActive {
		return nil, fmt.Errorf("%w: cannot checkpoint %s spec", ErrInvalidTransition, m.spec.Status)
	}
	if m.tracker.Zone() != budget.ZoneRed {
		return nil, fmt.Errorf("%w: zone is %s", ErrCheckpointNotRequired, m.tracker.Zone())
	}

	art, err := m.handoffs.Checkpoint(ctx, handoff.CheckpointRequest{
		Spec:      m.spec,
		Usage:     m.tracker.Snapshot(),
		Cause:     budget.ZoneRed,
		Tiers:     tiers,
		NextSteps: nextSteps,
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("forced checkpoint",
		zap.String("spec_id", m.spec.ID),
		zap.Int("phase", m.spec.PhaseIndex))
	return art, nil
}

// Resume restores a suspended spec in a fresh session: the budget is
// reset (only the checkpoint's cause survives, inside the artifact) and
// the pending tasks from the latest handoff are returned.
func (m *Machine) Resume(ctx context.Context, sessionID string) (*handoff.Resumption, error) {
	ctx, span := m.tracer.Start(ctx, "engine.Resume")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusActive {
		return nil, fmt.Errorf("%w: cannot resume %s spec", ErrInvalidTransition, m.spec.Status)
	}
	res, err := m.handoffs.Resume(ctx, m.spec)
	if err != nil {
		return nil, err
	}
	m.tracker.BeginSession(sessionID)
	return res, nil
}

// Reopen moves a blocked spec back to active, re-evaluating the entry
// gate that failed. Reopening is always an explicit operator action.
func (m *Machine) Reopen(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "engine.Reopen")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusBlocked {
		return fmt.Errorf("%w: cannot reopen %s spec", ErrInvalidTransition, m.spec.Status)
	}
	phase := m.spec.CurrentPhase()
	if phase == nil {
		return fmt.Errorf("%w: no current phase", ErrInvalidTransition)
	}
	if ok, unmet := m.entryGateLocked(phase.Seq); !ok {
		return entryGateError(phase.Seq, unmet)
	}
	m.spec.Status = spec.StatusActive
	if err := m.saveLocked(ctx); err != nil {
		return err
	}
	m.logger.Info("spec reopened", zap.String("spec_id", m.spec.ID), zap.Int("phase", phase.Seq))
	return nil
}

// Archive moves a completed spec to archived.
func (m *Machine) Archive(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spec.Status != spec.StatusCompleted {
		return fmt.Errorf("%w: cannot archive %s spec", ErrInvalidTransition, m.spec.Status)
	}
	m.spec.Status = spec.StatusArchived
	return m.saveLocked(ctx)
}

// reflectLocked appends the phase reflection and feeds the registry.
func (m *Machine) reflectLocked(ctx context.Context, phaseSeq int, entry *reflection.Entry) error {
	if entry == nil {
		return nil
	}
	entry.SpecID = m.spec.ID
	entry.Phase = phaseSeq
	if m.reflections != nil {
		if err := m.reflections.Append(ctx, *entry); err != nil {
			return fmt.Errorf("append reflection: %w", err)
		}
	}
	if m.registry != nil {
		if _, err := m.registry.Ingest(ctx, *entry); err != nil {
			return fmt.Errorf("ingest reflection: %w", err)
		}
	}
	return nil
}

func (m *Machine) exitGateLocked(phase *spec.Phase) (bool, []string) {
	in := spec.GateInput{
		ArtifactExists: m.artifacts.Exists,
		PhasesDone:     m.spec.CompletedPhases(),
		TasksDone:      len(phase.PendingTasks()) == 0,
	}
	ok, unmet := phase.ExitGate.Eval(in)
	for _, name := range phase.RequiredArtifacts {
		if !m.artifacts.Exists(name) {
			ok = false
			unmet = append(unmet, fmt.Sprintf("artifact-exists:%s", name))
		}
	}
	return ok, unmet
}

func (m *Machine) entryGateLocked(seq int) (bool, []string) {
	phase := &m.spec.Phases[seq]
	in := spec.GateInput{
		ArtifactExists: m.artifacts.Exists,
		PhasesDone:     m.spec.CompletedPhases(),
		TasksDone:      len(phase.PendingTasks()) == 0,
	}
	return phase.EntryGate.Eval(in)
}

func (m *Machine) saveLocked(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, m.spec); err != nil {
		return fmt.Errorf("persist spec state: %w", err)
	}
	return nil
}
