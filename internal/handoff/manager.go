package handoff

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

const instrumentationName = "github.com/fyrsmithlabs/specd/internal/handoff"

// DirName is the handoff directory inside a spec root.
const DirName = "handoffs"

// CheckpointRequest carries everything a checkpoint needs.
type CheckpointRequest struct {
	// Spec is the spec being checkpointed.
	Spec *spec.Spec
	// Usage is the budget snapshot at checkpoint time.
	Usage budget.Snapshot
	// Cause is the zone that triggered the checkpoint.
	Cause budget.Zone
	// Tiers is the categorized context payload.
	Tiers TierPayload
	// NextSteps are free-form next steps for the resuming session.
	NextSteps []string
}

// Manager writes and restores handoff artifact pairs under one spec root.
type Manager struct {
	root   string
	logger *zap.Logger

	tracer            trace.Tracer
	checkpointCounter metric.Int64Counter
	resumeCounter     metric.Int64Counter
}

// NewManager creates a handoff manager for a spec root directory.
func NewManager(root string, logger *zap.Logger) (*Manager, error) {
	if root == "" {
		return nil, errors.New("spec root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	meter := otel.Meter(instrumentationName)
	checkpoints, err := meter.Int64Counter("specd.handoff.checkpoints",
		metric.WithDescription("Handoff checkpoints written"))
	if err != nil {
		return nil, fmt.Errorf("create checkpoint counter: %w", err)
	}
	resumes, err := meter.Int64Counter("specd.handoff.resumes",
		metric.WithDescription("Handoff resumptions"))
	if err != nil {
		return nil, fmt.Errorf("create resume counter: %w", err)
	}

	return &Manager{
		root:              root,
		logger:            logger,
		tracer:            otel.Tracer(instrumentationName),
		checkpointCounter: checkpoints,
		resumeCounter:     resumes,
	}, nil
}

// Dir returns the handoffs directory path.
func (m *Manager) Dir() string {
	return filepath.Join(m.root, DirName)
}

// DocumentPath returns the handoff document path for a phase revision.
// Revision 1 uses the bare name; later revisions append _R{rev}.
func (m *Manager) DocumentPath(phase, revision int) string {
	if revision <= 1 {
		return filepath.Join(m.Dir(), fmt.Sprintf("HANDOFF_P%d.md", phase))
	}
	return filepath.Join(m.Dir(), fmt.Sprintf("HANDOFF_P%d_R%d.md", phase, revision))
}

// PromptPath returns the orchestrator prompt path for a phase revision.
func (m *Manager) PromptPath(phase, revision int) string {
	if revision <= 1 {
		return filepath.Join(m.Dir(), fmt.Sprintf("P%d_ORCHESTRATOR_PROMPT.md", phase))
	}
	return filepath.Join(m.Dir(), fmt.Sprintf("P%d_ORCHESTRATOR_PROMPT_R%d.md", phase, revision))
}

// Checkpoint validates categorization, builds the artifact, and writes
// the document/prompt pair. Existing artifacts for the phase are never
// touched; a new revision supersedes them.
func (m *Manager) Checkpoint(ctx context.Context, req CheckpointRequest) (*Artifact, error) {
	ctx, span := m.tracer.Start(ctx, "handoff.Checkpoint")
	defer span.End()

	if req.Spec == nil {
		return nil, errors.New("spec is required")
	}
	phase := req.Spec.CurrentPhase()
	if phase == nil {
		return nil, fmt.Errorf("spec %s has no current phase to checkpoint", req.Spec.ID)
	}
	if err := validateCategorization(req.Usage, req.Tiers); err != nil {
		return nil, err
	}

	revision, err := m.nextRevision(phase.Seq)
	if err != nil {
		return nil, err
	}

	art := &Artifact{
		ID:        uuid.NewString(),
		SpecID:    req.Spec.ID,
		SpecTitle: req.Spec.Title,
		Phase:     phase.Seq,
		PhaseName: phase.Name,
		Revision:  revision,
		Cause:     req.Cause,
		Usage: BudgetUsage{
			Working:     req.Usage.Working,
			Episodic:    req.Usage.Episodic,
			Semantic:    req.Usage.Semantic,
			Procedural:  req.Usage.Procedural,
			DirectReads: req.Usage.DirectReads,
			LargeReads:  req.Usage.LargeReads,
			Delegations: req.Usage.Delegations,
		},
		Tiers:        req.Tiers,
		PendingTasks: phase.PendingTasks(),
		NextSteps:    req.NextSteps,
		CreatedAt:    time.Now().UTC(),
	}
	if !art.resumable() {
		return nil, fmt.Errorf("%w: no pending tasks or next steps to resume", ErrCorruptHandoff)
	}

	if err := m.writePair(art); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("spec.id", art.SpecID),
		attribute.Int("spec.phase", art.Phase),
		attribute.String("handoff.cause", string(art.Cause)),
	)
	m.checkpointCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cause", string(art.Cause))))
	m.logger.Info("handoff checkpoint written",
		zap.String("spec_id", art.SpecID),
		zap.Int("phase", art.Phase),
		zap.Int("revision", art.Revision),
		zap.String("cause", string(art.Cause)))
	return art, nil
}

// Resume loads the latest artifact for the spec's current phase and
// restores the state a new session needs.
func (m *Manager) Resume(ctx context.Context, s *spec.Spec) (*Resumption, error) {
	ctx, span := m.tracer.Start(ctx, "handoff.Resume")
	defer span.End()

	if s == nil {
		return nil, errors.New("spec is required")
	}

	art, err := m.latestFor(s)
	if err != nil {
		return nil, err
	}
	return m.resumeArtifact(ctx, s, art)
}

// ResumeFrom restores from a specific handoff document path, validating
// it against the spec's current state.
func (m *Manager) ResumeFrom(ctx context.Context, s *spec.Spec, docPath string) (*Resumption, error) {
	ctx, span := m.tracer.Start(ctx, "handoff.ResumeFrom")
	defer span.End()

	if s == nil {
		return nil, errors.New("spec is required")
	}
	art, err := m.readArtifact(docPath)
	if err != nil {
		return nil, err
	}
	return m.resumeArtifact(ctx, s, art)
}

func (m *Manager) resumeArtifact(ctx context.Context, s *spec.Spec, art *Artifact) (*Resumption, error) {
	if !art.resumable() {
		return nil, fmt.Errorf("%w: missing spec id, phase, or resumable tasks", ErrCorruptHandoff)
	}
	if art.SpecID != s.ID {
		return nil, fmt.Errorf("%w: artifact belongs to spec %s, not %s", ErrCorruptHandoff, art.SpecID, s.ID)
	}
	// A newer handoff exists once the spec advances past the artifact's
	// phase; resumption is rejected rather than silently reprocessing.
	if s.PhaseIndex > art.Phase {
		return nil, fmt.Errorf("%w: spec %s is at phase %d, artifact is for phase %d",
			ErrStaleHandoff, s.ID, s.PhaseIndex, art.Phase)
	}

	phase := s.CurrentPhase()
	if phase == nil || phase.Seq != art.Phase {
		return nil, fmt.Errorf("%w: spec has no phase %d", ErrCorruptHandoff, art.Phase)
	}

	m.resumeCounter.Add(ctx, 1)
	m.logger.Info("handoff resumed",
		zap.String("spec_id", art.SpecID),
		zap.Int("phase", art.Phase),
		zap.Int("pending_tasks", len(art.PendingTasks)))
	return &Resumption{
		Artifact:     art,
		Spec:         s,
		Phase:        phase,
		PendingTasks: art.PendingTasks,
	}, nil
}

// latestFor returns the highest-revision artifact for the spec's current
// phase.
func (m *Manager) latestFor(s *spec.Spec) (*Artifact, error) {
	phase := s.CurrentPhase()
	if phase == nil {
		return nil, fmt.Errorf("%w: spec %s has no current phase", ErrCorruptHandoff, s.ID)
	}
	for rev := maxRevisions; rev >= 1; rev-- {
		path := m.DocumentPath(phase.Seq, rev)
		if _, err := os.Stat(path); err == nil {
			return m.readArtifact(path)
		}
	}
	return nil, fmt.Errorf("%w: no handoff for phase %d", ErrCorruptHandoff, phase.Seq)
}

// maxRevisions bounds the revision scan; a phase checkpointed more than
// this many times indicates an operator loop that needs attention anyway.
const maxRevisions = 100

// nextRevision finds the first unused revision slot for a phase.
func (m *Manager) nextRevision(phase int) (int, error) {
	for rev := 1; rev <= maxRevisions; rev++ {
		if _, err := os.Stat(m.DocumentPath(phase, rev)); os.IsNotExist(err) {
			return rev, nil
		}
	}
	return 0, fmt.Errorf("phase %d exceeded %d handoff revisions", phase, maxRevisions)
}

// validateCategorization fails when a capped tier shows usage but the
// payload carries nothing for it. Procedural has no cap and may be empty.
func validateCategorization(usage budget.Snapshot, tiers TierPayload) error {
	checks := []struct {
		tier  budget.MemoryTier
		used  int
		items []string
	}{
		{budget.TierWorking, usage.Working, tiers.Working},
		{budget.TierEpisodic, usage.Episodic, tiers.Episodic},
		{budget.TierSemantic, usage.Semantic, tiers.Semantic},
	}
	for _, c := range checks {
		if c.used > 0 && len(c.items) == 0 {
			return fmt.Errorf("%w: %s tier has %d tokens of usage but no payload",
				ErrIncompleteBudgetCategorization, c.tier, c.used)
		}
	}
	return nil
}

// writePair writes both artifact files atomically from the caller's
// perspective: content lands in temp files first, then is renamed into
// place, and the first rename is rolled back if the second fails.
func (m *Manager) writePair(art *Artifact) error {
	if err := os.MkdirAll(m.Dir(), 0o755); err != nil {
		return fmt.Errorf("create handoffs directory: %w", err)
	}

	docPath := m.DocumentPath(art.Phase, art.Revision)
	promptPath := m.PromptPath(art.Phase, art.Revision)

	doc, err := renderDocument(art)
	if err != nil {
		return err
	}
	prompt := renderPrompt(art)

	docTmp := docPath + ".tmp"
	promptTmp := promptPath + ".tmp"
	if err := os.WriteFile(docTmp, doc, 0o644); err != nil {
		return fmt.Errorf("write handoff document: %w", err)
	}
	if err := os.WriteFile(promptTmp, []byte(prompt), 0o644); err != nil {
		os.Remove(docTmp)
		return fmt.Errorf("write orchestrator prompt: %w", err)
	}
	if err := os.Rename(docTmp, docPath); err != nil {
		os.Remove(docTmp)
		os.Remove(promptTmp)
		return fmt.Errorf("publish handoff document: %w", err)
	}
	if err := os.Rename(promptTmp, promptPath); err != nil {
		// Roll back so no partial pair is observable.
		os.Remove(docPath)
		os.Remove(promptTmp)
		return fmt.Errorf("publish orchestrator prompt: %w", err)
	}
	return nil
}
