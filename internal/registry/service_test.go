package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/reflection"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SkillsDir = filepath.Join(t.TempDir(), "skills")
	svc, err := NewService(cfg, NewMemoryStore(), nil)
	require.NoError(t, err)
	return svc
}

func insertScored(t *testing.T, svc *Service, scores CategoryScores) Pattern {
	t.Helper()
	p := Pattern{
		ID:          "pat-" + t.Name(),
		SpecID:      "spec-1",
		Description: "batch artifact reads before writing",
		Scores:      scores,
		Status:      StatusCandidate,
	}
	require.NoError(t, svc.store.Insert(context.Background(), p))
	return p
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pattern store is required")
}

func TestNewService_RejectsInvertedThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromoteThreshold = 50
	_, err := NewService(cfg, NewMemoryStore(), nil)
	assert.Error(t, err)
}

func TestIngest_CreatesCandidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry := reflection.Entry{
		SpecID: "spec-1",
		Phase:  2,
		Worked: []string{"split phases early", "kept handoffs small"},
		Candidates: []reflection.Candidate{
			{Description: "Split a phase when its task list exceeds the delegation cap", Tags: []string{"phasing", "budget"}},
			{Description: "   "},
			{Description: "Verify exit gates with a dry-run check before advancing", Tags: []string{"gating"}},
		},
	}

	created, err := svc.Ingest(ctx, entry)
	require.NoError(t, err)
	require.Len(t, created, 2, "blank candidates skipped")

	for _, p := range created {
		assert.Equal(t, StatusCandidate, p.Status)
		assert.Equal(t, "spec-1", p.SpecID)
		assert.NotEmpty(t, p.ID)
		require.NoError(t, p.Scores.Validate())
	}

	stored, err := svc.List(ctx, StatusCandidate)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestIngest_Deterministic(t *testing.T) {
	entry := reflection.Entry{
		SpecID: "spec-1",
		Worked: []string{"a", "b"},
		Candidates: []reflection.Candidate{
			{Description: "Use a checkpoint when the tracker turns red", Tags: []string{"budget"}},
		},
	}

	a, err := newTestService(t).Ingest(context.Background(), entry)
	require.NoError(t, err)
	b, err := newTestService(t).Ingest(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, a[0].Scores, b[0].Scores, "same reflection, same breakdown")
}

func TestIngest_RequiresSpecID(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Ingest(context.Background(), reflection.Entry{})
	assert.Error(t, err)
}

func TestScore_SumsCategories(t *testing.T) {
	svc := newTestService(t)
	total, err := svc.Score(Pattern{Scores: CategoryScores{
		Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15,
		Clarity: 10, Reusability: 12, Verification: 10, Novelty: 8,
	}})
	require.NoError(t, err)
	assert.Equal(t, 102, total)
	assert.Equal(t, 102, MaxScore)
}

func TestScore_RejectsOutOfBoundsCategory(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Score(Pattern{Scores: CategoryScores{Actionability: 21}})
	assert.Error(t, err)
	_, err = svc.Score(Pattern{Scores: CategoryScores{Novelty: -1}})
	assert.Error(t, err)
}

func TestPromote_BelowThresholdFails(t *testing.T) {
	svc := newTestService(t)
	p := insertScored(t, svc, CategoryScores{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Verification: 2})

	_, err := svc.Promote(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrBelowPromotionThreshold)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCandidate, got.Status, "no silent registration")
}

func TestPromote_RegistersAt75(t *testing.T) {
	svc := newTestService(t)
	// 15+20+12+15+10+3 = 75 exactly.
	p := insertScored(t, svc, CategoryScores{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Reusability: 3})

	got, err := svc.Promote(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, got.Status)
	assert.NoFileExists(t, svc.SkillPath(p.ID), "no skill document below 90")
}

func TestPromote_EmitsSkillAt90(t *testing.T) {
	svc := newTestService(t)
	// 15+20+12+15+10+10+8 = 90 exactly.
	p := insertScored(t, svc, CategoryScores{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Verification: 10, Novelty: 8})

	got, err := svc.Promote(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPromoted, got.Status)
	require.NotNil(t, got.PromotedAt)

	content, err := os.ReadFile(svc.SkillPath(p.ID))
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Skill:")
	assert.Contains(t, string(content), p.SpecID)
}

func TestPromote_PromotedPatternIsImmutable(t *testing.T) {
	svc := newTestService(t)
	p := insertScored(t, svc, CategoryScores{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Verification: 10, Novelty: 8})

	_, err := svc.Promote(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = svc.Promote(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPatternImmutable)
	err = svc.Reject(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPatternImmutable)
}

// If promote succeeds at score s, it succeeds for any s' >= s with a
// valid breakdown.
func TestPromote_MonotonicInScore(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := CategoryScores{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Reusability: 3}
	require.Equal(t, 75, base.Total())

	low := Pattern{ID: "low", SpecID: "s", Description: "d", Scores: base, Status: StatusCandidate}
	require.NoError(t, svc.store.Insert(ctx, low))
	_, err := svc.Promote(ctx, "low")
	require.NoError(t, err)

	for i, higher := range []CategoryScores{
		{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Reusability: 4},
		{Completeness: 15, Actionability: 20, Generality: 12, Evidence: 15, Clarity: 10, Reusability: 12, Verification: 10, Novelty: 8},
	} {
		p := Pattern{ID: string(rune('a' + i)), SpecID: "s", Description: "d", Scores: higher, Status: StatusCandidate}
		require.NoError(t, svc.store.Insert(ctx, p))
		_, err := svc.Promote(ctx, p.ID)
		assert.NoError(t, err, "score %d must promote when 75 did", higher.Total())
	}
}

func TestPromote_UnknownPattern(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Promote(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}
