package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/specd/internal/spec"
)

func newDefault(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestClassify_ScenarioHigh(t *testing.T) {
	// 6 phases, 4 agent types, 4 cross-package deps, 1 external dep,
	// 1 uncertainty, 1 research spike: 12+12+16+3+5+2 = 50 -> high.
	c := newDefault(t)
	score, tier := c.Classify(spec.Factors{
		Phases:           6,
		AgentTypes:       4,
		CrossPackageDeps: 4,
		ExternalDeps:     1,
		Uncertainty:      1,
		ResearchRequired: 1,
	})
	assert.Equal(t, 50, score)
	assert.Equal(t, TierHigh, tier)
}

func TestClassify_TierBoundaries(t *testing.T) {
	c := newDefault(t)

	tests := []struct {
		score int
		want  Tier
	}{
		{0, TierSimple},
		{14, TierSimple},
		{15, TierMedium},
		{40, TierMedium},
		{41, TierHigh},
		{60, TierHigh},
		{61, TierVeryHigh},
		{1000, TierVeryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.TierFor(tt.score), "score %d", tt.score)
	}
}

// Every integer score >= 0 maps to exactly one tier and adjacent scores
// never skip a tier going downward.
func TestClassify_BoundariesContiguous(t *testing.T) {
	c := newDefault(t)

	order := map[Tier]int{TierSimple: 0, TierMedium: 1, TierHigh: 2, TierVeryHigh: 3}
	prev := c.TierFor(0)
	for score := 1; score <= 200; score++ {
		cur := c.TierFor(score)
		assert.GreaterOrEqual(t, order[cur], order[prev], "tier regressed at score %d", score)
		assert.LessOrEqual(t, order[cur]-order[prev], 1, "tier gap at score %d", score)
		prev = cur
	}
}

// Increasing any single factor never decreases the score.
func TestClassify_Monotonic(t *testing.T) {
	c := newDefault(t)

	base := spec.Factors{Phases: 2, AgentTypes: 1, CrossPackageDeps: 1, ExternalDeps: 1, Uncertainty: 1, ResearchRequired: 1}
	baseScore := c.Score(base)

	bump := []func(spec.Factors) spec.Factors{
		func(f spec.Factors) spec.Factors { f.Phases++; return f },
		func(f spec.Factors) spec.Factors { f.AgentTypes++; return f },
		func(f spec.Factors) spec.Factors { f.CrossPackageDeps++; return f },
		func(f spec.Factors) spec.Factors { f.ExternalDeps++; return f },
		func(f spec.Factors) spec.Factors { f.Uncertainty++; return f },
		func(f spec.Factors) spec.Factors { f.ResearchRequired++; return f },
	}
	for i, b := range bump {
		assert.GreaterOrEqual(t, c.Score(b(base)), baseScore, "factor %d", i)
	}
}

func TestClassify_NegativeFactorsClamped(t *testing.T) {
	c := newDefault(t)
	score, tier := c.Classify(spec.Factors{Phases: -5, Uncertainty: -1})
	assert.Equal(t, 0, score)
	assert.Equal(t, TierSimple, tier)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default valid", func(c *Config) {}, false},
		{"medium below simple", func(c *Config) { c.MediumMax = c.SimpleMax }, true},
		{"high below medium", func(c *Config) { c.HighMax = c.MediumMax - 1 }, true},
		{"negative simple", func(c *Config) { c.SimpleMax = -1 }, true},
		{"negative weight", func(c *Config) { c.Weights.Uncertainty = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighMax = 0
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid classifier config")
}
