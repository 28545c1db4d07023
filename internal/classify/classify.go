// Package classify scores proposed work and assigns an execution tier.
//
// Classification is a pure function over integer complexity factors with
// fixed weights. Tier boundaries are configuration, not code, but must be
// monotonic and contiguous; Config.Validate enforces that before any
// classification happens.
package classify

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/specd/internal/spec"
)

// Tier is the execution tier assigned to a unit of work.
type Tier string

const (
	// TierSimple is single-session, low-risk work.
	TierSimple Tier = "simple"
	// TierMedium is standard multi-phase work.
	TierMedium Tier = "medium"
	// TierHigh is complex work that needs careful phase gating.
	TierHigh Tier = "high"
	// TierVeryHigh is work too large for a single-session spec. The engine
	// refuses to activate it without an explicit phase split.
	TierVeryHigh Tier = "very_high"
)

// Weights are the fixed per-factor multipliers.
type Weights struct {
	Phases           int `koanf:"phases"`
	AgentTypes       int `koanf:"agent_types"`
	CrossPackageDeps int `koanf:"cross_package_deps"`
	ExternalDeps     int `koanf:"external_deps"`
	Uncertainty      int `koanf:"uncertainty"`
	ResearchRequired int `koanf:"research_required"`
}

// Config holds the tier boundaries and factor weights.
//
// Boundaries are upper bounds: score <= SimpleMax is simple,
// score <= MediumMax is medium, score <= HighMax is high, anything above
// is very_high. Contiguity falls out of using upper bounds; Validate
// checks ordering.
type Config struct {
	SimpleMax int     `koanf:"simple_max"`
	MediumMax int     `koanf:"medium_max"`
	HighMax   int     `koanf:"high_max"`
	Weights   Weights `koanf:"weights"`
}

// DefaultConfig returns the standard boundaries (simple <15, medium 15-40,
// high 41-60, very_high >60) and weights.
func DefaultConfig() Config {
	return Config{
		SimpleMax: 14,
		MediumMax: 40,
		HighMax:   60,
		Weights: Weights{
			Phases:           2,
			AgentTypes:       3,
			CrossPackageDeps: 4,
			ExternalDeps:     3,
			Uncertainty:      5,
			ResearchRequired: 2,
		},
	}
}

// Validate checks that boundaries are monotonic and weights non-negative.
func (c Config) Validate() error {
	if c.SimpleMax < 0 {
		return errors.New("simple_max must be non-negative")
	}
	if c.MediumMax <= c.SimpleMax {
		return fmt.Errorf("medium_max (%d) must exceed simple_max (%d)", c.MediumMax, c.SimpleMax)
	}
	if c.HighMax <= c.MediumMax {
		return fmt.Errorf("high_max (%d) must exceed medium_max (%d)", c.HighMax, c.MediumMax)
	}
	for _, w := range []int{
		c.Weights.Phases, c.Weights.AgentTypes, c.Weights.CrossPackageDeps,
		c.Weights.ExternalDeps, c.Weights.Uncertainty, c.Weights.ResearchRequired,
	} {
		if w < 0 {
			return errors.New("factor weights must be non-negative")
		}
	}
	return nil
}

// Classifier assigns tiers from complexity factors. Safe for concurrent
// use; it holds no mutable state.
type Classifier struct {
	cfg Config
}

// New creates a classifier, validating the config first.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid classifier config: %w", err)
	}
	return &Classifier{cfg: cfg}, nil
}

// Score computes the weighted factor sum. Negative factor counts are
// clamped to zero so scoring stays monotonic.
func (c *Classifier) Score(f spec.Factors) int {
	w := c.cfg.Weights
	return clamp(f.Phases)*w.Phases +
		clamp(f.AgentTypes)*w.AgentTypes +
		clamp(f.CrossPackageDeps)*w.CrossPackageDeps +
		clamp(f.ExternalDeps)*w.ExternalDeps +
		clamp(f.Uncertainty)*w.Uncertainty +
		clamp(f.ResearchRequired)*w.ResearchRequired
}

// Classify scores the factors and assigns a tier.
func (c *Classifier) Classify(f spec.Factors) (int, Tier) {
	score := c.Score(f)
	return score, c.TierFor(score)
}

// TierFor maps a score onto the configured tier boundaries.
func (c *Classifier) TierFor(score int) Tier {
	switch {
	case score <= c.cfg.SimpleMax:
		return TierSimple
	case score <= c.cfg.MediumMax:
		return TierMedium
	case score <= c.cfg.HighMax:
		return TierHigh
	default:
		return TierVeryHigh
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
