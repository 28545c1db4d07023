// Package registry stores reusable solution patterns extracted from
// completed work, scored across eight fixed categories and gated by
// promotion thresholds.
//
// The backing store is append-only and is the only resource shared across
// specs: inserts from concurrent specs are safe, and a pattern is never
// mutated in place once promoted. Patterns that clear the promotion
// threshold additionally emit a standalone skill document.
package registry

import (
	"errors"
	"fmt"
	"time"
)

// PatternStatus is the lifecycle state of a pattern.
type PatternStatus string

const (
	// StatusCandidate is a freshly ingested, unreviewed pattern.
	StatusCandidate PatternStatus = "candidate"
	// StatusRegistered cleared the registry threshold (score >= 75).
	StatusRegistered PatternStatus = "registered"
	// StatusPromoted cleared the skill threshold (score >= 90) and has a
	// standalone skill document. Immutable from here on.
	StatusPromoted PatternStatus = "promoted"
	// StatusRejected was reviewed and discarded.
	StatusRejected PatternStatus = "rejected"
)

// Valid returns true if the status is a known value.
func (s PatternStatus) Valid() bool {
	switch s {
	case StatusCandidate, StatusRegistered, StatusPromoted, StatusRejected:
		return true
	default:
		return false
	}
}

// Category bounds. The eight categories sum to a maximum of 102.
const (
	MaxCompleteness  = 15
	MaxActionability = 20
	MaxGenerality    = 12
	MaxEvidence      = 15
	MaxClarity       = 10
	MaxReusability   = 12
	MaxVerification  = 10
	MaxNovelty       = 8

	// MaxScore is the category bound sum (102).
	MaxScore = MaxCompleteness + MaxActionability + MaxGenerality +
		MaxEvidence + MaxClarity + MaxReusability + MaxVerification + MaxNovelty
)

// CategoryScores is the 8-category pattern score breakdown.
type CategoryScores struct {
	// Completeness: the pattern describes the whole technique (0-15).
	Completeness int `yaml:"completeness" json:"completeness"`
	// Actionability: a reader can apply it without guesswork (0-20).
	Actionability int `yaml:"actionability" json:"actionability"`
	// Generality: applies beyond the originating spec (0-12).
	Generality int `yaml:"generality" json:"generality"`
	// Evidence: backed by observed outcomes (0-15).
	Evidence int `yaml:"evidence" json:"evidence"`
	// Clarity: unambiguous phrasing (0-10).
	Clarity int `yaml:"clarity" json:"clarity"`
	// Reusability: cheap to re-apply (0-12).
	Reusability int `yaml:"reusability" json:"reusability"`
	// Verification: includes a way to check it worked (0-10).
	Verification int `yaml:"verification" json:"verification"`
	// Novelty: not already registered knowledge (0-8).
	Novelty int `yaml:"novelty" json:"novelty"`
}

// Total sums the categories.
func (c CategoryScores) Total() int {
	return c.Completeness + c.Actionability + c.Generality + c.Evidence +
		c.Clarity + c.Reusability + c.Verification + c.Novelty
}

// Validate checks every category is within its bound.
func (c CategoryScores) Validate() error {
	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"completeness", c.Completeness, MaxCompleteness},
		{"actionability", c.Actionability, MaxActionability},
		{"generality", c.Generality, MaxGenerality},
		{"evidence", c.Evidence, MaxEvidence},
		{"clarity", c.Clarity, MaxClarity},
		{"reusability", c.Reusability, MaxReusability},
		{"verification", c.Verification, MaxVerification},
		{"novelty", c.Novelty, MaxNovelty},
	}
	for _, ch := range checks {
		if ch.value < 0 || ch.value > ch.max {
			return fmt.Errorf("category %s score %d outside [0,%d]", ch.name, ch.value, ch.max)
		}
	}
	return nil
}

// Pattern is a candidate reusable technique.
type Pattern struct {
	// ID is the unique identifier for this pattern.
	ID string `yaml:"id" json:"id"`
	// SpecID is the spec whose reflection produced it.
	SpecID string `yaml:"spec_id" json:"spec_id"`
	// Description summarizes the technique.
	Description string `yaml:"description" json:"description"`
	// Tags are applicability tags.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	// Scores is the 8-category breakdown.
	Scores CategoryScores `yaml:"scores" json:"scores"`
	// Status is the lifecycle state.
	Status PatternStatus `yaml:"status" json:"status"`
	// CreatedAt is when the pattern was ingested.
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	// PromotedAt is when the pattern was promoted, if ever.
	PromotedAt *time.Time `yaml:"promoted_at,omitempty" json:"promoted_at,omitempty"`
}

// Registry errors.
var (
	// ErrBelowPromotionThreshold is returned when promote is called on a
	// pattern scoring under the registry threshold. Low-confidence
	// patterns are never silently registered.
	ErrBelowPromotionThreshold = errors.New("below promotion threshold")
	// ErrPatternNotFound is returned for unknown pattern ids.
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrPatternImmutable is returned on any attempt to mutate a
	// promoted pattern.
	ErrPatternImmutable = errors.New("promoted pattern is immutable")
)
