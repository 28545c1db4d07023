package registry

import (
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/reflection"
)

// Scorer assigns initial category scores to ingested candidates. The
// heuristics are deterministic over the candidate text and its source
// entry, so re-ingesting the same reflection always produces the same
// breakdown. Operators can re-score before promotion; the scorer only
// sets the starting point.
type Scorer struct {
	actionable   *regexp.Regexp
	conditional  *regexp.Regexp
	verification *regexp.Regexp
	specLocal    *regexp.Regexp
}

// NewScorer creates a scorer with built-in rules.
func NewScorer() *Scorer {
	return &Scorer{
		// Imperative openings mark directly applicable advice.
		actionable: regexp.MustCompile(`(?i)^\s*(use|write|split|run|check|prefer|avoid|record|keep|start|stop|batch|cache|pin|verify|gate|delegate)\b`),
		// A stated trigger condition makes advice applicable without guesswork.
		conditional: regexp.MustCompile(`(?i)\b(when|before|after|if|once|until)\b`),
		// Mentions of how to confirm the technique worked.
		verification: regexp.MustCompile(`(?i)\b(test|verify|verification|check|gate|assert|measure)\b`),
		// References to a specific spec or phase anchor the pattern to its origin.
		specLocal: regexp.MustCompile(`(?i)\b(this spec|spec-[a-z0-9-]+|phase \d+)\b`),
	}
}

// Score produces the initial category breakdown for a candidate.
// existing holds descriptions already in the registry, for novelty.
func (s *Scorer) Score(c reflection.Candidate, entry reflection.Entry, existing []string) CategoryScores {
	desc := strings.TrimSpace(c.Description)
	words := len(strings.Fields(desc))

	var cs CategoryScores

	// Completeness: longer descriptions carry more of the technique,
	// with diminishing returns past ~60 words.
	cs.Completeness = boundScore(words/4, MaxCompleteness)

	// Actionability: imperative phrasing plus a trigger condition.
	if s.actionable.MatchString(desc) {
		cs.Actionability += 12
	}
	if s.conditional.MatchString(desc) {
		cs.Actionability += 8
	}
	cs.Actionability = boundScore(cs.Actionability, MaxActionability)

	// Generality: each applicability tag widens the audience.
	cs.Generality = boundScore(len(c.Tags)*4, MaxGenerality)

	// Evidence: observed outcomes in the source entry.
	cs.Evidence = boundScore(len(entry.Worked)*4+len(entry.Failed)*2, MaxEvidence)

	// Clarity: one tight sentence beats a paragraph.
	switch {
	case words == 0:
		cs.Clarity = 0
	case len(desc) <= 140:
		cs.Clarity = MaxClarity
	case len(desc) <= 280:
		cs.Clarity = 6
	default:
		cs.Clarity = 3
	}

	// Reusability: tagged and not anchored to the originating spec.
	if len(c.Tags) > 0 {
		cs.Reusability += 6
	}
	if !s.specLocal.MatchString(desc) {
		cs.Reusability += 6
	}
	cs.Reusability = boundScore(cs.Reusability, MaxReusability)

	if s.verification.MatchString(desc) {
		cs.Verification = MaxVerification
	}

	// Novelty: near-duplicates of registered descriptions score low.
	cs.Novelty = MaxNovelty
	lower := strings.ToLower(desc)
	for _, e := range existing {
		if strings.ToLower(strings.TrimSpace(e)) == lower {
			cs.Novelty = 2
			break
		}
	}

	return cs
}

func boundScore(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
