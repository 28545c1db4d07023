package specroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

// ErrInconsistentRoot is returned when the manifest and the markdown
// artifacts disagree about the spec's progress.
var ErrInconsistentRoot = errors.New("inconsistent spec root")

// Reconstruct rebuilds the engine's view of a spec from its root
// directory alone and cross-checks the manifest against the markdown
// artifacts: every phase the manifest claims complete must have its
// handoff pair on disk and its required artifacts under outputs/.
//
// The returned spec is the manifest's state; an error lists every
// disagreement found rather than stopping at the first.
func Reconstruct(dir string) (*spec.Spec, error) {
	s, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	checker := NewOutputsChecker(dir)
	var problems []string

	for seq := 0; seq < s.PhaseIndex && seq < len(s.Phases); seq++ {
		phase := &s.Phases[seq]
		if !handoffPairExists(dir, seq) {
			problems = append(problems, fmt.Sprintf(
				"phase %d (%s) is complete but has no handoff pair", seq, phase.Name))
		}
		for _, name := range phase.RequiredArtifacts {
			if !checker.Exists(name) {
				problems = append(problems, fmt.Sprintf(
					"phase %d (%s) requires artifact %s, not found under %s/", seq, phase.Name, name, OutputsDir))
			}
		}
		for _, t := range phase.Tasks {
			if !t.Done {
				problems = append(problems, fmt.Sprintf(
					"phase %d (%s) is complete but task %s is not done", seq, phase.Name, t.ID))
			}
		}
	}

	if s.PhaseIndex > len(s.Phases) {
		problems = append(problems, fmt.Sprintf(
			"phase index %d exceeds the %d declared phases", s.PhaseIndex, len(s.Phases)))
	}
	if s.Status == spec.StatusCompleted && s.PhaseIndex < len(s.Phases) {
		problems = append(problems, fmt.Sprintf(
			"status is completed but only %d of %d phases advanced", s.PhaseIndex, len(s.Phases)))
	}

	if len(problems) > 0 {
		return s, fmt.Errorf("%w: %s", ErrInconsistentRoot, strings.Join(problems, "; "))
	}
	return s, nil
}

// handoffPairExists reports whether phase seq has at least one full
// handoff document/prompt pair at any revision.
func handoffPairExists(dir string, seq int) bool {
	hd := filepath.Join(dir, handoff.DirName)
	entries, err := os.ReadDir(hd)
	if err != nil {
		return false
	}
	docPrefix := fmt.Sprintf("HANDOFF_P%d", seq)
	promptPrefix := fmt.Sprintf("P%d_ORCHESTRATOR_PROMPT", seq)
	haveDoc, havePrompt := false, false
	for _, e := range entries {
		name := e.Name()
		if matchesPhaseFile(name, docPrefix) {
			haveDoc = true
		}
		if matchesPhaseFile(name, promptPrefix) {
			havePrompt = true
		}
	}
	return haveDoc && havePrompt
}

// matchesPhaseFile matches "<prefix>.md" and revision forms
// "<prefix>_R<n>.md" without letting P1 match P10.
func matchesPhaseFile(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return false
	}
	return rest == ".md" || (strings.HasPrefix(rest, "_R") && strings.HasSuffix(rest, ".md"))
}
