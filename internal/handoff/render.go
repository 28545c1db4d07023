package handoff

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// renderDocument produces the handoff document: YAML front matter (the
// machine-resumable pointer) followed by a human-readable body.
func renderDocument(art *Artifact) ([]byte, error) {
	meta, err := yaml.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("marshal handoff front matter: %w", err)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n%s%s\n\n", frontMatterDelim, meta, frontMatterDelim)
	fmt.Fprintf(&b, "# Handoff: %s, phase %d (%s)\n\n", art.SpecTitle, art.Phase, art.PhaseName)
	fmt.Fprintf(&b, "Checkpoint cause: %s zone.\n\n", art.Cause)

	writeTier := func(name string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", name)
		for _, it := range items {
			fmt.Fprintf(&b, "- %s\n", it)
		}
		b.WriteString("\n")
	}
	writeTier("Working context", art.Tiers.Working)
	writeTier("Episodic context", art.Tiers.Episodic)
	writeTier("Semantic context", art.Tiers.Semantic)
	writeTier("Procedural links", art.Tiers.Procedural)

	if len(art.PendingTasks) > 0 {
		b.WriteString("## Pending tasks\n\n")
		for _, t := range art.PendingTasks {
			fmt.Fprintf(&b, "- [ ] %s (%s)\n", t.Description, t.Size)
		}
		b.WriteString("\n")
	}
	if len(art.NextSteps) > 0 {
		b.WriteString("## Next steps\n\n")
		for i, s := range art.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	return b.Bytes(), nil
}

// renderPrompt produces the orchestrator prompt: the instructions a new
// session needs to pick the spec back up.
func renderPrompt(art *Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Resume: %s\n\n", art.SpecTitle)
	fmt.Fprintf(&b, "You are resuming spec `%s` at phase %d (%s), handoff revision %d.\n\n",
		art.SpecID, art.Phase, art.PhaseName, art.Revision)
	fmt.Fprintf(&b, "Read `%s` for the tiered context payload before doing anything else.\n\n",
		fmt.Sprintf("handoffs/HANDOFF_P%d.md", art.Phase))

	if len(art.PendingTasks) > 0 {
		b.WriteString("Outstanding tasks, in order:\n\n")
		for i, t := range art.PendingTasks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, t.Description)
		}
		b.WriteString("\n")
	}
	if len(art.NextSteps) > 0 {
		b.WriteString("Next steps:\n\n")
		for i, s := range art.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Budget starts fresh this session; the previous session ended in the %s zone.\n", art.Cause)
	return b.String()
}

// readArtifact parses the front matter of a handoff document.
func (m *Manager) readArtifact(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrCorruptHandoff, path)
		}
		return nil, fmt.Errorf("read handoff document: %w", err)
	}

	meta, err := extractFrontMatter(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHandoff, path, err)
	}

	var art Artifact
	if err := yaml.Unmarshal([]byte(meta), &art); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHandoff, path, err)
	}
	return &art, nil
}

// extractFrontMatter returns the YAML between the leading --- delimiters.
func extractFrontMatter(doc string) (string, error) {
	lines := strings.Split(doc, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return "", fmt.Errorf("missing front matter")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			return strings.Join(lines[1:i], "\n"), nil
		}
	}
	return "", fmt.Errorf("unterminated front matter")
}
