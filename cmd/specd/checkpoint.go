package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var (
	checkpointCause      string
	checkpointWorking    []string
	checkpointEpisodic   []string
	checkpointSemantic   []string
	checkpointProcedural []string
	checkpointNextSteps  []string
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint <spec-name>",
	Short: "Write a handoff artifact pair for a spec",
	Long: `Write the immutable handoff pair (HANDOFF_P{N}.md and
P{N}_ORCHESTRATOR_PROMPT.md) for the spec's current phase. Repeating a
checkpoint for the same phase writes a superseding revision; the
original files are never touched.

Context fragments are categorized into memory tiers via repeatable
flags. Every tier with recorded usage must receive at least one
fragment, or the checkpoint is refused.

Examples:
  specd checkpoint auth-rework --cause red \
    --working "login handler half ported" \
    --procedural outputs/notes.md \
    --next-step "port the session middleware"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckpoint,
}

func init() {
	f := checkpointCmd.Flags()
	f.StringVar(&checkpointCause, "cause", string(budget.ZoneRed), "zone that triggered the checkpoint (green|yellow|red)")
	f.StringArrayVar(&checkpointWorking, "working", nil, "working-tier context fragment (repeatable)")
	f.StringArrayVar(&checkpointEpisodic, "episodic", nil, "episodic-tier context fragment (repeatable)")
	f.StringArrayVar(&checkpointSemantic, "semantic", nil, "semantic-tier context fragment (repeatable)")
	f.StringArrayVar(&checkpointProcedural, "procedural", nil, "procedural link (repeatable)")
	f.StringArrayVar(&checkpointNextSteps, "next-step", nil, "next step for the resuming session (repeatable)")
}

func runCheckpoint(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := workspace(cfg)

	dir, _, err := root.Find(args[0])
	if err != nil {
		return err
	}
	s, err := specroot.LoadManifest(dir)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	m, err := handoff.NewManager(dir, logger)
	if err != nil {
		return err
	}

	art, err := m.Checkpoint(cmd.Context(), handoff.CheckpointRequest{
		Spec:  s,
		Cause: budget.Zone(checkpointCause),
		Tiers: handoff.TierPayload{
			Working:    checkpointWorking,
			Episodic:   checkpointEpisodic,
			Semantic:   checkpointSemantic,
			Procedural: checkpointProcedural,
		},
		NextSteps: checkpointNextSteps,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Checkpoint written: phase %d revision %d (%s)\n", art.Phase, art.Revision, zoneBadge(art.Cause))
	fmt.Printf("  %s\n  %s\n", m.DocumentPath(art.Phase, art.Revision), m.PromptPath(art.Phase, art.Revision))
	return nil
}
