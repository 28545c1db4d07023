package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <spec-name>",
	Short: "Restore a spec from its latest handoff",
	Long: `Read the latest handoff pair for the spec's current phase and print
the pending tasks and next steps for the new session. A fresh session
starts with an empty budget; only the checkpoint's cause survives.

Examples:
  specd resume auth-rework`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
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

	res, err := m.Resume(cmd.Context(), s)
	if err != nil {
		return err
	}

	art := res.Artifact
	fmt.Printf("Resuming %s at phase %d (%s), handoff revision %d, checkpointed in the %s zone\n",
		s.Title, art.Phase, art.PhaseName, art.Revision, art.Cause)
	fmt.Printf("Prompt: %s\n", m.PromptPath(art.Phase, art.Revision))

	if len(res.PendingTasks) > 0 {
		fmt.Println("\nPending tasks:")
		for i, t := range res.PendingTasks {
			fmt.Printf("  %d. %s (%s)\n", i+1, t.Description, t.Size)
		}
	}
	if len(art.NextSteps) > 0 {
		fmt.Println("\nNext steps:")
		for i, step := range art.NextSteps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}
	return nil
}
