package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/spec"
	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status [spec-name]",
	Short: "Show workspace or spec status",
	Long: `Without arguments, validate folder/status agreement across the
workspace and list every spec per lifecycle folder; disagreements exit
nonzero. With a spec name, reconstruct that spec's state from its root
and render phase progress plus the latest handoff's budget usage.

Examples:
  specd status
  specd status auth-rework
  specd status auth-rework --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "re-render on artifact changes")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := workspace(cfg)

	if len(args) == 0 {
		return workspaceStatus(root)
	}
	name := args[0]
	if !statusWatch {
		return specStatus(cfg, root, name)
	}

	dir, _, err := root.Find(name)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	w, err := specroot.NewWatcher(dir, logger)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := specStatus(cfg, root, name); err != nil {
		fmt.Fprintf(os.Stderr, "specd: %s: %v\n", failureKind(err), err)
	}
	err = w.Run(ctx, func(string) {
		fmt.Println()
		if err := specStatus(cfg, root, name); err != nil {
			fmt.Fprintf(os.Stderr, "specd: %s: %v\n", failureKind(err), err)
		}
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

// workspaceStatus lists specs per folder and reports disagreements.
func workspaceStatus(root *specroot.Root) error {
	for _, f := range specroot.Folders() {
		names, err := root.List(f)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			continue
		}
		fmt.Println(sectionStyle.Render(string(f)))
		for _, name := range names {
			line := "  " + name
			if s, err := specroot.LoadManifest(root.Dir(f, name)); err == nil {
				line += dimStyle.Render(fmt.Sprintf("  (%s, phase %d/%d)", s.Status, s.PhaseIndex, len(s.Phases)))
			}
			fmt.Println(line)
		}
	}

	violations, err := root.CheckStatus()
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		fmt.Println(greenStyle.Render("OK") + " folder/status agreement holds")
		return nil
	}
	for _, v := range violations {
		fmt.Printf("%s %s: %s\n", redStyle.Render("MISMATCH"), v.Name, v.Reason)
	}
	return fmt.Errorf("%w: %d folder/status disagreement(s)", specroot.ErrInconsistentRoot, len(violations))
}

// specStatus reconstructs and renders one spec.
func specStatus(cfg *config.Config, root *specroot.Root, name string) error {
	dir, folder, err := root.Find(name)
	if err != nil {
		return err
	}
	s, recErr := specroot.Reconstruct(dir)
	if s == nil {
		return recErr
	}

	fmt.Printf("%s %s\n", sectionStyle.Render(s.Title), dimStyle.Render("("+name+", "+string(folder)+")"))
	fmt.Printf("Status: %s   Phase: %d/%d\n", s.Status, s.PhaseIndex, len(s.Phases))
	for i := range s.Phases {
		fmt.Println(phaseLine(s, &s.Phases[i]))
	}

	if art := latestHandoff(dir, s); art != nil {
		fmt.Printf("\nLast checkpoint: phase %d rev %d, zone %s\n", art.Phase, art.Revision, zoneBadge(art.Cause))
		fmt.Print(usageTable(art.Usage, cfg.Budget))
	}

	if recErr != nil {
		return recErr
	}
	fmt.Println(greenStyle.Render("OK") + " root is consistent")
	return nil
}

// latestHandoff returns the newest artifact for the spec's current or
// last completed phase, or nil when none exists.
func latestHandoff(dir string, s *spec.Spec) *handoff.Artifact {
	m, err := handoff.NewManager(dir, nil)
	if err != nil {
		return nil
	}
	probe := *s
	for idx := s.PhaseIndex; idx >= 0 && idx >= s.PhaseIndex-1; idx-- {
		if idx >= len(s.Phases) {
			continue
		}
		probe.PhaseIndex = idx
		if res, err := m.Resume(context.Background(), &probe); err == nil {
			return res.Artifact
		}
	}
	return nil
}
