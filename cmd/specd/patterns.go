package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/registry"
)

var patternsStatus string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect and promote registry patterns",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns in the registry",
	Long: `List patterns, optionally filtered by status.

Examples:
  specd patterns list
  specd patterns list --status candidate`,
	RunE: runPatternsList,
}

var patternsPromoteCmd = &cobra.Command{
	Use:   "promote <pattern-id>",
	Short: "Promote or register a pattern by score",
	Long: `Promote a pattern: score >= 90 promotes it and emits a skill
document, 75-89 registers it, below 75 is refused. Promoted patterns
are immutable.

Examples:
  specd patterns promote 6f1c2a...`,
	Args: cobra.ExactArgs(1),
	RunE: runPatternsPromote,
}

func init() {
	patternsListCmd.Flags().StringVar(&patternsStatus, "status", "", "filter by status (candidate|registered|promoted|rejected)")
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsPromoteCmd)
}

// openRegistry opens the sqlite-backed registry service.
func openRegistry(cfg *config.Config) (*registry.Service, error) {
	store, err := registry.NewSQLiteStore(cfg.RegistryDBPath())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	svc, err := registry.NewService(&registry.Config{
		RegisterThreshold: cfg.Registry.RegisterThreshold,
		PromoteThreshold:  cfg.Registry.PromoteThreshold,
		SkillsDir:         cfg.SkillsDirPath(),
	}, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	patterns, err := svc.List(cmd.Context(), registry.PatternStatus(patternsStatus))
	if err != nil {
		return err
	}
	if len(patterns) == 0 {
		fmt.Println("No patterns.")
		return nil
	}
	for _, p := range patterns {
		fmt.Printf("%-36s  %-10s  %3d/%d  %s\n",
			p.ID, p.Status, p.Scores.Total(), registry.MaxScore, p.Description)
	}
	return nil
}

func runPatternsPromote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.Promote(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Pattern %s is now %s (score %d/%d)\n", p.ID, p.Status, p.Scores.Total(), registry.MaxScore)
	if p.Status == registry.StatusPromoted {
		fmt.Printf("Skill document: %s\n", svc.SkillPath(p.ID))
	}
	return nil
}
