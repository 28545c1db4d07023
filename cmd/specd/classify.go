package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/classify"
	"github.com/fyrsmithlabs/specd/internal/spec"
)

var classifyFactors spec.Factors

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Score complexity factors and print the execution tier",
	Long: `Score the weighted complexity factors and print the resulting score
and tier. A very_high tier means the work must be decomposed before a
spec for it can activate.

Examples:
  specd classify --phases 6 --agents 4 --cross-package 4 --uncertainty 1`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.IntVar(&classifyFactors.Phases, "phases", 0, "number of planned phases")
	f.IntVar(&classifyFactors.AgentTypes, "agents", 0, "distinct capability classes involved")
	f.IntVar(&classifyFactors.CrossPackageDeps, "cross-package", 0, "cross-package dependencies")
	f.IntVar(&classifyFactors.ExternalDeps, "external", 0, "external system dependencies")
	f.IntVar(&classifyFactors.Uncertainty, "uncertainty", 0, "open design questions")
	f.IntVar(&classifyFactors.ResearchRequired, "research", 0, "required research spikes")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	classifier, err := classify.New(cfg.Classify)
	if err != nil {
		return err
	}

	score, tier := classifier.Classify(classifyFactors)
	fmt.Printf("Score: %d\nTier:  %s\n", score, tier)
	if tier == classify.TierVeryHigh {
		fmt.Println("This work requires decomposition before it can activate as a single spec.")
	}
	return nil
}
