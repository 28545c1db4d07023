// Package main implements the specd CLI for driving phased spec
// workflows against an on-disk workspace.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/specd/internal/budget"
	"github.com/fyrsmithlabs/specd/internal/config"
	"github.com/fyrsmithlabs/specd/internal/engine"
	"github.com/fyrsmithlabs/specd/internal/handoff"
	"github.com/fyrsmithlabs/specd/internal/logging"
	"github.com/fyrsmithlabs/specd/internal/registry"
	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var (
	// configPath is the optional YAML config file.
	configPath string
	// rootDir overrides the configured workspace root.
	rootDir string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "specd: %s: %v\n", failureKind(err), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "specd",
	Short: "Phased spec workflow engine",
	Long: `specd drives multi-phase spec workflows: bootstrap spec roots,
classify complexity, gate phase transitions, track the session budget,
and checkpoint/resume across sessions. All state lives in plain files
under the workspace root.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .specd.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "workspace root (overrides config)")
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(patternsCmd)
}

// failureKind names the failure class for the exit message, so callers
// scripting against specd can tell gate violations apart.
func failureKind(err error) string {
	switch {
	case errors.Is(err, engine.ErrRequiresDecomposition):
		return "requires-decomposition"
	case errors.Is(err, engine.ErrExitGateNotMet):
		return "exit-gate-not-met"
	case errors.Is(err, engine.ErrEntryGateNotMet):
		return "entry-gate-not-met"
	case errors.Is(err, engine.ErrBudgetRed):
		return "budget-red"
	case errors.Is(err, engine.ErrCheckpointNotRequired):
		return "checkpoint-not-required"
	case errors.Is(err, handoff.ErrIncompleteBudgetCategorization):
		return "incomplete-budget-categorization"
	case errors.Is(err, handoff.ErrCorruptHandoff):
		return "corrupt-handoff"
	case errors.Is(err, handoff.ErrStaleHandoff):
		return "stale-handoff"
	case errors.Is(err, registry.ErrBelowPromotionThreshold):
		return "below-promotion-threshold"
	case errors.Is(err, registry.ErrPatternImmutable):
		return "pattern-immutable"
	case errors.Is(err, specroot.ErrMoveRefused):
		return "move-refused"
	case errors.Is(err, specroot.ErrInconsistentRoot):
		return "inconsistent-root"
	case errors.Is(err, specroot.ErrSpecExists):
		return "spec-exists"
	case errors.Is(err, specroot.ErrSpecNotFound):
		return "spec-not-found"
	default:
		var exceeded *budget.ErrBudgetExceeded
		if errors.As(err, &exceeded) {
			return "budget-exceeded"
		}
		return "error"
	}
}

// loadConfig loads the configuration and applies the --root override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if rootDir != "" {
		cfg.Workspace.Root = rootDir
	}
	return cfg, nil
}

// newLogger builds the configured logger.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}

// workspace returns the workspace handle for the loaded config.
func workspace(cfg *config.Config) *specroot.Root {
	return specroot.New(cfg.Workspace.Root)
}
