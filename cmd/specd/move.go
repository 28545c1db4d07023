package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var moveCmd = &cobra.Command{
	Use:   "move <spec-name> <pending|completed|archived>",
	Short: "Manually move a spec between lifecycle folders",
	Long: `Move a spec root to another lifecycle folder and rewrite its manifest
status to match. This is the only manual status override: a spec moves
to pending only from Blocked, and to completed or archived only once
the engine reports it Completed.

Examples:
  specd move auth-rework completed
  specd move stuck-spec pending`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func runMove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := workspace(cfg)

	name, target := args[0], specroot.Folder(args[1])
	if err := root.Move(name, target); err != nil {
		return err
	}
	fmt.Printf("Moved %s to %s\n", name, target)
	return nil
}
