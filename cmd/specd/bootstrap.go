package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/specd/internal/specroot"
)

var (
	bootstrapName        string
	bootstrapDescription string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a new spec root skeleton",
	Long: `Create a spec root under the workspace's pending folder: README.md,
REFLECTION_LOG.md, the handoffs and outputs directories, and the
spec.yaml manifest. Refuses to overwrite an existing spec.

Examples:
  specd bootstrap -n auth-rework -d "Rework the auth layer"`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().StringVarP(&bootstrapName, "name", "n", "", "spec name (required)")
	bootstrapCmd.Flags().StringVarP(&bootstrapDescription, "description", "d", "", "spec title/description (required)")
	_ = bootstrapCmd.MarkFlagRequired("name")
	_ = bootstrapCmd.MarkFlagRequired("description")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	root := workspace(cfg)

	s, err := root.Bootstrap(bootstrapName, bootstrapDescription)
	if err != nil {
		return err
	}
	fmt.Printf("Created spec %s (%s)\n", bootstrapName, s.ID)
	fmt.Printf("Root: %s\n", root.Dir(specroot.FolderPending, bootstrapName))
	return nil
}
