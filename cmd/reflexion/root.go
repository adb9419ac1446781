package main

import (
	"github.com/spf13/cobra"

	"reflexion/internal/version"
)

var (
	// rootDir is the project directory holding .reflexion/ (default: cwd)
	rootDir string
	// configPath overrides .reflexion/config.json
	configPath string
	verbosity  int
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "reflexion",
	Short: "Reflexion - architecture conformance analysis",
	Long: `Reflexion compares an intended architecture (components, contracts and
style rules) with the dependencies actually observed in an implementation,
and classifies every architecture-level edge as convergent, divergent,
absent or one of the allowed states.

Results can be updated incrementally from a stream of deltas and stored in
a local run history.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("reflexion version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <root>/.reflexion/config.json)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logging")
}
