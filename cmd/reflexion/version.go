package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reflexion/internal/version"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionFormat == string(FormatJSON) {
			out, err := formatJSON(version.Fields())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(versionCmd)
}
