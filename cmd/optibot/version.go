package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, injected with -ldflags at release time. A source build
// reports plain "dev".
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := "optibot " + version
		if gitCommit != "" {
			out += " (" + gitCommit
			if buildDate != "" {
				out += ", built " + buildDate
			}
			out += ")"
		}
		fmt.Println(out)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
