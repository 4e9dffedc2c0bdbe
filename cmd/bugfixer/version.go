package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bugfixer %s\n", version)
			if gitCommit != "unknown" {
				fmt.Printf("  commit: %s\n", gitCommit)
			}
			if buildTime != "unknown" {
				fmt.Printf("  built:  %s\n", buildTime)
			}
		},
	}
}
