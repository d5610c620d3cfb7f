package main

import (
	"fmt"

	"github.com/alvmarrod/wiki-weaver/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wiki-weaver version %s\n", version.Version)
		},
	}
}
