package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seqscout/seqscout/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("seqscout %s\n", version.Version)
			fmt.Printf("  commit:  %s\n", version.Commit)
			fmt.Printf("  built:   %s\n", version.Date)
			fmt.Printf("  go:      %s\n", version.GoVersion)
		},
	}
}
