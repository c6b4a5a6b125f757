package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leasescout/leasescout/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		fmt.Printf("%s\n", version.String())
		fmt.Printf("  go:       %s\n", info.GoVersion)
		fmt.Printf("  platform: %s\n", info.Platform)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
