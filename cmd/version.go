package cmd

import (
	"fmt"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
	"github.com/spf13/cobra"
)

// versionCmd is the command to display version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Long:  `Display the flare version and host platform.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flare v%s (%s)\n", model.Version, model.HostPlatform())
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
