package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fernandofuc/tistis-platform-sub010/common/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of adminchannel",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "adminchannel %s\n", version.Info())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
