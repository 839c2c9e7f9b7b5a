package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/spigell/resume-chat/cmd.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the default models",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (chat: gemini-2.5-flash, embeddings: text-embedding-004)\n", app, version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
