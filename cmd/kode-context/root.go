package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "kode-context",
	Short: "kode-context retrieves semantic code context for review diffs",
	Long: `kode-context runs the semantic context retrieval engine against an
index service: it parses a diff, retrieves related code through keyword,
vector and structural search, and prints a ranked, diversity-aware bundle
of snippets plus impact warnings.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kode-context version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("kode-context " + version)
	},
}
