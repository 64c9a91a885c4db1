package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Book drafting pipeline with LLM-generated chapters",
	Long: `Quill drafts book chapters from a plan file using an LLM.

Given a plan with chapter outlines, a style guide, and a character bible,
quill generates each chapter with a bounded number of parallel requests,
retries transient failures per chapter, and reports batch progress as it
works. Failed chapters are reported individually; one bad chapter never
aborts the rest of the batch.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.quill/config.yaml)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(planCmd)
}
