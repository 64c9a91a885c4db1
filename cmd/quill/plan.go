package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/plan"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Work with book plan files",
}

var planValidateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Check a plan file for problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := plan.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d chapters, ok\n", p.Title, len(p.Chapters))
		return nil
	},
}

func init() {
	planCmd.AddCommand(planValidateCmd)
}
