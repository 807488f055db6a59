package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heig-tin/baygon/pkg/trace"
)

func newTraceCmd() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace file operations",
	}
	traceCmd.AddCommand(&cobra.Command{
		Use:   "verify [trace.jsonl]",
		Short: "Verify trace file integrity (hash chain)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := trace.VerifyFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Valid {
				fmt.Fprintf(out, "✗ Chain broken at event %d\n", result.BrokenAt)
				if result.Error != "" {
					fmt.Fprintf(out, "  %s\n", result.Error)
				}
				return fmt.Errorf("chain verification failed")
			}
			fmt.Fprintf(out, "✓ Chain integrity: %d events, no breaks\n", result.EventCount)
			return nil
		},
	})
	return traceCmd
}
