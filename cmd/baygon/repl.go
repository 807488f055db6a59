package main

import (
	"github.com/spf13/cobra"

	"github.com/heig-tin/baygon/pkg/repl"
)

func newReplCmd() *cobra.Command {
	var (
		seed       int64
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate template expressions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *int64
			if cmd.Flags().Changed("seed") {
				s = &seed
			}
			r := repl.New(s, start, end)
			r.SetOutput(cmd.OutOrStdout())
			return r.Run(cmd.Context())
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed of random and randint")
	cmd.Flags().StringVar(&start, "start", "", "Template start delimiter (default \"{{\")")
	cmd.Flags().StringVar(&end, "end", "", "Template end delimiter (default \"}}\")")
	return cmd
}
