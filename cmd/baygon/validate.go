package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heig-tin/baygon/pkg/executable"
	"github.com/heig-tin/baygon/pkg/schema"
	"github.com/heig-tin/baygon/pkg/suite"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a test description without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var config string
			if len(args) == 1 {
				config = args[0]
			}
			return runValidate(cmd.OutOrStdout(), cmd.ErrOrStderr(), config)
		},
	}
}

// noExec never runs anything; validation only resolves the tree.
type noExec struct{}

func (noExec) Run(context.Context, executable.Command) (*executable.Result, error) {
	return nil, fmt.Errorf("validation does not execute commands")
}

func runValidate(out, errOut io.Writer, config string) error {
	path, cfg, err := loadDescription(config, errOut)
	if err != nil {
		return invalid(err)
	}
	s, err := suite.Resolve(cfg, suite.Options{
		BaseDir:        filepath.Dir(path),
		MissingRoot:    suite.Skip,
		MissingSubtree: suite.Skip,
		Executor:       noExec{},
	})
	if err != nil {
		return invalid(err)
	}
	name := s.Name()
	if name == "" {
		name = path
	}
	fmt.Fprintf(out, "✓ %s is valid (%d tests)\n", name, len(s.Cases()))
	return nil
}

func printValidation(w io.Writer, errs []*schema.ValidationError) {
	n := 0
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(w, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "    at: %s\n", e.Path)
			}
		}
	}
	if !schema.HasErrors(errs) {
		return
	}
	fmt.Fprintf(w, "Validation failed: %d error(s)\n\n", countErrors(errs))
	for _, e := range errs {
		if e.Severity == "warning" {
			continue
		}
		n++
		fmt.Fprintf(w, "  %d. [%s] %s\n", n, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(w, "     at: %s\n", e.Path)
		}
	}
}

func countErrors(errs []*schema.ValidationError) int {
	n := 0
	for _, e := range errs {
		if e.Severity != "warning" {
			n++
		}
	}
	return n
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of test descriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.GenerateJSONSchema()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			var out json.RawMessage = data
			formatted, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				formatted = data
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
			return nil
		},
	}
}
