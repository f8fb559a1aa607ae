package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// QualityCmds returns the test and lint commands.
func QualityCmds() []*cobra.Command {
	return []*cobra.Command{
		qualityCmd("test", "Run unit tests", "tests", func() error { return test.Test() }),
		qualityCmd("lint", "Run linting", "linting", func() error { return test.Lint() }),
		qualityCmd("integration-test", "Run tests against a sensor wired to the host bus", "integration testing", func() error { return test.Integ() }),
	}
}

func qualityCmd(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", what, err)
			}
			return nil
		},
	}
}
