package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"haul/internal/deps"
	"haul/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			missing := make([]string, 0)

			for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
				if status.Available {
					message := "Ready"
					if status.Path != "" {
						message = fmt.Sprintf("Ready (%s)", status.Path)
					}
					fmt.Fprintln(stdout, renderStatusLine(status.Name, statusOK, message, colorize))
					continue
				}
				detail := status.Detail
				if detail == "" {
					detail = "not available"
				}
				kind := statusError
				if status.Optional {
					kind = statusWarn
				} else {
					missing = append(missing, status.Name)
				}
				fmt.Fprintln(stdout, renderStatusLine(status.Name, kind, detail, colorize))
			}

			if len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Run readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			failures := 0

			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failures++
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if failures > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failures)
			}
			return nil
		},
	}
}
