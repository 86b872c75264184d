package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"haul/internal/ipc"
	"haul/internal/ledger"
)

func newUploadsCommand(ctx *commandContext) *cobra.Command {
	var failed bool

	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List upload jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var states []string
			if failed {
				states = []string{
					string(ledger.JobFailedRetryable),
					string(ledger.JobFailedPermanent),
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Uploads(states)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No upload jobs recorded")
					return nil
				}
				tableText := renderTable(
					[]string{"ID", "GID", "Backend", "State", "Attempts", "Updated", "Error"},
					buildUploadRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tableText)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failed, "failed", false, "Only failed jobs")
	return cmd
}

func newRetryUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-upload <job-id>",
		Short: "Re-queue a failed upload job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RetryUpload(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Upload %s re-queued (backend %s)\n", resp.Job.ID, resp.Job.Backend)
				return nil
			})
		},
	}
}
