package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"haul/internal/ipc"
	"haul/internal/textutil"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show transfer and ledger statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stats()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				transfer := resp.Stats.Transfer

				rows := [][]string{
					{"Download speed", textutil.HumanSpeed(transfer.DownloadSpeed)},
					{"Upload speed", textutil.HumanSpeed(transfer.UploadSpeed)},
					{"Active", strconv.Itoa(transfer.NumActive)},
					{"Waiting", strconv.Itoa(transfer.NumWaiting)},
					{"Stopped", strconv.Itoa(transfer.NumStopped)},
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Metric", "Value"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))

				if eventRows := buildCountRows(resp.Stats.Events); len(eventRows) > 0 {
					fmt.Fprintln(stdout, renderTable(
						[]string{"Event", "Count"},
						eventRows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				if jobRows := buildCountRows(resp.Stats.Jobs); len(jobRows) > 0 {
					fmt.Fprintln(stdout, renderTable(
						[]string{"Upload state", "Count"},
						jobRows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent download events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(limit)
				if err != nil {
					return err
				}
				if len(resp.Events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}
				tableText := renderTable(
					[]string{"Observed", "GID", "Event", "Name", "Size", "Detail"},
					buildEventRows(resp.Events),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tableText)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of events to show")
	return cmd
}
