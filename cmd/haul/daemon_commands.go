package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"haul/internal/daemonctl"
	"haul/internal/textutil"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the hauld daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.DaemonBinary()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				launchOptions(ctx, startLogLevel),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the daemon log level")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the hauld daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.ShutdownAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the hauld daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.DaemonBinary()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				launchOptions(ctx, restartLogLevel),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopped daemon process (pid %d)\n", result.Stop.PID)
				} else {
					fmt.Fprintln(stdout, "Daemon stopped")
				}
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Override the daemon log level")

	statusCmd := newStatusCommand(ctx)

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, service, and upload status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.Running {
				uptime := textutil.HumanDuration(time.Duration(statusResp.UptimeSeconds) * time.Second)
				detail := fmt.Sprintf("Running (pid %d, version %s, up %s)", statusResp.PID, statusResp.Version, uptime)
				fmt.Fprintln(stdout, renderStatusLine("hauld", statusOK, detail, colorize))
				if statusResp.Watcher.Running {
					detail := fmt.Sprintf("Tracking %d download(s), %d undelivered event(s)",
						statusResp.Watcher.Tracked, statusResp.Watcher.Undelivered)
					fmt.Fprintln(stdout, renderStatusLine("Watcher", statusOK, detail, colorize))
				} else {
					fmt.Fprintln(stdout, renderStatusLine("Watcher", statusWarn, "Not running", colorize))
				}
			} else {
				fmt.Fprintln(stdout, renderStatusLine("hauld", statusWarn, "Not running (start it with `haul start`)", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, statusResp.SocketPath, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Ledger", statusInfo, statusResp.LedgerPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("aria2 Service", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.ServiceError != "" {
				fmt.Fprintln(stdout, renderStatusLine("aria2 service", statusError, statusResp.ServiceError, colorize))
			} else {
				for _, line := range serviceStatusLines(statusResp.Service, colorize) {
					fmt.Fprintln(stdout, line)
				}
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Uploads", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.Uploads.Enabled {
				detail := fmt.Sprintf("Enabled (backends: %s)", strings.Join(statusResp.Uploads.Backends, ", "))
				fmt.Fprintln(stdout, renderStatusLine("Uploads", statusOK, detail, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Uploads", statusInfo, "Disabled", colorize))
			}
			if rows := buildCountRows(statusResp.Uploads.Jobs); len(rows) > 0 {
				fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(statusResp.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}

func launchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{LogLevel: strings.TrimSpace(logLevel)}
	if path := ctx.configPathFlag(); path != "" {
		opts.ConfigPath = path
	}
	return opts
}
