package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"haul/internal/ipc"
)

func newServiceCommand(ctx *commandContext) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the aria2 systemd service",
	}

	serviceCmd.AddCommand(newServiceInstallCommand(ctx))
	serviceCmd.AddCommand(newServiceUninstallCommand(ctx))
	serviceCmd.AddCommand(newServiceStartCommand(ctx))
	serviceCmd.AddCommand(newServiceStopCommand(ctx))
	serviceCmd.AddCommand(newServiceRestartCommand(ctx))
	serviceCmd.AddCommand(newServiceStatusCommand(ctx))
	serviceCmd.AddCommand(newServiceLogsCommand(ctx))
	serviceCmd.AddCommand(newServiceClearLogsCommand(ctx))

	return serviceCmd
}

func newServiceInstallCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the aria2 systemd unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceInstall()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Installed unit %s\n", resp.UnitPath)
				fmt.Fprintf(out, "Wrote aria2 configuration to %s\n", resp.ConfPath)
				fmt.Fprintf(out, "aria2 binary: %s\n", resp.BinaryPath)
				if resp.SecretGenerated {
					fmt.Fprintln(out, "Generated a new RPC secret")
				}
				fmt.Fprintln(out, "Start the service with `haul service start`")
				return nil
			})
		},
	}
}

func newServiceUninstallCommand(ctx *commandContext) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the aria2 systemd unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceUninstall(purge)
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Service uninstalled")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Also remove generated config, session, and secret files")
	return cmd
}

func newServiceStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the aria2 service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceStart()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Service started")
				}
				return nil
			})
		},
	}
}

func newServiceStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the aria2 service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceStop()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Service stopped")
				}
				return nil
			})
		},
	}
}

func newServiceRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the aria2 service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceRestart()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Service restarted")
				}
				return nil
			})
		},
	}
}

func newServiceStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aria2 service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceStatus()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, line := range serviceStatusLines(resp.Status, colorize) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}
}

func newServiceLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the tail of the aria2 log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ServiceLogs(lines)
				if err != nil {
					return err
				}
				if len(resp.Lines) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					return nil
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	return cmd
}

func newServiceClearLogsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-logs",
		Short: "Truncate the aria2 log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.ServiceClearLogs(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared aria2 log")
				return nil
			})
		},
	}
}
