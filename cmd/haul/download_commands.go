package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"haul/internal/ipc"
	"haul/internal/textutil"
)

func newDownloadCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAddCommand(ctx),
		newAddTorrentCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newPauseCommand(ctx),
		newResumeCommand(ctx),
		newRemoveCommand(ctx),
		newForgetCommand(ctx),
		newFilesCommand(ctx),
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var out string
	var paused bool

	cmd := &cobra.Command{
		Use:   "add <uri>...",
		Short: "Queue downloads from URIs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" && len(args) > 1 {
				return errors.New("--out applies to a single URI")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Add(ipc.AddRequest{
					URIs:   args,
					Dir:    dir,
					Out:    out,
					Paused: paused,
				})
				if err != nil {
					return err
				}
				for _, gid := range resp.GIDs {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", gid)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Download directory override")
	cmd.Flags().StringVar(&out, "out", "", "Output filename (single URI only)")
	cmd.Flags().BoolVar(&paused, "pause", false, "Queue the download paused")
	return cmd
}

func newAddTorrentCommand(ctx *commandContext) *cobra.Command {
	var dir string
	var paused bool

	cmd := &cobra.Command{
		Use:   "add-torrent <file>",
		Short: "Queue a download from a torrent file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read torrent file: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AddTorrent(ipc.AddTorrentRequest{
					Torrent: data,
					Dir:     dir,
					Paused:  paused,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", resp.GID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Download directory override")
	cmd.Flags().BoolVar(&paused, "pause", false, "Queue the download paused")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var active, waiting, stopped bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "all"
			switch {
			case active:
				filter = "active"
			case waiting:
				filter = "waiting"
			case stopped:
				filter = "stopped"
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(filter)
				if err != nil {
					return err
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No downloads")
					return nil
				}
				tableText := renderTable(
					[]string{"GID", "Name", "Status", "Progress", "Size", "Speed", "ETA"},
					buildTaskRows(resp.Tasks),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tableText)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&active, "active", false, "Only active downloads")
	cmd.Flags().BoolVar(&waiting, "waiting", false, "Only waiting or paused downloads")
	cmd.Flags().BoolVar(&stopped, "stopped", false, "Only stopped downloads")
	cmd.MarkFlagsMutuallyExclusive("active", "waiting", "stopped")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <gid>",
		Short: "Show one download in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(args[0])
				if err != nil {
					return err
				}
				task := resp.Task
				out := cmd.OutOrStdout()

				progress := fmt.Sprintf("%.1f%%", task.ProgressPercent)
				if task.TotalBytes > 0 {
					progress = fmt.Sprintf("%s (%s of %s)", progress,
						textutil.HumanBytes(task.CompletedBytes), textutil.HumanBytes(task.TotalBytes))
				}
				rows := [][2]string{
					{"GID", task.GID},
					{"Name", task.Name},
					{"Status", task.Status},
					{"Progress", progress},
					{"Speed", textutil.HumanSpeed(task.DownloadSpeed)},
					{"ETA", formatETA(task.ETASeconds)},
					{"Dir", task.Dir},
				}
				if task.InfoHash != "" {
					rows = append(rows, [2]string{"Info hash", task.InfoHash})
				}
				if task.ErrorMessage != "" {
					rows = append(rows, [2]string{"Error", task.ErrorMessage})
				}
				for _, row := range rows {
					value := row[1]
					if value == "" {
						value = "-"
					}
					fmt.Fprintf(out, "%-10s%s\n", row[0], value)
				}

				if len(task.Files) > 0 {
					fmt.Fprintln(out)
					tableText := renderTable(
						[]string{"#", "Path", "Size", "Done", "Selected"},
						buildFileRows(task.Files),
						[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
					)
					fmt.Fprintln(out, tableText)
				}
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "pause [gid]",
		Short: "Pause a download, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := gidOrAll(args, all)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(gid, all); err != nil {
					return err
				}
				if all {
					fmt.Fprintln(cmd.OutOrStdout(), "Paused all downloads")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Paused %s\n", gid)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Pause every active download")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "resume [gid]",
		Short: "Resume a paused download, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid, err := gidOrAll(args, all)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(gid, all); err != nil {
					return err
				}
				if all {
					fmt.Fprintln(cmd.OutOrStdout(), "Resumed all downloads")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s\n", gid)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Resume every paused download")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <gid>",
		Short: "Cancel a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Remove(args[0], force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Remove without waiting for aria2 cleanup")
	return cmd
}

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <gid>",
		Short: "Drop a stopped download from the result list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Forget(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
				return nil
			})
		},
	}
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "files <gid>",
		Short: "List the files of a download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Files(args[0])
				if err != nil {
					return err
				}
				if len(resp.Files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No files reported")
					return nil
				}
				tableText := renderTable(
					[]string{"#", "Path", "Size", "Done", "Selected"},
					buildFileRows(resp.Files),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), tableText)
				return nil
			})
		},
	}
}

func gidOrAll(args []string, all bool) (string, error) {
	switch {
	case all && len(args) > 0:
		return "", errors.New("specify a gid or --all, not both")
	case !all && len(args) == 0:
		return "", errors.New("specify a gid or --all")
	case all:
		return "", nil
	default:
		return args[0], nil
	}
}
