package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"haul/internal/aria2"
	"haul/internal/ledger"
	"haul/internal/logging"
	"haul/internal/service"
)

// listWindow bounds the waiting and stopped pages fetched per listing call.
// aria2 keeps at most stopped max-download-result rows, so one page suffices.
const listWindow = 1000

// Add queues one download per URI and returns the gids in input order.
// aria2 treats a multi-URI addUri call as mirrors of a single file, which is
// almost never what a batch submission means, so each URI becomes its own
// download. On failure the gids queued so far are returned with the error.
func (d *Daemon) Add(ctx context.Context, uris []string, options map[string]string) ([]string, error) {
	if len(uris) == 0 {
		return nil, errors.New("no URIs given")
	}

	gids := make([]string, 0, len(uris))
	for _, uri := range uris {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			return gids, errors.New("empty URI")
		}
		gid, err := d.client.AddURI(ctx, []string{uri}, options)
		if err != nil {
			return gids, fmt.Errorf("queue %s: %w", uri, err)
		}
		d.logger.Info("download queued", logging.GID(gid), logging.String("uri", uri))
		gids = append(gids, gid)
	}
	return gids, nil
}

// AddTorrent queues a download from raw .torrent file contents.
func (d *Daemon) AddTorrent(ctx context.Context, torrent []byte, options map[string]string) (string, error) {
	if len(torrent) == 0 {
		return "", errors.New("empty torrent payload")
	}
	gid, err := d.client.AddTorrent(ctx, torrent, options)
	if err != nil {
		return "", err
	}
	d.logger.Info("torrent queued", logging.GID(gid), logging.Int("bytes", len(torrent)))
	return gid, nil
}

// List returns tasks matching the filter: all, active, waiting, or stopped.
func (d *Daemon) List(ctx context.Context, filter string) ([]aria2.Task, error) {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case "", "all":
		active, err := d.client.TellActive(ctx)
		if err != nil {
			return nil, err
		}
		waiting, err := d.client.TellWaiting(ctx, 0, listWindow)
		if err != nil {
			return nil, err
		}
		stopped, err := d.client.TellStopped(ctx, 0, listWindow)
		if err != nil {
			return nil, err
		}
		tasks := make([]aria2.Task, 0, len(active)+len(waiting)+len(stopped))
		tasks = append(tasks, active...)
		tasks = append(tasks, waiting...)
		tasks = append(tasks, stopped...)
		return tasks, nil
	case "active":
		return d.client.TellActive(ctx)
	case "waiting":
		return d.client.TellWaiting(ctx, 0, listWindow)
	case "stopped":
		return d.client.TellStopped(ctx, 0, listWindow)
	default:
		return nil, fmt.Errorf("unknown filter %q, want all, active, waiting, or stopped", filter)
	}
}

// TaskStatus returns the full status of a single download.
func (d *Daemon) TaskStatus(ctx context.Context, gid string) (aria2.Task, error) {
	return d.client.TellStatus(ctx, gid)
}

// Pause pauses one download.
func (d *Daemon) Pause(ctx context.Context, gid string) error {
	return d.client.Pause(ctx, gid)
}

// PauseAll pauses every active and waiting download.
func (d *Daemon) PauseAll(ctx context.Context) error {
	return d.client.PauseAll(ctx)
}

// Resume unpauses one download.
func (d *Daemon) Resume(ctx context.Context, gid string) error {
	return d.client.Unpause(ctx, gid)
}

// ResumeAll unpauses every paused download.
func (d *Daemon) ResumeAll(ctx context.Context) error {
	return d.client.UnpauseAll(ctx)
}

// Remove cancels a download. Force skips aria2's cleanup steps such as
// contacting the bittorrent tracker.
func (d *Daemon) Remove(ctx context.Context, gid string, force bool) error {
	var err error
	if force {
		err = d.client.ForceRemove(ctx, gid)
	} else {
		err = d.client.Remove(ctx, gid)
	}
	if err != nil {
		return err
	}
	d.logger.Info("download removed", logging.GID(gid), logging.Bool("force", force))
	return nil
}

// Forget drops a stopped download from aria2's result list. Ledger rows are
// history and stay untouched.
func (d *Daemon) Forget(ctx context.Context, gid string) error {
	return d.client.RemoveDownloadResult(ctx, gid)
}

// Files returns the file list of a download.
func (d *Daemon) Files(ctx context.Context, gid string) ([]aria2.File, error) {
	return d.client.GetFiles(ctx, gid)
}

// Stats returns aria2's global transfer counters alongside the ledger's
// event and job tallies.
func (d *Daemon) Stats(ctx context.Context) (aria2.GlobalStat, ledger.Stats, error) {
	transfer, err := d.client.GetGlobalStat(ctx)
	if err != nil {
		return aria2.GlobalStat{}, ledger.Stats{}, fmt.Errorf("global stat: %w", err)
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return aria2.GlobalStat{}, ledger.Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	return transfer, stats, nil
}

// ServiceInstall writes the aria2 configuration and systemd unit.
func (d *Daemon) ServiceInstall(ctx context.Context) (service.InstallResult, error) {
	return d.manager.Install(ctx)
}

// ServiceStart brings the aria2 unit up and waits for a healthy RPC probe.
func (d *Daemon) ServiceStart(ctx context.Context) error {
	if err := d.manager.Start(ctx); err != nil {
		return err
	}
	d.notifyService(ctx, "started")
	return nil
}

// ServiceStop saves the aria2 session and stops the unit.
func (d *Daemon) ServiceStop(ctx context.Context) error {
	if err := d.manager.Stop(ctx); err != nil {
		return err
	}
	d.notifyService(ctx, "stopped")
	return nil
}

// ServiceRestart stops then starts the aria2 unit.
func (d *Daemon) ServiceRestart(ctx context.Context) error {
	if err := d.manager.Restart(ctx); err != nil {
		return err
	}
	d.notifyService(ctx, "restarted")
	return nil
}

// ServiceStatus reports the aria2 unit and RPC endpoint health.
func (d *Daemon) ServiceStatus(ctx context.Context) (service.Status, error) {
	return d.manager.Status(ctx)
}

// ServiceUninstall removes the unit and, with purge, the generated
// configuration, session, and secret files.
func (d *Daemon) ServiceUninstall(ctx context.Context, purge bool) error {
	return d.manager.Uninstall(ctx, purge)
}

// ServiceLogs returns the last n lines of the aria2 log file.
func (d *Daemon) ServiceLogs(ctx context.Context, n int) ([]string, error) {
	return d.manager.Logs(ctx, n)
}

// ServiceClearLogs truncates the aria2 log file.
func (d *Daemon) ServiceClearLogs() error {
	return d.manager.ClearLogs()
}

func (d *Daemon) notifyService(ctx context.Context, action string) {
	if err := d.notifier.ServiceEvent(ctx, action); err != nil {
		d.logger.Warn("service notification failed",
			logging.String("action", action),
			logging.Error(err))
	}
}

// Uploads lists upload jobs, optionally restricted to the given states.
func (d *Daemon) Uploads(ctx context.Context, states ...ledger.JobState) ([]*ledger.UploadJob, error) {
	return d.store.ListJobs(ctx, states...)
}

// RetryUpload re-queues a failed upload job and wakes the coordinator.
func (d *Daemon) RetryUpload(ctx context.Context, id string) (*ledger.UploadJob, error) {
	return d.uploads.Retry(ctx, id)
}

// Events returns the most recent download events, newest first.
func (d *Daemon) Events(ctx context.Context, limit int) ([]*ledger.Event, error) {
	return d.store.ListEvents(ctx, limit)
}

// TestNotification sends a test message through the configured channel. The
// boolean reports whether a message went out; an unconfigured channel is not
// an error.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "", err
	}
	return true, "test notification sent", nil
}
