package aria2

import (
	"context"
	"encoding/base64"
)

// statusKeys limits tellStatus-family payloads to the fields Task decodes.
var statusKeys = []string{
	"gid", "status", "totalLength", "completedLength", "uploadLength",
	"downloadSpeed", "uploadSpeed", "connections", "errorCode", "errorMessage",
	"dir", "infoHash", "followedBy", "following", "files", "bittorrent",
}

// AddURI queues a download for the given URIs and returns its gid. All URIs
// must point at the same resource; aria2 treats them as mirrors.
func (c *Client) AddURI(ctx context.Context, uris []string, options map[string]string) (string, error) {
	params := []any{uris}
	if len(options) > 0 {
		params = append(params, options)
	}
	raw, err := c.Call(ctx, "aria2.addUri", params...)
	if err != nil {
		return "", err
	}
	var gid string
	if err := decodeResult("aria2.addUri", raw, &gid); err != nil {
		return "", err
	}
	return gid, nil
}

// AddTorrent uploads raw torrent file contents and returns the new gid.
func (c *Client) AddTorrent(ctx context.Context, torrent []byte, options map[string]string) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(torrent)
	params := []any{encoded, []string{}}
	if len(options) > 0 {
		params = append(params, options)
	}
	raw, err := c.Call(ctx, "aria2.addTorrent", params...)
	if err != nil {
		return "", err
	}
	var gid string
	if err := decodeResult("aria2.addTorrent", raw, &gid); err != nil {
		return "", err
	}
	return gid, nil
}

// TellStatus fetches the current state of a single download.
func (c *Client) TellStatus(ctx context.Context, gid string) (Task, error) {
	raw, err := c.Call(ctx, "aria2.tellStatus", gid, statusKeys)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := decodeResult("aria2.tellStatus", raw, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}

// TellActive lists downloads currently transferring.
func (c *Client) TellActive(ctx context.Context) ([]Task, error) {
	raw, err := c.Call(ctx, "aria2.tellActive", statusKeys)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := decodeResult("aria2.tellActive", raw, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// TellWaiting lists queued and paused downloads in queue order.
func (c *Client) TellWaiting(ctx context.Context, offset, num int) ([]Task, error) {
	raw, err := c.Call(ctx, "aria2.tellWaiting", offset, num, statusKeys)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := decodeResult("aria2.tellWaiting", raw, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// TellStopped lists completed, errored, and removed downloads, most recent
// last.
func (c *Client) TellStopped(ctx context.Context, offset, num int) ([]Task, error) {
	raw, err := c.Call(ctx, "aria2.tellStopped", offset, num, statusKeys)
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := decodeResult("aria2.tellStopped", raw, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Pause pauses one download. Active transfers move to paused after the
// current piece settles.
func (c *Client) Pause(ctx context.Context, gid string) error {
	_, err := c.Call(ctx, "aria2.pause", gid)
	return err
}

// PauseAll pauses every active and waiting download.
func (c *Client) PauseAll(ctx context.Context) error {
	_, err := c.Call(ctx, "aria2.pauseAll")
	return err
}

// Unpause resumes a paused download.
func (c *Client) Unpause(ctx context.Context, gid string) error {
	_, err := c.Call(ctx, "aria2.unpause", gid)
	return err
}

// UnpauseAll resumes every paused download.
func (c *Client) UnpauseAll(ctx context.Context) error {
	_, err := c.Call(ctx, "aria2.unpauseAll")
	return err
}

// Remove cancels a download, letting in-flight pieces settle first.
func (c *Client) Remove(ctx context.Context, gid string) error {
	_, err := c.Call(ctx, "aria2.remove", gid)
	return err
}

// ForceRemove cancels a download without waiting for piece settlement.
func (c *Client) ForceRemove(ctx context.Context, gid string) error {
	_, err := c.Call(ctx, "aria2.forceRemove", gid)
	return err
}

// RemoveDownloadResult drops a stopped download from aria2's result list.
func (c *Client) RemoveDownloadResult(ctx context.Context, gid string) error {
	_, err := c.Call(ctx, "aria2.removeDownloadResult", gid)
	return err
}

// GetFiles lists the file entries of a download.
func (c *Client) GetFiles(ctx context.Context, gid string) ([]File, error) {
	raw, err := c.Call(ctx, "aria2.getFiles", gid)
	if err != nil {
		return nil, err
	}
	var files []File
	if err := decodeResult("aria2.getFiles", raw, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// GetGlobalStat fetches daemon-wide transfer counters.
func (c *Client) GetGlobalStat(ctx context.Context) (GlobalStat, error) {
	raw, err := c.Call(ctx, "aria2.getGlobalStat")
	if err != nil {
		return GlobalStat{}, err
	}
	var stat GlobalStat
	if err := decodeResult("aria2.getGlobalStat", raw, &stat); err != nil {
		return GlobalStat{}, err
	}
	return stat, nil
}

// GetVersion fetches the daemon version. Doubles as the health probe.
func (c *Client) GetVersion(ctx context.Context) (VersionInfo, error) {
	raw, err := c.Call(ctx, "aria2.getVersion")
	if err != nil {
		return VersionInfo{}, err
	}
	var info VersionInfo
	if err := decodeResult("aria2.getVersion", raw, &info); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

// SaveSession asks the daemon to persist its session file so unfinished
// downloads survive the next restart.
func (c *Client) SaveSession(ctx context.Context) error {
	_, err := c.Call(ctx, "aria2.saveSession")
	return err
}

// Shutdown asks the daemon to exit after active transfers settle.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.Call(ctx, "aria2.shutdown")
	return err
}

// ForceShutdown asks the daemon to exit immediately.
func (c *Client) ForceShutdown(ctx context.Context) error {
	_, err := c.Call(ctx, "aria2.forceShutdown")
	return err
}
