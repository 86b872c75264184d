package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks daemon liveness and identity.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call("Haul.Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the full daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Haul.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Add queues downloads, one per URI.
func (c *Client) Add(req AddRequest) (*AddResponse, error) {
	var resp AddResponse
	if err := c.client.Call("Haul.Add", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddTorrent queues a download from raw torrent file contents.
func (c *Client) AddTorrent(req AddTorrentRequest) (*AddTorrentResponse, error) {
	var resp AddTorrentResponse
	if err := c.client.Call("Haul.AddTorrent", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns downloads matching the filter.
func (c *Client) List(filter string) (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call("Haul.List", ListRequest{Filter: filter}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns one download with its file list.
func (c *Client) Describe(gid string) (*DescribeResponse, error) {
	var resp DescribeResponse
	if err := c.client.Call("Haul.Describe", DescribeRequest{GID: gid}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause pauses one download, or all of them.
func (c *Client) Pause(gid string, all bool) (*PauseResponse, error) {
	var resp PauseResponse
	if err := c.client.Call("Haul.Pause", PauseRequest{GID: gid, All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume unpauses one download, or all of them.
func (c *Client) Resume(gid string, all bool) (*ResumeResponse, error) {
	var resp ResumeResponse
	if err := c.client.Call("Haul.Resume", ResumeRequest{GID: gid, All: all}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove cancels a download.
func (c *Client) Remove(gid string, force bool) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.client.Call("Haul.Remove", RemoveRequest{GID: gid, Force: force}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Forget drops a stopped download from aria2's result list.
func (c *Client) Forget(gid string) (*ForgetResponse, error) {
	var resp ForgetResponse
	if err := c.client.Call("Haul.Forget", ForgetRequest{GID: gid}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Files returns the file list of a download.
func (c *Client) Files(gid string) (*FilesResponse, error) {
	var resp FilesResponse
	if err := c.client.Call("Haul.Files", FilesRequest{GID: gid}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns combined transfer and ledger statistics.
func (c *Client) Stats() (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.client.Call("Haul.Stats", StatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceInstall installs the aria2 systemd unit.
func (c *Client) ServiceInstall() (*ServiceInstallResponse, error) {
	var resp ServiceInstallResponse
	if err := c.client.Call("Haul.ServiceInstall", ServiceInstallRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceStart starts the aria2 unit.
func (c *Client) ServiceStart() (*ServiceStartResponse, error) {
	var resp ServiceStartResponse
	if err := c.client.Call("Haul.ServiceStart", ServiceStartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceStop stops the aria2 unit.
func (c *Client) ServiceStop() (*ServiceStopResponse, error) {
	var resp ServiceStopResponse
	if err := c.client.Call("Haul.ServiceStop", ServiceStopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceRestart restarts the aria2 unit.
func (c *Client) ServiceRestart() (*ServiceRestartResponse, error) {
	var resp ServiceRestartResponse
	if err := c.client.Call("Haul.ServiceRestart", ServiceRestartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceStatus returns aria2 unit and endpoint health.
func (c *Client) ServiceStatus() (*ServiceStatusResponse, error) {
	var resp ServiceStatusResponse
	if err := c.client.Call("Haul.ServiceStatus", ServiceStatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceUninstall removes the aria2 unit.
func (c *Client) ServiceUninstall(purge bool) (*ServiceUninstallResponse, error) {
	var resp ServiceUninstallResponse
	if err := c.client.Call("Haul.ServiceUninstall", ServiceUninstallRequest{Purge: purge}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceLogs returns the tail of the aria2 log file.
func (c *Client) ServiceLogs(lines int) (*ServiceLogsResponse, error) {
	var resp ServiceLogsResponse
	if err := c.client.Call("Haul.ServiceLogs", ServiceLogsRequest{Lines: lines}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ServiceClearLogs truncates the aria2 log file.
func (c *Client) ServiceClearLogs() (*ServiceClearLogsResponse, error) {
	var resp ServiceClearLogsResponse
	if err := c.client.Call("Haul.ServiceClearLogs", ServiceClearLogsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Uploads lists upload jobs optionally filtered by state.
func (c *Client) Uploads(states []string) (*UploadsResponse, error) {
	var resp UploadsResponse
	if err := c.client.Call("Haul.Uploads", UploadsRequest{States: states}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RetryUpload re-queues a failed upload job.
func (c *Client) RetryUpload(id string) (*RetryUploadResponse, error) {
	var resp RetryUploadResponse
	if err := c.client.Call("Haul.RetryUpload", RetryUploadRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events returns recent download events.
func (c *Client) Events(limit int) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Haul.Events", EventsRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns daemon log lines.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Haul.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Haul.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Haul.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
