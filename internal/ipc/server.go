package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"haul/internal/api"
	"haul/internal/daemon"
	"haul/internal/ledger"
	"haul/internal/logging"
	"haul/internal/logs"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Haul", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun haul stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Version = status.Version
	resp.StartedAt = api.FormatTime(status.StartedAt)
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Version = status.Version
	resp.StartedAt = api.FormatTime(status.StartedAt)
	resp.UptimeSeconds = int64(time.Since(status.StartedAt).Seconds())
	resp.LedgerPath = status.LedgerPath
	resp.LockPath = status.LockPath
	resp.SocketPath = status.SocketPath
	resp.Service = api.FromServiceStatus(status.Service)
	resp.ServiceError = status.ServiceError
	resp.Watcher = WatcherStatus{
		Running:     status.Running,
		Tracked:     status.Watcher.Tracked,
		Undelivered: status.Watcher.Undelivered,
	}
	resp.Uploads = UploadsOverview{
		Enabled:  status.UploadsEnabled,
		Backends: status.UploadBackends,
	}
	if len(status.Jobs) > 0 {
		resp.Uploads.Jobs = make(map[string]int, len(status.Jobs))
		for state, count := range status.Jobs {
			resp.Uploads.Jobs[string(state)] = count
		}
	}
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	return nil
}

func (s *service) Add(req AddRequest, resp *AddResponse) error {
	options := make(map[string]string)
	if dir := strings.TrimSpace(req.Dir); dir != "" {
		options["dir"] = dir
	}
	if out := strings.TrimSpace(req.Out); out != "" {
		if len(req.URIs) > 1 {
			return errors.New("a filename override applies to a single download only")
		}
		options["out"] = out
	}
	if req.Paused {
		options["pause"] = "true"
	}
	if len(options) == 0 {
		options = nil
	}

	gids, err := s.daemon.Add(s.ctx, req.URIs, options)
	resp.GIDs = gids
	if err != nil {
		return err
	}
	s.log().Info("downloads queued via IPC",
		logging.String(logging.FieldEventType, "download_add"),
		logging.Int("count", len(gids)))
	return nil
}

func (s *service) AddTorrent(req AddTorrentRequest, resp *AddTorrentResponse) error {
	options := make(map[string]string)
	if dir := strings.TrimSpace(req.Dir); dir != "" {
		options["dir"] = dir
	}
	if req.Paused {
		options["pause"] = "true"
	}
	if len(options) == 0 {
		options = nil
	}

	gid, err := s.daemon.AddTorrent(s.ctx, req.Torrent, options)
	if err != nil {
		return err
	}
	resp.GID = gid
	s.log().Info("torrent queued via IPC",
		logging.String(logging.FieldEventType, "torrent_add"),
		logging.GID(gid))
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	tasks, err := s.daemon.List(s.ctx, req.Filter)
	if err != nil {
		return err
	}
	resp.Tasks = api.FromTasks(tasks)
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("describe requires a gid")
	}
	task, err := s.daemon.TaskStatus(s.ctx, req.GID)
	if err != nil {
		return err
	}
	resp.Task = api.FromTask(task, true)
	return nil
}

func (s *service) Pause(req PauseRequest, resp *PauseResponse) error {
	if req.All {
		if err := s.daemon.PauseAll(s.ctx); err != nil {
			return err
		}
		resp.Paused = true
		return nil
	}
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("pause requires a gid or the all flag")
	}
	if err := s.daemon.Pause(s.ctx, req.GID); err != nil {
		return err
	}
	resp.Paused = true
	return nil
}

func (s *service) Resume(req ResumeRequest, resp *ResumeResponse) error {
	if req.All {
		if err := s.daemon.ResumeAll(s.ctx); err != nil {
			return err
		}
		resp.Resumed = true
		return nil
	}
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("resume requires a gid or the all flag")
	}
	if err := s.daemon.Resume(s.ctx, req.GID); err != nil {
		return err
	}
	resp.Resumed = true
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("remove requires a gid")
	}
	if err := s.daemon.Remove(s.ctx, req.GID, req.Force); err != nil {
		return err
	}
	resp.Removed = true
	s.log().Info("download removed via IPC",
		logging.String(logging.FieldEventType, "download_remove"),
		logging.GID(req.GID))
	return nil
}

func (s *service) Forget(req ForgetRequest, resp *ForgetResponse) error {
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("forget requires a gid")
	}
	if err := s.daemon.Forget(s.ctx, req.GID); err != nil {
		return err
	}
	resp.Forgotten = true
	return nil
}

func (s *service) Files(req FilesRequest, resp *FilesResponse) error {
	if strings.TrimSpace(req.GID) == "" {
		return errors.New("files requires a gid")
	}
	files, err := s.daemon.Files(s.ctx, req.GID)
	if err != nil {
		return err
	}
	resp.Files = api.FromFiles(files)
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	transfer, stats, err := s.daemon.Stats(s.ctx)
	if err != nil {
		return err
	}
	resp.Stats = api.FromStats(transfer, stats)
	return nil
}

func (s *service) ServiceInstall(_ ServiceInstallRequest, resp *ServiceInstallResponse) error {
	s.log().Debug("service install requested")
	result, err := s.daemon.ServiceInstall(s.ctx)
	resp.UnitPath = result.UnitPath
	resp.ConfPath = result.ConfPath
	resp.BinaryPath = result.BinaryPath
	resp.SecretGenerated = result.SecretGenerated
	if err != nil {
		return err
	}
	s.log().Info("service installed via IPC",
		logging.String(logging.FieldEventType, "service_install"))
	return nil
}

func (s *service) ServiceStart(_ ServiceStartRequest, resp *ServiceStartResponse) error {
	s.log().Debug("service start requested")
	if err := s.daemon.ServiceStart(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "aria2 service started"
	s.log().Info("service started via IPC",
		logging.String(logging.FieldEventType, "service_start"))
	return nil
}

func (s *service) ServiceStop(_ ServiceStopRequest, resp *ServiceStopResponse) error {
	s.log().Debug("service stop requested")
	if err := s.daemon.ServiceStop(s.ctx); err != nil {
		resp.Stopped = false
		resp.Message = err.Error()
		return nil
	}
	resp.Stopped = true
	resp.Message = "aria2 service stopped"
	s.log().Info("service stopped via IPC",
		logging.String(logging.FieldEventType, "service_stop"))
	return nil
}

func (s *service) ServiceRestart(_ ServiceRestartRequest, resp *ServiceRestartResponse) error {
	s.log().Debug("service restart requested")
	if err := s.daemon.ServiceRestart(s.ctx); err != nil {
		resp.Restarted = false
		resp.Message = err.Error()
		return nil
	}
	resp.Restarted = true
	resp.Message = "aria2 service restarted"
	s.log().Info("service restarted via IPC",
		logging.String(logging.FieldEventType, "service_restart"))
	return nil
}

func (s *service) ServiceStatus(_ ServiceStatusRequest, resp *ServiceStatusResponse) error {
	status, err := s.daemon.ServiceStatus(s.ctx)
	if err != nil {
		return err
	}
	resp.Status = api.FromServiceStatus(status)
	return nil
}

func (s *service) ServiceUninstall(req ServiceUninstallRequest, resp *ServiceUninstallResponse) error {
	s.log().Debug("service uninstall requested", logging.Bool("purge", req.Purge))
	if err := s.daemon.ServiceUninstall(s.ctx, req.Purge); err != nil {
		resp.Uninstalled = false
		resp.Message = err.Error()
		return nil
	}
	resp.Uninstalled = true
	resp.Message = "aria2 service uninstalled"
	s.log().Info("service uninstalled via IPC",
		logging.String(logging.FieldEventType, "service_uninstall"),
		logging.Bool("purge", req.Purge))
	return nil
}

func (s *service) ServiceLogs(req ServiceLogsRequest, resp *ServiceLogsResponse) error {
	lines, err := s.daemon.ServiceLogs(s.ctx, req.Lines)
	if err != nil {
		return err
	}
	resp.Lines = lines
	return nil
}

func (s *service) ServiceClearLogs(_ ServiceClearLogsRequest, resp *ServiceClearLogsResponse) error {
	if err := s.daemon.ServiceClearLogs(); err != nil {
		return err
	}
	resp.Cleared = true
	s.log().Info("service logs cleared via IPC",
		logging.String(logging.FieldEventType, "service_clear_logs"))
	return nil
}

func (s *service) Uploads(req UploadsRequest, resp *UploadsResponse) error {
	states := make([]ledger.JobState, 0, len(req.States))
	for _, raw := range req.States {
		state, ok := ledger.ParseJobState(raw)
		if !ok {
			continue
		}
		states = append(states, state)
	}
	jobs, err := s.daemon.Uploads(s.ctx, states...)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromUploadJobs(jobs)
	return nil
}

func (s *service) RetryUpload(req RetryUploadRequest, resp *RetryUploadResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("retry requires a job id")
	}
	job, err := s.daemon.RetryUpload(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Job = api.FromUploadJob(job)
	s.log().Info("upload retried via IPC",
		logging.String(logging.FieldEventType, "upload_retry"),
		logging.String("job_id", req.ID))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	events, err := s.daemon.Events(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Events = api.FromEvents(events)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) Shutdown(_ ShutdownRequest, resp *ShutdownResponse) error {
	s.log().Info("shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_shutdown"))
	s.daemon.RequestShutdown()
	resp.ShuttingDown = true
	return nil
}
