package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeTask is the mutable state behind one download in the fake daemon.
type FakeTask struct {
	GID             string
	Status          string
	TotalLength     int64
	CompletedLength int64
	DownloadSpeed   int64
	Dir             string
	Files           []string
	ErrorCode       int
	ErrorMessage    string
}

// FakeAria2 serves the slice of the aria2 JSON-RPC surface haul exercises.
// Numeric fields go out as strings, the way the real daemon sends them.
type FakeAria2 struct {
	t      testing.TB
	server *httptest.Server
	secret string

	mu          sync.Mutex
	tasks       map[string]*FakeTask
	order       []string
	calls       map[string]int
	nextGID     int
	unavailable bool
}

// NewFakeAria2 starts an in-process stand-in for the aria2 daemon. Pass an
// empty secret to disable token checking.
func NewFakeAria2(t testing.TB, secret string) *FakeAria2 {
	f := &FakeAria2{
		t:      t,
		secret: secret,
		tasks:  make(map[string]*FakeTask),
		calls:  make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// Endpoint returns the JSON-RPC URL clients should dial.
func (f *FakeAria2) Endpoint() string {
	return f.server.URL + "/jsonrpc"
}

// SetUnavailable makes every request fail with a 500 until cleared, for
// exercising transport-error paths.
func (f *FakeAria2) SetUnavailable(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = down
}

// AddTask seeds a task. An empty GID is assigned sequentially.
func (f *FakeAria2) AddTask(task FakeTask) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.GID == "" {
		task.GID = f.newGIDLocked()
	}
	if task.Status == "" {
		task.Status = "active"
	}
	copied := task
	f.tasks[task.GID] = &copied
	f.order = append(f.order, task.GID)
	return task.GID
}

// Task returns a snapshot of the task, or false when unknown.
func (f *FakeAria2) Task(gid string) (FakeTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[gid]
	if !ok {
		return FakeTask{}, false
	}
	return *task, true
}

// Complete marks the task finished with all bytes accounted for.
func (f *FakeAria2) Complete(gid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task, ok := f.tasks[gid]; ok {
		task.Status = "complete"
		task.CompletedLength = task.TotalLength
		task.DownloadSpeed = 0
	}
}

// Fail marks the task terminally failed with the given aria2 exit code.
func (f *FakeAria2) Fail(gid string, code int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task, ok := f.tasks[gid]; ok {
		task.Status = "error"
		task.ErrorCode = code
		task.ErrorMessage = message
		task.DownloadSpeed = 0
	}
}

// Drop removes the task without any terminal status, as if it vanished.
func (f *FakeAria2) Drop(gid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, gid)
}

// Calls reports how many times a method has been invoked.
func (f *FakeAria2) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeAria2) newGIDLocked() string {
	f.nextGID++
	return fmt.Sprintf("%016x", f.nextGID)
}

type fakeRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (f *FakeAria2) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string `json:"id"`
		Method string `json:"method"`
		Params []any  `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unavailable {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	f.calls[req.Method]++

	params := req.Params
	if f.secret != "" {
		if len(params) == 0 || params[0] != "token:"+f.secret {
			writeFakeResponse(w, req.ID, nil, &fakeRPCError{Code: 1, Message: "Unauthorized"})
			return
		}
		params = params[1:]
	}

	result, rpcErr := f.dispatchLocked(req.Method, params)
	writeFakeResponse(w, req.ID, result, rpcErr)
}

func writeFakeResponse(w http.ResponseWriter, id string, result any, rpcErr *fakeRPCError) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeAria2) dispatchLocked(method string, params []any) (any, *fakeRPCError) {
	switch method {
	case "aria2.getVersion":
		return map[string]any{
			"version":         "1.37.0",
			"enabledFeatures": []string{"BitTorrent", "Metalink"},
		}, nil

	case "aria2.getGlobalStat":
		return f.globalStatLocked(), nil

	case "aria2.addUri":
		uris, _ := params[0].([]any)
		task := &FakeTask{GID: f.newGIDLocked(), Status: "waiting"}
		if len(uris) > 0 {
			if uri, ok := uris[0].(string); ok {
				task.Files = []string{uri}
			}
		}
		if len(params) > 1 {
			if options, ok := params[1].(map[string]any); ok {
				if options["pause"] == "true" {
					task.Status = "paused"
				}
				if dir, ok := options["dir"].(string); ok {
					task.Dir = dir
				}
			}
		}
		f.tasks[task.GID] = task
		f.order = append(f.order, task.GID)
		return task.GID, nil

	case "aria2.addTorrent":
		task := &FakeTask{GID: f.newGIDLocked(), Status: "waiting"}
		f.tasks[task.GID] = task
		f.order = append(f.order, task.GID)
		return task.GID, nil

	case "aria2.tellStatus":
		gid, _ := params[0].(string)
		task, ok := f.tasks[gid]
		if !ok {
			return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", gid)}
		}
		return taskPayload(task), nil

	case "aria2.tellActive":
		return f.tasksWithStatusLocked("active"), nil

	case "aria2.tellWaiting":
		return f.tasksWithStatusLocked("waiting", "paused"), nil

	case "aria2.tellStopped":
		return f.tasksWithStatusLocked("complete", "error", "removed"), nil

	case "aria2.pause", "aria2.forcePause":
		return f.setStatusLocked(params, "paused")

	case "aria2.unpause":
		return f.setStatusLocked(params, "waiting")

	case "aria2.remove", "aria2.forceRemove":
		return f.setStatusLocked(params, "removed")

	case "aria2.removeDownloadResult":
		gid, _ := params[0].(string)
		task, ok := f.tasks[gid]
		if !ok {
			return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", gid)}
		}
		switch task.Status {
		case "complete", "error", "removed":
			delete(f.tasks, gid)
			return "OK", nil
		default:
			return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("Active Download not removed. GID#%s", gid)}
		}

	case "aria2.getFiles":
		gid, _ := params[0].(string)
		task, ok := f.tasks[gid]
		if !ok {
			return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", gid)}
		}
		return filePayloads(task), nil

	case "aria2.pauseAll", "aria2.unpauseAll", "aria2.saveSession",
		"aria2.shutdown", "aria2.forceShutdown":
		return "OK", nil

	default:
		return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("No such method: %s", method)}
	}
}

func (f *FakeAria2) setStatusLocked(params []any, status string) (any, *fakeRPCError) {
	gid, _ := params[0].(string)
	task, ok := f.tasks[gid]
	if !ok {
		return nil, &fakeRPCError{Code: 1, Message: fmt.Sprintf("GID %s is not found", gid)}
	}
	task.Status = status
	return gid, nil
}

func (f *FakeAria2) tasksWithStatusLocked(statuses ...string) []any {
	want := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		want[status] = struct{}{}
	}
	payloads := make([]any, 0)
	for _, gid := range f.order {
		task, ok := f.tasks[gid]
		if !ok {
			continue
		}
		if _, match := want[task.Status]; match {
			payloads = append(payloads, taskPayload(task))
		}
	}
	return payloads
}

func (f *FakeAria2) globalStatLocked() map[string]any {
	var active, waiting, stopped int
	var speed int64
	for _, task := range f.tasks {
		switch task.Status {
		case "active":
			active++
			speed += task.DownloadSpeed
		case "waiting", "paused":
			waiting++
		default:
			stopped++
		}
	}
	return map[string]any{
		"downloadSpeed":   fmt.Sprintf("%d", speed),
		"uploadSpeed":     "0",
		"numActive":       fmt.Sprintf("%d", active),
		"numWaiting":      fmt.Sprintf("%d", waiting),
		"numStopped":      fmt.Sprintf("%d", stopped),
		"numStoppedTotal": fmt.Sprintf("%d", stopped),
	}
}

func taskPayload(task *FakeTask) map[string]any {
	payload := map[string]any{
		"gid":             task.GID,
		"status":          task.Status,
		"totalLength":     fmt.Sprintf("%d", task.TotalLength),
		"completedLength": fmt.Sprintf("%d", task.CompletedLength),
		"uploadLength":    "0",
		"downloadSpeed":   fmt.Sprintf("%d", task.DownloadSpeed),
		"uploadSpeed":     "0",
		"connections":     "1",
		"dir":             task.Dir,
		"files":           filePayloads(task),
	}
	if task.ErrorCode != 0 {
		payload["errorCode"] = fmt.Sprintf("%d", task.ErrorCode)
		payload["errorMessage"] = task.ErrorMessage
	}
	return payload
}

func filePayloads(task *FakeTask) []any {
	files := make([]any, 0, len(task.Files))
	for i, path := range task.Files {
		files = append(files, map[string]any{
			"index":           fmt.Sprintf("%d", i+1),
			"path":            path,
			"length":          fmt.Sprintf("%d", task.TotalLength),
			"completedLength": fmt.Sprintf("%d", task.CompletedLength),
			"selected":        "true",
			"uris":            []any{},
		})
	}
	return files
}
