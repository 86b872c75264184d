package aria2

import (
	"path/filepath"
	"time"
)

// Download statuses reported by aria2.
const (
	StatusActive   = "active"
	StatusWaiting  = "waiting"
	StatusPaused   = "paused"
	StatusError    = "error"
	StatusComplete = "complete"
	StatusRemoved  = "removed"
)

// Task is the subset of aria2's download status the daemon consumes. aria2
// serializes every numeric field as a JSON string; the ,string tags convert
// them on decode.
type Task struct {
	GID             string       `json:"gid"`
	Status          string       `json:"status"`
	TotalLength     int64        `json:"totalLength,string"`
	CompletedLength int64        `json:"completedLength,string"`
	UploadLength    int64        `json:"uploadLength,string"`
	DownloadSpeed   int64        `json:"downloadSpeed,string"`
	UploadSpeed     int64        `json:"uploadSpeed,string"`
	Connections     int          `json:"connections,string"`
	ErrorCode       int          `json:"errorCode,string"`
	ErrorMessage    string       `json:"errorMessage"`
	Dir             string       `json:"dir"`
	InfoHash        string       `json:"infoHash"`
	FollowedBy      []string     `json:"followedBy"`
	Following       string       `json:"following"`
	Files           []File       `json:"files"`
	BitTorrent      *TorrentInfo `json:"bittorrent"`
}

// File describes one entry of a download payload.
type File struct {
	Index           int    `json:"index,string"`
	Path            string `json:"path"`
	Length          int64  `json:"length,string"`
	CompletedLength int64  `json:"completedLength,string"`
	Selected        string `json:"selected"`
	URIs            []URI  `json:"uris"`
}

// IsSelected reports whether aria2 is configured to fetch this file.
func (f File) IsSelected() bool {
	return f.Selected == "true"
}

// URI is a source address attached to a file entry.
type URI struct {
	URI    string `json:"uri"`
	Status string `json:"status"`
}

// TorrentInfo carries torrent metadata when the download is a torrent.
type TorrentInfo struct {
	Mode string `json:"mode"`
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
}

// GlobalStat summarizes daemon-wide transfer state.
type GlobalStat struct {
	DownloadSpeed   int64 `json:"downloadSpeed,string"`
	UploadSpeed     int64 `json:"uploadSpeed,string"`
	NumActive       int   `json:"numActive,string"`
	NumWaiting      int   `json:"numWaiting,string"`
	NumStopped      int   `json:"numStopped,string"`
	NumStoppedTotal int   `json:"numStoppedTotal,string"`
}

// VersionInfo is the aria2.getVersion payload.
type VersionInfo struct {
	Version         string   `json:"version"`
	EnabledFeatures []string `json:"enabledFeatures"`
}

// Name returns the best raw name for the task: torrent metadata, first file
// path, first URI, or the gid as a last resort.
func (t Task) Name() string {
	if t.BitTorrent != nil && t.BitTorrent.Info.Name != "" {
		return t.BitTorrent.Info.Name
	}
	for _, file := range t.Files {
		if file.Path != "" {
			return filepath.Base(file.Path)
		}
		for _, uri := range file.URIs {
			if uri.URI != "" {
				return filepath.Base(uri.URI)
			}
		}
	}
	return t.GID
}

// ProgressPercent returns completion as 0-100, or -1 when the total size is
// unknown (magnet links before metadata arrives).
func (t Task) ProgressPercent() float64 {
	if t.TotalLength <= 0 {
		return -1
	}
	percent := float64(t.CompletedLength) / float64(t.TotalLength) * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}

// ETA estimates remaining transfer time from the current speed. Zero means
// unknown or already complete.
func (t Task) ETA() time.Duration {
	if t.DownloadSpeed <= 0 || t.TotalLength <= 0 {
		return 0
	}
	remaining := t.TotalLength - t.CompletedLength
	if remaining <= 0 {
		return 0
	}
	return time.Duration(remaining/t.DownloadSpeed) * time.Second
}

// Finished reports whether the task reached a terminal state.
func (t Task) Finished() bool {
	switch t.Status {
	case StatusComplete, StatusError, StatusRemoved:
		return true
	default:
		return false
	}
}
