package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"haul/internal/config"
	"haul/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.DownloadComplete(context.Background(), "example.iso", 1024); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(context.Context, notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "download complete",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.DownloadComplete(ctx, "ubuntu-24.04.iso", 3*1024*1024*1024)
			},
			expectTitle:   "Haul - Download Complete",
			expectMessage: "⬇️ Download complete: ubuntu-24.04.iso (3.0 GiB)",
			expectTags:    "haul,download,completed",
		},
		{
			name: "download complete without size",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.DownloadComplete(ctx, "metadata.torrent", 0)
			},
			expectTitle:   "Haul - Download Complete",
			expectMessage: "⬇️ Download complete: metadata.torrent",
			expectTags:    "haul,download,completed",
		},
		{
			name: "download error",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.DownloadError(ctx, "movie.mkv", "resource was not found")
			},
			expectTitle:    "Haul - Download Failed",
			expectMessage:  "❌ Download failed: movie.mkv: resource was not found",
			expectTags:     "haul,download,error",
			expectPriority: "high",
		},
		{
			name: "download abandoned",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.DownloadAbandoned(ctx, "ghost.bin")
			},
			expectTitle:   "Haul - Download Stalled",
			expectMessage: "Download disappeared before finishing: ghost.bin",
			expectTags:    "haul,download,abandoned",
		},
		{
			name: "upload complete",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.UploadComplete(ctx, "movie.mkv", "s3")
			},
			expectTitle:   "Haul - Upload Complete",
			expectMessage: "⬆️ Uploaded to s3: movie.mkv",
			expectTags:    "haul,upload,completed",
		},
		{
			name: "upload failed singular attempt",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.UploadFailed(ctx, "movie.mkv", "sftp", 1, errors.New("permission denied"))
			},
			expectTitle:    "Haul - Upload Failed",
			expectMessage:  "❌ Upload of movie.mkv to sftp failed after 1 attempt: permission denied",
			expectTags:     "haul,upload,failed",
			expectPriority: "high",
		},
		{
			name: "upload failed plural attempts",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.UploadFailed(ctx, "movie.mkv", "s3", 5, errors.New("destination offline"))
			},
			expectTitle:    "Haul - Upload Failed",
			expectMessage:  "❌ Upload of movie.mkv to s3 failed after 5 attempts: destination offline",
			expectTags:     "haul,upload,failed",
			expectPriority: "high",
		},
		{
			name: "service event",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.ServiceEvent(ctx, "started")
			},
			expectTitle:   "Haul - Service",
			expectMessage: "aria2 service started",
			expectTags:    "haul,service",
		},
		{
			name: "alert",
			send: func(ctx context.Context, svc notifications.Service) error {
				return svc.Alert(ctx, errors.New("db locked"), "ledger")
			},
			expectTitle:    "Haul - Error",
			expectMessage:  "❌ Error with ledger: db locked",
			expectTags:     "haul,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(context.Background(), svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestCategoryTogglesSuppress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed category: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Downloads = false
	cfg.Notifications.Uploads = false
	cfg.Notifications.Service = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.DownloadComplete(ctx, "a", 1); err != nil {
		t.Fatalf("DownloadComplete: %v", err)
	}
	if err := svc.DownloadError(ctx, "a", "boom"); err != nil {
		t.Fatalf("DownloadError: %v", err)
	}
	if err := svc.UploadComplete(ctx, "a", "s3"); err != nil {
		t.Fatalf("UploadComplete: %v", err)
	}
	if err := svc.ServiceEvent(ctx, "started"); err != nil {
		t.Fatalf("ServiceEvent: %v", err)
	}
	if err := svc.Alert(ctx, errors.New("boom"), ""); err != nil {
		t.Fatalf("Alert: %v", err)
	}
}

func TestTestNotificationBypassesToggles(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if got := r.Header.Get("Title"); got != "Haul - Test" {
			t.Errorf("title = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Downloads = false
	cfg.Notifications.Uploads = false
	cfg.Notifications.Service = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if hits != 1 {
		t.Fatalf("server hit %d times, want 1", hits)
	}
}

func TestEndpointJoinsServerAndTopic(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyServer = server.URL + "/"
	cfg.Notifications.NtfyTopic = "haul-alerts"

	svc := notifications.NewService(&cfg)
	if err := svc.ServiceEvent(context.Background(), "started"); err != nil {
		t.Fatalf("ServiceEvent: %v", err)
	}
	if path != "/haul-alerts" {
		t.Fatalf("request path = %q, want /haul-alerts", path)
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.ServiceEvent(context.Background(), "started"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
