package backends_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"haul/internal/backends"
	"haul/internal/testsupport"
	"haul/internal/upload"
)

func TestLocalUploadCopiesIntoGIDDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocalBackend())
	backend := backends.NewLocal(cfg.Backends.Local)

	first := testsupport.WriteDownload(t, cfg.Paths.DownloadDir, "movie.mkv", 256)
	second := testsupport.WriteDownload(t, cfg.Paths.DownloadDir, "extras/sample.mkv", 64)

	err := backend.Upload(context.Background(), []string{first, second}, upload.Meta{GID: "gid1", Name: "movie"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	for _, name := range []string{"movie.mkv", "sample.mkv"} {
		archived := filepath.Join(cfg.Backends.Local.Dir, "gid1", name)
		if _, err := os.Stat(archived); err != nil {
			t.Fatalf("archived copy missing: %v", err)
		}
	}

	want := testsupport.MustReadFile(t, first)
	got := testsupport.MustReadFile(t, filepath.Join(cfg.Backends.Local.Dir, "gid1", "movie.mkv"))
	if !bytes.Equal(want, got) {
		t.Fatal("archived copy differs from source")
	}

	// The source must survive; deletion belongs to the coordinator.
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("source removed by upload: %v", err)
	}
}

func TestLocalUploadReRunOverwrites(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocalBackend())
	backend := backends.NewLocal(cfg.Backends.Local)

	src := testsupport.WriteDownload(t, cfg.Paths.DownloadDir, "a.bin", 32)
	meta := upload.Meta{GID: "gid2"}
	if err := backend.Upload(context.Background(), []string{src}, meta); err != nil {
		t.Fatalf("first Upload: %v", err)
	}
	if err := backend.Upload(context.Background(), []string{src}, meta); err != nil {
		t.Fatalf("second Upload: %v", err)
	}
}

func TestLocalUploadMissingSourceIsPermanent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocalBackend())
	backend := backends.NewLocal(cfg.Backends.Local)

	err := backend.Upload(context.Background(), []string{filepath.Join(cfg.Paths.DownloadDir, "nope.bin")}, upload.Meta{GID: "gid3"})
	if err == nil {
		t.Fatal("expected error for missing source")
	}
	if !upload.IsPermanent(err) {
		t.Fatalf("missing source should be permanent, got %v", err)
	}
}

func TestLocalValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLocalBackend())
	if err := backends.NewLocal(cfg.Backends.Local).Validate(); err != nil {
		t.Fatalf("Validate with dir set: %v", err)
	}

	unset := cfg.Backends.Local
	unset.Dir = ""
	if err := backends.NewLocal(unset).Validate(); err == nil {
		t.Fatal("Validate should reject an empty dir")
	}
}
