package backends_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"haul/internal/backends"
	"haul/internal/config"
)

func validSFTPConfig() config.SFTPBackend {
	return config.SFTPBackend{
		Host:     "seedhost.example",
		Port:     22,
		User:     "haul",
		Password: "secret",
	}
}

func TestSFTPValidate(t *testing.T) {
	if err := backends.NewSFTP(validSFTPConfig()).Validate(); err != nil {
		t.Fatalf("Validate with password auth: %v", err)
	}

	noHost := validSFTPConfig()
	noHost.Host = ""
	if err := backends.NewSFTP(noHost).Validate(); err == nil {
		t.Fatal("Validate should require a host")
	}

	noUser := validSFTPConfig()
	noUser.User = ""
	if err := backends.NewSFTP(noUser).Validate(); err == nil {
		t.Fatal("Validate should require a user")
	}

	noAuth := validSFTPConfig()
	noAuth.Password = ""
	if err := backends.NewSFTP(noAuth).Validate(); err == nil {
		t.Fatal("Validate should require some credential")
	}
}

func TestSFTPValidateParsesPrivateKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	cfg := validSFTPConfig()
	cfg.Password = ""
	cfg.PrivateKeyPath = keyPath
	if err := backends.NewSFTP(cfg).Validate(); err != nil {
		t.Fatalf("Validate with key auth: %v", err)
	}

	cfg.PrivateKeyPath = filepath.Join(t.TempDir(), "missing")
	if err := backends.NewSFTP(cfg).Validate(); err == nil {
		t.Fatal("Validate should reject an unreadable key")
	}

	garbled := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(garbled, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	cfg.PrivateKeyPath = garbled
	if err := backends.NewSFTP(cfg).Validate(); err == nil {
		t.Fatal("Validate should reject an unparsable key")
	}
}
