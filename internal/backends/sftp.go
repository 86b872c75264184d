package backends

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"haul/internal/config"
	"haul/internal/upload"
)

const (
	sftpName        = "sftp"
	sftpDialTimeout = 30 * time.Second
)

// SFTP uploads finished downloads to a remote host over SSH. Each attempt
// dials a fresh connection; there is no pooling, uploads are rare enough
// that the handshake cost does not matter.
type SFTP struct {
	cfg config.SFTPBackend
}

// NewSFTP builds the SFTP backend.
func NewSFTP(cfg config.SFTPBackend) *SFTP {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &SFTP{cfg: cfg}
}

func (b *SFTP) Name() string { return sftpName }

// Validate checks the connection settings, including that the private key
// file, when configured, exists and parses.
func (b *SFTP) Validate() error {
	if strings.TrimSpace(b.cfg.Host) == "" {
		return errors.New("sftp backend requires host")
	}
	if strings.TrimSpace(b.cfg.User) == "" {
		return errors.New("sftp backend requires user")
	}
	if _, err := b.authMethods(); err != nil {
		return err
	}
	return nil
}

func (b *SFTP) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if b.cfg.PrivateKeyPath != "" {
		keyData, err := os.ReadFile(b.cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key %s: %w", b.cfg.PrivateKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %w", b.cfg.PrivateKeyPath, err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if b.cfg.Password != "" {
		methods = append(methods, ssh.Password(b.cfg.Password))
	}

	if len(methods) == 0 {
		return nil, errors.New("sftp backend requires password or private_key_path")
	}
	return methods, nil
}

// Upload writes each file to remote_dir/<gid>/ and verifies the byte count.
func (b *SFTP) Upload(ctx context.Context, files []string, meta upload.Meta) error {
	methods, err := b.authMethods()
	if err != nil {
		return upload.Permanent(sftpName, err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            b.cfg.User,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sftpDialTimeout,
	}
	addr := fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port)
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return upload.Transient(sftpName, fmt.Errorf("dial %s: %w", addr, err))
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return upload.Transient(sftpName, fmt.Errorf("open sftp session: %w", err))
	}
	defer client.Close()

	remoteDir := path.Join(b.cfg.RemoteDir, meta.GID)
	if err := client.MkdirAll(remoteDir); err != nil {
		return upload.Transient(sftpName, fmt.Errorf("mkdir %s: %w", remoteDir, err))
	}

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := putSFTPFile(client, src, remoteDir); err != nil {
			return err
		}
	}
	return nil
}

func putSFTPFile(client *sftp.Client, src, remoteDir string) error {
	local, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return upload.Permanent(sftpName, fmt.Errorf("source %s is gone: %w", src, err))
		}
		return upload.Transient(sftpName, fmt.Errorf("open %s: %w", src, err))
	}
	defer local.Close()

	stat, err := local.Stat()
	if err != nil {
		return upload.Transient(sftpName, fmt.Errorf("stat %s: %w", src, err))
	}

	remotePath := path.Join(remoteDir, filepath.Base(src))
	remote, err := client.Create(remotePath)
	if err != nil {
		return upload.Transient(sftpName, fmt.Errorf("create %s: %w", remotePath, err))
	}

	written, err := remote.ReadFrom(local)
	if err != nil {
		remote.Close()
		return upload.Transient(sftpName, fmt.Errorf("write %s: %w", remotePath, err))
	}
	if err := remote.Close(); err != nil {
		return upload.Transient(sftpName, fmt.Errorf("close %s: %w", remotePath, err))
	}
	if written != stat.Size() {
		return upload.Transient(sftpName, fmt.Errorf("upload of %s incomplete: expected %d bytes, wrote %d", remotePath, stat.Size(), written))
	}
	return nil
}
