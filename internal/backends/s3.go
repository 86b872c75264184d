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
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"haul/internal/config"
	"haul/internal/upload"
)

const s3Name = "s3"

// S3 uploads finished downloads to an S3 bucket. Credentials come from the
// AWS SDK default chain; a custom endpoint plus path-style addressing
// covers S3-compatible providers such as MinIO and R2.
type S3 struct {
	cfg config.S3Backend

	mu     sync.Mutex
	client *s3.Client
}

// NewS3 builds the S3 backend. The client is dialed lazily on the first
// upload so construction never touches the network.
func NewS3(cfg config.S3Backend) *S3 {
	return &S3{cfg: cfg}
}

func (b *S3) Name() string { return s3Name }

// Validate checks the bucket is configured.
func (b *S3) Validate() error {
	if strings.TrimSpace(b.cfg.Bucket) == "" {
		return errors.New("s3 backend requires bucket")
	}
	return nil
}

// ObjectKey returns the bucket key for one file of a download:
// <prefix>/<gid>/<filename>.
func (b *S3) ObjectKey(gid, filename string) string {
	key := path.Join(gid, filename)
	if prefix := strings.Trim(b.cfg.Prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func (b *S3) connect(ctx context.Context) (*s3.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if b.cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(b.cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if b.cfg.Endpoint != "" {
		endpoint := b.cfg.Endpoint
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if b.cfg.PathStyle {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	b.client = s3.NewFromConfig(awsCfg, clientOpts...)
	return b.client, nil
}

// Upload puts each file at <prefix>/<gid>/<filename>. PutObject is
// idempotent, so a retry after a partial failure re-puts harmlessly.
func (b *S3) Upload(ctx context.Context, files []string, meta upload.Meta) error {
	client, err := b.connect(ctx)
	if err != nil {
		return upload.Transient(s3Name, err)
	}

	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.putFile(ctx, client, src, meta.GID); err != nil {
			return err
		}
	}
	return nil
}

func (b *S3) putFile(ctx context.Context, client *s3.Client, src, gid string) error {
	file, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return upload.Permanent(s3Name, fmt.Errorf("source %s is gone: %w", src, err))
		}
		return upload.Transient(s3Name, fmt.Errorf("open %s: %w", src, err))
	}
	defer file.Close()

	key := b.ObjectKey(gid, filepath.Base(src))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return upload.Transient(s3Name, fmt.Errorf("put s3://%s/%s: %w", b.cfg.Bucket, key, err))
	}
	return nil
}
