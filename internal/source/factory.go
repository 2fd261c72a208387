package source

import (
	"context"
	"fmt"
	"time"

	"hrsync/internal/awsclient"
	"hrsync/internal/config"
	"hrsync/internal/hrsync"
)

// NewSourceFromConfig creates a FileSource based on the source config type.
func NewSourceFromConfig(ctx context.Context, cfg config.SourceConfig, connectTimeout time.Duration) (hrsync.FileSource, error) {
	switch cfg.Type {
	case "sftp":
		s, err := NewSFTPSource(cfg, connectTimeout)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 source requires s3_bucket to be set")
		}
		client, err := awsclient.NewS3Client(ctx, awsclient.Options{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return NewS3Source(client, cfg.S3Bucket), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem source requires fs_root to be set")
		}
		s, err := NewFileSystemSource(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
