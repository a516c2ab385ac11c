package blobstore

import (
	"context"
	"fmt"
)

type Config struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open picks the backend named by cfg.Driver (fs, s3 or memory).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystemStore(cfg.FSRoot)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
