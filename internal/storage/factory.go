package storage

import (
	"context"
	"fmt"

	"github.com/jaki95/feedback-importer/config"
)

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalFileStorage(cfg.OutputDir)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("gcs storage requires a bucket")
		}
		return NewGCSStorage(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
