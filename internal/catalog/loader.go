package catalog

import (
	"context"
	"fmt"
	"os"

	"ivakdev/gymquest/internal/config"
	"ivakdev/gymquest/internal/storage"
)

// FileLoader reads the catalog from a local JSON file.
type FileLoader struct {
	Path string
}

func (l FileLoader) Fetch(_ context.Context) ([]byte, error) {
	return os.ReadFile(l.Path)
}

// ObjectLoader reads the catalog from an object store (S3 or compatible).
type ObjectLoader struct {
	Fetcher storage.ObjectFetcher
	Key     string
}

func (l ObjectLoader) Fetch(ctx context.Context) ([]byte, error) {
	return l.Fetcher.FetchObject(ctx, l.Key)
}

// LoaderFromConfig builds the loader named by the catalog configuration.
// The fetcher may be nil when the source is "file".
func LoaderFromConfig(cfg config.CatalogConfig, fetcher storage.ObjectFetcher) (Loader, error) {
	switch cfg.Source {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("catalog source is file but no path is configured")
		}
		return FileLoader{Path: cfg.Path}, nil
	case "s3":
		if fetcher == nil {
			return nil, fmt.Errorf("catalog source is s3 but no object storage is configured")
		}
		if cfg.Key == "" {
			return nil, fmt.Errorf("catalog source is s3 but no object key is configured")
		}
		return ObjectLoader{Fetcher: fetcher, Key: cfg.Key}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Source)
	}
}
