package storage

import (
	"context"
)

// ObjectFetcher defines the read side of object storage the application
// needs: fetching small configuration documents (the achievement catalog)
// by key.
type ObjectFetcher interface {
	// FetchObject downloads the object at key and returns its contents.
	FetchObject(ctx context.Context, key string) ([]byte, error)
}
