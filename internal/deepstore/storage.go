// Package deepstore fetches physical segment data from the deep
// storage named by a descriptor's load spec. Implementations cover S3
// and the local filesystem; the load spec's kind field selects one.
package deepstore

import (
	"context"
	"errors"
	"fmt"
)

// Common errors for fetch operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrFetchFailed    = errors.New("fetch failed")
)

// Store abstracts read access to one deep storage backend.
type Store interface {
	// Fetch downloads an object to the local filesystem.
	// objectPath is the path within the store; localPath the
	// destination file.
	Fetch(ctx context.Context, objectPath, localPath string) error

	// Exists checks whether an object is present.
	Exists(ctx context.Context, objectPath string) (bool, error)
}

// ForLoadSpec builds the store addressed by a segment load spec and
// returns it with the object path to fetch. The kind set is closed:
// s3 and local.
func ForLoadSpec(ctx context.Context, loadSpec map[string]interface{}) (Store, string, error) {
	kind, _ := loadSpec["type"].(string)
	switch kind {
	case "s3":
		bucket, _ := loadSpec["bucket"].(string)
		key, _ := loadSpec["key"].(string)
		if bucket == "" || key == "" {
			return nil, "", fmt.Errorf("deepstore: s3 load spec requires bucket and key, got %v", loadSpec)
		}
		region, _ := loadSpec["region"].(string)
		endpoint, _ := loadSpec["endpoint"].(string)
		store, err := NewS3Store(ctx, bucket, S3Options{Region: region, Endpoint: endpoint})
		if err != nil {
			return nil, "", err
		}
		return store, key, nil
	case "local":
		path, _ := loadSpec["path"].(string)
		if path == "" {
			return nil, "", fmt.Errorf("deepstore: local load spec requires path, got %v", loadSpec)
		}
		return NewLocalStore(), path, nil
	default:
		return nil, "", fmt.Errorf("deepstore: unrecognized load spec kind %q", kind)
	}
}
