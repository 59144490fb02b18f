package deepstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// LocalStore implements Store over the local filesystem. Object paths
// are absolute or working-directory-relative file paths, as written by
// a store configured with local deep storage. Primarily used for
// testing and single-node development.
type LocalStore struct{}

// NewLocalStore creates a local filesystem store.
func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

// Fetch copies the object file to localPath.
func (l *LocalStore) Fetch(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(objectPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return nil
}

// Exists checks whether the object file is present.
func (l *LocalStore) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := os.Stat(objectPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
