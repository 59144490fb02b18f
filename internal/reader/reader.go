// Package reader materializes the physical data behind a read task:
// it fetches the segment object from deep storage into a working
// directory and decompresses it when the load spec says the payload
// is compressed. The planner never touches this package; it exists
// for workers executing emitted tasks.
package reader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/tessera-io/tessera/internal/deepstore"
	cerr "github.com/tessera-io/tessera/internal/errors"
	"github.com/tessera-io/tessera/internal/planner"
	"github.com/tessera-io/tessera/internal/segment"
)

// LocalSegment is a segment fetched onto the local filesystem, ready
// to be scanned. Close removes the local copy.
type LocalSegment struct {
	// Descriptor describes the fetched segment.
	Descriptor segment.Descriptor

	// Path is the local file holding the (decompressed) segment data.
	Path string
}

// Close removes the local copy. Safe to call more than once.
func (ls *LocalSegment) Close() error {
	if ls.Path == "" {
		return nil
	}
	err := os.Remove(ls.Path)
	ls.Path = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reader: remove local segment: %w", err)
	}
	return nil
}

// Fetcher downloads task segments into a working directory.
type Fetcher struct {
	workDir string
}

// NewFetcher creates a Fetcher rooted at workDir, creating the
// directory if needed.
func NewFetcher(workDir string) (*Fetcher, error) {
	if workDir == "" {
		return nil, fmt.Errorf("reader: work directory is required")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("reader: create work directory: %w", err)
	}
	return &Fetcher{workDir: workDir}, nil
}

// Fetch downloads the segment behind a task and returns its local
// form. The destination file is named after the task ID so parallel
// workers sharing a directory never collide on distinct tasks.
func (f *Fetcher) Fetch(ctx context.Context, task planner.ReadTask) (*LocalSegment, error) {
	store, objectPath, err := deepstore.ForLoadSpec(ctx, task.Segment.LoadSpec)
	if err != nil {
		return nil, err
	}

	localPath := filepath.Join(f.workDir, task.ID+".seg")
	if err := store.Fetch(ctx, objectPath, localPath); err != nil {
		code := cerr.CodeFetchFailed
		if errors.Is(err, deepstore.ErrObjectNotFound) {
			code = cerr.CodeObjectNotFound
		}
		return nil, cerr.NewStorageError(code,
			fmt.Sprintf("segment %s: fetch %s", task.Segment.ID, objectPath), err)
	}

	if compressed(task.Segment.LoadSpec) {
		if err := decompressFile(localPath); err != nil {
			os.Remove(localPath)
			return nil, cerr.NewStorageError(cerr.CodeFetchFailed,
				fmt.Sprintf("segment %s: decompress", task.Segment.ID), err)
		}
	}

	log.Printf("reader: fetched segment %s to %s", task.Segment.ID, localPath)
	return &LocalSegment{Descriptor: task.Segment, Path: localPath}, nil
}

// compressed reports whether the load spec marks the object as a
// snappy-compressed payload.
func compressed(loadSpec map[string]interface{}) bool {
	enc, _ := loadSpec["compression"].(string)
	return enc == "snappy"
}

// decompressFile replaces the file's contents with their snappy
// decoding.
func decompressFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decoded, err := snappy.Decode(nil, raw)
	if err != nil {
		return fmt.Errorf("snappy decompress failed: %w", err)
	}
	return os.WriteFile(path, decoded, 0644)
}
