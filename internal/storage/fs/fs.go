// Package fs implements storage.Adapter over a plain filesystem directory.
// Grounded on the teacher's internal/rtmp/media.Recorder: os.Create for new
// blobs, a guarding mutex, and error wrapping with %w. Unlike the teacher's
// recorder, a write failure here never disables the adapter — spec §4.1
// requires adapter state to survive an error so a later call with fresh
// inputs is still accepted.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
	"github.com/alxayo/hlssink/internal/logger"
	"github.com/alxayo/hlssink/internal/storage"
)

// Adapter writes blobs as plain files under Dir.
type Adapter struct {
	mu  sync.Mutex
	dir string
}

// New creates an Adapter rooted at dir, creating the directory if absent.
func New(dir string) (*Adapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fs.New: %w", err)
	}
	return &Adapter{dir: dir}, nil
}

func (a *Adapter) path(name string) string {
	return filepath.Join(a.dir, filepath.Base(name))
}

func (a *Adapter) writeFile(op, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.WriteFile(a.path(name), data, 0o644); err != nil {
		logger.Error("fs adapter write failed", "op", op, "name", name, "err", err)
		return sinkerrors.NewAdapterError(op, true, fmt.Errorf("write %s: %w", name, err))
	}
	return nil
}

// StoreInit implements storage.Adapter.
func (a *Adapter) StoreInit(ctx context.Context, name string, data []byte) error {
	return a.writeFile("store_init", name, data)
}

// StoreSegment implements storage.Adapter.
func (a *Adapter) StoreSegment(ctx context.Context, name string, data []byte) error {
	return a.writeFile("store_segment", name, data)
}

// StoreManifests writes every document, temp-file-then-rename so a reader
// never observes a half-written manifest.
func (a *Adapter) StoreManifests(ctx context.Context, docs []storage.TextBlob) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, doc := range docs {
		final := a.path(doc.Name)
		tmp := final + ".tmp"
		if err := os.WriteFile(tmp, []byte(doc.Text), 0o644); err != nil {
			logger.Error("fs adapter manifest write failed", "name", doc.Name, "err", err)
			return sinkerrors.NewAdapterError("store_manifests", true, fmt.Errorf("write %s: %w", doc.Name, err))
		}
		if err := os.Rename(tmp, final); err != nil {
			logger.Error("fs adapter manifest rename failed", "name", doc.Name, "err", err)
			return sinkerrors.NewAdapterError("store_manifests", true, fmt.Errorf("rename %s: %w", doc.Name, err))
		}
	}
	return nil
}

// RemoveSegments implements storage.Adapter. A missing file is not an error.
func (a *Adapter) RemoveSegments(ctx context.Context, names []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, name := range names {
		if err := os.Remove(a.path(name)); err != nil && !os.IsNotExist(err) {
			logger.Error("fs adapter remove failed", "name", name, "err", err)
			return sinkerrors.NewAdapterError("remove_segments", true, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return nil
}
