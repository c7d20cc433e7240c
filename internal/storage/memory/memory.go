// Package memory implements storage.Adapter over an in-process guarded map.
// Grounded on the teacher's internal/rtmp/server.Registry: sync.RWMutex over
// a map, snapshot-under-read-lock before any slower work. Used by the sink
// controller's own tests and by the reference binary for local demos.
package memory

import (
	"context"
	"sync"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
	"github.com/alxayo/hlssink/internal/storage"
)

// Adapter stores every blob in memory, keyed by name.
type Adapter struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	manifests map[string]string

	// failOps is consulted before each call; if the named operation is
	// present with a non-nil error, that error is returned instead of
	// performing the write, and the entry is removed so the following call
	// proceeds normally.
	failMu   sync.Mutex
	failOps  map[string]error
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{
		blobs:     make(map[string][]byte),
		manifests: make(map[string]string),
		failOps:   make(map[string]error),
	}
}

// FailNext arranges for the named operation ("store_init", "store_segment",
// "store_manifests", "remove_segments") to fail exactly once with err.
func (a *Adapter) FailNext(op string, err error) {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	a.failOps[op] = err
}

func (a *Adapter) takeFailure(op string) error {
	a.failMu.Lock()
	defer a.failMu.Unlock()
	err := a.failOps[op]
	delete(a.failOps, op)
	return err
}

// StoreInit implements storage.Adapter.
func (a *Adapter) StoreInit(ctx context.Context, name string, data []byte) error {
	if err := a.takeFailure("store_init"); err != nil {
		return sinkerrors.NewAdapterError("store_init", true, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := append([]byte(nil), data...)
	a.blobs[name] = cp
	return nil
}

// StoreSegment implements storage.Adapter.
func (a *Adapter) StoreSegment(ctx context.Context, name string, data []byte) error {
	if err := a.takeFailure("store_segment"); err != nil {
		return sinkerrors.NewAdapterError("store_segment", true, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := append([]byte(nil), data...)
	a.blobs[name] = cp
	return nil
}

// StoreManifests implements storage.Adapter.
func (a *Adapter) StoreManifests(ctx context.Context, docs []storage.TextBlob) error {
	if err := a.takeFailure("store_manifests"); err != nil {
		return sinkerrors.NewAdapterError("store_manifests", true, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, doc := range docs {
		a.manifests[doc.Name] = doc.Text
	}
	return nil
}

// RemoveSegments implements storage.Adapter. Removing an absent blob is not
// an error.
func (a *Adapter) RemoveSegments(ctx context.Context, names []string) error {
	if err := a.takeFailure("remove_segments"); err != nil {
		return sinkerrors.NewAdapterError("remove_segments", true, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		delete(a.blobs, name)
	}
	return nil
}

// Blob returns a copy of the named blob and whether it exists, for tests.
func (a *Adapter) Blob(name string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.blobs[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

// Manifest returns the stored text for name and whether it exists, for tests.
func (a *Adapter) Manifest(name string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	text, ok := a.manifests[name]
	return text, ok
}

// BlobCount returns the number of blobs currently stored, for tests.
func (a *Adapter) BlobCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}
