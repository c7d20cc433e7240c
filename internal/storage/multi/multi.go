// Package multi fans a storage.Adapter call out to N backend adapters
// concurrently, aggregating per-backend status. Grounded on the teacher's
// internal/rtmp/relay package (Destination/DestinationManager: parallel
// send with wg.Wait for ordering, per-backend metrics, status tracking) and
// on livepeer-catalyst-api/clients/manifest.go's use of
// github.com/cenkalti/backoff/v4 to retry a flaky remote call.
package multi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
	"github.com/alxayo/hlssink/internal/logger"
	"github.com/alxayo/hlssink/internal/storage"
)

// BackendStatus mirrors the teacher's DestinationStatus: a small enum
// tracking whether the last call to a backend succeeded.
type BackendStatus int

const (
	StatusUnknown BackendStatus = iota
	StatusOK
	StatusError
)

func (s BackendStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// BackendMetrics tracks per-backend call outcomes, mirroring the teacher's
// DestinationMetrics.
type BackendMetrics struct {
	Calls        uint64
	Failures     uint64
	LastError    error
	LastCallTime time.Time
}

type backend struct {
	name    string
	adapter storage.Adapter

	mu      sync.RWMutex
	status  BackendStatus
	metrics BackendMetrics
}

// Adapter fans out every storage.Adapter call to all registered backends in
// parallel, retrying each backend with an exponential backoff policy before
// giving up on it. A call fails overall only if every backend fails; the
// aggregate error wraps one representative per-backend AdapterError.
type Adapter struct {
	mu       sync.RWMutex
	backends map[string]*backend
	order    []string

	maxRetries uint64
}

// New creates a fan-out adapter. maxRetries bounds the retry attempts per
// backend per call (0 disables retrying, each backend gets exactly one try).
func New(maxRetries uint64) *Adapter {
	return &Adapter{
		backends:   make(map[string]*backend),
		maxRetries: maxRetries,
	}
}

// AddBackend registers a named backend adapter.
func (a *Adapter) AddBackend(name string, adapter storage.Adapter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.backends[name]; exists {
		return
	}
	a.backends[name] = &backend{name: name, adapter: adapter}
	a.order = append(a.order, name)
}

func (a *Adapter) snapshot() []*backend {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*backend, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.backends[name])
	}
	return out
}

func (a *Adapter) backOff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.maxRetries)
}

// call runs fn against every backend in parallel with retry, and returns an
// aggregate error only if every backend ultimately failed.
func (a *Adapter) call(op string, fn func(*backend) error) error {
	backends := a.snapshot()
	if len(backends) == 0 {
		return nil
	}

	errs := make([]error, len(backends))
	var wg sync.WaitGroup
	for i, b := range backends {
		wg.Add(1)
		go func(i int, b *backend) {
			defer wg.Done()
			err := backoff.Retry(func() error {
				callErr := fn(b)
				if callErr == nil {
					return nil
				}
				if retriable, ok := sinkerrors.IsAdapterError(callErr); ok && !retriable {
					return backoff.Permanent(callErr)
				}
				return callErr
			}, a.backOff())

			b.mu.Lock()
			b.metrics.Calls++
			b.metrics.LastCallTime = time.Now()
			if err != nil {
				b.status = StatusError
				b.metrics.Failures++
				b.metrics.LastError = err
				logger.Error("multi backend call failed", "backend", b.name, "op", op, "err", err)
			} else {
				b.status = StatusOK
				b.metrics.LastError = nil
			}
			b.mu.Unlock()
			errs[i] = err
		}(i, b)
	}
	wg.Wait() // synchronous fan-out so callers see a consistent outcome

	var failed []string
	var last error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, backends[i].name)
			last = err
		}
	}
	if len(failed) == len(backends) {
		return sinkerrors.NewAdapterError(op, true, fmt.Errorf("all %d backends failed, last error from %s: %w", len(backends), failed[len(failed)-1], last))
	}
	return nil
}

// StoreInit implements storage.Adapter.
func (a *Adapter) StoreInit(ctx context.Context, name string, data []byte) error {
	return a.call("store_init", func(b *backend) error { return b.adapter.StoreInit(ctx, name, data) })
}

// StoreSegment implements storage.Adapter.
func (a *Adapter) StoreSegment(ctx context.Context, name string, data []byte) error {
	return a.call("store_segment", func(b *backend) error { return b.adapter.StoreSegment(ctx, name, data) })
}

// StoreManifests implements storage.Adapter.
func (a *Adapter) StoreManifests(ctx context.Context, docs []storage.TextBlob) error {
	return a.call("store_manifests", func(b *backend) error { return b.adapter.StoreManifests(ctx, docs) })
}

// RemoveSegments implements storage.Adapter.
func (a *Adapter) RemoveSegments(ctx context.Context, names []string) error {
	return a.call("remove_segments", func(b *backend) error { return b.adapter.RemoveSegments(ctx, names) })
}

// Status returns a snapshot of every backend's last-call status.
func (a *Adapter) Status() map[string]BackendStatus {
	backends := a.snapshot()
	out := make(map[string]BackendStatus, len(backends))
	for _, b := range backends {
		b.mu.RLock()
		out[b.name] = b.status
		b.mu.RUnlock()
	}
	return out
}

// Metrics returns a snapshot of every backend's call metrics.
func (a *Adapter) Metrics() map[string]BackendMetrics {
	backends := a.snapshot()
	out := make(map[string]BackendMetrics, len(backends))
	for _, b := range backends {
		b.mu.RLock()
		out[b.name] = b.metrics
		b.mu.RUnlock()
	}
	return out
}
