// Package ingest provides a synthetic per-track fragment source that drives
// internal/sink's Controller for the reference binary and integration
// tests. It is explicitly not a transcoder or muxer (Non-goals): it
// generates placeholder payloads on a fixed cadence rather than parsing any
// real media. Grounded on the teacher's internal/rtmp/media Subscriber /
// TrySendMessage non-blocking delivery idiom, inverted: there the stream
// pushes to many subscribers without blocking on a slow one; here a single
// demand channel pushes to one generator without blocking the controller
// that issued the demand.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alxayo/hlssink/internal/bufpool"
	"github.com/alxayo/hlssink/internal/logger"
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/sink"
)

// TrackSpec configures one synthetic track's generator.
type TrackSpec struct {
	PadID             string
	ContentType       manifest.ContentType
	InitExtension     string
	FragmentExtension string
	Init              []byte
	FragmentDuration  manifest.Rational
	PayloadSize       int
	// FragmentLimit caps how many fragments this track emits; 0 means run
	// until the context passed to Start is cancelled.
	FragmentLimit int
}

// Source owns one or more synthetic track generators and drives a
// *sink.Controller through the full pad lifecycle. It implements
// sink.Demander so the Controller's own demand signals pace generation.
type Source struct {
	ctrl *sink.Controller

	mu    sync.Mutex
	demandCh map[string]chan struct{}
	seq      map[string]*atomic.Int64
	limit    map[string]int
}

// NewSource creates a Source bound to ctrl. Call Start for each TrackSpec
// before the controller's OnStartOfStream fires demand.
func NewSource(ctrl *sink.Controller) *Source {
	return &Source{
		ctrl:     ctrl,
		demandCh: make(map[string]chan struct{}, 4),
		seq:      make(map[string]*atomic.Int64, 4),
		limit:    make(map[string]int, 4),
	}
}

// RequestBuffer implements sink.Demander: a non-blocking signal to the named
// pad's generator goroutine that it may produce its next fragment. Mirrors
// TrySendMessage: if the generator hasn't drained the previous signal yet
// (it should not still be outstanding in normal operation), the send is
// dropped rather than blocking the controller.
func (s *Source) RequestBuffer(padID string) {
	s.mu.Lock()
	ch, ok := s.demandCh[padID]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		logger.Debug("ingest: dropped demand signal, generator busy", "pad_id", padID)
	}
}

// Start registers spec's track with the controller (caps, start_of_stream)
// and launches its generator goroutine, which blocks on demand signals and
// calls OnWrite for each one until FragmentLimit is reached or ctx is
// cancelled, then calls OnEndOfStream.
func (s *Source) Start(ctx context.Context, spec TrackSpec) error {
	if err := s.ctrl.OnCaps(ctx, spec.PadID, sink.Caps{
		ContentType:       spec.ContentType,
		InitExtension:     spec.InitExtension,
		FragmentExtension: spec.FragmentExtension,
		Init:              spec.Init,
	}); err != nil {
		return fmt.Errorf("ingest: start %s: %w", spec.PadID, err)
	}

	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.demandCh[spec.PadID] = ch
	var counter atomic.Int64
	s.seq[spec.PadID] = &counter
	s.limit[spec.PadID] = spec.FragmentLimit
	s.mu.Unlock()

	if err := s.ctrl.OnStartOfStream(spec.PadID); err != nil {
		return fmt.Errorf("ingest: start_of_stream %s: %w", spec.PadID, err)
	}

	go s.run(ctx, spec, ch, &counter)
	return nil
}

func (s *Source) run(ctx context.Context, spec TrackSpec, ch chan struct{}, counter *atomic.Int64) {
	for {
		select {
		case <-ctx.Done():
			s.finish(context.Background(), spec.PadID)
			return
		case <-ch:
		}

		n := counter.Add(1)
		if spec.FragmentLimit > 0 && n > int64(spec.FragmentLimit) {
			s.finish(ctx, spec.PadID)
			return
		}

		payload := syntheticPayload(spec.PayloadSize, n)
		buf := sink.NewBuffer(payload, spec.FragmentDuration)
		err := s.ctrl.OnWrite(ctx, spec.PadID, buf)
		// Every storage.Adapter copies payload before returning (fs.WriteFile,
		// memory's explicit copy, azblob's synchronous upload), so the buffer
		// is safe to recycle once OnWrite has returned either way.
		bufpool.Put(payload)
		if err != nil {
			logger.Error("ingest: write failed, stopping generator", "pad_id", spec.PadID, "err", err)
			return
		}
	}
}

func (s *Source) finish(ctx context.Context, padID string) {
	if err := s.ctrl.OnEndOfStream(ctx, padID); err != nil {
		logger.Error("ingest: end_of_stream failed", "pad_id", padID, "err", err)
	}
}

// syntheticPayload builds a deterministic placeholder payload drawn from the
// shared buffer pool: its content carries no real media, only its size and
// sequence number matter to the manifest engine. Callers must bufpool.Put it
// back once done.
func syntheticPayload(size int, seq int64) []byte {
	if size <= 0 {
		size = 1
	}
	buf := bufpool.Get(size)
	marker := byte(seq % 251)
	for i := range buf {
		buf[i] = marker
	}
	return buf
}
