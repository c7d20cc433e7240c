package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/alxayo/hlssink/internal/logger"
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/notify"
	"github.com/alxayo/hlssink/internal/serialize"
	"github.com/alxayo/hlssink/internal/storage"
)

// Config parameterizes a Controller instance, per spec §4.5/§6.1.
type Config struct {
	ManifestName string
	// Windowed selects republish policy: true republishes the manifest after
	// every write (live, sliding window); false only republishes once, at
	// end_of_stream (complete on-demand VOD asset), per spec §4.5/§9.
	Windowed               bool
	TargetWindowDuration   *manifest.Rational
	TargetFragmentDuration manifest.Rational
	Persisted              bool

	Serializer serialize.Dialect
	Storage    storage.Adapter
	Notify     *notify.Manager
	Demander   Demander
}

// padRecord is the Controller's per-pad bookkeeping, mirroring the
// teacher's Registry entry-per-connection shape.
type padRecord struct {
	state    PadState
	trackID  string
	notified bool // true once stream_playable has fired for this track
}

// Controller drives one manifest's worth of pads through the state machine
// of spec §4.5. One Controller owns one manifest.Manifest; a pipeline with
// multiple sink instances runs multiple Controllers.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	man  *manifest.Manifest
	pads map[string]*padRecord
}

// NewController creates a Controller bound to a new, empty manifest named
// cfg.ManifestName.
func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:  cfg,
		man:  manifest.New(cfg.ManifestName),
		pads: make(map[string]*padRecord),
	}
}

// Manifest exposes the underlying manifest (read-only use expected; tests
// and diagnostics use this to inspect state).
func (c *Controller) Manifest() *manifest.Manifest { return c.man }

// PadState reports a pad's current state, StateAwaitingCaps if never seen.
func (c *Controller) PadState(padID string) PadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pads[padID]
	if !ok {
		return StateAwaitingCaps
	}
	return p.state
}

// OnCaps implements spec §4.5 step 1: register the track and durably write
// its initialization blob before accepting any data. The pad only advances
// to awaiting_start once both the registration and the storage write
// succeed; a storage failure leaves the pad in awaiting_caps. The track
// stays registered in the manifest in that case, so a repeated caps event
// for the same pad fails with DuplicateTrackError.
func (c *Controller) OnCaps(ctx context.Context, padID string, caps Caps) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pads[padID]; exists {
		return fmt.Errorf("sink: pad %q already has caps", padID)
	}

	t, err := c.man.AddTrack(manifest.TrackConfig{
		ID:                     padID,
		ContentType:            caps.ContentType,
		InitExtension:          caps.InitExtension,
		FragmentExtension:      caps.FragmentExtension,
		TargetFragmentDuration: c.cfg.TargetFragmentDuration,
		TargetWindowDuration:   c.cfg.TargetWindowDuration,
		Persisted:              c.cfg.Persisted,
	})
	if err != nil {
		return err
	}

	if err := c.cfg.Storage.StoreInit(ctx, t.HeaderName(), caps.Init); err != nil {
		logger.Error("sink: store_init failed, pad stays in awaiting_caps", "pad_id", padID, "err", err)
		return err
	}

	c.pads[padID] = &padRecord{state: StateAwaitingStart, trackID: padID}
	return nil
}

// OnStartOfStream implements spec §4.5 step 2: arm the to-notify flag for
// this track's first stream_playable, move to streaming, and issue the
// first unit of demand.
func (c *Controller) OnStartOfStream(padID string) error {
	c.mu.Lock()
	p, ok := c.pads[padID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("sink: pad %q has no caps yet", padID)
	}
	if p.state != StateAwaitingStart {
		c.mu.Unlock()
		return fmt.Errorf("sink: pad %q start_of_stream received in state %s", padID, p.state)
	}
	p.state = StateStreaming
	c.mu.Unlock()

	if c.cfg.Demander != nil {
		c.cfg.Demander.RequestBuffer(padID)
	}
	return nil
}

// OnWrite implements spec §4.5 step 3: append the buffer to its track,
// apply the resulting changeset to storage in order (new header, then
// segment, then removals, then a conditional manifest republish), emit
// stream_playable exactly once, and issue the next unit of demand only once
// every write has fully succeeded. Any storage failure halts demand and is
// returned to the caller without attempting further mutation (spec §4.1/§7:
// the core itself never retries).
func (c *Controller) OnWrite(ctx context.Context, padID string, buf Buffer) error {
	c.mu.Lock()
	p, ok := c.pads[padID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("sink: pad %q has no caps yet", padID)
	}
	if p.state != StateStreaming {
		c.mu.Unlock()
		return fmt.Errorf("sink: pad %q write received in state %s", padID, p.state)
	}
	c.mu.Unlock()

	cs, err := c.man.AddChunk(padID, manifest.Fragment{
		Payload:     buf.Payload,
		Duration:    buf.Duration,
		ByteSize:    int64(len(buf.Payload)),
		Independent: buf.Independent,
		Complete:    buf.Complete,
	})
	if err != nil {
		return err
	}

	if err := c.applyChangeset(ctx, cs, buf.Payload); err != nil {
		return err
	}

	if c.cfg.Windowed {
		if err := c.republish(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	firstNotify := !p.notified
	if firstNotify {
		p.notified = true
	}
	c.mu.Unlock()

	if firstNotify && c.cfg.Notify != nil {
		c.cfg.Notify.Emit(ctx, notify.NewEvent(notify.EventStreamPlayable, padID))
	}

	if c.cfg.Demander != nil {
		c.cfg.Demander.RequestBuffer(padID)
	}
	return nil
}

// OnDiscontinuity implements spec §4.5's discontinuity path: the caller
// supplies the new initialization payload (usually forwarded from a fresh
// caps event mid-stream), which is stored immediately and also threaded
// through Track.Discontinue so the next add_chunk's changeset carries it.
func (c *Controller) OnDiscontinuity(ctx context.Context, padID string, newInit []byte) error {
	name, err := c.man.DiscontinueTrack(padID, newInit)
	if err != nil {
		return err
	}
	return c.cfg.Storage.StoreInit(ctx, name, newInit)
}

// OnEndOfStream implements spec §4.5 step 4: finish the addressed track,
// unconditionally republish the manifest (regardless of Windowed: the
// terminal state always reflects ENDLIST durably), emit track_finished,
// and move the pad to ended.
func (c *Controller) OnEndOfStream(ctx context.Context, padID string) error {
	c.mu.Lock()
	p, ok := c.pads[padID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("sink: pad %q has no caps yet", padID)
	}
	c.mu.Unlock()

	if _, err := c.man.FinishTrack(padID); err != nil {
		return err
	}

	if err := c.republish(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	p.state = StateEnded
	c.mu.Unlock()

	if c.cfg.Notify != nil {
		c.cfg.Notify.Emit(ctx, notify.NewEvent(notify.EventTrackFinished, padID))
	}
	return nil
}

// applyChangeset writes a changeset's effects to storage in the order spec
// §4.1 requires: the new header (if any) before the segment it accompanies,
// then the segment itself, then the removal of any evicted segments.
// payload is the raw bytes of the single fragment add_chunk just appended
// (spec §4.2: add_chunk appends exactly one segment per call, so cs.ToAdd
// has exactly one element here).
func (c *Controller) applyChangeset(ctx context.Context, cs manifest.Changeset, payload []byte) error {
	if cs.NewHeader != nil {
		if err := c.cfg.Storage.StoreInit(ctx, cs.NewHeader.Name, cs.NewHeader.Bytes); err != nil {
			return err
		}
	}
	for _, seg := range cs.ToAdd {
		if err := c.cfg.Storage.StoreSegment(ctx, seg.Name, payload); err != nil {
			return err
		}
	}
	if len(cs.ToRemove) > 0 {
		names := make([]string, 0, len(cs.ToRemove))
		for _, seg := range cs.ToRemove {
			names = append(names, seg.Name)
		}
		if err := c.cfg.Storage.RemoveSegments(ctx, names); err != nil {
			return err
		}
	}
	return nil
}

// republish re-serializes the manifest with the configured Dialect and
// writes every resulting blob. Evicted segments are removed earlier, by
// applyChangeset. Grounded on spec §4.4.
func (c *Controller) republish(ctx context.Context) error {
	out, err := c.cfg.Serializer.Serialize(c.man)
	if err != nil {
		return err
	}
	return c.cfg.Storage.StoreManifests(ctx, out.Blobs())
}
