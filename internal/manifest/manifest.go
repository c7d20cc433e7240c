package manifest

import (
	"sync"

	"github.com/google/uuid"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
)

// Manifest coordinates the tracks belonging to one named stream (spec §4.3),
// mirroring the map-of-keyed-state pattern the teacher's server registry
// uses for live connections: a guarded map plus get-or-create accessors. The
// sink controller is the sole owner of a Manifest in the normal single
// goroutine deployment, but the mutex is kept so embedders that drive the
// controller from multiple goroutines (spec §5) don't get data races for
// free.
type Manifest struct {
	mu     sync.RWMutex
	name   string
	tracks map[string]*Track
	order  []string // track ids in AddTrack order, for stable serialization
}

// New creates an empty Manifest named name (the basename used to derive
// header/segment filenames and the master manifest name).
func New(name string) *Manifest {
	return &Manifest{
		name:   name,
		tracks: make(map[string]*Track),
	}
}

func (m *Manifest) Name() string { return m.name }

// AddTrack registers a new track under cfg.ID. If cfg.ID is empty, one is
// generated with uuid.NewString() and assigned before registration. Fails
// with DuplicateTrackError if the id is already registered (spec §4.3).
func (m *Manifest) AddTrack(cfg TrackConfig) (*Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	if _, exists := m.tracks[cfg.ID]; exists {
		return nil, sinkerrors.NewDuplicateTrackError(cfg.ID)
	}
	cfg.ManifestName = m.name
	t := NewTrack(cfg)
	m.tracks[cfg.ID] = t
	m.order = append(m.order, cfg.ID)
	return t, nil
}

// HasTrack reports whether trackID is registered.
func (m *Manifest) HasTrack(trackID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tracks[trackID]
	return ok
}

// Track returns the named track, or nil if it isn't registered.
func (m *Manifest) Track(trackID string) *Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracks[trackID]
}

// Tracks returns every registered track in AddTrack order.
func (m *Manifest) Tracks() []*Track {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Track, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tracks[id])
	}
	return out
}

// AddChunk forwards to the named track's AddChunk. Returns the error built
// by ErrUnknownTrack if trackID isn't registered.
func (m *Manifest) AddChunk(trackID string, frag Fragment) (Changeset, error) {
	m.mu.RLock()
	t, ok := m.tracks[trackID]
	m.mu.RUnlock()
	if !ok {
		return Changeset{}, ErrUnknownTrack(trackID)
	}
	return t.AddChunk(frag)
}

// DiscontinueTrack forwards to the named track's Discontinue.
func (m *Manifest) DiscontinueTrack(trackID string, newInitBytes []byte) (string, error) {
	m.mu.RLock()
	t, ok := m.tracks[trackID]
	m.mu.RUnlock()
	if !ok {
		return "", ErrUnknownTrack(trackID)
	}
	return t.Discontinue(newInitBytes)
}

// FinishTrack implements spec §4.3 finish(track_id): marks the addressed
// track finished and returns its (empty) changeset.
func (m *Manifest) FinishTrack(trackID string) (Changeset, error) {
	m.mu.RLock()
	t, ok := m.tracks[trackID]
	m.mu.RUnlock()
	if !ok {
		return Changeset{}, ErrUnknownTrack(trackID)
	}
	return t.Finish()
}

// Finish marks every registered track finished in one call: a convenience
// for whole-manifest teardown (e.g. the pipeline tearing down every pad at
// once), layered on top of the per-track finish(track_id) the spec defines.
// The returned map carries each track's (empty) changeset for callers that
// want to uniformly apply changesets across the batch.
func (m *Manifest) Finish() (map[string]Changeset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Changeset, len(m.tracks))
	for id, t := range m.tracks {
		cs, err := t.Finish()
		if err != nil && !sinkerrors.IsTrackFinished(err) {
			return nil, err
		}
		out[id] = cs
	}
	return out, nil
}

// IsPersisted reports whether every registered track was configured
// persisted (spec §4.3); a manifest with no tracks is vacuously persisted.
func (m *Manifest) IsPersisted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tracks {
		if !t.IsPersisted() {
			return false
		}
	}
	return true
}

// FromBeginning restores full history on every track, per spec §4.3.
func (m *Manifest) FromBeginning() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tracks {
		if err := t.FromBeginning(); err != nil {
			return err
		}
	}
	return nil
}

// AllSegmentsPerTrack returns AllSegments() for every track, keyed by id.
func (m *Manifest) AllSegmentsPerTrack() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.tracks))
	for id, t := range m.tracks {
		out[id] = t.AllSegments()
	}
	return out
}

// unknownTrackError is returned by Manifest methods given an unregistered
// track id. It is distinct from TrackFinishedError: the track was never
// there at all, rather than rejecting a mutation after finishing.
type unknownTrackError struct {
	TrackID string
}

func (e *unknownTrackError) Error() string {
	return "unknown track: " + e.TrackID
}

// ErrUnknownTrack builds the error Manifest methods return for an
// unregistered track id.
func ErrUnknownTrack(trackID string) error {
	return &unknownTrackError{TrackID: trackID}
}
