package manifest

import (
	"fmt"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
)

// Fragment is the buffer shape the sink controller hands to Track.AddChunk,
// corresponding to the upstream pad's buffer contract (spec §6.2).
type Fragment struct {
	Payload     []byte
	Duration    Rational
	ByteSize    int64
	Independent bool
	Complete    bool
}

// NewFragment builds a Fragment with the spec's documented defaults:
// independent? defaults to true, complete? defaults to true (callers doing
// LL-HLS style partial segments construct Fragment directly instead).
func NewFragment(payload []byte, duration Rational) Fragment {
	return Fragment{
		Payload:     payload,
		Duration:    duration,
		ByteSize:    int64(len(payload)),
		Independent: true,
		Complete:    true,
	}
}

// TrackConfig parameterizes Track creation, per spec §4.2 new(config).
type TrackConfig struct {
	ManifestName           string
	ID                     string
	ContentType            ContentType
	InitExtension          string
	FragmentExtension      string
	TargetFragmentDuration Rational
	// TargetWindowDuration is nil for the unbounded sentinel (spec §3).
	TargetWindowDuration *Rational
	Persisted            bool
}

// Track is the per-input-stream state of spec §3/§4.2.
type Track struct {
	id                string
	manifestName      string
	contentType       ContentType
	initExtension     string
	fragmentExtension string

	headerName string

	targetSegmentDuration Rational
	targetWindowDuration  *Rational

	segments      []Segment
	staleSegments []Segment
	currentSeqNum uint64

	persisted bool
	finished  bool

	discontinuityPending bool
	discontinuityCount   int
	pendingHeaderName    string
	pendingHeaderBytes   []byte
}

// NewTrack derives header_name as "<manifest>_<id>_header.<ext>" (spec §4.2;
// the scheme is free provided uniqueness across tracks in a manifest holds,
// which it does here because track ids are unique within a manifest).
func NewTrack(cfg TrackConfig) *Track {
	t := &Track{
		id:                    cfg.ID,
		manifestName:          cfg.ManifestName,
		contentType:           cfg.ContentType,
		initExtension:         cfg.InitExtension,
		fragmentExtension:     cfg.FragmentExtension,
		targetSegmentDuration: cfg.TargetFragmentDuration,
		targetWindowDuration:  cfg.TargetWindowDuration,
		persisted:             cfg.Persisted,
	}
	t.headerName = fmt.Sprintf("%s_%s_header.%s", t.manifestName, t.id, t.initExtension)
	return t
}

func (t *Track) ID() string                  { return t.id }
func (t *Track) ContentType() ContentType     { return t.contentType }
func (t *Track) HeaderName() string           { return t.headerName }
func (t *Track) IsFinished() bool             { return t.finished }
func (t *Track) IsPersisted() bool            { return t.persisted }
func (t *Track) Segments() []Segment          { return append([]Segment(nil), t.segments...) }
func (t *Track) TargetSegmentDuration() Rational {
	return t.targetSegmentDuration
}
func (t *Track) TargetWindowDuration() *Rational { return t.targetWindowDuration }

// MediaSequence returns current_seq_num - |segments|, always non-negative
// per the spec §3 invariant.
func (t *Track) MediaSequence() uint64 {
	return t.currentSeqNum - uint64(len(t.segments))
}

// AddChunk implements spec §4.2 add_chunk: assigns a segment name, appends
// the descriptor, updates target_segment_duration, resolves any pending
// discontinuity, then evicts from the head while the track is bounded.
func (t *Track) AddChunk(frag Fragment) (Changeset, error) {
	if t.finished {
		return Changeset{}, sinkerrors.NewTrackFinishedError(t.id, "add_chunk")
	}

	seg := Segment{
		Name:        fmt.Sprintf("%s_%s_segment_%d.%s", t.manifestName, t.id, t.currentSeqNum, t.fragmentExtension),
		SeqNum:      t.currentSeqNum,
		Duration:    frag.Duration,
		ByteSize:    frag.ByteSize,
		Independent: frag.Independent,
		Complete:    frag.Complete,
	}
	t.currentSeqNum++
	t.targetSegmentDuration = t.targetSegmentDuration.Max(frag.Duration)

	var cs Changeset
	if t.discontinuityPending {
		cs.NewHeader = &HeaderDescriptor{Name: t.pendingHeaderName, Bytes: t.pendingHeaderBytes}
		t.headerName = t.pendingHeaderName
		seg.Discontinuous = true
		t.discontinuityPending = false
		t.pendingHeaderName = ""
		t.pendingHeaderBytes = nil
	}

	t.segments = append(t.segments, seg)
	cs.ToAdd = append(cs.ToAdd, seg)

	if t.targetWindowDuration != nil {
		cs.ToRemove = t.evict(*t.targetWindowDuration)
	}

	return cs, nil
}

// evict removes segments from the head while the live window's total
// duration exceeds window, per spec §4.2. A segment with Complete=false at
// the head is never evicted; eviction stops there until it seals. Evicted
// segments move to stale_segments when the track is persisted, otherwise
// they are returned for storage removal.
func (t *Track) evict(window Rational) []Segment {
	var removed []Segment
	for len(t.segments) > 0 {
		if !sumDurations(t.segments).GreaterThan(window) {
			break
		}
		head := t.segments[0]
		if !head.Complete {
			break
		}
		t.segments = t.segments[1:]
		if t.persisted {
			t.staleSegments = append(t.staleSegments, head)
		} else {
			removed = append(removed, head)
		}
	}
	return removed
}

func sumDurations(segs []Segment) Rational {
	total := NewRational(0, 1)
	for _, s := range segs {
		total = total.Add(s.Duration)
	}
	return total
}

// Discontinue implements spec §4.2 discontinue: marks the next add_chunk to
// carry a fresh header. newInitBytes is the raw initialization payload for
// the new header, supplied by the caller (typically forwarded from a new
// caps event) so the sink controller can write it immediately via
// Storage.StoreInit, per "returns it so the caller can write the new init
// blob". The same name/bytes are also surfaced on the next AddChunk's
// Changeset.NewHeader so a replayed changeset is self-contained; storage
// writes are idempotent (spec §4.1), so the duplicate write is harmless.
func (t *Track) Discontinue(newInitBytes []byte) (string, error) {
	if t.finished {
		return "", sinkerrors.NewTrackFinishedError(t.id, "discontinue")
	}
	t.discontinuityCount++
	name := fmt.Sprintf("%s_%s_header_%d.%s", t.manifestName, t.id, t.discontinuityCount, t.initExtension)
	t.discontinuityPending = true
	t.pendingHeaderName = name
	t.pendingHeaderBytes = newInitBytes
	return name, nil
}

// Finish implements spec §4.2 finish: sets finished? and emits an empty
// changeset; subsequent serialization includes ENDLIST.
func (t *Track) Finish() (Changeset, error) {
	if t.finished {
		return Changeset{}, sinkerrors.NewTrackFinishedError(t.id, "finish")
	}
	t.finished = true
	return Changeset{}, nil
}

// ErrNotPersisted is returned by FromBeginning on a track that was not
// configured with Persisted=true.
var ErrNotPersisted = fmt.Errorf("track is not persisted: stale segments were not retained")

// FromBeginning implements spec §4.2 from_beginning: only valid for
// persisted tracks. Prepends stale_segments back onto segments in original
// order and clears stale_segments. current_seq_num is never mutated: since
// it already counts every segment ever appended, restoring the full history
// makes media_sequence = current_seq_num - |segments| settle at zero on its
// own once every segment is back in the live window.
func (t *Track) FromBeginning() error {
	if !t.persisted {
		return ErrNotPersisted
	}
	if len(t.staleSegments) == 0 {
		return nil
	}
	restored := make([]Segment, 0, len(t.staleSegments)+len(t.segments))
	restored = append(restored, t.staleSegments...)
	restored = append(restored, t.segments...)
	t.segments = restored
	t.staleSegments = nil
	return nil
}

// AllSegments returns the union of stale and live segment names in
// presentation (original appending) order, per spec §4.2 all_segments.
func (t *Track) AllSegments() []string {
	names := make([]string, 0, len(t.staleSegments)+len(t.segments))
	for _, s := range t.staleSegments {
		names = append(names, s.Name)
	}
	for _, s := range t.segments {
		names = append(names, s.Name)
	}
	return names
}
