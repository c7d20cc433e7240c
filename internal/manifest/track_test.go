package manifest

import (
	"testing"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
)

func newTestTrack(window *Rational, persisted bool) *Track {
	return NewTrack(TrackConfig{
		ManifestName:      "stream1",
		ID:                "video-0",
		ContentType:       ContentTypeVideo,
		InitExtension:     "mp4",
		FragmentExtension: "m4s",
		TargetWindowDuration: window,
		Persisted:            persisted,
	})
}

func TestNewTrackHeaderName(t *testing.T) {
	tr := newTestTrack(nil, false)
	if got, want := tr.HeaderName(), "stream1_video-0_header.mp4"; got != want {
		t.Fatalf("HeaderName() = %q, want %q", got, want)
	}
}

func TestAddChunkAssignsSequentialNamesAndSeqNums(t *testing.T) {
	tr := newTestTrack(nil, false)

	for i := 0; i < 3; i++ {
		cs, err := tr.AddChunk(NewFragment([]byte("x"), NewRational(2, 1)))
		if err != nil {
			t.Fatalf("AddChunk #%d: unexpected error: %v", i, err)
		}
		if len(cs.ToAdd) != 1 {
			t.Fatalf("AddChunk #%d: expected exactly one added segment, got %d", i, len(cs.ToAdd))
		}
		seg := cs.ToAdd[0]
		if seg.SeqNum != uint64(i) {
			t.Fatalf("AddChunk #%d: SeqNum = %d, want %d", i, seg.SeqNum, i)
		}
	}

	if got, want := tr.MediaSequence(), uint64(0); got != want {
		t.Fatalf("MediaSequence() = %d, want %d (unbounded track never evicts)", got, want)
	}
	if got := len(tr.Segments()); got != 3 {
		t.Fatalf("len(Segments()) = %d, want 3", got)
	}
}

// media_sequence + |segments| == current_seq_num must hold after every
// mutation, bounded or not (spec §8 universal invariant).
func TestMediaSequenceInvariantHoldsAcrossEviction(t *testing.T) {
	window := NewRational(5, 1)
	tr := newTestTrack(&window, false)

	var lastSeqNum uint64
	for i := 0; i < 10; i++ {
		cs, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1)))
		if err != nil {
			t.Fatalf("AddChunk #%d: %v", i, err)
		}
		lastSeqNum = uint64(i + 1)
		_ = cs

		if got, want := tr.MediaSequence()+uint64(len(tr.Segments())), lastSeqNum; got != want {
			t.Fatalf("after add #%d: media_sequence(%d)+len(segments)(%d) = %d, want current_seq_num %d",
				i, tr.MediaSequence(), len(tr.Segments()), got, want)
		}

		total := sumDurations(tr.Segments())
		if total.GreaterThan(window) {
			// allowed only if the head segment is incomplete; all fragments
			// here are Complete=true so this should never trip.
			t.Fatalf("after add #%d: window exceeded: total=%s > window=%s", i, total, window)
		}
	}
}

func TestAddChunkToRemoveCarriesEvictionsWhenNotPersisted(t *testing.T) {
	window := NewRational(3, 1)
	tr := newTestTrack(&window, false)

	var removedTotal int
	for i := 0; i < 5; i++ {
		cs, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1)))
		if err != nil {
			t.Fatalf("AddChunk #%d: %v", i, err)
		}
		removedTotal += len(cs.ToRemove)
	}
	if removedTotal == 0 {
		t.Fatalf("expected at least one eviction given window=3 and 2s fragments")
	}
	if got := len(tr.AllSegments()); got != 1 {
		t.Fatalf("AllSegments() len = %d, want 1 (non-persisted evictions are not retained as stale)", got)
	}
	// evicted segments are gone from AllSegments for a non-persisted track:
	// stale_segments stays empty, so AllSegments degenerates to live segments.
	if got := len(tr.Segments()); got >= 5 {
		t.Fatalf("expected eviction to shrink live window below 5, got %d", got)
	}
}

func TestEvictionRetainsStaleSegmentsWhenPersisted(t *testing.T) {
	window := NewRational(3, 1)
	tr := newTestTrack(&window, true)

	for i := 0; i < 5; i++ {
		if _, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1))); err != nil {
			t.Fatalf("AddChunk #%d: %v", i, err)
		}
	}

	if got := len(tr.AllSegments()); got != 5 {
		t.Fatalf("AllSegments() len = %d, want 5 (persisted track retains evicted as stale)", got)
	}
	if got := len(tr.Segments()); got >= 5 {
		t.Fatalf("expected live window to have shrunk, got %d live segments", got)
	}
}

func TestIncompleteHeadBlocksEviction(t *testing.T) {
	window := NewRational(1, 1)
	tr := newTestTrack(&window, false)

	incomplete := NewFragment(nil, NewRational(5, 1))
	incomplete.Complete = false
	if _, err := tr.AddChunk(incomplete); err != nil {
		t.Fatalf("AddChunk incomplete: %v", err)
	}

	cs, err := tr.AddChunk(NewFragment(nil, NewRational(1, 1)))
	if err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if len(cs.ToRemove) != 0 {
		t.Fatalf("expected no eviction while the head segment is incomplete, got %d removed", len(cs.ToRemove))
	}
	if len(tr.Segments()) != 2 {
		t.Fatalf("expected both segments to remain live, got %d", len(tr.Segments()))
	}
}

func TestDiscontinueEmitsNewHeaderOnNextAddChunk(t *testing.T) {
	tr := newTestTrack(nil, false)

	if _, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1))); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}
	if _, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1))); err != nil {
		t.Fatalf("AddChunk: %v", err)
	}

	newInit := []byte("new-init-segment")
	headerName, err := tr.Discontinue(newInit)
	if err != nil {
		t.Fatalf("Discontinue: %v", err)
	}
	if headerName == tr.HeaderName() {
		t.Fatalf("Discontinue should return a name distinct from the original header")
	}

	cs, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1)))
	if err != nil {
		t.Fatalf("AddChunk after discontinue: %v", err)
	}
	if cs.NewHeader == nil {
		t.Fatalf("expected changeset to carry the new header")
	}
	if cs.NewHeader.Name != headerName {
		t.Fatalf("NewHeader.Name = %q, want %q", cs.NewHeader.Name, headerName)
	}
	if string(cs.NewHeader.Bytes) != string(newInit) {
		t.Fatalf("NewHeader.Bytes mismatch")
	}
	if !cs.ToAdd[0].Discontinuous {
		t.Fatalf("expected the segment following a discontinuity to be marked Discontinuous")
	}
	if tr.HeaderName() != headerName {
		t.Fatalf("active HeaderName() should switch to the new header once emitted")
	}
}

func TestFinishRejectsFurtherMutation(t *testing.T) {
	tr := newTestTrack(nil, false)
	if _, err := tr.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !tr.IsFinished() {
		t.Fatalf("expected IsFinished() true after Finish")
	}

	if _, err := tr.AddChunk(NewFragment(nil, NewRational(1, 1))); !sinkerrors.IsTrackFinished(err) {
		t.Fatalf("expected TrackFinishedError from AddChunk after Finish, got %v", err)
	}
	if _, err := tr.Discontinue(nil); !sinkerrors.IsTrackFinished(err) {
		t.Fatalf("expected TrackFinishedError from Discontinue after Finish, got %v", err)
	}
	if _, err := tr.Finish(); !sinkerrors.IsTrackFinished(err) {
		t.Fatalf("expected TrackFinishedError from repeat Finish, got %v", err)
	}
}

func TestFromBeginningRequiresPersisted(t *testing.T) {
	tr := newTestTrack(nil, false)
	if err := tr.FromBeginning(); err != ErrNotPersisted {
		t.Fatalf("FromBeginning() on non-persisted track = %v, want ErrNotPersisted", err)
	}
}

// Restoring full history on a persisted, bounded track must make
// media_sequence settle back to zero (spec §8 persisted round-trip
// equivalence).
func TestFromBeginningRestoresFullHistoryAndZeroesMediaSequence(t *testing.T) {
	window := NewRational(3, 1)
	tr := newTestTrack(&window, true)

	const n = 6
	for i := 0; i < n; i++ {
		if _, err := tr.AddChunk(NewFragment(nil, NewRational(2, 1))); err != nil {
			t.Fatalf("AddChunk #%d: %v", i, err)
		}
	}
	if tr.MediaSequence() == 0 {
		t.Fatalf("expected a bounded track to have evicted at least once before FromBeginning")
	}

	if err := tr.FromBeginning(); err != nil {
		t.Fatalf("FromBeginning: %v", err)
	}
	if got := len(tr.Segments()); got != n {
		t.Fatalf("len(Segments()) after FromBeginning = %d, want %d", got, n)
	}
	if got := tr.MediaSequence(); got != 0 {
		t.Fatalf("MediaSequence() after FromBeginning = %d, want 0", got)
	}
	for i, seg := range tr.Segments() {
		if seg.SeqNum != uint64(i) {
			t.Fatalf("restored segment %d has SeqNum %d, want %d (presentation order)", i, seg.SeqNum, i)
		}
	}
}
