package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/notify"
	"github.com/alxayo/hlssink/internal/serialize"
	"github.com/alxayo/hlssink/internal/storage/memory"
)

// countingDemander records how many times each pad was asked for more data.
type countingDemander struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingDemander() *countingDemander {
	return &countingDemander{counts: make(map[string]int)}
}

func (d *countingDemander) RequestBuffer(padID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[padID]++
}

func (d *countingDemander) count(padID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[padID]
}

func secRational(n int64) manifest.Rational { return manifest.NewRational(n, 1) }

// recordingNotifier is a local test double; notify's own recordingNotifier
// (in its _test.go) is unexported and package-private, so this package
// keeps its own copy for asserting dispatch counts.
type recordingNotifier struct {
	id string

	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}
func (r *recordingNotifier) Type() string { return "recording" }
func (r *recordingNotifier) ID() string   { return r.id }

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestController(windowed bool, window *manifest.Rational, demander Demander) (*Controller, *memory.Adapter) {
	store := memory.New()
	cfg := Config{
		ManifestName:           "stream",
		Windowed:               windowed,
		TargetWindowDuration:   window,
		TargetFragmentDuration: secRational(4),
		Serializer:             serialize.NewHLS(),
		Storage:                store,
		Notify:                 notify.NewManager(notify.DefaultConfig()),
		Demander:               demander,
	}
	return NewController(cfg), store
}

// Scenario: a single windowed video track, several writes, manifest
// republished after every write.
func TestSingleVideoTrackWindowed(t *testing.T) {
	ctx := context.Background()
	window := secRational(100)
	demander := newCountingDemander()
	c, store := newTestController(true, &window, demander)

	if err := c.OnCaps(ctx, "video-0", Caps{
		ContentType:       manifest.ContentTypeVideo,
		InitExtension:     "mp4",
		FragmentExtension: "m4s",
		Init:              []byte("init-bytes"),
	}); err != nil {
		t.Fatalf("OnCaps: %v", err)
	}
	if _, ok := store.Blob("stream_video-0_header.mp4"); !ok {
		t.Fatalf("expected init blob stored")
	}

	if err := c.OnStartOfStream("video-0"); err != nil {
		t.Fatalf("OnStartOfStream: %v", err)
	}
	if got := demander.count("video-0"); got != 1 {
		t.Fatalf("expected 1 demand after start_of_stream, got %d", got)
	}

	for i := 0; i < 3; i++ {
		if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("frag"), secRational(4))); err != nil {
			t.Fatalf("OnWrite %d: %v", i, err)
		}
	}
	if got := demander.count("video-0"); got != 4 {
		t.Fatalf("expected 4 cumulative demands, got %d", got)
	}
	if _, ok := store.Manifest("stream.m3u8"); !ok {
		t.Fatalf("expected manifest republished after a windowed write")
	}
}

// Scenario: sliding window eviction once accumulated duration exceeds the
// configured window.
func TestWindowedEvictionRemovesOldSegments(t *testing.T) {
	ctx := context.Background()
	window := secRational(7)
	c, store := newTestController(true, &window, nil)

	if err := c.OnCaps(ctx, "video-0", Caps{
		ContentType: manifest.ContentTypeVideo, InitExtension: "mp4", FragmentExtension: "m4s", Init: []byte("i"),
	}); err != nil {
		t.Fatalf("OnCaps: %v", err)
	}
	if err := c.OnStartOfStream("video-0"); err != nil {
		t.Fatalf("OnStartOfStream: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("frag"), secRational(4))); err != nil {
			t.Fatalf("OnWrite %d: %v", i, err)
		}
	}

	if _, ok := store.Blob("stream_video-0_segment_0.m4s"); ok {
		t.Fatalf("expected segment 0 to have been evicted and removed from storage")
	}
	tr := c.Manifest().Track("video-0")
	if len(tr.Segments()) >= 5 {
		t.Fatalf("expected eviction to have shrunk the live window, got %d segments", len(tr.Segments()))
	}
}

// Scenario: audio and video tracks both present; stream_playable fires
// exactly once per track even across many writes.
func TestStreamPlayableFiresExactlyOncePerTrack(t *testing.T) {
	ctx := context.Background()
	window := secRational(100)
	c, _ := newTestController(true, &window, nil)

	recorder := &recordingNotifier{id: "rec"}
	c.cfg.Notify.Register(notify.EventStreamPlayable, recorder)

	for _, padID := range []string{"video-0", "audio-0"} {
		ct := manifest.ContentTypeVideo
		if padID == "audio-0" {
			ct = manifest.ContentTypeAudio
		}
		if err := c.OnCaps(ctx, padID, Caps{ContentType: ct, InitExtension: "mp4", FragmentExtension: "m4s", Init: []byte("i")}); err != nil {
			t.Fatalf("OnCaps(%s): %v", padID, err)
		}
		if err := c.OnStartOfStream(padID); err != nil {
			t.Fatalf("OnStartOfStream(%s): %v", padID, err)
		}
	}

	for i := 0; i < 4; i++ {
		if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("v"), secRational(4))); err != nil {
			t.Fatalf("OnWrite video %d: %v", i, err)
		}
		if err := c.OnWrite(ctx, "audio-0", NewBuffer([]byte("a"), secRational(4))); err != nil {
			t.Fatalf("OnWrite audio %d: %v", i, err)
		}
	}
	c.cfg.Notify.Close()

	if got := recorder.count(); got != 2 {
		t.Fatalf("expected exactly 2 stream_playable events (one per track), got %d", got)
	}
}

// Scenario: non-windowed (VOD) mode republishes the manifest exactly once,
// at end_of_stream, never on intermediate writes.
func TestNonWindowedModeRepublishesOnlyAtEnd(t *testing.T) {
	ctx := context.Background()
	c, store := newTestController(false, nil, nil)

	if err := c.OnCaps(ctx, "video-0", Caps{ContentType: manifest.ContentTypeVideo, InitExtension: "mp4", FragmentExtension: "m4s", Init: []byte("i")}); err != nil {
		t.Fatalf("OnCaps: %v", err)
	}
	if err := c.OnStartOfStream("video-0"); err != nil {
		t.Fatalf("OnStartOfStream: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("f"), secRational(4))); err != nil {
			t.Fatalf("OnWrite %d: %v", i, err)
		}
	}
	if _, ok := store.Manifest("stream.m3u8"); ok {
		t.Fatalf("expected no manifest write before end_of_stream in non-windowed mode")
	}

	if err := c.OnEndOfStream(ctx, "video-0"); err != nil {
		t.Fatalf("OnEndOfStream: %v", err)
	}
	text, ok := store.Manifest("stream.m3u8")
	if !ok {
		t.Fatalf("expected manifest written at end_of_stream")
	}
	if !containsEndlist(text) {
		t.Fatalf("expected ENDLIST tag in final manifest, got:\n%s", text)
	}
}

func containsEndlist(s string) bool {
	return len(s) > 0 && (indexOf(s, "#EXT-X-ENDLIST") >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// Scenario: a mid-stream discontinuity writes a fresh init blob immediately
// and the next write's serialized manifest carries a DISCONTINUITY tag.
func TestMidStreamDiscontinuity(t *testing.T) {
	ctx := context.Background()
	window := secRational(100)
	c, store := newTestController(true, &window, nil)

	if err := c.OnCaps(ctx, "video-0", Caps{ContentType: manifest.ContentTypeVideo, InitExtension: "mp4", FragmentExtension: "m4s", Init: []byte("i")}); err != nil {
		t.Fatalf("OnCaps: %v", err)
	}
	if err := c.OnStartOfStream("video-0"); err != nil {
		t.Fatalf("OnStartOfStream: %v", err)
	}
	if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("f0"), secRational(4))); err != nil {
		t.Fatalf("OnWrite: %v", err)
	}

	if err := c.OnDiscontinuity(ctx, "video-0", []byte("new-init")); err != nil {
		t.Fatalf("OnDiscontinuity: %v", err)
	}
	if _, ok := store.Blob("stream_video-0_header_1.mp4"); !ok {
		t.Fatalf("expected new header blob stored immediately on discontinuity")
	}

	if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("f1"), secRational(4))); err != nil {
		t.Fatalf("OnWrite after discontinuity: %v", err)
	}
	text, _ := store.Manifest("stream.m3u8")
	if indexOf(text, "#EXT-X-DISCONTINUITY") < 0 {
		t.Fatalf("expected DISCONTINUITY tag in manifest after discontinuity, got:\n%s", text)
	}
}

// Scenario: a storage failure on a segment write halts demand and propagates
// the error; the pad's track is unaffected by a later, successful write.
func TestAdapterFailureHaltsDemandAndPropagates(t *testing.T) {
	ctx := context.Background()
	window := secRational(100)
	demander := newCountingDemander()
	c, store := newTestController(true, &window, demander)

	if err := c.OnCaps(ctx, "video-0", Caps{ContentType: manifest.ContentTypeVideo, InitExtension: "mp4", FragmentExtension: "m4s", Init: []byte("i")}); err != nil {
		t.Fatalf("OnCaps: %v", err)
	}
	if err := c.OnStartOfStream("video-0"); err != nil {
		t.Fatalf("OnStartOfStream: %v", err)
	}
	before := demander.count("video-0")

	store.FailNext("store_segment", errors.New("disk full"))
	err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("f"), secRational(4)))
	if err == nil {
		t.Fatalf("expected OnWrite to fail")
	}
	if retriable, ok := sinkerrors.IsAdapterError(err); !ok || !retriable {
		t.Fatalf("expected a retriable AdapterError, got %v", err)
	}
	if got := demander.count("video-0"); got != before {
		t.Fatalf("expected no additional demand issued after a failed write, got %d want %d", got, before)
	}

	if err := c.OnWrite(ctx, "video-0", NewBuffer([]byte("f2"), secRational(4))); err != nil {
		t.Fatalf("expected the next write to succeed once the adapter recovers: %v", err)
	}
	if got := demander.count("video-0"); got != before+1 {
		t.Fatalf("expected demand to resume after a successful write, got %d want %d", got, before+1)
	}
}
