// Package sink implements the pad state machine of spec §4.5: it binds the
// pipeline's per-pad lifecycle events (caps, start-of-stream, write,
// end-of-stream) to Manifest operations and Storage writes. Grounded on the
// teacher's internal/rtmp/server package: Registry's guarded map of
// per-stream state, publish_handler.go/play_handler.go's "validate ->
// mutate shared state -> side effect -> respond" handler shape, and
// server.go's single-owning-goroutine-per-connection model generalized to
// one Controller per sink instance.
package sink

import "github.com/alxayo/hlssink/internal/manifest"

// Caps carries the information a pad's first caps event supplies, per
// spec §6.2.
type Caps struct {
	ContentType       manifest.ContentType
	InitExtension     string
	FragmentExtension string
	Init              []byte
}

// Buffer is a single upstream fragment, per spec §6.2. Independent and
// Complete both default to true; a caller doing LL-HLS-style partial
// segments sets Complete to false explicitly.
type Buffer struct {
	Payload     []byte
	Duration    manifest.Rational
	Independent bool
	Complete    bool
}

// NewBuffer builds a Buffer with the spec's documented defaults.
func NewBuffer(payload []byte, duration manifest.Rational) Buffer {
	return Buffer{Payload: payload, Duration: duration, Independent: true, Complete: true}
}

// Demander is how the Controller asks the hosting pipeline for more data,
// per spec §4.5 step 4 ("issue one unit of demand to upstream"). Grounded
// on the teacher's media relay TrySendMessage capacity-checking idiom,
// inverted: here the sink is the consumer asking for more, not a publisher
// checking subscriber capacity.
type Demander interface {
	RequestBuffer(padID string)
}

// DemanderFunc adapts a function to a Demander.
type DemanderFunc func(padID string)

// RequestBuffer implements Demander.
func (f DemanderFunc) RequestBuffer(padID string) { f(padID) }

// PadState is a pad's position in the state machine of spec §4.5.
type PadState int

const (
	StateAwaitingCaps PadState = iota
	StateAwaitingStart
	StateStreaming
	StateEnded
)

func (s PadState) String() string {
	switch s {
	case StateAwaitingCaps:
		return "awaiting_caps"
	case StateAwaitingStart:
		return "awaiting_start"
	case StateStreaming:
		return "streaming"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
