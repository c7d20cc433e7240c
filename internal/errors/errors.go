// Package errors defines the typed error kinds surfaced by the manifest
// engine and sink controller: AdapterError, TrackFinishedError,
// DuplicateTrackError, UnsupportedTopologyError (spec §7), plus a generic
// TimeoutError for adapter deadlines.
package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"
)

// sinkMarker is implemented by all sink-layer error types so callers can
// classify them with a single predicate regardless of the concrete kind.
type sinkMarker interface {
	error
	isSink()
}

// AdapterError wraps any failure returned by a storage.Adapter. Retriable
// indicates whether the caller's own retry policy (if any) should re-attempt
// the operation; the core itself never retries (spec §7 propagation policy).
type AdapterError struct {
	Op        string // e.g. "store_segment", "store_manifests"
	Retriable bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("adapter error: %s", e.Op)
	}
	return fmt.Sprintf("adapter error: %s: %v", e.Op, e.Err)
}
func (e *AdapterError) Unwrap() error { return e.Err }
func (e *AdapterError) isSink()       {}

// TrackFinishedError indicates a mutation was attempted on a track whose
// finished? flag is already set.
type TrackFinishedError struct {
	TrackID string
	Op      string // "add_chunk", "discontinue", "finish"
}

func (e *TrackFinishedError) Error() string {
	return fmt.Sprintf("track finished: track %q rejected %s", e.TrackID, e.Op)
}
func (e *TrackFinishedError) isSink() {}

// DuplicateTrackError indicates a second AddTrack call for a track id that
// already exists in the manifest.
type DuplicateTrackError struct {
	TrackID string
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("duplicate track: %q already registered", e.TrackID)
}
func (e *DuplicateTrackError) isSink() {}

// UnsupportedTopologyError indicates a serializer dialect cannot represent
// the manifest's current set of tracks (e.g. HLS supports at most one audio
// and one video track).
type UnsupportedTopologyError struct {
	Dialect string
	Reason  string
}

func (e *UnsupportedTopologyError) Error() string {
	return fmt.Sprintf("unsupported topology for %s: %s", e.Dialect, e.Reason)
}
func (e *UnsupportedTopologyError) isSink() {}

// TimeoutError indicates a storage operation exceeded a deadline.
type TimeoutError struct {
	Op       string
	Duration time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (after %s)", e.Op, e.Duration)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewAdapterError(op string, retriable bool, cause error) error {
	return &AdapterError{Op: op, Retriable: retriable, Err: cause}
}
func NewTrackFinishedError(trackID, op string) error {
	return &TrackFinishedError{TrackID: trackID, Op: op}
}
func NewDuplicateTrackError(trackID string) error {
	return &DuplicateTrackError{TrackID: trackID}
}
func NewUnsupportedTopologyError(dialect, reason string) error {
	return &UnsupportedTopologyError{Dialect: dialect, Reason: reason}
}
func NewTimeoutError(op string, d time.Duration, cause error) error {
	return &TimeoutError{Op: op, Duration: d, Err: cause}
}

// IsSinkError returns true if err is (or wraps) any of the typed error kinds
// defined in this package (excluding TimeoutError, which is orthogonal).
func IsSinkError(err error) bool {
	if err == nil {
		return false
	}
	var sm sinkMarker
	return stdErrors.As(err, &sm)
}

// IsAdapterError reports whether err is (or wraps) an *AdapterError, and
// whether the adapter classified it as retriable.
func IsAdapterError(err error) (retriable bool, ok bool) {
	var ae *AdapterError
	if stdErrors.As(err, &ae) {
		return ae.Retriable, true
	}
	return false, false
}

// IsTrackFinished reports whether err is (or wraps) a *TrackFinishedError.
func IsTrackFinished(err error) bool {
	var tf *TrackFinishedError
	return stdErrors.As(err, &tf)
}

// IsDuplicateTrack reports whether err is (or wraps) a *DuplicateTrackError.
func IsDuplicateTrack(err error) bool {
	var dt *DuplicateTrackError
	return stdErrors.As(err, &dt)
}

// IsUnsupportedTopology reports whether err is (or wraps) an
// *UnsupportedTopologyError.
func IsUnsupportedTopology(err error) bool {
	var ut *UnsupportedTopologyError
	return stdErrors.As(err, &ut)
}

// IsTimeout returns true if err is (or wraps) a TimeoutError, a context
// deadline exceeded, or any error type that exposes Timeout() bool and
// returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}
