// Package storage defines the narrow contract a sink binds against to
// persist init blobs, media fragments, and serialized manifests (spec §4.1).
// Concrete backends live in the fs, memory, and multi subpackages.
package storage

import "context"

// TextBlob is a named text document, the unit store_manifests writes.
type TextBlob struct {
	Name string
	Text string
}

// Adapter is the storage contract. Implementations must not poison their own
// state on error: a failed call must not prevent a subsequent call with
// fresh inputs from succeeding.
type Adapter interface {
	// StoreInit writes or overwrites a named initialization blob.
	StoreInit(ctx context.Context, name string, data []byte) error
	// StoreSegment writes or overwrites a named media fragment blob.
	StoreSegment(ctx context.Context, name string, data []byte) error
	// StoreManifests writes or overwrites every blob in docs. Logically
	// all-or-nothing; an implementation may achieve this via temp+rename.
	StoreManifests(ctx context.Context, docs []TextBlob) error
	// RemoveSegments best-effort removes the named segments. A missing blob
	// is not an error.
	RemoveSegments(ctx context.Context, names []string) error
}
