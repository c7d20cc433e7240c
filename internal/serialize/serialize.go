// Package serialize turns manifest.Manifest state into named text blobs
// ready for storage.Adapter.StoreManifests (spec §4.4). Dialect is the
// pluggable seam; HLS is the reference implementation of spec §6.3. Built
// the way the teacher builds wire encoders (internal/rtmp/amf,
// internal/rtmp/chunk): small, focused encode functions composed by one
// top-level entry point, rather than a single templated blob.
package serialize

import (
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/storage"
)

// Output is the value every Dialect produces: one master manifest and,
// where the dialect needs them, one sub-manifest per track.
type Output struct {
	Master   storage.TextBlob
	PerTrack map[string]storage.TextBlob
}

// Blobs flattens Output into the slice storage.Adapter.StoreManifests wants.
func (o Output) Blobs() []storage.TextBlob {
	blobs := make([]storage.TextBlob, 0, 1+len(o.PerTrack))
	blobs = append(blobs, o.Master)
	for _, b := range o.PerTrack {
		blobs = append(blobs, b)
	}
	return blobs
}

// Dialect is a pluggable serializer, per spec §9 ("the source uses a
// module-as-value dispatch... recast as polymorphism over the capability
// set serialize(Manifest) -> serialized_manifests").
type Dialect interface {
	Serialize(m *manifest.Manifest) (Output, error)
}
