// Package dash documents the extension point spec §4.4/§9 anticipates
// ("pluggable serializer... concrete variants: HLS, future DASH"). No MPD
// generation is implemented; this is scope for a follow-on dialect, not a
// functional encoder.
package dash

import (
	"errors"

	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/serialize"
)

// ErrNotImplemented is returned by Dialect.Serialize; DASH support has no
// concrete encoder yet.
var ErrNotImplemented = errors.New("dash: MPD serialization not implemented")

// Dialect is a placeholder serialize.Dialect for DASH output.
type Dialect struct{}

// Serialize implements serialize.Dialect.
func (Dialect) Serialize(m *manifest.Manifest) (serialize.Output, error) {
	return serialize.Output{}, ErrNotImplemented
}
