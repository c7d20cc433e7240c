package manifest

// ContentType identifies the kind of elementary stream a Track carries.
type ContentType string

const (
	ContentTypeAudio ContentType = "audio"
	ContentTypeVideo ContentType = "video"
)

// Segment is a single fragment descriptor, per spec §3. Segments with
// Complete=false represent in-progress partial segments not yet sealed and
// are never evicted from the head of the window until they seal.
type Segment struct {
	Name          string
	SeqNum        uint64
	Duration      Rational
	ByteSize      int64
	Independent   bool
	Complete      bool
	Discontinuous bool
}

// HeaderDescriptor identifies an initialization ("header") blob. A new one
// is produced whenever Track.Discontinue is called.
type HeaderDescriptor struct {
	Name  string
	Bytes []byte
}

// Changeset is the value returned by every Track/Manifest mutation: what
// must be written to storage, and what must be removed, per spec §3.
type Changeset struct {
	// NewHeader is non-nil when a discontinuity introduces a fresh init blob
	// that must be stored before the accompanying segment.
	NewHeader *HeaderDescriptor
	ToAdd     []Segment
	ToRemove  []Segment
}

// IsEmpty reports whether the changeset carries no work at all.
func (c Changeset) IsEmpty() bool {
	return c.NewHeader == nil && len(c.ToAdd) == 0 && len(c.ToRemove) == 0
}
