package serialize

import (
	"fmt"
	"strings"

	sinkerrors "github.com/alxayo/hlssink/internal/errors"
	"github.com/alxayo/hlssink/internal/manifest"
	"github.com/alxayo/hlssink/internal/storage"
)

const hlsVersion = 7

// HLS is the reference Dialect of spec §6.3. It supports at most one audio
// and one video track per manifest; anything else is an UnsupportedTopology
// error.
type HLS struct {
	// Codecs is the CODECS attribute value advertised on the master
	// manifest's EXT-X-STREAM-INF line. The data model carries no codec
	// metadata (Non-goals: no media parsing), so this is a fixed
	// configuration value rather than something derived per segment.
	Codecs string
	// Bandwidth is the BANDWIDTH attribute value (bits/sec) advertised on
	// the same line. The data model carries no bitrate metadata either, so
	// this is likewise a fixed configuration value: deriving it from
	// recorded segment bytes would make the master manifest drift out from
	// under a dialect consumer as segments come and go, rather than stay
	// the single stable reference document spec §6.3 describes.
	Bandwidth int64
}

// NewHLS builds an HLS dialect with the spec example's default codec string
// and bandwidth figure.
func NewHLS() *HLS {
	return &HLS{Codecs: "avc1.42e00a", Bandwidth: 2_560_000}
}

// Serialize implements Dialect.
func (h *HLS) Serialize(m *manifest.Manifest) (Output, error) {
	var audio, video *manifest.Track
	for _, t := range m.Tracks() {
		switch t.ContentType() {
		case manifest.ContentTypeAudio:
			if audio != nil {
				return Output{}, sinkerrors.NewUnsupportedTopologyError("hls", "at most one audio track is supported")
			}
			audio = t
		case manifest.ContentTypeVideo:
			if video != nil {
				return Output{}, sinkerrors.NewUnsupportedTopologyError("hls", "at most one video track is supported")
			}
			video = t
		default:
			return Output{}, sinkerrors.NewUnsupportedTopologyError("hls", fmt.Sprintf("unknown content type %q", t.ContentType()))
		}
	}

	masterName := m.Name() + ".m3u8"

	switch {
	case audio != nil && video != nil:
		videoName, audioName := "video.m3u8", "audio.m3u8"
		master := storage.TextBlob{Name: masterName, Text: h.masterPlaylist(videoName, audioName)}
		return Output{
			Master: master,
			PerTrack: map[string]storage.TextBlob{
				video.ID(): {Name: videoName, Text: h.trackPlaylist(video)},
				audio.ID(): {Name: audioName, Text: h.trackPlaylist(audio)},
			},
		}, nil
	case video != nil:
		return Output{Master: storage.TextBlob{Name: masterName, Text: h.trackPlaylist(video)}}, nil
	case audio != nil:
		return Output{Master: storage.TextBlob{Name: masterName, Text: h.trackPlaylist(audio)}}, nil
	default:
		return Output{Master: storage.TextBlob{Name: masterName, Text: h.emptyPlaylist()}}, nil
	}
}

// masterPlaylist renders the template of spec §6.3 when both audio and
// video tracks are present.
func (h *HLS) masterPlaylist(videoName, audioName string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", hlsVersion)
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=%q,AUDIO=\"a\"\n", h.Bandwidth, h.Codecs)
	b.WriteString(videoName)
	b.WriteString("\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=AUDIO,NAME=\"a\",GROUP-ID=\"a\",AUTOSELECT=YES,DEFAULT=YES,URI=%q\n", audioName)
	return b.String()
}

// trackPlaylist renders the per-track template of spec §6.3.
func (h *HLS) trackPlaylist(t *manifest.Track) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", hlsVersion)
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", t.TargetSegmentDuration().CeilSeconds())
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", t.MediaSequence())
	fmt.Fprintf(&b, "#EXT-X-MAP:URI=%q\n", t.HeaderName())

	for _, seg := range t.Segments() {
		if seg.Discontinuous {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n", formatSeconds(seg.Duration.Seconds()))
		b.WriteString(seg.Name)
		b.WriteString("\n")
	}

	if t.IsFinished() {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// emptyPlaylist is what a manifest with no tracks yet serializes to; no
// track means no TARGETDURATION/MEDIA-SEQUENCE/MAP can be derived.
func (h *HLS) emptyPlaylist() string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:%d\n", hlsVersion)
	return b.String()
}

// formatSeconds renders an EXTINF duration with exactly one decimal place;
// a whole number of seconds keeps its ".0" (e.g. "4.0", "5.0").
func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.1f", seconds)
}
