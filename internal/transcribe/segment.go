package transcribe

import (
	"strings"
)

type Options struct {
	Language string
	// MIMEType is the container of the uploaded audio, e.g. audio/webm.
	MIMEType string
}

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Segment is one recognized span of audio. The first alternative is the
// authoritative one.
type Segment struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Join concatenates the first alternative of every segment with single
// spaces. An empty result means nothing usable was recognized.
func Join(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if len(seg.Alternatives) == 0 {
			continue
		}
		text := strings.TrimSpace(seg.Alternatives[0].Transcript)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func Encoding(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "audio/ogg":
		return "OGG_OPUS"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "LINEAR16"
	case "audio/flac", "audio/x-flac":
		return "FLAC"
	case "audio/mpeg", "audio/mp3":
		return "MP3"
	default:
		return "WEBM_OPUS"
	}
}
