// Package transcription turns lecture audio into time-stamped transcript segments.
package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/lecture-chat/cli/internal/model"
)

// Transcriber converts an audio file into ordered transcript segments
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error)
}

// tolerance for start times that step backwards by rounding noise
const orderSlack = 0.05

// Normalize cleans raw provider output: it trims text, drops empty segments,
// clamps times into [0, duration] when duration is known and renumbers ordinals.
// Start times that go backwards are reported as malformed output.
func Normalize(segments []model.Segment, duration float64) ([]model.Segment, error) {
	out := make([]model.Segment, 0, len(segments))
	prevStart := 0.0

	for i, s := range segments {
		text := strings.Join(strings.Fields(s.Text), " ")
		if text == "" {
			continue
		}

		start, end := s.Start, s.End
		if start < 0 {
			start = 0
		}
		if duration > 0 {
			if start > duration {
				start = duration
			}
			if end > duration {
				end = duration
			}
		}
		if end < start {
			end = start
		}

		if start+orderSlack < prevStart {
			return nil, fmt.Errorf("malformed transcript: segment %d starts at %.2fs before previous start %.2fs", i, start, prevStart)
		}
		if start < prevStart {
			start = prevStart
			if end < start {
				end = start
			}
		}
		prevStart = start

		out = append(out, model.Segment{
			Index: len(out),
			Start: start,
			End:   end,
			Text:  text,
		})
	}

	return out, nil
}
