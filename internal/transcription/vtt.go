package transcription

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lecture-chat/cli/internal/model"
)

// ParseVTT parses WebVTT content into transcript segments
func ParseVTT(content string) ([]model.Segment, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	if !strings.HasPrefix(content, "WEBVTT") {
		return nil, fmt.Errorf("invalid VTT format: missing WEBVTT header")
	}

	segments := []model.Segment{}
	blocks := strings.Split(content, "\n\n")

	// first block is the header and any metadata lines
	for _, block := range blocks[1:] {
		lines := strings.Split(strings.Trim(block, "\n"), "\n")
		if len(lines) < 2 && !strings.Contains(block, "-->") {
			continue
		}

		// optional cue identifier before the timing line
		if !strings.Contains(lines[0], "-->") {
			lines = lines[1:]
			if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
				continue
			}
		}

		timestamps := strings.SplitN(lines[0], "-->", 2)
		start, err := parseVTTTimestamp(strings.TrimSpace(timestamps[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start timestamp: %w", err)
		}

		// cue settings may follow the end timestamp
		endField := strings.Fields(timestamps[1])
		if len(endField) == 0 {
			return nil, fmt.Errorf("invalid end timestamp: empty")
		}
		end, err := parseVTTTimestamp(endField[0])
		if err != nil {
			return nil, fmt.Errorf("invalid end timestamp: %w", err)
		}

		text := strings.TrimSpace(strings.Join(lines[1:], " "))
		if text == "" {
			continue
		}

		segments = append(segments, model.Segment{
			Index: len(segments),
			Start: start,
			End:   end,
			Text:  text,
		})
	}

	return segments, nil
}

// parseVTTTimestamp parses HH:MM:SS.mmm or MM:SS.mmm into seconds
func parseVTTTimestamp(timestamp string) (float64, error) {
	if !strings.Contains(timestamp, ".") {
		return 0, fmt.Errorf("invalid timestamp format: missing milliseconds")
	}

	parts := strings.Split(timestamp, ":")
	var hours, minutes int
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("invalid hours: %w", err)
		}
		parts = parts[1:]
	case 2:
	default:
		return 0, fmt.Errorf("invalid timestamp format: expected HH:MM:SS.mmm")
	}

	if minutes, err = strconv.Atoi(parts[0]); err != nil {
		return 0, fmt.Errorf("invalid minutes: %w", err)
	}
	if minutes > 59 {
		return 0, fmt.Errorf("invalid minutes: %d", minutes)
	}

	secondParts := strings.Split(parts[1], ".")
	if len(secondParts) != 2 || len(secondParts[1]) != 3 {
		return 0, fmt.Errorf("invalid seconds format: expected SS.mmm")
	}

	seconds, err := strconv.Atoi(secondParts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid seconds: %w", err)
	}
	if seconds > 59 {
		return 0, fmt.Errorf("invalid seconds: %d", seconds)
	}

	milliseconds, err := strconv.Atoi(secondParts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid milliseconds: %w", err)
	}

	total := hours*3600 + minutes*60 + seconds
	return float64(total) + float64(milliseconds)/1000, nil
}
