package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/model"
)

func TestParseVTT(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []model.Segment
		wantErr bool
	}{
		{
			name: "whisper.cpp output",
			input: "WEBVTT\n\n" +
				"00:00:00.000 --> 00:00:02.500\n" +
				" Welcome to the lecture.\n\n" +
				"00:00:02.500 --> 00:00:05.120\n" +
				" Today we cover graphs.\n",
			want: []model.Segment{
				{Index: 0, Start: 0, End: 2.5, Text: "Welcome to the lecture."},
				{Index: 1, Start: 2.5, End: 5.12, Text: "Today we cover graphs."},
			},
		},
		{
			name: "cue identifiers, settings and multi-line text",
			input: "WEBVTT - lecture\r\nKind: captions\r\n\r\n" +
				"1\r\n00:01.000 --> 00:03.000 align:start\r\nfirst line\r\nsecond line\r\n\r\n" +
				"intro\r\n01:00:00.250 --> 01:00:01.000\r\nlate cue\r\n",
			want: []model.Segment{
				{Index: 0, Start: 1, End: 3, Text: "first line second line"},
				{Index: 1, Start: 3600.25, End: 3601, Text: "late cue"},
			},
		},
		{
			name:  "header only",
			input: "WEBVTT\n\n",
			want:  []model.Segment{},
		},
		{
			name:  "cue without text is skipped",
			input: "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\n\n00:00:02.000 --> 00:00:03.000\nok\n",
			want:  []model.Segment{{Index: 0, Start: 2, End: 3, Text: "ok"}},
		},
		{
			name:    "missing header",
			input:   "00:00:01.000 --> 00:00:02.000\nHello\n",
			wantErr: true,
		},
		{
			name:    "bad start timestamp",
			input:   "WEBVTT\n\n00:00:01 --> 00:00:02.000\nHello\n",
			wantErr: true,
		},
		{
			name:    "bad end timestamp",
			input:   "WEBVTT\n\n00:00:01.000 --> 00:99:02.000\nHello\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVTT(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVTTTimestamp(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"00:00:00.000", 0, false},
		{"00:01:01.500", 61.5, false},
		{"02:00:00.001", 7200.001, false},
		{"05:07.250", 307.25, false},
		{"00:00:01", 0, true},
		{"00:00:01.5", 0, true},
		{"aa:00:01.000", 0, true},
		{"1:2:3:4.000", 0, true},
		{"00:00:61.000", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseVTTTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
