package transcription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/model"
)

func TestNormalize(t *testing.T) {
	raw := []model.Segment{
		{Start: -0.2, End: 1.0, Text: "  Hello   world "},
		{Start: 1.0, End: 0.8, Text: "backwards end"},
		{Start: 1.5, End: 2.0, Text: "   "},
		{Start: 1.98, End: 3.0, Text: "rounding"},
		{Start: 2.0, End: 12.0, Text: "past the end"},
	}

	got, err := Normalize(raw, 10)
	require.NoError(t, err)
	assert.Equal(t, []model.Segment{
		{Index: 0, Start: 0, End: 1.0, Text: "Hello world"},
		{Index: 1, Start: 1.0, End: 1.0, Text: "backwards end"},
		{Index: 2, Start: 1.98, End: 3.0, Text: "rounding"},
		{Index: 3, Start: 2.0, End: 10.0, Text: "past the end"},
	}, got)
}

func TestNormalizeRejectsDecreasingStarts(t *testing.T) {
	_, err := Normalize([]model.Segment{
		{Start: 5, End: 6, Text: "later"},
		{Start: 1, End: 2, Text: "earlier"},
	}, 0)
	assert.ErrorContains(t, err, "malformed transcript")
}

func TestNormalizeSmallBackstepIsAbsorbed(t *testing.T) {
	got, err := Normalize([]model.Segment{
		{Start: 5, End: 6, Text: "a"},
		{Start: 4.98, End: 4.99, Text: "b"},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got[1].Start)
	assert.Equal(t, 5.0, got[1].End)
}

func TestNormalizeEmpty(t *testing.T) {
	got, err := Normalize(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
