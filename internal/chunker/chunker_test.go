package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lecture-chat/cli/internal/model"
)

func seg(i int, text string, start, end float64) model.Segment {
	return model.Segment{Index: i, Text: text, Start: start, End: end}
}

func TestNewValidatesParameters(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)
	_, err = New(10, 10)
	assert.Error(t, err)
	_, err = New(10, -1)
	assert.Error(t, err)
	_, err = New(10, 9)
	assert.NoError(t, err)
}

func TestSplitGreeting(t *testing.T) {
	segments := []model.Segment{
		seg(0, "Hi there", 0.0, 1.0),
		seg(1, "welcome to class", 1.0, 2.5),
	}

	t.Run("fits in one chunk", func(t *testing.T) {
		c, err := New(30, 5)
		require.NoError(t, err)
		chunks := c.Split("v", segments, 0)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Hi there welcome to class", chunks[0].Text)
		assert.Equal(t, 0.0, chunks[0].Start)
		assert.Equal(t, 2.5, chunks[0].End)
		assert.Equal(t, 5, chunks[0].WordCount)
	})

	t.Run("splits with overlap", func(t *testing.T) {
		c, err := New(22, 5)
		require.NoError(t, err)
		chunks := c.Split("v", segments, 0)
		require.Len(t, chunks, 2)

		assert.Equal(t, "Hi there", chunks[0].Text)
		assert.Equal(t, 0.0, chunks[0].Start)
		assert.Equal(t, 1.0, chunks[0].End)

		assert.Equal(t, "there welcome to class", chunks[1].Text)
		assert.True(t, strings.HasPrefix(chunks[1].Text, "there"))
		// overlap keeps the timestamps of the segment it came from
		assert.Equal(t, 0.0, chunks[1].Start)
		assert.Equal(t, 2.5, chunks[1].End)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, 1, chunks[1].Index)
	})

	t.Run("overlap gives way to the size limit", func(t *testing.T) {
		c, err := New(20, 5)
		require.NoError(t, err)
		chunks := c.Split("v", segments, 0)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Hi there", chunks[0].Text)
		// "there welcome to class" would be 22 characters
		assert.Equal(t, "welcome to class", chunks[1].Text)
		assert.Equal(t, 1.0, chunks[1].Start)
	})
}

func TestSplitTrimsOverlapToFit(t *testing.T) {
	c, err := New(20, 5)
	require.NoError(t, err)
	chunks := c.Split("v", []model.Segment{
		seg(0, "aaaa bbbb cccc ddd", 0, 1),
		seg(1, "eeeeeeeeeeeeeeeee", 1, 2),
		seg(2, "ff", 2, 3),
	}, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaa bbbb cccc ddd", chunks[0].Text)
	assert.Equal(t, "eeeeeeeeeeeeeeeee ff", chunks[1].Text)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 20)
	}
}

func TestSplitKeepsPartialOverlap(t *testing.T) {
	c, err := New(20, 9)
	require.NoError(t, err)
	chunks := c.Split("v", []model.Segment{
		seg(0, "aaaa bbb cc", 0, 1),
		seg(1, "dddddddddddddd", 1, 2),
	}, 0)
	require.Len(t, chunks, 2)
	// tail "bbb cc" does not fit with the next segment, "cc" does
	assert.Equal(t, "cc dddddddddddddd", chunks[1].Text)
	assert.Equal(t, 0.0, chunks[1].Start)
}

func TestSplitEmptyTranscript(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)
	assert.Empty(t, c.Split("v", nil, 0))
	assert.Empty(t, c.Split("v", []model.Segment{seg(0, "   ", 0, 1), seg(1, "", 1, 2)}, 0))
}

func TestSplitOversizedSingleSegment(t *testing.T) {
	c, err := New(10, 3)
	require.NoError(t, err)
	long := "this segment is far longer than ten characters"
	chunks := c.Split("v", []model.Segment{seg(0, long, 0, 4)}, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, long, chunks[0].Text)
}

func TestSplitNoOverlap(t *testing.T) {
	c, err := New(12, 0)
	require.NoError(t, err)
	chunks := c.Split("v", []model.Segment{
		seg(0, "alpha beta", 0, 1),
		seg(1, "gamma", 1, 2),
		seg(2, "delta eps", 2, 3),
	}, 0)
	require.Len(t, chunks, 3)
	// "alpha beta gamma" is 16 characters, so gamma starts a new chunk
	assert.Equal(t, "alpha beta", chunks[0].Text)
	assert.Equal(t, "gamma", chunks[1].Text)
	assert.Equal(t, 1.0, chunks[1].Start)
	assert.Equal(t, "delta eps", chunks[2].Text)
}

func TestSplitAccumulatesWhileItFits(t *testing.T) {
	c, err := New(16, 0)
	require.NoError(t, err)
	chunks := c.Split("v", []model.Segment{
		seg(0, "alpha beta", 0, 1),
		seg(1, "gamma", 1, 2),
		seg(2, "x", 2, 3),
	}, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "alpha beta gamma", chunks[0].Text)
	assert.Equal(t, 2.0, chunks[0].End)
	assert.Equal(t, "x", chunks[1].Text)
}

func TestSplitClampsToDuration(t *testing.T) {
	c, err := New(100, 0)
	require.NoError(t, err)
	chunks := c.Split("v", []model.Segment{seg(0, "overshoot", 9.5, 10.4)}, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 9.5, chunks[0].Start)
	assert.Equal(t, 10.0, chunks[0].End)
}

func TestSplitMultibyteLength(t *testing.T) {
	c, err := New(5, 0)
	require.NoError(t, err)
	// five runes, more than five bytes
	chunks := c.Split("v", []model.Segment{seg(0, "héllo", 0, 1), seg(1, "wörld", 1, 2)}, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "héllo", chunks[0].Text)
}

func TestSplitAssignsIDs(t *testing.T) {
	c, err := New(10, 0)
	require.NoError(t, err)
	n := 0
	c.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	chunks := c.Split("vid", []model.Segment{seg(0, "one two", 0, 1), seg(1, "three four", 1, 2)}, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, "id-1", chunks[0].ID)
	assert.Equal(t, "id-2", chunks[1].ID)
	assert.Equal(t, "vid", chunks[1].VideoID)
}

// randomTranscript builds segments whose words are globally unique, so the
// overlap between two chunks can be recovered unambiguously.
func randomTranscript(r *rand.Rand, n int) ([]model.Segment, map[string]int) {
	var segments []model.Segment
	owner := make(map[string]int)
	wordNo := 0
	t := 0.0
	for i := 0; i < n; i++ {
		count := 1 + r.Intn(8)
		words := make([]string, count)
		for j := range words {
			words[j] = fmt.Sprintf("w%d%s", wordNo, strings.Repeat("a", r.Intn(7)))
			owner[words[j]] = i
			wordNo++
		}
		d := 0.5 + r.Float64()*3
		segments = append(segments, seg(i, strings.Join(words, " "), t, t+d))
		t += d
	}
	return segments, owner
}

func overlapWords(prev, cur []string) int {
	max := len(prev)
	if len(cur) < max {
		max = len(cur)
	}
	for k := max; k > 0; k-- {
		if strings.Join(prev[len(prev)-k:], " ") == strings.Join(cur[:k], " ") {
			return k
		}
	}
	return 0
}

func TestSplitProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	configs := []struct{ size, overlap int }{
		{20, 5}, {40, 10}, {64, 0}, {100, 30}, {15, 14}, {200, 50},
	}

	for _, cfg := range configs {
		for trial := 0; trial < 25; trial++ {
			segments, owner := randomTranscript(r, 1+r.Intn(40))
			c, err := New(cfg.size, cfg.overlap)
			require.NoError(t, err)
			chunks := c.Split("v", segments, 0)
			require.NotEmpty(t, chunks)

			var original []string
			for _, s := range segments {
				original = append(original, strings.Fields(s.Text)...)
			}

			var rebuilt []string
			var prev []string
			for i, ch := range chunks {
				words := strings.Fields(ch.Text)
				assert.Equal(t, i, ch.Index)
				assert.Equal(t, len(words), ch.WordCount)

				k := 0
				if i > 0 {
					k = overlapWords(prev, words)
					assert.LessOrEqual(t, utf8.RuneCountInString(strings.Join(words[:k], " ")), cfg.overlap,
						"overlap exceeds window")
					assert.GreaterOrEqual(t, ch.Start, chunks[i-1].Start, "chunks out of order")
					assert.GreaterOrEqual(t, ch.End, chunks[i-1].End, "chunks out of order")
				}
				fresh := words[k:]
				require.NotEmpty(t, fresh, "chunk %d carries no new text", i)

				if utf8.RuneCountInString(ch.Text) > cfg.size {
					first := owner[words[0]]
					for _, w := range words {
						assert.Equal(t, first, owner[w], "oversized chunk must be a single segment")
					}
					assert.Equal(t, segments[first].Text, ch.Text)
					assert.Greater(t, utf8.RuneCountInString(segments[first].Text), cfg.size)
				}

				// timestamps come from the contributing segments
				assert.Equal(t, segments[owner[words[0]]].Start, ch.Start)
				assert.Equal(t, segments[owner[words[len(words)-1]]].End, ch.End)

				rebuilt = append(rebuilt, fresh...)
				prev = words
			}
			assert.Equal(t, original, rebuilt, "chunks minus overlap must rebuild the transcript")
		}
	}
}
