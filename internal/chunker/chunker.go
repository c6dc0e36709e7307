// Package chunker merges transcript segments into time-anchored retrieval chunks.
//
// Segments are accumulated in transcript order. A chunk is closed when appending
// the next segment would push it past the size limit; the following chunk starts
// with the trailing whole words of the closed chunk that fit in the overlap window,
// as many of them as the next segment leaves room for.
// Text is only ever split between words, and every word keeps the timestamps of
// the segment it came from.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lecture-chat/cli/internal/model"
)

// Chunker splits transcripts by character budget
type Chunker struct {
	size    int
	overlap int
	newID   func() string
}

// New creates a chunker with a maximum chunk size and an overlap, both in characters
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		newID:   uuid.NewString,
	}, nil
}

// word is one whitespace-delimited token and the segment it belongs to
type word struct {
	text string
	seg  int
}

// Split turns ordered segments into ordered chunks for videoID. When duration is
// positive, chunk bounds are clamped to [0, duration]. Segments without text are
// ignored, so an empty transcript produces no chunks.
func (c *Chunker) Split(videoID string, segments []model.Segment, duration float64) []model.Chunk {
	var (
		chunks []model.Chunk
		buf    []word
		bufLen int
		fresh  bool // buf holds words that have not been emitted yet
	)

	for i, seg := range segments {
		tokens := strings.Fields(seg.Text)
		if len(tokens) == 0 {
			continue
		}
		segLen := tokensLen(tokens)

		if fresh && bufLen+1+segLen > c.size {
			chunks = append(chunks, c.emit(videoID, len(chunks), buf, segments, duration))
			buf = c.tail(buf)
			fresh = false
		}
		if !fresh {
			// overlap words give way, oldest first, to keep the chunk within size
			for len(buf) > 0 && wordsLen(buf)+1+segLen > c.size {
				buf = buf[1:]
			}
			bufLen = wordsLen(buf)
		}

		for _, t := range tokens {
			buf = append(buf, word{text: t, seg: i})
		}
		if bufLen > 0 {
			bufLen++
		}
		bufLen += segLen
		fresh = true
	}

	if fresh {
		chunks = append(chunks, c.emit(videoID, len(chunks), buf, segments, duration))
	}
	return chunks
}

// tail returns the trailing words of a closed chunk whose joined length fits the overlap
func (c *Chunker) tail(words []word) []word {
	if c.overlap == 0 {
		return nil
	}
	n := 0
	start := len(words)
	for j := len(words) - 1; j >= 0; j-- {
		l := utf8.RuneCountInString(words[j].text)
		if start < len(words) {
			l++
		}
		if n+l > c.overlap {
			break
		}
		n += l
		start = j
	}
	out := make([]word, len(words)-start)
	copy(out, words[start:])
	return out
}

func (c *Chunker) emit(videoID string, index int, words []word, segments []model.Segment, duration float64) model.Chunk {
	texts := make([]string, len(words))
	for i, w := range words {
		texts[i] = w.text
	}

	start := segments[words[0].seg].Start
	end := segments[words[len(words)-1].seg].End
	if duration > 0 {
		start = clamp(start, 0, duration)
		end = clamp(end, 0, duration)
	}
	if end < start {
		end = start
	}

	return model.Chunk{
		ID:        c.newID(),
		VideoID:   videoID,
		Index:     index,
		Text:      strings.Join(texts, " "),
		Start:     start,
		End:       end,
		WordCount: len(words),
	}
}

func tokensLen(tokens []string) int {
	n := len(tokens) - 1
	for _, t := range tokens {
		n += utf8.RuneCountInString(t)
	}
	return n
}

func wordsLen(words []word) int {
	if len(words) == 0 {
		return 0
	}
	n := len(words) - 1
	for _, w := range words {
		n += utf8.RuneCountInString(w.text)
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
