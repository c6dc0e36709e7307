package model

import (
	"fmt"
	"time"
)

// Segment is one time-stamped piece of transcript text
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
	Text  string  `json:"text"`
}

// Chunk is the retrieval unit of a video
type Chunk struct {
	ID        string    `json:"chunk_id"`
	VideoID   string    `json:"video_id"`
	Index     int       `json:"chunk_index"`
	Text      string    `json:"text"`
	Start     float64   `json:"start_time"`
	End       float64   `json:"end_time"`
	WordCount int       `json:"word_count"`
	Embedding []float32 `json:"-"`
}

// Timestamp renders the chunk's time range for display
func (c *Chunk) Timestamp() string {
	return FormatRange(c.Start, c.End)
}

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message supplied by the caller
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieved chunk cited by an answer
type Source struct {
	ChunkID            string  `json:"chunk_id"`
	Index              int     `json:"chunk_index"`
	Text               string  `json:"text"`
	Start              float64 `json:"start_time"`
	End                float64 `json:"end_time"`
	RelevanceScore     float64 `json:"relevance_score"`
	FormattedTimestamp string  `json:"formatted_timestamp"`
}

// AnswerResult is the response to one question
type AnswerResult struct {
	VideoID         string   `json:"video_id"`
	Answer          string   `json:"answer"`
	Sources         []Source `json:"relevant_chunks"`
	ConfidenceScore float64  `json:"confidence_score"`
	ProcessingTime  float64  `json:"processing_time"`
	Degraded        bool     `json:"degraded"`
}

// FormatTimestamp renders seconds as M:SS, or H:MM:SS past the first hour
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatRange renders a start/end pair as "M:SS - M:SS"
func FormatRange(start, end float64) string {
	return FormatTimestamp(start) + " - " + FormatTimestamp(end)
}
