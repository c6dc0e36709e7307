package transcription

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/lecture-chat/cli/internal/model"
)

// upload limit of the hosted Whisper endpoint, with some headroom
const defaultMaxUploadBytes = 24 << 20

// WhisperAPI transcribes through the OpenAI audio transcription endpoint
type WhisperAPI struct {
	client      *openai.Client
	model       string
	language    string
	ffmpeg      *FFmpeg
	maxBytes    int64
	partSeconds int
}

// NewWhisperAPI creates an API transcriber. Audio above the upload limit is
// split with ffmpeg into parts of partSeconds and transcribed part by part.
func NewWhisperAPI(client *openai.Client, modelName, language string, ffmpeg *FFmpeg, partSeconds int) *WhisperAPI {
	if modelName == "" {
		modelName = openai.Whisper1
	}
	if partSeconds <= 0 {
		partSeconds = 600
	}
	return &WhisperAPI{
		client:      client,
		model:       modelName,
		language:    language,
		ffmpeg:      ffmpeg,
		maxBytes:    defaultMaxUploadBytes,
		partSeconds: partSeconds,
	}
}

// Transcribe returns segments covering the whole audio file
func (w *WhisperAPI) Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio: %w", err)
	}
	if info.Size() <= w.maxBytes {
		return w.transcribeFile(ctx, audioPath, 0)
	}
	if w.ffmpeg == nil {
		return nil, fmt.Errorf("audio is %d bytes, above the %d byte upload limit, and no ffmpeg is configured to split it", info.Size(), w.maxBytes)
	}

	dir, err := os.MkdirTemp("", "lecture-parts-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create parts directory: %w", err)
	}
	defer os.RemoveAll(dir)

	parts, err := w.ffmpeg.SplitAudio(ctx, audioPath, dir, w.partSeconds)
	if err != nil {
		return nil, err
	}

	var all []model.Segment
	offset := 0.0
	for i, part := range parts {
		segs, err := w.transcribeFile(ctx, part, offset)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		all = append(all, segs...)

		d, err := WAVDuration(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read duration of part %d: %w", i, err)
		}
		offset += d
	}
	return all, nil
}

func (w *WhisperAPI) transcribeFile(ctx context.Context, path string, offset float64) ([]model.Segment, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: w.language,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper API error: %w", err)
	}

	segments := make([]model.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, model.Segment{
			Start: s.Start + offset,
			End:   s.End + offset,
			Text:  s.Text,
		})
	}

	// some deployments return only the text for short clips
	if len(segments) == 0 && resp.Text != "" {
		segments = append(segments, model.Segment{
			Start: offset,
			End:   offset + resp.Duration,
			Text:  resp.Text,
		})
	}
	return segments, nil
}
