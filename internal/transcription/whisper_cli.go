package transcription

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lecture-chat/cli/internal/model"
)

// WhisperCLI transcribes with a local whisper.cpp binary
type WhisperCLI struct {
	Bin      string
	Model    string
	Language string
	Args     []string
}

// Transcribe runs whisper.cpp with VTT output next to the audio file and parses it
func (w *WhisperCLI) Transcribe(ctx context.Context, audioPath string) ([]model.Segment, error) {
	if _, err := exec.LookPath(w.Bin); err != nil {
		return nil, fmt.Errorf("whisper binary not found: %w", err)
	}

	prefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := append([]string{}, w.Args...)
	if w.Model != "" {
		args = append(args, "-m", w.Model)
	}
	if w.Language != "" {
		args = append(args, "-l", w.Language)
	}
	args = append(args,
		"-f", audioPath,
		"-ovtt",
		"-of", prefix,
	)

	if out, err := runCommand(ctx, w.Bin, args...); err != nil {
		return nil, commandError("whisper", out, err)
	}

	vttPath := prefix + ".vtt"
	data, err := os.ReadFile(vttPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}
	defer os.Remove(vttPath)

	return ParseVTT(string(data))
}
