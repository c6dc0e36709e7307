// Package artifacts stores per-video intermediate outputs on disk.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lecture-chat/cli/internal/model"
)

const (
	audioFileName      = "audio.wav"
	transcriptFileName = "transcript.json"
	chunksFileName     = "chunks.json"
)

// Store lays artifacts out as <root>/<video id>/<file>
type Store struct {
	root string
}

// New creates an artifact store rooted at dir
func New(root string) *Store {
	return &Store{root: root}
}

// Dir returns the artifact directory of a video, creating it if needed
func (s *Store) Dir(videoID string) (string, error) {
	dir := filepath.Join(s.root, videoID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return dir, nil
}

// AudioPath returns where the extracted audio of a video is written
func (s *Store) AudioPath(videoID string) (string, error) {
	dir, err := s.Dir(videoID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, audioFileName), nil
}

// SaveTranscript writes the transcript segments and returns the file path
func (s *Store) SaveTranscript(videoID string, segments []model.Segment) (string, error) {
	return s.save(videoID, transcriptFileName, segments)
}

// LoadTranscript reads the transcript segments of a video
func (s *Store) LoadTranscript(videoID string) ([]model.Segment, error) {
	var segments []model.Segment
	if err := s.load(videoID, transcriptFileName, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}

// SaveChunks writes the chunk set of a video, replacing any previous set
func (s *Store) SaveChunks(videoID string, chunks []model.Chunk) (string, error) {
	return s.save(videoID, chunksFileName, chunks)
}

// LoadChunks reads the chunk set of a video. A video that never reached
// chunking has no chunk set and yields an empty slice.
func (s *Store) LoadChunks(videoID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := s.load(videoID, chunksFileName, &chunks); err != nil {
		if os.IsNotExist(err) {
			return []model.Chunk{}, nil
		}
		return nil, err
	}
	return chunks, nil
}

// Clear removes the chunk set and transcript left by a previous attempt
func (s *Store) Clear(videoID string) error {
	dir := filepath.Join(s.root, videoID)
	for _, name := range []string{transcriptFileName, chunksFileName, audioFileName} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}

// Remove deletes the artifact directory of a video
func (s *Store) Remove(videoID string) error {
	if videoID == "" || filepath.Base(videoID) != videoID {
		return fmt.Errorf("invalid video id %q", videoID)
	}
	if err := os.RemoveAll(filepath.Join(s.root, videoID)); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}
	return nil
}

// save serialises v atomically: write a temp file, then rename over the target
func (s *Store) save(videoID, name string, v any) (string, error) {
	dir, err := s.Dir(videoID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	target := filepath.Join(dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", fmt.Errorf("failed to persist %s: %w", name, err)
	}
	return target, nil
}

func (s *Store) load(videoID, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, videoID, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}
