package transcription

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FFmpeg wraps the ffmpeg and ffprobe binaries
type FFmpeg struct {
	Bin      string
	ProbeBin string
}

// NewFFmpeg creates a wrapper, defaulting to binaries on PATH
func NewFFmpeg(bin, probeBin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if probeBin == "" {
		probeBin = "ffprobe"
	}
	return &FFmpeg{Bin: bin, ProbeBin: probeBin}
}

// ExtractAudio writes the audio track of src to dst as 16 kHz mono PCM WAV
func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	if _, err := exec.LookPath(f.Bin); err != nil {
		return fmt.Errorf("ffmpeg binary not found: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dst,
	}
	if out, err := runCommand(ctx, f.Bin, args...); err != nil {
		return commandError("ffmpeg", out, err)
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("ffmpeg produced no audio: %w", err)
	}
	return nil
}

// SplitAudio cuts a WAV file into parts of the given length inside dir and
// returns the part paths in playback order
func (f *FFmpeg) SplitAudio(ctx context.Context, src, dir string, seconds int) ([]string, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("part length must be positive, got %d", seconds)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parts directory: %w", err)
	}

	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-reset_timestamps", "1",
		filepath.Join(dir, "part_%03d.wav"),
	}
	if out, err := runCommand(ctx, f.Bin, args...); err != nil {
		return nil, commandError("ffmpeg", out, err)
	}

	parts, err := filepath.Glob(filepath.Join(dir, "part_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("failed to locate audio parts: %w", err)
	}
	if len(parts) == 0 {
		return nil, errors.New("no audio parts produced")
	}
	sort.Strings(parts)
	return parts, nil
}

// ProbeDuration returns the media duration in seconds
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := runCommand(ctx, f.ProbeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, commandError("ffprobe", out, err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return d, nil
}

// runCommand executes an external binary and captures combined output
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var output strings.Builder
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	if ctx.Err() != nil {
		return output.String(), ctx.Err()
	}
	return output.String(), err
}

func commandError(name, output string, err error) error {
	output = strings.TrimSpace(output)
	if len(output) > 500 {
		output = output[len(output)-500:]
	}
	if output == "" {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return fmt.Errorf("%s failed: %w: %s", name, err, output)
}

// WAVDuration inspects a PCM WAV header to compute the clip length
func WAVDuration(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(file, header); err != nil {
		return 0, err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, errors.New("not a WAV file")
	}

	var (
		sampleRate    uint32
		bitsPerSample uint16
		channels      uint16
		dataSize      uint32
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(file, chunkHeader[:]); err != nil {
			return 0, err
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		if chunkID == "data" {
			dataSize = chunkSize
			break
		}
		if chunkID == "fmt " {
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(file, buf); err != nil {
				return 0, err
			}
			if len(buf) < 16 {
				return 0, errors.New("invalid fmt chunk")
			}
			channels = binary.LittleEndian.Uint16(buf[2:4])
			sampleRate = binary.LittleEndian.Uint32(buf[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			continue
		}

		skip := int64(chunkSize)
		if skip%2 == 1 {
			skip++
		}
		if _, err := file.Seek(skip, io.SeekCurrent); err != nil {
			return 0, err
		}
	}

	if sampleRate == 0 || channels == 0 || bitsPerSample == 0 {
		return 0, errors.New("missing audio format information")
	}
	bytesPerSample := (bitsPerSample / 8) * channels
	if bytesPerSample == 0 {
		return 0, errors.New("invalid bytes per sample")
	}

	duration := float64(dataSize) / float64(bytesPerSample) / float64(sampleRate)
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, errors.New("invalid duration computed")
	}
	return duration, nil
}
