// Package media wraps ffprobe/ffmpeg for the decoding step the transcription
// core treats as opaque: media file in, decoded audio out.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Stream describes a decoded audio stream.
type Stream struct {
	// Path is the source media file the stream is decoded from.
	Path string
	// Duration is the stream length in seconds.
	Duration float64
}

// Decoder turns an input media file into a decoded audio stream.
type Decoder interface {
	Decode(ctx context.Context, inputPath string) (*Stream, error)
}

// ClipExtractor cuts a time range of a stream into a standalone 16 kHz mono
// WAV file the transcription engine can consume. The caller removes the file.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, stream *Stream, start, duration float64) (string, error)
}

// FFmpeg implements Decoder and ClipExtractor by shelling out to the ffmpeg
// tool suite.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
}

// NewFFmpeg creates an FFmpeg wrapper using binaries from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		TempDir:     os.TempDir(),
	}
}

// Decode probes the container and returns the audio stream description.
func (f *FFmpeg) Decode(ctx context.Context, inputPath string) (*Stream, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return nil, fmt.Errorf("ffprobe returned unparsable duration %q: %w", stdout.String(), err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("media has no audible duration")
	}

	return &Stream{Path: inputPath, Duration: duration}, nil
}

// ExtractClip writes the [start, start+duration) range of the stream as a
// 16 kHz mono WAV temp file and returns its path.
func (f *FFmpeg) ExtractClip(ctx context.Context, stream *Stream, start, duration float64) (string, error) {
	out, err := os.CreateTemp(f.TempDir, "transcribe-clip-*.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create clip file: %w", err)
	}
	out.Close()

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", stream.Path,
		"-ac", "1",
		"-ar", "16000",
		"-y",
		out.Name(),
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("ffmpeg clip extraction failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	return out.Name(), nil
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
