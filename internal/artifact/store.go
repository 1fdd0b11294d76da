// Package artifact manages the lifecycle of uploaded inputs and generated
// outputs on the local filesystem.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind selects the output artifact family.
type Kind string

const (
	KindTranscript Kind = "transcript"
	KindSubtitle   Kind = "subtitle"
)

// ErrNotFound is returned when a location does not resolve to a stored
// artifact (never created, already purged, or outside the store root).
var ErrNotFound = errors.New("artifact not found")

const (
	uploadsDir     = "uploads"
	transcriptsDir = "outputs/transcripts"
	subtitlesDir   = "outputs/subtitles"
)

// Store keeps artifacts under a single work directory:
//
//	uploads/<job_id>/<original filename>
//	outputs/transcripts/<job_id>.txt
//	outputs/subtitles/<job_id>.srt
//
// Locations handed out are relative to the root; resolution refuses paths
// that escape it.
type Store struct {
	root      string
	retention time.Duration
	logger    *slog.Logger
}

// NewStore creates the work directory layout rooted at root. Outputs older
// than retention are eligible for purging.
func NewStore(root string, retention time.Duration, logger *slog.Logger) (*Store, error) {
	for _, dir := range []string{uploadsDir, transcriptsDir, subtitlesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	return &Store{
		root:      root,
		retention: retention,
		logger:    logger,
	}, nil
}

// SaveInput stores an uploaded media file for the job and returns its
// location.
func (s *Store) SaveInput(jobID, filename string, r io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid input filename %q", filename)
	}

	location := filepath.ToSlash(filepath.Join(uploadsDir, jobID, name))
	path := filepath.Join(s.root, uploadsDir, jobID, name)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	s.logger.Info("Input artifact stored",
		slog.String("job_id", jobID),
		slog.String("location", location),
	)
	return location, nil
}

// Put writes an output artifact and returns its location.
func (s *Store) Put(kind Kind, jobID string, data []byte) (string, error) {
	var location string
	switch kind {
	case KindTranscript:
		location = filepath.ToSlash(filepath.Join(transcriptsDir, jobID+".txt"))
	case KindSubtitle:
		location = filepath.ToSlash(filepath.Join(subtitlesDir, jobID+".srt"))
	default:
		return "", fmt.Errorf("unknown artifact kind %q", kind)
	}

	path := filepath.Join(s.root, filepath.FromSlash(location))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s artifact: %w", kind, err)
	}

	s.logger.Info("Output artifact stored",
		slog.String("job_id", jobID),
		slog.String("kind", string(kind)),
		slog.String("location", location),
	)
	return location, nil
}

// Path resolves a location to an absolute filesystem path, for consumers
// that stream the file instead of loading it into memory.
func (s *Store) Path(location string) (string, error) {
	path, err := s.resolve(location)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to stat artifact: %w", err)
	}
	return path, nil
}

// Get reads the artifact bytes at location.
func (s *Store) Get(location string) ([]byte, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Delete removes the artifact at location. Deleting an absent artifact is
// not an error.
func (s *Store) Delete(location string) error {
	path, err := s.resolve(location)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// RemoveInputs deletes every uploaded input of the job. Called once the job
// reaches a terminal state.
func (s *Store) RemoveInputs(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}

	dir := filepath.Join(s.root, uploadsDir, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove inputs: %w", err)
	}

	s.logger.Info("Input artifacts removed",
		slog.String("job_id", jobID),
	)
	return nil
}

// PurgeExpiredOutputs removes output artifacts older than the retention
// window and returns how many were deleted.
func (s *Store) PurgeExpiredOutputs(now time.Time) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}

	cutoff := now.Add(-s.retention)
	purged := 0

	for _, dir := range []string{transcriptsDir, subtitlesDir} {
		entries, err := os.ReadDir(filepath.Join(s.root, dir))
		if err != nil {
			return purged, fmt.Errorf("failed to scan outputs: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(s.root, dir, entry.Name())); err != nil {
				s.logger.Warn("Failed to purge output artifact",
					slog.String("name", entry.Name()),
					slog.Any("error", err),
				)
				continue
			}
			purged++
		}
	}

	if purged > 0 {
		s.logger.Info("Expired output artifacts purged",
			slog.Int("count", purged),
		)
	}
	return purged, nil
}

// resolve maps a location to an absolute path, refusing escapes from the
// store root.
func (s *Store) resolve(location string) (string, error) {
	if location == "" {
		return "", ErrNotFound
	}

	path := filepath.Join(s.root, filepath.FromSlash(location))
	rootAbs, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve store root: %w", err)
	}
	pathAbs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact path: %w", err)
	}
	if pathAbs != rootAbs && !strings.HasPrefix(pathAbs, rootAbs+string(filepath.Separator)) {
		return "", ErrNotFound
	}
	return pathAbs, nil
}
