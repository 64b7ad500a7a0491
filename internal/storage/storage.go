package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/lastframe/internal/models"
)

const batchSize = 10 // Number of results to batch write

// ManifestName is the file results are appended to inside the output directory.
const ManifestName = "last_frames.json"

// Storage defines the interface for recording extraction results
type Storage interface {
	// AddResult adds a single extraction result
	AddResult(ctx context.Context, result models.Result) error

	// Flush ensures all pending results are saved
	Flush() error
}

// ManifestStorage keeps a JSON manifest of results next to the written frames
type ManifestStorage struct {
	results   []models.Result
	mu        sync.Mutex
	outputDir string
}

// NewStorage creates a manifest writer for outputDir
func NewStorage(outputDir string) *ManifestStorage {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	return &ManifestStorage{
		results:   []models.Result{},
		outputDir: outputDir,
	}
}

// Path returns the manifest location.
func (s *ManifestStorage) Path() string {
	return filepath.Join(s.outputDir, ManifestName)
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *ManifestStorage) AddResult(ctx context.Context, result models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending results to disk
func (s *ManifestStorage) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *ManifestStorage) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	manifestPath := s.Path()

	existing, err := ReadManifest(manifestPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	all := append(existing, s.results...)

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for manifest: %w", err)
	}

	// The previous manifest stays in place until the new one is complete.
	tmp, err := os.CreateTemp(s.outputDir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), manifestPath); err != nil {
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}

	s.results = nil
	return nil
}

// ReadManifest loads the results recorded in a manifest file.
func ReadManifest(manifestPath string) ([]models.Result, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}

	var results []models.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return results, nil
}
