package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBlobNotFound signals that a staged blob is no longer present on disk.
// Callers decide whether that is fatal (photo) or skippable (document).
var ErrBlobNotFound = errors.New("staged blob not found")

// BlobMeta describes a staged file without exposing its on-disk location.
type BlobMeta struct {
	FileID       string    `json:"file_id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	StoredAt     time.Time `json:"stored_at"`
}

// StagingStore persists draft file uploads on disk keyed by generated ids
// so wizard steps can be revisited without re-uploading. Each blob is a
// data file plus a sidecar metadata record.
type StagingStore struct {
	baseDir string
}

// NewStagingStore ensures the staging directory exists and returns a handle.
func NewStagingStore(baseDir string) (*StagingStore, error) {
	if baseDir == "" {
		baseDir = "./staging"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &StagingStore{baseDir: baseDir}, nil
}

// Store copies the reader into the staging area and returns the blob metadata.
func (s *StagingStore) Store(r io.Reader, originalName, contentType string) (*BlobMeta, error) {
	fileID := uuid.NewString()

	file, err := os.Create(s.dataPath(fileID))
	if err != nil {
		return nil, fmt.Errorf("create staged blob: %w", err)
	}
	size, err := io.Copy(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(s.dataPath(fileID))
		return nil, fmt.Errorf("write staged blob: %w", err)
	}

	meta := &BlobMeta{
		FileID:       fileID,
		OriginalName: originalName,
		Size:         size,
		ContentType:  contentType,
		StoredAt:     time.Now().UTC(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		_ = os.Remove(s.dataPath(fileID))
		return nil, fmt.Errorf("marshal blob metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(fileID), raw, 0o644); err != nil {
		_ = os.Remove(s.dataPath(fileID))
		return nil, fmt.Errorf("write blob metadata: %w", err)
	}
	return meta, nil
}

// Open resolves a staged blob back into a readable stream with its metadata.
func (s *StagingStore) Open(fileID string) (io.ReadCloser, *BlobMeta, error) {
	meta, err := s.Stat(fileID)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(s.dataPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open staged blob: %w", err)
	}
	return file, meta, nil
}

// Stat returns metadata without opening the blob contents.
func (s *StagingStore) Stat(fileID string) (*BlobMeta, error) {
	raw, err := os.ReadFile(s.metaPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob metadata: %w", err)
	}
	var meta BlobMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode blob metadata: %w", err)
	}
	return &meta, nil
}

// Delete removes a staged blob and its metadata if present.
func (s *StagingStore) Delete(fileID string) error {
	if err := os.Remove(s.dataPath(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete staged blob: %w", err)
	}
	if err := os.Remove(s.metaPath(fileID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob metadata: %w", err)
	}
	return nil
}

// CleanupOlderThan removes staged blobs older than the TTL and returns their ids.
func (s *StagingStore) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list staging directory: %w", err)
	}

	deleted := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat staged blob: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		fileID := strings.TrimSuffix(entry.Name(), ".json")
		if err := s.Delete(fileID); err != nil {
			return nil, err
		}
		deleted = append(deleted, fileID)
	}
	return deleted, nil
}

func (s *StagingStore) dataPath(fileID string) string {
	return filepath.Join(s.baseDir, fileID+".bin")
}

func (s *StagingStore) metaPath(fileID string) string {
	return filepath.Join(s.baseDir, fileID+".json")
}
