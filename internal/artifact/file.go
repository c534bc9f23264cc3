package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
)

// FileStore keeps artifacts as JSON files in one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Save writes to a temp file in the same directory and renames it over the
// previous artifact, so readers see either the old or the new file.
func (s *FileStore) Save(_ context.Context, a *predictor.Artifact) error {
	data, err := encode(a)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(a.BuildingID)); err != nil {
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, buildingID string) (*predictor.Artifact, error) {
	data, err := os.ReadFile(s.path(buildingID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, model.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", buildingID, err)
	}
	return decode(buildingID, data)
}

func (s *FileStore) path(buildingID string) string {
	return filepath.Join(s.dir, objectName(buildingID))
}
