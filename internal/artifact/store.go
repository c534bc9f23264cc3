// Package artifact persists trained models per building and publishes them
// to concurrent forecasters.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"energy_forecast/internal/predictor"
)

// Store persists one artifact per building. Save replaces the previous
// artifact atomically; Load returns model.ErrArtifactNotFound for buildings
// that were never trained.
type Store interface {
	Save(ctx context.Context, a *predictor.Artifact) error
	Load(ctx context.Context, buildingID string) (*predictor.Artifact, error)
}

// objectName maps a building ID to a key safe for paths and object stores.
func objectName(buildingID string) string {
	return url.PathEscape(buildingID) + ".json"
}

func encode(a *predictor.Artifact) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact %s: %w", a.BuildingID, err)
	}
	return data, nil
}

func decode(buildingID string, data []byte) (*predictor.Artifact, error) {
	var a predictor.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", buildingID, err)
	}
	return &a, nil
}
