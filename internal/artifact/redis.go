package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
)

const defaultRedisPrefix = "forecast:artifact:"

// RedisStore keeps each artifact as one JSON string value. SET replaces the
// whole value, so readers never see a partial artifact.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Save(ctx context.Context, a *predictor.Artifact) error {
	data, err := encode(a)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+a.BuildingID, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set artifact %s: %w", a.BuildingID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, buildingID string) (*predictor.Artifact, error) {
	data, err := s.client.Get(ctx, s.prefix+buildingID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get artifact %s: %w", buildingID, err)
	}
	return decode(buildingID, data)
}
