package services

import (
	"context"

	"example.com/autoparts/backoffice/internal/cache"
	"example.com/autoparts/backoffice/internal/models"
	"example.com/autoparts/backoffice/internal/repositories"

	"github.com/rs/zerolog/log"
)

// PartService serves the parts listing with a cache in front of the store
type PartService struct {
	store repositories.Store
	cache *cache.RedisCache
}

// NewPartService creates a new part service
func NewPartService(store repositories.Store, redisCache *cache.RedisCache) *PartService {
	return &PartService{
		store: store,
		cache: redisCache,
	}
}

// ListParts returns all parts, cache-aside. The listing entry is invalidated
// by the order workflows whenever stock moves.
func (s *PartService) ListParts(ctx context.Context) ([]models.Part, error) {
	var parts []models.Part

	if s.cache != nil {
		if err := s.cache.Get(ctx, cache.PartListingKey(), &parts); err == nil {
			return parts, nil
		}
	}

	parts, err := s.store.ListParts(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.PartListingKey(), parts, cache.PartListingTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache part listing")
		}
	}

	return parts, nil
}

// GetPart returns one part by business code
func (s *PartService) GetPart(ctx context.Context, code string) (*models.Part, error) {
	part, err := s.store.GetPartByCode(ctx, code)
	if err != nil {
		return nil, mapStoreError(err, "part", code)
	}
	return part, nil
}
