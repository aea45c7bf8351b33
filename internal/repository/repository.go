package repository

import (
	"context"

	"valuestream/internal/domain"
)

// Repository defines the interface for value stream map storage
type Repository interface {
	// Read operations
	ListMaps(ctx context.Context) ([]domain.MapSummary, error)
	GetMap(ctx context.Context, id string) (*domain.ValueStreamMap, error)
	CountMaps(ctx context.Context) (int, error)

	// Write operations
	SaveMap(ctx context.Context, m *domain.ValueStreamMap) error
	DeleteMap(ctx context.Context, id string) error

	// Close releases resources
	Close() error
}
