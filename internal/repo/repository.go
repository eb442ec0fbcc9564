package repo

import (
	"context"

	"github.com/avolkov/webtracker/internal/domain"
)

// Ports (interfaces) — swap in any DB adapter later.

// ResourceStore persists resource definitions. Lookups return nil, nil
// when no row matches.
type ResourceStore interface {
	Create(ctx context.Context, r *domain.Resource) error
	GetByID(ctx context.Context, id int64) (*domain.Resource, error)
	GetByName(ctx context.Context, name string) (*domain.Resource, error)
	ListAll(ctx context.Context) ([]domain.Resource, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Resource, error)
	Update(ctx context.Context, r *domain.Resource) error
	Delete(ctx context.Context, id int64) error
}

// LogStore is the append-only sink for check outcomes. ListByResource
// returns newest first; limit <= 0 means no cap.
type LogStore interface {
	Append(ctx context.Context, l *domain.Log) error
	ListByResource(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error)
	DeleteByResource(ctx context.Context, resourceID int64) error
}
