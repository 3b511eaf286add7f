package run

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, r *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	List(ctx context.Context, limit, offset int) ([]*Run, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Run, error)
	Count(ctx context.Context) (int, error)
	Start(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, status Status, summary JSONMap) error
}

type UpdateSetter func(*Run) error
