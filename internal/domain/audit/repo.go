package audit

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the append-only audit log. List queries return entries newest
// first. There is deliberately no update or delete.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
	ListByEntityType(ctx context.Context, t EntityType, limit, offset int) ([]*Entry, int, error)
	ListByEntityID(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Entry, int, error)
}
