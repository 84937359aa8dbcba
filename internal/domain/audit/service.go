package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service records and reads audit entries. Record never fails silently: any
// repository error is returned to the caller, which is expected to abort the
// enclosing operation so that no mutation commits without its audit record.
type Service struct {
	repo  Repository
	actor string
	now   func() time.Time
}

// NewService creates a Service. actor is the identity written to entries
// recorded through Record; it comes from configuration and defaults to
// "system" there.
func NewService(repo Repository, actor string) *Service {
	return &Service{repo: repo, actor: actor, now: time.Now}
}

// Record appends one entry describing a completed state change. It must be
// called inside the same transaction scope as the mutation it describes.
func (s *Service) Record(ctx context.Context, action Action, entityType EntityType, entityID uuid.UUID, details string) error {
	if !action.Valid() {
		return fmt.Errorf("invalid audit action: %s", action)
	}
	if !entityType.Valid() {
		return fmt.Errorf("invalid audit entity type: %s", entityType)
	}
	if entityID == uuid.Nil {
		return fmt.Errorf("entity id is required")
	}
	if details == "" {
		return fmt.Errorf("details are required")
	}

	e := &Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		Actor:      s.actor,
		Timestamp:  s.now().UTC(),
	}
	if err := s.repo.Append(ctx, e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByEntityType(ctx context.Context, t EntityType, limit, offset int) ([]*Entry, int, error) {
	if !t.Valid() {
		return nil, 0, fmt.Errorf("invalid entity type: %s", t)
	}
	return s.repo.ListByEntityType(ctx, t, limit, offset)
}

func (s *Service) ListByEntityID(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByEntityID(ctx, id, limit, offset)
}
