package admission

import (
	"context"

	"github.com/google/uuid"
)

// PatientRepository stores patient records. Get and Update return ErrNotFound
// for unknown ids; List returns patients in admission order.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context) ([]*Patient, error)
}

// BedRepository stores bed records. Create returns ErrDuplicate when the bed
// number is taken. List returns beds ordered by bed number; ListAvailable
// returns only available beds in the same order, which is the engine's
// deterministic selection order for admissions.
type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	GetByNumber(ctx context.Context, bedNumber string) (*Bed, error)
	Update(ctx context.Context, b *Bed) error
	List(ctx context.Context) ([]*Bed, error)
	ListAvailable(ctx context.Context) ([]*Bed, error)
}

// TxRunner executes fn as one atomic unit: either every write issued inside
// fn becomes visible, or none does. The engine wraps each mutating operation
// in a TxRunner call so entity writes and the audit append commit together.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
