package admission

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wardops/wardops/internal/domain/audit"
)

// MemStore is an in-memory implementation of the patient, bed and audit
// repositories plus TxRunner. It backs STORE=memory deployments and tests.
//
// Transactions snapshot the whole store and restore it when the callback
// fails, so a failed operation leaves nothing behind. Readers outside a
// transaction take a shared lock for the duration of their call and therefore
// never observe a half-applied transaction. All repository methods return
// copies; stored records are never aliased by callers.
type MemStore struct {
	txMu sync.RWMutex // transactions exclusive, outside-tx readers shared
	mu   sync.Mutex   // guards the maps and the log

	patients map[uuid.UUID]*Patient
	beds     map[uuid.UUID]*Bed
	log      []*audit.Entry
	seq      int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		patients: make(map[uuid.UUID]*Patient),
		beds:     make(map[uuid.UUID]*Bed),
	}
}

type memTxKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(memTxKey{}).(bool)
	return v
}

// WithinTx implements TxRunner. Nested calls reuse the outer transaction.
func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapPatients, snapBeds, snapLog, snapSeq := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snapPatients, snapBeds, snapLog, snapSeq)
		return err
	}
	return nil
}

func (s *MemStore) snapshot() (map[uuid.UUID]*Patient, map[uuid.UUID]*Bed, []*audit.Entry, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	patients := make(map[uuid.UUID]*Patient, len(s.patients))
	for id, p := range s.patients {
		patients[id] = p
	}
	beds := make(map[uuid.UUID]*Bed, len(s.beds))
	for id, b := range s.beds {
		beds[id] = b
	}
	log := make([]*audit.Entry, len(s.log))
	copy(log, s.log)
	return patients, beds, log, s.seq
}

func (s *MemStore) restore(patients map[uuid.UUID]*Patient, beds map[uuid.UUID]*Bed, log []*audit.Entry, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = patients
	s.beds = beds
	s.log = log
	s.seq = seq
}

// rlock takes the shared store lock unless the call happens inside a
// transaction, which already holds the exclusive lock.
func (s *MemStore) rlock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.RLock()
	return s.txMu.RUnlock
}

// Patients returns the store's PatientRepository view.
func (s *MemStore) Patients() PatientRepository { return (*memPatients)(s) }

// Beds returns the store's BedRepository view.
func (s *MemStore) Beds() BedRepository { return (*memBeds)(s) }

// AuditLog returns the store's audit.Repository view.
func (s *MemStore) AuditLog() audit.Repository { return (*memAudit)(s) }

// memPatients, memBeds and memAudit give each repository interface its own
// method set over the shared store.
type memPatients MemStore

func (r *memPatients) store() *MemStore { return (*MemStore)(r) }

func (r *memPatients) Create(ctx context.Context, p *Patient) error {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.patients[p.ID] = p.clone()
	return nil
}

func (r *memPatients) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (r *memPatients) Update(ctx context.Context, p *Patient) error {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.patients[p.ID]; !ok {
		return ErrNotFound
	}
	s.patients[p.ID] = p.clone()
	return nil
}

func (r *memPatients) List(ctx context.Context) ([]*Patient, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AdmissionDate.Equal(out[j].AdmissionDate) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].AdmissionDate.Before(out[j].AdmissionDate)
	})
	return out, nil
}

type memBeds MemStore

func (r *memBeds) store() *MemStore { return (*MemStore)(r) }

func (r *memBeds) Create(ctx context.Context, b *Bed) error {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.beds {
		if existing.BedNumber == b.BedNumber {
			return ErrDuplicate
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.beds[b.ID] = b.clone()
	return nil
}

func (r *memBeds) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.beds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (r *memBeds) GetByNumber(ctx context.Context, bedNumber string) (*Bed, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.beds {
		if b.BedNumber == bedNumber {
			return b.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memBeds) Update(ctx context.Context, b *Bed) error {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beds[b.ID]; !ok {
		return ErrNotFound
	}
	s.beds[b.ID] = b.clone()
	return nil
}

func (r *memBeds) List(ctx context.Context) ([]*Bed, error) {
	return r.listWhere(ctx, func(*Bed) bool { return true })
}

func (r *memBeds) ListAvailable(ctx context.Context) ([]*Bed, error) {
	return r.listWhere(ctx, func(b *Bed) bool { return b.Status == BedAvailable })
}

func (r *memBeds) listWhere(ctx context.Context, keep func(*Bed) bool) ([]*Bed, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Bed
	for _, b := range s.beds {
		if keep(b) {
			out = append(out, b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BedNumber < out[j].BedNumber })
	return out, nil
}

type memAudit MemStore

func (r *memAudit) store() *MemStore { return (*MemStore)(r) }

func (r *memAudit) Append(ctx context.Context, e *audit.Entry) error {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Seq = s.seq
	copied := *e
	s.log = append(s.log, &copied)
	return nil
}

func (r *memAudit) List(ctx context.Context, limit, offset int) ([]*audit.Entry, int, error) {
	return r.listWhere(ctx, func(*audit.Entry) bool { return true }, limit, offset)
}

func (r *memAudit) ListByEntityType(ctx context.Context, t audit.EntityType, limit, offset int) ([]*audit.Entry, int, error) {
	return r.listWhere(ctx, func(e *audit.Entry) bool { return e.EntityType == t }, limit, offset)
}

func (r *memAudit) ListByEntityID(ctx context.Context, id uuid.UUID, limit, offset int) ([]*audit.Entry, int, error) {
	return r.listWhere(ctx, func(e *audit.Entry) bool { return e.EntityID == id }, limit, offset)
}

func (r *memAudit) listWhere(ctx context.Context, keep func(*audit.Entry) bool, limit, offset int) ([]*audit.Entry, int, error) {
	s := r.store()
	defer s.rlock(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*audit.Entry
	for i := len(s.log) - 1; i >= 0; i-- { // newest first by seq
		if keep(s.log[i]) {
			copied := *s.log[i]
			matched = append(matched, &copied)
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
