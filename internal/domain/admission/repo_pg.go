package admission

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardops/wardops/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func mapPGError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// -- PatientRepoPG --

type PatientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepoPG(pool *pgxpool.Pool) *PatientRepoPG {
	return &PatientRepoPG{pool: pool}
}

func (r *PatientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, name, age, gender, condition, priority,
	admission_date, expected_discharge_date, actual_discharge_date, bed_id, status`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.Age, &p.Gender, &p.Condition, &p.Priority,
		&p.AdmissionDate, &p.ExpectedDischargeDate, &p.ActualDischargeDate, &p.BedID, &p.Status,
	)
	if err != nil {
		return nil, mapPGError(err)
	}
	return &p, nil
}

func (r *PatientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO patient (id, name, age, gender, condition, priority,
			admission_date, expected_discharge_date, actual_discharge_date, bed_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Age, p.Gender, p.Condition, p.Priority,
		p.AdmissionDate, p.ExpectedDischargeDate, p.ActualDischargeDate, p.BedID, p.Status,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (r *PatientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		"SELECT "+patientCols+" FROM patient WHERE id = $1", id))
}

func (r *PatientRepoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET name = $2, age = $3, gender = $4, condition = $5, priority = $6,
			admission_date = $7, expected_discharge_date = $8, actual_discharge_date = $9,
			bed_id = $10, status = $11
		 WHERE id = $1`,
		p.ID, p.Name, p.Age, p.Gender, p.Condition, p.Priority,
		p.AdmissionDate, p.ExpectedDischargeDate, p.ActualDischargeDate, p.BedID, p.Status,
	)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PatientRepoPG) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx,
		"SELECT "+patientCols+" FROM patient ORDER BY admission_date, id")
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// -- BedRepoPG --

type BedRepoPG struct {
	pool *pgxpool.Pool
}

func NewBedRepoPG(pool *pgxpool.Pool) *BedRepoPG {
	return &BedRepoPG{pool: pool}
}

func (r *BedRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const bedCols = `id, bed_number, ward, status, patient_id, last_updated`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	err := row.Scan(&b.ID, &b.BedNumber, &b.Ward, &b.Status, &b.PatientID, &b.LastUpdated)
	if err != nil {
		return nil, mapPGError(err)
	}
	return &b, nil
}

func (r *BedRepoPG) Create(ctx context.Context, b *Bed) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO bed (id, bed_number, ward, status, patient_id, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.BedNumber, b.Ward, b.Status, b.PatientID, b.LastUpdated,
	)
	if err != nil {
		return mapPGError(err)
	}
	return nil
}

func (r *BedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx,
		"SELECT "+bedCols+" FROM bed WHERE id = $1", id))
}

func (r *BedRepoPG) GetByNumber(ctx context.Context, bedNumber string) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx,
		"SELECT "+bedCols+" FROM bed WHERE bed_number = $1", bedNumber))
}

func (r *BedRepoPG) Update(ctx context.Context, b *Bed) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE bed SET bed_number = $2, ward = $3, status = $4, patient_id = $5, last_updated = $6
		 WHERE id = $1`,
		b.ID, b.BedNumber, b.Ward, b.Status, b.PatientID, b.LastUpdated,
	)
	if err != nil {
		return mapPGError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BedRepoPG) List(ctx context.Context) ([]*Bed, error) {
	return r.listQuery(ctx, "SELECT "+bedCols+" FROM bed ORDER BY bed_number")
}

func (r *BedRepoPG) ListAvailable(ctx context.Context) ([]*Bed, error) {
	return r.listQuery(ctx, "SELECT "+bedCols+" FROM bed WHERE status = 'available' ORDER BY bed_number")
}

func (r *BedRepoPG) listQuery(ctx context.Context, q string, args ...interface{}) ([]*Bed, error) {
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	var out []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PGTxRunner implements TxRunner over a pgx pool using db.WithTx.
type PGTxRunner struct {
	pool *pgxpool.Pool
}

func NewPGTxRunner(pool *pgxpool.Pool) *PGTxRunner {
	return &PGTxRunner{pool: pool}
}

func (r *PGTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}
