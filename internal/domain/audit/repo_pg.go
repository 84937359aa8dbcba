package audit

import (
	"context"
	"fmt"

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

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const auditCols = `id, seq, action, entity_type, entity_id, details, actor, ts`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Seq, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &e.Actor, &e.Timestamp)
	return &e, err
}

func (r *RepoPG) Append(ctx context.Context, e *Entry) error {
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO audit_entry (id, action, entity_type, entity_id, details, actor, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq`,
		e.ID, e.Action, e.EntityType, e.EntityID, e.Details, e.Actor, e.Timestamp,
	).Scan(&e.Seq)
}

func (r *RepoPG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "", nil, limit, offset)
}

func (r *RepoPG) ListByEntityType(ctx context.Context, t EntityType, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE entity_type = $1", []interface{}{t}, limit, offset)
}

func (r *RepoPG) ListByEntityID(ctx context.Context, id uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, "WHERE entity_id = $1", []interface{}{id}, limit, offset)
}

func (r *RepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Entry, int, error) {
	countQ := "SELECT COUNT(*) FROM audit_entry " + where
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_entry %s ORDER BY seq DESC LIMIT $%d OFFSET $%d",
		auditCols, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
