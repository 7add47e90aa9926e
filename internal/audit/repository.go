package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const timelineSelect = `
SELECT occurred_at, actor, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR entity_id = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id DESC`

// QueryParams holds the bound filter values of a timeline query.
type QueryParams struct {
	FromAt   pgtype.Timestamptz
	ToAt     pgtype.Timestamptz
	Actor    pgtype.Text
	Entity   pgtype.Text
	EntityID pgtype.Text
	Action   pgtype.Text
}

// WindowParams adds paging to QueryParams.
type WindowParams struct {
	QueryParams
	OffsetRows int32
	LimitRows  int32
}

// LogRow is a raw audit_logs row.
type LogRow struct {
	At       pgtype.Timestamptz
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     []byte
}

// Repository reads audit_logs.
type Repository interface {
	TimelineWindow(ctx context.Context, arg WindowParams) ([]LogRow, error)
	TimelineAll(ctx context.Context, arg QueryParams) ([]LogRow, error)
}

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	db Querier
}

// NewRepository constructs a PostgreSQL audit repository.
func NewRepository(db Querier) *PGRepository {
	return &PGRepository{db: db}
}

// TimelineWindow returns one page of rows, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, arg WindowParams) ([]LogRow, error) {
	return r.query(ctx, timelineSelect+"\nLIMIT $7 OFFSET $8", arg.args(arg.LimitRows, arg.OffsetRows)...)
}

// TimelineAll returns every matching row, newest first.
func (r *PGRepository) TimelineAll(ctx context.Context, arg QueryParams) ([]LogRow, error) {
	return r.query(ctx, timelineSelect, arg.args()...)
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]LogRow, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query timeline: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (LogRow, error) {
		var out LogRow
		err := row.Scan(&out.At, &out.Actor, &out.Action, &out.Entity, &out.EntityID, &out.Meta)
		return out, err
	})
}

func (p QueryParams) args(extra ...any) []any {
	return append([]any{p.FromAt, p.ToAt, p.Actor, p.Entity, p.EntityID, p.Action}, extra...)
}

func decodeMeta(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil || len(meta) == 0 {
		return nil
	}
	return meta
}
