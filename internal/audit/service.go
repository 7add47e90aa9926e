package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// ErrNotConfigured is returned when no repository backs the service.
var ErrNotConfigured = errors.New("audit: repository not configured")

// Service reads the role change history.
type Service struct {
	repo Repository
}

// NewService creates an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns a page of audit rows. Page size is clamped to MaxPageSize.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, ErrNotConfigured
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.TimelineWindow(ctx, WindowParams{
		QueryParams: queryParams(filters),
		OffsetRows:  int32((page - 1) * pageSize),
		LimitRows:   int32(pageSize + 1),
	})
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: mapRows(rows), Paging: paging}, nil
}

// Export returns every matching row without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.repo.TimelineAll(ctx, queryParams(filters))
	if err != nil {
		return nil, err
	}
	return mapRows(rows), nil
}

func queryParams(f TimelineFilters) QueryParams {
	return QueryParams{
		FromAt:   toPgTime(f.From),
		ToAt:     toPgTime(f.To),
		Actor:    optionalText(f.Actor),
		Entity:   optionalText(f.Entity),
		EntityID: optionalText(f.EntityID),
		Action:   optionalText(f.Action),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func mapRows(rows []LogRow) []TimelineRow {
	out := make([]TimelineRow, 0, len(rows))
	for _, row := range rows {
		var ts time.Time
		if row.At.Valid {
			ts = row.At.Time
		}
		out = append(out, TimelineRow{
			At:       ts,
			Actor:    row.Actor,
			Action:   row.Action,
			Entity:   row.Entity,
			EntityID: row.EntityID,
			Meta:     decodeMeta(row.Meta),
		})
	}
	return out
}
