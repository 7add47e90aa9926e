package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investly/adminportal/internal/audit"
	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/roles"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	err         error
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, s.err
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, s.err
}

func newAuditRouter(t *testing.T, service *stubTimelineService) http.Handler {
	t.Helper()
	registry, err := pages.Default()
	require.NoError(t, err)
	catalog := roles.NewService(roles.NewMemoryRepository(), registry, roles.ServiceConfig{})
	require.NoError(t, catalog.Init(context.Background()))

	handler := NewHandler(nil, service, rbac.Middleware{Resolver: catalog})
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/api/audit", handler.MountRoutes)
	return r
}

func request(h http.Handler, path, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set(rbac.DefaultRoleHeader, role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTimelineRequiresPermission(t *testing.T) {
	h := newAuditRouter(t, &stubTimelineService{})
	assert.Equal(t, http.StatusForbidden, request(h, "/api/audit/", "").Code)
	assert.Equal(t, http.StatusForbidden, request(h, "/api/audit/", roles.ManagerID).Code)
	assert.Equal(t, http.StatusForbidden, request(h, "/api/audit/export.csv", roles.ManagerID).Code)
}

func TestTimelineWithoutGateDenies(t *testing.T) {
	handler := NewHandler(nil, &stubTimelineService{}, nil)
	r := chi.NewRouter()
	r.Route("/api/audit", handler.MountRoutes)
	assert.Equal(t, http.StatusForbidden, request(r, "/api/audit/", roles.SuperAdminID).Code)
}

func TestTimelineReturnsRows(t *testing.T) {
	service := &stubTimelineService{result: audit.Result{
		Rows:   []audit.TimelineRow{{At: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), Actor: "super_admin", Action: "created", Entity: "role", EntityID: "auditor"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	h := newAuditRouter(t, service)

	rec := request(h, "/api/audit/?from=2026-03-01&to=2026-03-15&entity_id=auditor&action=created&page_size=500", roles.ViewerID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "auditor", body.Rows[0].EntityID)

	f := service.lastFilters
	assert.Equal(t, "2026-03-01", f.From.Format("2006-01-02"))
	assert.Equal(t, "2026-03-16", f.To.Format("2006-01-02"), "upper bound covers the whole day")
	assert.Equal(t, "auditor", f.EntityID)
	assert.Equal(t, "created", f.Action)
	assert.Equal(t, audit.MaxPageSize, f.PageSize)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	h := newAuditRouter(t, service)

	rec := request(h, "/api/audit/", roles.ViewerID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-03-08", service.lastFilters.From.Format("2006-01-02"))
	assert.Equal(t, 1, service.lastFilters.Page)
	assert.Equal(t, audit.DefaultPageSize, service.lastFilters.PageSize)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	h := newAuditRouter(t, &stubTimelineService{})
	cases := map[string]string{
		"bad to":        "/api/audit/?to=yesterday",
		"bad from":      "/api/audit/?from=03-01-2026",
		"inverted":      "/api/audit/?from=2026-03-10&to=2026-03-01",
		"too wide":      "/api/audit/?from=2025-01-01&to=2026-03-01",
		"zero page":     "/api/audit/?page=0",
		"bad page size": "/api/audit/?page_size=x",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			rec := request(h, path, roles.ViewerID)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
		})
	}
}

func TestTimelineServiceError(t *testing.T) {
	h := newAuditRouter(t, &stubTimelineService{err: errors.New("pg down")})
	rec := request(h, "/api/audit/", roles.ViewerID)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pg down")
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{Actor: "admin", Action: "deleted", Entity: "role", EntityID: "temp"}}}
	h := newAuditRouter(t, service)

	assert.Equal(t, http.StatusForbidden, request(h, "/api/audit/export.csv", roles.ViewerID).Code, "export needs roles.edit")

	rec := request(h, "/api/audit/export.csv?from=2026-03-01&to=2026-03-05", roles.AdminID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "role-audit.csv")
	assert.Contains(t, rec.Body.String(), "admin,deleted,role,temp")
}

func TestExportRateLimited(t *testing.T) {
	h := newAuditRouter(t, &stubTimelineService{})
	for i := 0; i < rateLimit; i++ {
		require.Equal(t, http.StatusOK, request(h, "/api/audit/export.csv", roles.AdminID).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, request(h, "/api/audit/export.csv", roles.AdminID).Code)
	assert.Equal(t, http.StatusOK, request(h, "/api/audit/export.csv", roles.SuperAdminID).Code, "limit is per acting role")
}
