package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/investly/adminportal/internal/pages"
	"github.com/investly/adminportal/internal/rbac"
	"github.com/investly/adminportal/internal/roles"
)

func newCatalog(tb testing.TB) *roles.Service {
	tb.Helper()
	registry, err := pages.Default()
	if err != nil {
		tb.Fatalf("load registry: %v", err)
	}
	svc := roles.NewService(roles.NewMemoryRepository(), registry, roles.ServiceConfig{})
	if err := svc.Init(context.Background()); err != nil {
		tb.Fatalf("init catalog: %v", err)
	}
	return svc
}

func newRolesRouter(svc *roles.Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/roles", roles.NewHandler(nil, svc, rbac.Middleware{Resolver: svc}).MountRoutes)
	return r
}

func TestPermissionCheckLatency(t *testing.T) {
	svc := newCatalog(t)
	ctx := context.Background()

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		svc.HasPermission(ctx, roles.ManagerID, "orders", pages.ActionApprove)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("permission check regression: p95=%s", p95)
	}
}

func TestListRolesLatency(t *testing.T) {
	h := newRolesRouter(newCatalog(t))

	samples := make([]time.Duration, 0, 50)
	for i := 0; i < cap(samples); i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/roles/", nil)
		req.Header.Set(rbac.DefaultRoleHeader, roles.ViewerID)
		rec := httptest.NewRecorder()
		start := time.Now()
		h.ServeHTTP(rec, req)
		samples = append(samples, time.Since(start))
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}
	if p95 := percentile95(samples); p95 > 100*time.Millisecond {
		t.Fatalf("list roles regression: p95=%s", p95)
	}
}

func BenchmarkHasPermission(b *testing.B) {
	svc := newCatalog(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc.HasPermission(ctx, roles.OperationsID, "payments", pages.ActionExport)
	}
}

func BenchmarkGetRoleHTTP(b *testing.B) {
	h := newRolesRouter(newCatalog(b))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/roles/"+roles.ManagerID, nil)
		req.Header.Set(rbac.DefaultRoleHeader, roles.SuperAdminID)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
