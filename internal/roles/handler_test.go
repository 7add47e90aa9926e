package roles

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/investly/adminportal/internal/rbac"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	mw := rbac.Middleware{Resolver: svc}
	h := NewHandler(nil, svc, mw)
	r := chi.NewRouter()
	r.Route("/api/roles", h.MountRoutes)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, role string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set(rbac.DefaultRoleHeader, role)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRole(t *testing.T, rec *httptest.ResponseRecorder) roleResponse {
	t.Helper()
	var out roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListAndGetRoles(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/roles/", ViewerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []roleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, len(DefaultSeeds()))

	rec = do(t, h, http.MethodGet, "/api/roles/"+ViewerID, ViewerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"1"`, rec.Header().Get("ETag"))
	viewer := decodeRole(t, rec)
	assert.Equal(t, "Viewer", viewer.Name)
	require.NotEmpty(t, viewer.Permissions)
	assert.Equal(t, "View Dashboard", viewer.Permissions[0].Actions[0].Label)

	rec = do(t, h, http.MethodGet, "/api/roles/ghost", ViewerID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesRequirePermissions(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/roles/", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/roles/", ViewerID, map[string]any{"name": "Ops"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/roles/"+ManagerID, AdminID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "admin may not delete roles")
}

func TestCreateRoleEndpoint(t *testing.T) {
	h, svc := newTestRouter(t)

	body := map[string]any{
		"name":        "Ops",
		"description": "Operations desk",
		"color":       "#112233",
		"baseRule": map[string]any{
			"kind":        "actions",
			"actions":     []string{"view", "edit", "approve", "export"},
			"exceptPages": []string{"users"},
		},
	}
	rec := do(t, h, http.MethodPost, "/api/roles/", SuperAdminID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeRole(t, rec)
	assert.Equal(t, "/api/roles/"+created.ID, rec.Header().Get("Location"))
	assert.False(t, created.IsSystem)

	role, err := svc.GetRole(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, HasPermission(&role, "users", "view"))
	assert.True(t, HasPermission(&role, "orders", "approve"))

	rec = do(t, h, http.MethodGet, "/api/roles/"+created.ID+"/check?page=dashboard&action=edit", SuperAdminID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check checkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.False(t, check.Allowed)

	rec = do(t, h, http.MethodPost, "/api/roles/", SuperAdminID, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateRoleEndpointValidation(t *testing.T) {
	h, _ := newTestRouter(t)

	cases := map[string]any{
		"missing name":  map[string]any{"baseRule": map[string]any{"kind": "all"}},
		"bad color":     map[string]any{"name": "X", "color": "blue"},
		"unknown rule":  map[string]any{"name": "X", "baseRule": map[string]any{"kind": "sometimes"}},
		"unknown field": map[string]any{"name": "X", "isSystem": true},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/roles/", SuperAdminID, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestPatchPermissionEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	path := "/api/roles/" + ViewerID + "/permissions"

	rec := do(t, h, http.MethodPatch, path, SuperAdminID,
		map[string]any{"pageId": "users", "action": "edit", "enabled": true}, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `"2"`, rec.Header().Get("ETag"))

	rec = do(t, h, http.MethodPatch, path, SuperAdminID,
		map[string]any{"pageId": "users", "action": "delete", "enabled": true}, "If-Match", `"1"`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPatch, path, SuperAdminID,
		map[string]any{"pageId": "ghost", "action": "view", "enabled": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPatch, path, SuperAdminID, map[string]any{"pageId": "users", "action": "view"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "enabled is required")

	rec = do(t, h, http.MethodPatch, "/api/roles/"+SuperAdminID+"/permissions", SuperAdminID,
		map[string]any{"pageId": "roles", "action": "view", "enabled": false})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPatch, path, SuperAdminID,
		map[string]any{"pageId": "users", "action": "view", "enabled": false}, "If-Match", "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchRoleEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPatch, "/api/roles/"+ViewerID, SuperAdminID, map[string]any{"description": "Auditors"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Auditors", decodeRole(t, rec).Description)

	rec = do(t, h, http.MethodPatch, "/api/roles/"+AdminID, SuperAdminID, map[string]any{"name": "Owner"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteRoleEndpoint(t *testing.T) {
	h, svc := newTestRouter(t)

	rec := do(t, h, http.MethodDelete, "/api/roles/"+SuperAdminID, SuperAdminID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/roles/ghost", SuperAdminID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/roles/"+ManagerID, SuperAdminID, nil, "If-Match", `"5"`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/roles/"+ManagerID, SuperAdminID, nil, "If-Match", `"1"`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := svc.GetRole(context.Background(), ManagerID)
	assert.ErrorIs(t, err, ErrNotFound)
}
