package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BranchLMS/internal/auth"
	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var testConfig = &config.Config{
	JWTSecret:      "secret",
	RBACPolicyFile: "../../config/rbac_policy.csv",
	AllowOrigins:   []string{"http://localhost:5173"},
}

func newApp(t *testing.T) *echo.Echo {
	t.Helper()
	log := zap.NewNop()
	enf, err := NewEnforcer(testConfig, log)
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, testConfig, log)
	api := e.Group("/api", JWT(auth.NewTokens(testConfig)), Authorize(enf, log))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	api.GET("/dashboard/overdue", ok)
	api.POST("/users/:empID/mandatory", ok)
	api.POST("/users/:empID/trainings", ok)
	api.GET("/integrity/orphans", ok)
	api.POST("/integrity/repair", ok)
	api.POST("/hr/sync", ok)
	api.GET("/hr/sync", ok)
	return e
}

func TestEnforcer_MethodMatchesExactly(t *testing.T) {
	enf, err := NewEnforcer(testConfig, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{domain.RoleStoreAdmin, "/api/dashboard/overdue", "GET", true},
		{domain.RoleStoreAdmin, "/api/dashboard/overdue", "XGET", false},
		{domain.RoleStoreAdmin, "/api/dashboard/overdue", "GETS", false},
		{domain.RoleSuperAdmin, "/api/hr/sync", "GET", true},
		{domain.RoleSuperAdmin, "/api/hr/sync", "POST", true},
		{domain.RoleSuperAdmin, "/api/hr/sync", "GETPOST", false},
		{domain.RoleSuperAdmin, "/api/hr/sync", "DELETE", false},
	}
	for _, tt := range tests {
		got, err := enf.Enforce(tt.role, tt.obj, tt.act)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.role, tt.act, tt.obj)
	}
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := auth.NewTokens(testConfig).Generate(auth.Claims{AdminID: primitive.NewObjectID().Hex(), Role: role}, time.Hour)
	require.NoError(t, err)
	return signed
}

func TestAuthorize(t *testing.T) {
	e := newApp(t)

	tests := []struct {
		role   string
		method string
		path   string
		want   int
	}{
		{domain.RoleStoreAdmin, http.MethodGet, "/api/dashboard/overdue", http.StatusNoContent},
		{domain.RoleStoreAdmin, http.MethodPost, "/api/users/EMP7/mandatory", http.StatusNoContent},
		{domain.RoleStoreAdmin, http.MethodPost, "/api/users/EMP7/trainings", http.StatusForbidden},
		{domain.RoleStoreAdmin, http.MethodGet, "/api/integrity/orphans", http.StatusForbidden},
		{domain.RoleClusterAdmin, http.MethodPost, "/api/users/EMP7/trainings", http.StatusNoContent},
		{domain.RoleClusterAdmin, http.MethodGet, "/api/dashboard/overdue", http.StatusNoContent},
		{domain.RoleClusterAdmin, http.MethodGet, "/api/integrity/orphans", http.StatusNoContent},
		{domain.RoleClusterAdmin, http.MethodPost, "/api/integrity/repair", http.StatusForbidden},
		{domain.RoleClusterAdmin, http.MethodPost, "/api/hr/sync", http.StatusForbidden},
		{domain.RoleSuperAdmin, http.MethodPost, "/api/integrity/repair", http.StatusNoContent},
		{domain.RoleSuperAdmin, http.MethodPost, "/api/hr/sync", http.StatusNoContent},
		{domain.RoleSuperAdmin, http.MethodGet, "/api/hr/sync", http.StatusNoContent},
		{domain.RoleClusterAdmin, http.MethodGet, "/api/hr/sync", http.StatusForbidden},
		{domain.RoleSuperAdmin, http.MethodGet, "/api/dashboard/overdue", http.StatusNoContent},
		{"trainer", http.MethodGet, "/api/dashboard/overdue", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token(t, tt.role))
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestJWT_Rejects(t *testing.T) {
	e := newApp(t)

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard/overdue", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("bad input"), http.StatusBadRequest},
		{"wrapped validation", errors.Wrap(domain.NewValidationError("bad input"), "assign"), http.StatusBadRequest},
		{"not found", errors.Wrapf(domain.ErrNotFound, "user %s", "EMP1"), http.StatusNotFound},
		{"duplicate", domain.ErrDuplicate, http.StatusConflict},
		{"referential", &domain.ReferentialIntegrityError{Entity: "module"}, http.StatusConflict},
		{"transient", errors.Wrap(&domain.TransientIOError{Op: "find users", Err: errors.New("timeout")}, "load"), http.StatusServiceUnavailable},
		{"http", echo.NewHTTPError(http.StatusAccepted, "queued"), http.StatusAccepted},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := status(tt.err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestHTTPErrorHandler_ValidationFields(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zap.NewNop())
	e.GET("/x", func(echo.Context) error {
		return domain.NewValidationError("invalid request", domain.FieldError{Field: "limit", Error: "limit must be 1 or greater"})
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid request","fields":{"limit":"limit must be 1 or greater"}}`, rec.Body.String())
}
