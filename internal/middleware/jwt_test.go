package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/edition-registry/internal/utils"
)

const jwtSecret = "jwt_test_secret"

func runProtected(t *testing.T, authorization string, roles ...string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    h := JWTAuth(jwtSecret)(RequireRole(roles...)(next))
    req := httptest.NewRequest(http.MethodPost, "/v1/admin/products/P1/reconcile", nil)
    if authorization != "" {
        req.Header.Set("Authorization", authorization)
    }
    rec := httptest.NewRecorder()
    require.NoError(t, h(e.NewContext(req, rec)))
    return rec
}

func TestJWTAuthAcceptsValidAdminToken(t *testing.T) {
    tok, err := utils.NewAccessToken(jwtSecret, "ops", "ADMIN", 5)
    require.NoError(t, err)
    rec := runProtected(t, "Bearer "+tok.Token, "ADMIN")
    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
    rec := runProtected(t, "", "ADMIN")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsForeignToken(t *testing.T) {
    tok, err := utils.NewAccessToken("some-other-secret", "ops", "ADMIN", 5)
    require.NoError(t, err)
    rec := runProtected(t, "Bearer "+tok.Token, "ADMIN")
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
    tok, err := utils.NewAccessToken(jwtSecret, "viewer", "VIEWER", 5)
    require.NoError(t, err)
    rec := runProtected(t, "Bearer "+tok.Token, "ADMIN")
    assert.Equal(t, http.StatusForbidden, rec.Code)
}
