package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/edition-registry/internal/config"
    "github.com/iliyamo/edition-registry/internal/utils"
)

// AuthHandler mints admin access tokens.  There is a single admin
// account, configured by ADMIN_USER and ADMIN_PASS_HASH; this service
// has no user registration.
type AuthHandler struct {
    Cfg config.Config
}

// NewAuthHandler constructs an AuthHandler over the loaded configuration.
func NewAuthHandler(cfg config.Config) *AuthHandler { return &AuthHandler{Cfg: cfg} }

// Token handles POST /v1/auth/token.  It exchanges the admin
// credentials for a short-lived HS256 JWT with the ADMIN role.  The
// same 401 is returned for a wrong user and a wrong password so the
// endpoint does not confirm account names.
func (h *AuthHandler) Token(c echo.Context) error {
    var body struct {
        Username string `json:"username"`
        Password string `json:"password"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Username != h.Cfg.AdminUser || !utils.VerifyPassword(h.Cfg.AdminPassHash, body.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Cfg.AdminUser, "ADMIN", h.Cfg.AccessTTLMin)
    if err != nil {
        c.Logger().Errorf("auth: token mint failed: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access_token": tok.Token,
        "expires_at":   tok.Exp.Format(time.RFC3339),
    })
}
