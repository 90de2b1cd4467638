package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole returns middleware that rejects requests whose JWT role
// claim is not among the allowed roles.  It must run after JWTAuth,
// which stores the role claim in the context.  Requests with a missing
// or unknown role receive 403.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
    allowedSet := make(map[string]struct{}, len(allowed))
    for _, r := range allowed {
        allowedSet[r] = struct{}{}
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get("role").(string)
            if role == "" {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "missing role"})
            }
            if _, ok := allowedSet[role]; !ok {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient role"})
            }
            return next(c)
        }
    }
}
