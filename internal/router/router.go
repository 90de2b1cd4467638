package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // the Echo web framework handles routing

    "github.com/iliyamo/edition-registry/internal/handler"    // handlers implementing the endpoints
    "github.com/iliyamo/edition-registry/internal/middleware" // signature, JWT, rate limit and cache middleware
)

// RegisterRoutes registers routes that carry no authentication on the
// provided Echo instance.  Currently it exposes only a health check,
// used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterWebhooks registers the order event ingress under
// /v1/webhooks.  Every route is authenticated by the HMAC signature
// middleware using the shared webhook secret, and rate limited when a
// limiter is supplied (pass nil middleware entries to skip).
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler, webhookSecret string, extra ...echo.MiddlewareFunc) {
    g := e.Group("/v1/webhooks")
    for _, mw := range extra {
        if mw != nil {
            g.Use(mw)
        }
    }
    g.Use(middleware.VerifySignature(webhookSecret))
    g.POST("/orders/created", w.OrderCreated)
    g.POST("/orders/cancelled", w.OrderCancelled)
}

// RegisterPublic registers the unauthenticated certificate read
// endpoints.  The optional middleware (typically the short-TTL response
// cache) applies to the whole group.
func RegisterPublic(e *echo.Echo, eh *handler.EditionHandler, extra ...echo.MiddlewareFunc) {
    g := e.Group("/v1/products")
    for _, mw := range extra {
        if mw != nil {
            g.Use(mw)
        }
    }
    // Active editions of a product, in position order.
    g.GET("/:id/editions", eh.ListEditions)
    // Certificate data for a single order line.
    g.GET("/:id/editions/:orderRef/:itemRef", eh.GetCertificate)
}

// RegisterAdmin registers the token endpoint and the JWT-protected
// operator surface.  The token endpoint lives outside the protected
// group; everything under /v1/admin requires a valid ADMIN token.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler, ad *handler.AdminHandler, jwtSecret string) {
    e.POST("/v1/auth/token", a.Token)

    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("ADMIN"))
    // Repair entry point: re-run the renumber for one product.
    g.POST("/products/:id/reconcile", ad.Reconcile)
    // Full audit listing, retired allocations included.
    g.GET("/products/:id/allocations", ad.ListAllocations)
}
