package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/edition-registry/internal/allocator"
    "github.com/iliyamo/edition-registry/internal/model"
)

// WebhookHandler receives order lifecycle events from the commerce
// platform and feeds them into the allocator.  Delivery is
// at-least-once, possibly duplicated and possibly out of order; every
// endpoint is idempotent, so a redelivered event simply returns the
// same result again.  Signature verification happens in middleware
// before these handlers run.
type WebhookHandler struct {
    Alloc *allocator.Allocator
}

// NewWebhookHandler constructs a WebhookHandler.  The allocator must be non-nil.
func NewWebhookHandler(alloc *allocator.Allocator) *WebhookHandler {
    if alloc == nil {
        panic("nil allocator passed to NewWebhookHandler")
    }
    return &WebhookHandler{Alloc: alloc}
}

// orderEventBody is the strongly-typed webhook payload.  Fields are
// validated at this boundary so that zero values never reach position
// math; malformed payloads are rejected with 422 rather than parked
// half-processed.
type orderEventBody struct {
    ProductID string  `json:"product_id"`
    OrderRef  string  `json:"order_ref"`
    ItemRef   string  `json:"item_ref"`
    Capacity  *uint32 `json:"capacity,omitempty"`
}

func (b *orderEventBody) validate() string {
    switch {
    case strings.TrimSpace(b.ProductID) == "":
        return "product_id is required"
    case strings.TrimSpace(b.OrderRef) == "":
        return "order_ref is required"
    case strings.TrimSpace(b.ItemRef) == "":
        return "item_ref is required"
    case b.Capacity != nil && *b.Capacity == 0:
        return "capacity must be positive when present"
    }
    return ""
}

// allocationView renders an allocation for JSON responses.  Position is
// null until the first renumber completes and for retired allocations.
func allocationView(a *model.Allocation) echo.Map {
    return echo.Map{
        "id":             a.ID,
        "product_id":     a.ProductID,
        "order_ref":      a.OrderRef,
        "item_ref":       a.ItemRef,
        "position":       a.Position,
        "total_capacity": a.TotalCapacity,
        "state":          a.State,
        "created_at":     a.CreatedAt,
        "updated_at":     a.UpdatedAt,
    }
}

// OrderCreated handles POST /v1/webhooks/orders/created.  It activates
// an edition allocation for the order line and returns the positioned
// record.  Redelivery returns the existing record with 200 instead of
// creating a duplicate.  When capacity enforcement is enabled and the
// edition is sold out, it returns 409 — the event source must not
// retry that delivery.
func (h *WebhookHandler) OrderCreated(c echo.Context) error {
    var body orderEventBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if msg := body.validate(); msg != "" {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msg})
    }
    rec, err := h.Alloc.Activate(c.Request().Context(), body.ProductID, body.OrderRef, body.ItemRef, body.Capacity)
    if err != nil {
        if errors.Is(err, allocator.ErrCapacityExceeded) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "edition sold out"})
        }
        // Store trouble: the source retries the whole delivery, which
        // is safe because activation is idempotent.
        c.Logger().Errorf("webhook: activate %s/%s/%s failed: %v", body.ProductID, body.OrderRef, body.ItemRef, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "allocation failed"})
    }
    return c.JSON(http.StatusOK, allocationView(rec))
}

// OrderCancelled handles POST /v1/webhooks/orders/cancelled.  It
// retires the order line's allocation and compacts the survivors.
// Cancelling an unknown or already-retired line is a no-op success:
// out-of-order delivery means the cancellation may arrive before the
// creation, or twice.
func (h *WebhookHandler) OrderCancelled(c echo.Context) error {
    var body orderEventBody
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if msg := body.validate(); msg != "" {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msg})
    }
    if err := h.Alloc.Retire(c.Request().Context(), body.ProductID, body.OrderRef, body.ItemRef); err != nil {
        c.Logger().Errorf("webhook: retire %s/%s/%s failed: %v", body.ProductID, body.OrderRef, body.ItemRef, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "retirement failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "retired"})
}
