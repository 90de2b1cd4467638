package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/edition-registry/internal/allocator"
    "github.com/iliyamo/edition-registry/internal/repository"
)

// AdminHandler exposes the operator surface: the reconcile repair
// trigger and the full audit listing.  All routes are JWT-protected
// and require the ADMIN role.
type AdminHandler struct {
    Alloc *allocator.Allocator
    Repo  *repository.AllocationRepo
}

// NewAdminHandler constructs an AdminHandler.  Both dependencies must be non-nil.
func NewAdminHandler(alloc *allocator.Allocator, repo *repository.AllocationRepo) *AdminHandler {
    if alloc == nil || repo == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{Alloc: alloc, Repo: repo}
}

// Reconcile handles POST /v1/admin/products/:id/reconcile.  It re-runs
// the renumber for a product to heal drift after a partial failure.
// The operation is idempotent: with nothing to heal it is a fixed
// point, so running it twice is always safe.
func (h *AdminHandler) Reconcile(c echo.Context) error {
    productID := c.Param("id")
    if productID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
    }
    if err := h.Alloc.Reconcile(c.Request().Context(), productID); err != nil {
        c.Logger().Errorf("admin: reconcile product %s failed: %v", productID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reconcile failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{"product_id": productID, "status": "reconciled"})
}

// ListAllocations handles GET /v1/admin/products/:id/allocations.  It
// returns every allocation for a product, retired ones included, in
// creation order.  Retired records are never deleted — they are the
// audit trail behind every certificate ever issued.
func (h *AdminHandler) ListAllocations(c echo.Context) error {
    productID := c.Param("id")
    if productID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
    }
    all, err := h.Repo.ListByProduct(c.Request().Context(), productID)
    if err != nil {
        c.Logger().Errorf("admin: list allocations for product %s failed: %v", productID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    views := make([]echo.Map, 0, len(all))
    for i := range all {
        views = append(views, allocationView(&all[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{
        "product_id":  productID,
        "count":       len(views),
        "allocations": views,
    })
}
