package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/edition-registry/internal/repository"
)

// EditionHandler serves the public certificate read surface.  These
// endpoints always read live data: positions legitimately shift when an
// earlier edition is cancelled, so the only caching in front of them is
// the short-TTL response cache middleware.
type EditionHandler struct {
    Repo *repository.AllocationRepo
}

// NewEditionHandler constructs an EditionHandler.  The repository must be non-nil.
func NewEditionHandler(repo *repository.AllocationRepo) *EditionHandler {
    if repo == nil {
        panic("nil repository passed to NewEditionHandler")
    }
    return &EditionHandler{Repo: repo}
}

// ListEditions handles GET /v1/products/:id/editions.  It returns the
// active editions of a product in position order, the data a gallery
// page needs to render "Edition #N of M" for each sold piece.
func (h *EditionHandler) ListEditions(c echo.Context) error {
    productID := c.Param("id")
    if productID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
    }
    active, err := h.Repo.ListActiveByProduct(c.Request().Context(), productID)
    if err != nil {
        c.Logger().Errorf("editions: list for product %s failed: %v", productID, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    editions := make([]echo.Map, 0, len(active))
    for i := range active {
        editions = append(editions, allocationView(&active[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{
        "product_id": productID,
        "count":      len(editions),
        "editions":   editions,
    })
}

// GetCertificate handles GET /v1/products/:id/editions/:orderRef/:itemRef.
// It returns the certificate data for one order line.  An allocation
// whose renumber has not completed yet has a null position — callers
// treat that as "number pending", not as an error.  Retired allocations
// are returned with their RETIRED state so a cancelled order's
// certificate page can say so.
func (h *EditionHandler) GetCertificate(c echo.Context) error {
    productID := c.Param("id")
    orderRef := c.Param("orderRef")
    itemRef := c.Param("itemRef")
    if productID == "" || orderRef == "" || itemRef == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid certificate reference"})
    }
    rec, err := h.Repo.FindByEventKey(c.Request().Context(), productID, orderRef, itemRef)
    if err != nil {
        if errors.Is(err, repository.ErrUnknownRecord) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "edition not found"})
        }
        c.Logger().Errorf("editions: certificate lookup %s/%s/%s failed: %v", productID, orderRef, itemRef, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, allocationView(rec))
}
