package model

import "time"

// Allocation states.  ACTIVE records participate in edition numbering;
// RETIRED records belong to cancelled or voided orders and are excluded
// from numbering but kept forever for certificate history.
const (
    StateActive  = "ACTIVE"
    StateRetired = "RETIRED"
)

// Allocation represents one order line's claim on an edition position
// within a limited-edition product.  Positions are 1-based and dense:
// the ACTIVE records of a product always occupy exactly 1..N after a
// renumber pass has completed.
//
// Fields:
//  ID            – primary key identifier.
//  ProductID     – grouping key under which positions are numbered.
//  OrderRef      – external order identifier from the commerce platform.
//  ItemRef       – external order line identifier.  (ProductID, OrderRef,
//                  ItemRef) is the idempotency key: a redelivered event
//                  must never create a second record.
//  Position      – current 1-based edition number; nil until the first
//                  renumber after activation and nil again once retired.
//  TotalCapacity – declared edition size ("of M"), copied in at creation
//                  for display; nil when the product declares none.
//  State         – ACTIVE or RETIRED.
//  CreatedAt     – creation timestamp; the tie-break for numbering.
//  UpdatedAt     – timestamp of the last state or position change.
type Allocation struct {
    ID            uint64     // allocations.id
    ProductID     string     // allocations.product_id
    OrderRef      string     // allocations.order_ref
    ItemRef       string     // allocations.item_ref
    Position      *uint32    // allocations.position (nullable)
    TotalCapacity *uint32    // allocations.total_capacity (nullable)
    State         string     // allocations.state
    CreatedAt     time.Time  // allocations.created_at
    UpdatedAt     time.Time  // allocations.updated_at
}

// Active reports whether the allocation currently participates in numbering.
func (a *Allocation) Active() bool { return a.State == StateActive }
