// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  OrderLifecycleQueue is consumed; EditionRenumberedQueue
// is published to.
const (
    OrderLifecycleQueue    = "orders.lifecycle"
    EditionRenumberedQueue = "edition.renumbered"
)

// Order event types carried in OrderLifecycleEvent.Type.
const (
    OrderCreated   = "order.created"
    OrderCancelled = "order.cancelled"
)

// OrderLifecycleEvent is the broker-delivered form of an order line
// event, the same shape the webhook ingress accepts.  Delivery is
// at-least-once and possibly out of order; the allocator's idempotency
// makes redelivery harmless.  Capacity is only meaningful on creation
// and is nil when the product declares no edition size.
type OrderLifecycleEvent struct {
    Type      string  `json:"type"`
    ProductID string  `json:"product_id"`
    OrderRef  string  `json:"order_ref"`
    ItemRef   string  `json:"item_ref"`
    Capacity  *uint32 `json:"capacity,omitempty"`
}

// EditionAssignment is one (order line -> position) pair inside an
// EditionRenumberedEvent.
type EditionAssignment struct {
    OrderRef string  `json:"order_ref"`
    ItemRef  string  `json:"item_ref"`
    Position uint32  `json:"position"`
    Capacity *uint32 `json:"capacity,omitempty"`
}

// EditionRenumberedEvent is published after every successful renumber.
// It carries the complete new assignment set for the product so that
// certificate consumers can refresh without querying the registry.
// Consumers must treat it as a snapshot: positions may shift again on
// the next cancellation, so nothing downstream may cache one forever.
type EditionRenumberedEvent struct {
    EventID      string              `json:"event_id"`
    ProductID    string              `json:"product_id"`
    ActiveCount  int                 `json:"active_count"`
    Assignments  []EditionAssignment `json:"assignments"`
    RenumberedAt string              `json:"renumbered_at"`
}
