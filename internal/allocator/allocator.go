// Package allocator maintains dense, gap-free edition numbering for
// limited-edition products.  For every product the ACTIVE allocations
// occupy exactly the positions 1..N, oldest first, and the whole set is
// renumbered from scratch whenever the active set changes.  Every entry
// point is idempotent, so at-least-once event delivery and operator
// retries are safe by construction.
package allocator

import (
    "context"
    "errors"
    "fmt"
    "log"

    "github.com/iliyamo/edition-registry/internal/model"
    "github.com/iliyamo/edition-registry/internal/repository"
)

// ErrCapacityExceeded is returned by Activate when capacity enforcement
// is enabled and the product already has as many active allocations as
// its declared edition size.
var ErrCapacityExceeded = errors.New("edition capacity exceeded")

// Store is the durable record store the allocator drives.  The MySQL
// implementation lives in internal/repository; tests substitute an
// in-memory implementation.
type Store interface {
    // FindByEventKey returns the allocation for an order line or
    // repository.ErrUnknownRecord when none exists.
    FindByEventKey(ctx context.Context, productID, orderRef, itemRef string) (*model.Allocation, error)
    // Insert persists a new ACTIVE allocation with no position, or
    // fails with repository.ErrDuplicateEvent on idempotency key reuse.
    Insert(ctx context.Context, a *model.Allocation) error
    // ListActiveByProduct returns ACTIVE allocations oldest-first.
    ListActiveByProduct(ctx context.Context, productID string) ([]model.Allocation, error)
    // UpdatePositions applies a full renumber batch atomically.
    UpdatePositions(ctx context.Context, productID string, assignments []model.PositionAssignment) error
    // MarkRetired retires one allocation and clears its position.
    MarkRetired(ctx context.Context, id uint64) error
    // WithProductLock serializes fn against every other locked
    // operation for the same product.
    WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error
}

// Notifier receives the full new assignment set after every successful
// renumber.  Notification failures are logged and never fail the
// triggering operation; consumers read live data anyway.
type Notifier interface {
    EditionsRenumbered(ctx context.Context, productID string, active []model.Allocation) error
}

// Allocator assigns and maintains edition positions.  All mutating
// entry points take the product's advisory lock for the full
// read-compute-write span; operations on different products proceed in
// parallel.
type Allocator struct {
    store           Store
    notifier        Notifier // may be nil
    enforceCapacity bool
}

// New constructs an Allocator.  notifier may be nil when no downstream
// consumer needs renumber notifications.  enforceCapacity controls
// whether Activate rejects order lines beyond the declared edition
// size; the commerce platform historically oversold silently, so this
// defaults to off in config.
func New(store Store, notifier Notifier, enforceCapacity bool) *Allocator {
    if store == nil {
        panic("nil store passed to allocator.New")
    }
    return &Allocator{store: store, notifier: notifier, enforceCapacity: enforceCapacity}
}

// Activate records that an order line became eligible for numbering and
// assigns it the next free position.  Redelivery of the same event
// returns the existing allocation unchanged.  capacity is the product's
// declared edition size, or nil when it declares none.
func (a *Allocator) Activate(ctx context.Context, productID, orderRef, itemRef string, capacity *uint32) (*model.Allocation, error) {
    // Fast path outside the lock: most redeliveries stop here.
    if existing, err := a.store.FindByEventKey(ctx, productID, orderRef, itemRef); err == nil {
        return existing, nil
    } else if !errors.Is(err, repository.ErrUnknownRecord) {
        return nil, err
    }

    var out *model.Allocation
    err := a.store.WithProductLock(ctx, productID, func(ctx context.Context) error {
        if a.enforceCapacity && capacity != nil {
            active, err := a.store.ListActiveByProduct(ctx, productID)
            if err != nil {
                return err
            }
            if uint32(len(active)) >= *capacity {
                return fmt.Errorf("%w: product %s is limited to %d", ErrCapacityExceeded, productID, *capacity)
            }
        }
        rec := &model.Allocation{
            ProductID:     productID,
            OrderRef:      orderRef,
            ItemRef:       itemRef,
            TotalCapacity: capacity,
            State:         model.StateActive,
        }
        if err := a.store.Insert(ctx, rec); err != nil {
            if errors.Is(err, repository.ErrDuplicateEvent) {
                // Lost a race with a concurrent delivery of the same
                // event; the winner's record is the answer.
                existing, ferr := a.store.FindByEventKey(ctx, productID, orderRef, itemRef)
                if ferr != nil {
                    return ferr
                }
                out = existing
                return nil
            }
            return err
        }
        active, err := a.renumber(ctx, productID)
        if err != nil {
            return err
        }
        for i := range active {
            if active[i].ID == rec.ID {
                out = &active[i]
                return nil
            }
        }
        // The record was inserted ACTIVE inside this lock, so it has to
        // be in the renumbered set.
        return fmt.Errorf("allocation %d missing from renumbered set for product %s", rec.ID, productID)
    })
    if err != nil {
        return nil, err
    }
    return out, nil
}

// Retire records that an order line was cancelled or voided.  The
// allocation leaves the numbering and the survivors are compacted down
// to close the gap.  Retiring an unknown or already-retired allocation
// is a no-op: out-of-order and duplicated deliveries are expected.
func (a *Allocator) Retire(ctx context.Context, productID, orderRef, itemRef string) error {
    return a.store.WithProductLock(ctx, productID, func(ctx context.Context) error {
        rec, err := a.store.FindByEventKey(ctx, productID, orderRef, itemRef)
        if err != nil {
            if errors.Is(err, repository.ErrUnknownRecord) {
                return nil
            }
            return err
        }
        if !rec.Active() {
            return nil
        }
        if err := a.store.MarkRetired(ctx, rec.ID); err != nil {
            return err
        }
        _, err = a.renumber(ctx, productID)
        return err
    })
}

// Reconcile re-runs the renumber for a product.  It is the repair entry
// point after a partial failure (record written but siblings left
// un-renumbered) and is safe to call at any time, any number of times:
// with no intervening activity it is a fixed point.
func (a *Allocator) Reconcile(ctx context.Context, productID string) error {
    return a.store.WithProductLock(ctx, productID, func(ctx context.Context) error {
        _, err := a.renumber(ctx, productID)
        return err
    })
}

// renumber recomputes the dense 1..N numbering for a product and writes
// it back in one atomic batch.  Must be called with the product lock
// held.  Positions are recomputed for every active record on every
// call; unchanged writes are harmless, and collectors' numbers may
// shift downward when an earlier edition retires.
func (a *Allocator) renumber(ctx context.Context, productID string) ([]model.Allocation, error) {
    active, err := a.store.ListActiveByProduct(ctx, productID)
    if err != nil {
        return nil, err
    }
    assignments := make([]model.PositionAssignment, len(active))
    for i := range active {
        pos := uint32(i + 1)
        assignments[i] = model.PositionAssignment{ID: active[i].ID, Position: pos}
        active[i].Position = &pos
    }
    if err := a.store.UpdatePositions(ctx, productID, assignments); err != nil {
        if errors.Is(err, repository.ErrInvariantViolation) {
            // Should be impossible with the product lock held; means a
            // writer bypassed the lock. Shout, then propagate.
            log.Printf("allocator: INVARIANT VIOLATION renumbering product %s: %v", productID, err)
        }
        return nil, err
    }
    if a.notifier != nil {
        if nerr := a.notifier.EditionsRenumbered(ctx, productID, active); nerr != nil {
            log.Printf("allocator: renumber notification failed for product %s: %v", productID, nerr)
        }
    }
    return active, nil
}
