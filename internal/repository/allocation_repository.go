package repository

import (
    "context"
    "crypto/sha1"
    "database/sql"
    "encoding/hex"
    "errors"
    "fmt"
    "sort"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/edition-registry/internal/model"
)

// mysqlDupEntry is the server error number MySQL reports when an insert
// or update collides with a unique key.
const mysqlDupEntry = 1062

// AllocationRepo provides durable CRUD over the allocations table and
// the per-product advisory lock that serializes renumber passes.  All
// timestamp columns are stored in UTC.  Positions are only ever written
// through UpdatePositions; no other method touches them except
// MarkRetired, which clears the retired record's own position.
type AllocationRepo struct {
    db *sql.DB
}

// NewAllocationRepo returns a new AllocationRepo bound to the given database.
func NewAllocationRepo(db *sql.DB) *AllocationRepo { return &AllocationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repository calls.
func (r *AllocationRepo) DB() *sql.DB { return r.db }

const allocationColumns = `id, product_id, order_ref, item_ref, position, total_capacity, state, created_at, updated_at`

// scanAllocation reads one allocations row from a row scanner.
func scanAllocation(scan func(dest ...any) error) (*model.Allocation, error) {
    var a model.Allocation
    var pos, capacity sql.NullInt64
    if err := scan(&a.ID, &a.ProductID, &a.OrderRef, &a.ItemRef, &pos, &capacity, &a.State, &a.CreatedAt, &a.UpdatedAt); err != nil {
        return nil, err
    }
    if pos.Valid {
        p := uint32(pos.Int64)
        a.Position = &p
    }
    if capacity.Valid {
        c := uint32(capacity.Int64)
        a.TotalCapacity = &c
    }
    return &a, nil
}

// FindByEventKey looks up the allocation created for a given order line.
// It returns ErrUnknownRecord when no allocation matches the idempotency
// key.  Used before insert to detect webhook redelivery and by the
// certificate lookup endpoint.
func (r *AllocationRepo) FindByEventKey(ctx context.Context, productID, orderRef, itemRef string) (*model.Allocation, error) {
    const q = `SELECT ` + allocationColumns + ` FROM allocations
               WHERE product_id = ? AND order_ref = ? AND item_ref = ?`
    a, err := scanAllocation(r.db.QueryRowContext(ctx, q, productID, orderRef, itemRef).Scan)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrUnknownRecord
        }
        return nil, err
    }
    return a, nil
}

// Insert persists a new allocation in state ACTIVE with no position.
// The generated ID and database-assigned timestamps are populated on
// the provided record.  When the idempotency key already exists the
// insert fails with ErrDuplicateEvent; callers must treat that as
// "already processed", not as a failure.
func (r *AllocationRepo) Insert(ctx context.Context, a *model.Allocation) error {
    const q = `INSERT INTO allocations (product_id, order_ref, item_ref, total_capacity, state)
               VALUES (?, ?, ?, ?, ?)`
    var capacity any
    if a.TotalCapacity != nil {
        capacity = *a.TotalCapacity
    }
    res, err := r.db.ExecContext(ctx, q, a.ProductID, a.OrderRef, a.ItemRef, capacity, model.StateActive)
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDupEntry {
            // Position is NULL on insert, so the only unique key this
            // statement can collide with is the idempotency key.
            return ErrDuplicateEvent
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    a.ID = uint64(id)
    a.State = model.StateActive
    a.Position = nil
    // Query back the full row to populate timestamps and defaults.
    const sel = `SELECT ` + allocationColumns + ` FROM allocations WHERE id = ?`
    got, err := scanAllocation(r.db.QueryRowContext(ctx, sel, a.ID).Scan)
    if err != nil {
        return err
    }
    *a = *got
    return nil
}

// ListActiveByProduct returns all ACTIVE allocations for a product
// ordered oldest-first.  The (created_at, id) ordering is the numbering
// tie-break: the earliest-created active record gets position 1.  The
// secondary id sort keeps the order deterministic when two rows share a
// creation timestamp.
func (r *AllocationRepo) ListActiveByProduct(ctx context.Context, productID string) ([]model.Allocation, error) {
    const q = `SELECT ` + allocationColumns + ` FROM allocations
               WHERE product_id = ? AND state = ?
               ORDER BY created_at ASC, id ASC`
    return r.list(ctx, q, productID, model.StateActive)
}

// ListByProduct returns every allocation for a product, retired ones
// included, ordered oldest-first.  Used by the admin audit listing.
func (r *AllocationRepo) ListByProduct(ctx context.Context, productID string) ([]model.Allocation, error) {
    const q = `SELECT ` + allocationColumns + ` FROM allocations
               WHERE product_id = ?
               ORDER BY created_at ASC, id ASC`
    return r.list(ctx, q, productID)
}

func (r *AllocationRepo) list(ctx context.Context, q string, args ...any) ([]model.Allocation, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Allocation, 0)
    for rows.Next() {
        a, err := scanAllocation(rows.Scan)
        if err != nil {
            return nil, err
        }
        out = append(out, *a)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// UpdatePositions applies one renumber batch for a product as a single
// transaction.  Assignments are written in ascending position order:
// because a renumber only ever moves records downward or appends fresh
// records at the tail, ascending order guarantees the target position
// of every update has already been vacated by an earlier update in the
// same batch, so the (product_id, position) unique key never fires
// transiently.  If it fires anyway, two renumber passes interleaved and
// the batch is rolled back with ErrInvariantViolation.
//
// Writing an unchanged position again is a harmless no-op, so callers
// may always submit the full active set.
func (r *AllocationRepo) UpdatePositions(ctx context.Context, productID string, assignments []model.PositionAssignment) error {
    if len(assignments) == 0 {
        return nil
    }
    ordered := make([]model.PositionAssignment, len(assignments))
    copy(ordered, assignments)
    sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    const q = `UPDATE allocations SET position = ? WHERE id = ? AND product_id = ?`
    for _, as := range ordered {
        if _, err := tx.ExecContext(ctx, q, as.Position, as.ID, productID); err != nil {
            var me *mysql.MySQLError
            if errors.As(err, &me) && me.Number == mysqlDupEntry {
                return fmt.Errorf("%w: product %s position %d", ErrInvariantViolation, productID, as.Position)
            }
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// MarkRetired transitions an allocation to RETIRED and clears its
// position so the slot is free for the renumber that follows.  Retiring
// an already-retired record is a harmless repeat of the same write.
func (r *AllocationRepo) MarkRetired(ctx context.Context, id uint64) error {
    const q = `UPDATE allocations SET state = ?, position = NULL WHERE id = ?`
    _, err := r.db.ExecContext(ctx, q, model.StateRetired, id)
    return err
}

// lockTimeoutSeconds bounds how long a renumber waits for a contended
// product before giving up with ErrLockUnavailable.
const lockTimeoutSeconds = 10

// lockName derives the advisory lock name for a product.  MySQL caps
// lock names at 64 characters, so the product ID is hashed rather than
// embedded directly.
func lockName(productID string) string {
    sum := sha1.Sum([]byte(productID))
    return "editions." + hex.EncodeToString(sum[:])
}

// WithProductLock runs fn while holding the MySQL advisory lock for the
// given product.  GET_LOCK and RELEASE_LOCK must run on the same
// connection, so one is pinned from the pool for the duration.  Locks
// for different products are independent; two renumber passes for the
// same product are serialized here.
func (r *AllocationRepo) WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error {
    conn, err := r.db.Conn(ctx)
    if err != nil {
        return err
    }
    defer conn.Close()

    name := lockName(productID)
    var got sql.NullInt64
    if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, lockTimeoutSeconds).Scan(&got); err != nil {
        return err
    }
    if !got.Valid || got.Int64 != 1 {
        return fmt.Errorf("%w: product %s", ErrLockUnavailable, productID)
    }
    defer func() {
        // Best effort: if the release fails the pinned connection is
        // closed below and the server drops the lock with it.
        _, _ = conn.ExecContext(context.WithoutCancel(ctx), `DO RELEASE_LOCK(?)`, name)
    }()
    return fn(ctx)
}
