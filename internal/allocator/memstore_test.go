package allocator

import (
    "context"
    "sync"
    "time"

    "github.com/iliyamo/edition-registry/internal/model"
    "github.com/iliyamo/edition-registry/internal/repository"
)

// memStore is an in-memory Store used by the allocator tests.  It
// mirrors the MySQL repository's contract: idempotency key uniqueness
// on insert, atomic position batches with an invariant tripwire, and a
// real per-product mutex behind WithProductLock so the concurrency
// tests exercise genuine interleavings.
type memStore struct {
    mu     sync.Mutex
    nextID uint64
    clock  time.Time
    rows   map[uint64]*model.Allocation
    byKey  map[string]uint64

    locksMu sync.Mutex
    locks   map[string]*sync.Mutex

    // failUpdates makes UpdatePositions fail, simulating the store
    // going away between the record write and the renumber batch.
    failUpdates bool
}

func newMemStore() *memStore {
    return &memStore{
        rows:  make(map[uint64]*model.Allocation),
        byKey: make(map[string]uint64),
        locks: make(map[string]*sync.Mutex),
        clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
    }
}

func eventKey(productID, orderRef, itemRef string) string {
    return productID + "\x00" + orderRef + "\x00" + itemRef
}

func (s *memStore) FindByEventKey(_ context.Context, productID, orderRef, itemRef string) (*model.Allocation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    id, ok := s.byKey[eventKey(productID, orderRef, itemRef)]
    if !ok {
        return nil, repository.ErrUnknownRecord
    }
    cp := *s.rows[id]
    return &cp, nil
}

func (s *memStore) Insert(_ context.Context, a *model.Allocation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    key := eventKey(a.ProductID, a.OrderRef, a.ItemRef)
    if _, exists := s.byKey[key]; exists {
        return repository.ErrDuplicateEvent
    }
    s.nextID++
    s.clock = s.clock.Add(time.Millisecond)
    a.ID = s.nextID
    a.State = model.StateActive
    a.Position = nil
    a.CreatedAt = s.clock
    a.UpdatedAt = s.clock
    cp := *a
    s.rows[a.ID] = &cp
    s.byKey[key] = a.ID
    return nil
}

func (s *memStore) ListActiveByProduct(_ context.Context, productID string) ([]model.Allocation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Allocation, 0)
    for _, a := range s.rows {
        if a.ProductID == productID && a.State == model.StateActive {
            out = append(out, *a)
        }
    }
    // created_at ASC, id ASC -- same ordering clause as the SQL store.
    for i := 1; i < len(out); i++ {
        for j := i; j > 0; j-- {
            prev, cur := out[j-1], out[j]
            if cur.CreatedAt.Before(prev.CreatedAt) ||
                (cur.CreatedAt.Equal(prev.CreatedAt) && cur.ID < prev.ID) {
                out[j-1], out[j] = cur, prev
            }
        }
    }
    return out, nil
}

func (s *memStore) UpdatePositions(_ context.Context, productID string, assignments []model.PositionAssignment) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.failUpdates {
        return context.DeadlineExceeded
    }
    // Validate the batch before touching anything so it stays
    // all-or-nothing, and trip on duplicate positions like the
    // (product_id, position) unique key would.
    seen := make(map[uint32]bool, len(assignments))
    for _, as := range assignments {
        if seen[as.Position] {
            return repository.ErrInvariantViolation
        }
        seen[as.Position] = true
        if _, ok := s.rows[as.ID]; !ok {
            return repository.ErrUnknownRecord
        }
    }
    for _, as := range assignments {
        pos := as.Position
        s.rows[as.ID].Position = &pos
        s.rows[as.ID].UpdatedAt = s.clock
    }
    return nil
}

func (s *memStore) MarkRetired(_ context.Context, id uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.rows[id]
    if !ok {
        return repository.ErrUnknownRecord
    }
    a.State = model.StateRetired
    a.Position = nil
    return nil
}

func (s *memStore) WithProductLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error {
    s.locksMu.Lock()
    l, ok := s.locks[productID]
    if !ok {
        l = &sync.Mutex{}
        s.locks[productID] = l
    }
    s.locksMu.Unlock()
    l.Lock()
    defer l.Unlock()
    return fn(ctx)
}

// snapshot returns a copy of every row, for assertions.
func (s *memStore) snapshot() []model.Allocation {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Allocation, 0, len(s.rows))
    for _, a := range s.rows {
        out = append(out, *a)
    }
    return out
}
