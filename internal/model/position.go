package model

// PositionAssignment names the new position of a single allocation
// inside a renumber batch.  A batch always covers every ACTIVE record
// of one product and is applied atomically by the store.
type PositionAssignment struct {
    ID       uint64 // allocations.id
    Position uint32 // new 1-based position
}
