package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "sort"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/edition-registry/internal/allocator"
    "github.com/iliyamo/edition-registry/internal/model"
    "github.com/iliyamo/edition-registry/internal/repository"
)

// fakeStore is a minimal in-memory allocator.Store for handler tests.
type fakeStore struct {
    mu     sync.Mutex
    nextID uint64
    rows   map[uint64]*model.Allocation
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[uint64]*model.Allocation{}} }

func (s *fakeStore) find(productID, orderRef, itemRef string) *model.Allocation {
    for _, a := range s.rows {
        if a.ProductID == productID && a.OrderRef == orderRef && a.ItemRef == itemRef {
            return a
        }
    }
    return nil
}

func (s *fakeStore) FindByEventKey(_ context.Context, productID, orderRef, itemRef string) (*model.Allocation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if a := s.find(productID, orderRef, itemRef); a != nil {
        cp := *a
        return &cp, nil
    }
    return nil, repository.ErrUnknownRecord
}

func (s *fakeStore) Insert(_ context.Context, a *model.Allocation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.find(a.ProductID, a.OrderRef, a.ItemRef) != nil {
        return repository.ErrDuplicateEvent
    }
    s.nextID++
    a.ID = s.nextID
    a.State = model.StateActive
    a.CreatedAt = time.Now().UTC().Add(time.Duration(s.nextID) * time.Millisecond)
    a.UpdatedAt = a.CreatedAt
    cp := *a
    s.rows[a.ID] = &cp
    return nil
}

func (s *fakeStore) ListActiveByProduct(_ context.Context, productID string) ([]model.Allocation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Allocation, 0)
    for _, a := range s.rows {
        if a.ProductID == productID && a.State == model.StateActive {
            out = append(out, *a)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
    return out, nil
}

func (s *fakeStore) UpdatePositions(_ context.Context, _ string, assignments []model.PositionAssignment) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, as := range assignments {
        pos := as.Position
        s.rows[as.ID].Position = &pos
    }
    return nil
}

func (s *fakeStore) MarkRetired(_ context.Context, id uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.rows[id].State = model.StateRetired
    s.rows[id].Position = nil
    return nil
}

func (s *fakeStore) WithProductLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
    return fn(ctx)
}

func postJSON(t *testing.T, h echo.HandlerFunc, target, body string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    require.NoError(t, h(c))
    return rec
}

func TestOrderCreatedAssignsPosition(t *testing.T) {
    h := NewWebhookHandler(allocator.New(newFakeStore(), nil, false))

    rec := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created",
        `{"product_id":"P1","order_ref":"O1","item_ref":"L1","capacity":3}`)
    require.Equal(t, http.StatusOK, rec.Code)

    var got map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
    assert.Equal(t, float64(1), got["position"])
    assert.Equal(t, "ACTIVE", got["state"])
    assert.Equal(t, float64(3), got["total_capacity"])
}

func TestOrderCreatedRedeliveryReturnsSameRecord(t *testing.T) {
    h := NewWebhookHandler(allocator.New(newFakeStore(), nil, false))
    body := `{"product_id":"P1","order_ref":"O1","item_ref":"L1"}`

    first := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created", body)
    second := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created", body)
    require.Equal(t, http.StatusOK, first.Code)
    require.Equal(t, http.StatusOK, second.Code)

    var a, b map[string]any
    require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
    require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
    assert.Equal(t, a["id"], b["id"])
    assert.Equal(t, a["position"], b["position"])
}

func TestOrderCreatedRejectsMalformedPayload(t *testing.T) {
    h := NewWebhookHandler(allocator.New(newFakeStore(), nil, false))

    cases := []string{
        `{"order_ref":"O1","item_ref":"L1"}`,
        `{"product_id":"P1","item_ref":"L1"}`,
        `{"product_id":"P1","order_ref":"O1"}`,
        `{"product_id":"  ","order_ref":"O1","item_ref":"L1"}`,
        `{"product_id":"P1","order_ref":"O1","item_ref":"L1","capacity":0}`,
    }
    for _, body := range cases {
        rec := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created", body)
        assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "payload %s", body)
    }
}

func TestOrderCreatedSoldOut(t *testing.T) {
    h := NewWebhookHandler(allocator.New(newFakeStore(), nil, true))

    rec := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created",
        `{"product_id":"P1","order_ref":"O1","item_ref":"L1","capacity":1}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created",
        `{"product_id":"P1","order_ref":"O2","item_ref":"L1","capacity":1}`)
    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrderCancelledCompactsAndToleratesUnknown(t *testing.T) {
    store := newFakeStore()
    alloc := allocator.New(store, nil, false)
    h := NewWebhookHandler(alloc)

    for _, ref := range []string{"O1", "O2", "O3"} {
        rec := postJSON(t, h.OrderCreated, "/v1/webhooks/orders/created",
            `{"product_id":"P1","order_ref":"`+ref+`","item_ref":"L1"}`)
        require.Equal(t, http.StatusOK, rec.Code)
    }

    rec := postJSON(t, h.OrderCancelled, "/v1/webhooks/orders/cancelled",
        `{"product_id":"P1","order_ref":"O2","item_ref":"L1"}`)
    require.Equal(t, http.StatusOK, rec.Code)

    // Unknown order line: still a 200 no-op.
    rec = postJSON(t, h.OrderCancelled, "/v1/webhooks/orders/cancelled",
        `{"product_id":"P1","order_ref":"O9","item_ref":"L1"}`)
    assert.Equal(t, http.StatusOK, rec.Code)

    active, err := store.ListActiveByProduct(context.Background(), "P1")
    require.NoError(t, err)
    require.Len(t, active, 2)
    assert.Equal(t, uint32(1), *active[0].Position)
    assert.Equal(t, "O1", active[0].OrderRef)
    assert.Equal(t, uint32(2), *active[1].Position)
    assert.Equal(t, "O3", active[1].OrderRef)
}
