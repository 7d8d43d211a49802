package order

import (
	"context"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cookie-factory/internal/domain/cart"
	"github.com/xenking/cookie-factory/internal/domain/catalog"
	"github.com/xenking/cookie-factory/internal/txn"
)

// --- Mock implementations ---

type mockTx struct {
	readOnly bool
	closed   bool
}

func (t *mockTx) Active() bool   { return t != nil && !t.closed }
func (t *mockTx) ReadOnly() bool { return t != nil && t.readOnly }

type mockTxManager struct{}

func (mockTxManager) InTx(ctx context.Context, fn txn.Func) error {
	return fn(ctx, &mockTx{})
}

func (mockTxManager) InReadTx(ctx context.Context, fn txn.Func) error {
	return fn(ctx, &mockTx{readOnly: true})
}

type mockRepo struct {
	byID    map[string]Order
	updates int
}

func newMockRepo(orders ...*Order) *mockRepo {
	m := &mockRepo{byID: make(map[string]Order)}
	for _, o := range orders {
		m.byID[o.ID] = *o
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, tx txn.Tx, o *Order) error {
	if err := txn.RequireWrite(tx); err != nil {
		return err
	}
	m.byID[o.ID] = *o
	return nil
}

func (m *mockRepo) Get(_ context.Context, _ txn.Tx, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return &o, nil
}

func (m *mockRepo) List(_ context.Context, _ txn.Tx) ([]Order, error) {
	out := make([]Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) ListByCustomer(ctx context.Context, tx txn.Tx, customerID string) ([]Order, error) {
	all, _ := m.List(ctx, tx)
	var out []Order
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, _ txn.Tx, id string, from, to Status) error {
	o, ok := m.byID[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if o.Status != from {
		return &TransitionError{OrderID: id, From: o.Status, To: to}
	}
	o.Status = to
	m.byID[id] = o
	m.updates++
	return nil
}

// --- Helpers ---

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("john", []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 2}},
		decimal.RequireFromString("2.60"), "RECEIPT:1")
	require.NoError(t, err)
	return o
}

// --- Tests ---

func TestNew(t *testing.T) {
	items := []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 2}}
	o, err := New("john", items, decimal.RequireFromString("2.60"), "RECEIPT:1")
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "john", o.CustomerID)
	assert.Equal(t, StatusValidated, o.Status)
	assert.Equal(t, "RECEIPT:1", o.ReceiptID)
	assert.False(t, o.CreatedAt.IsZero())

	items[0].Quantity = 99
	assert.Equal(t, 2, o.Items[0].Quantity, "order items must be a copy")
}

func TestNew_Validation(t *testing.T) {
	items := []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 1}}
	price := decimal.RequireFromString("1.30")

	tests := []struct {
		name     string
		customer string
		items    []cart.Item
		price    decimal.Decimal
		receipt  string
		wantErr  error
	}{
		{name: "no customer", customer: "", items: items, price: price, receipt: "r", wantErr: ErrMissingCustomer},
		{name: "no items", customer: "c", items: nil, price: price, receipt: "r", wantErr: ErrEmptyItems},
		{
			name: "zero quantity", customer: "c", price: price, receipt: "r",
			items:   []cart.Item{{Recipe: catalog.Chocolalala, Quantity: 0}},
			wantErr: ErrInvalidQuantity,
		},
		{name: "zero price", customer: "c", items: items, price: decimal.Zero, receipt: "r", wantErr: ErrInvalidPrice},
		{name: "blank receipt", customer: "c", items: items, price: price, receipt: "  ", wantErr: ErrMissingReceipt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.customer, tt.items, tt.price, tt.receipt)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKitchen_Lifecycle(t *testing.T) {
	o := newTestOrder(t)
	repo := newMockRepo(o)
	k := NewKitchen(repo)
	tx := &mockTx{}
	ctx := context.Background()

	require.NoError(t, k.AdvanceToInProgress(ctx, tx, o))
	assert.Equal(t, StatusInProgress, o.Status)

	require.NoError(t, k.AdvanceToReady(ctx, tx, o))
	assert.Equal(t, StatusReady, o.Status)
	assert.Equal(t, StatusReady, repo.byID[o.ID].Status)
	assert.Equal(t, 2, repo.updates)
}

func TestKitchen_RejectsBackwardAndSkippedTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("skip to ready", func(t *testing.T) {
		o := newTestOrder(t)
		k := NewKitchen(newMockRepo(o))

		err := k.AdvanceToReady(ctx, &mockTx{}, o)

		var trErr *TransitionError
		require.ErrorAs(t, err, &trErr)
		assert.Equal(t, StatusValidated, trErr.From)
		assert.Equal(t, StatusReady, trErr.To)
		assert.Equal(t, StatusValidated, o.Status)
	})

	t.Run("start twice", func(t *testing.T) {
		o := newTestOrder(t)
		k := NewKitchen(newMockRepo(o))
		require.NoError(t, k.AdvanceToInProgress(ctx, &mockTx{}, o))

		err := k.AdvanceToInProgress(ctx, &mockTx{}, o)

		var trErr *TransitionError
		require.ErrorAs(t, err, &trErr)
		assert.Equal(t, StatusInProgress, o.Status)
	})
}

func TestKitchen_RequiresTransaction(t *testing.T) {
	o := newTestOrder(t)
	repo := newMockRepo(o)
	k := NewKitchen(repo)
	ctx := context.Background()

	require.ErrorIs(t, k.AdvanceToInProgress(ctx, nil, o), txn.ErrNoTransaction)
	require.ErrorIs(t, k.AdvanceToInProgress(ctx, &mockTx{closed: true}, o), txn.ErrNoTransaction)
	require.ErrorIs(t, k.AdvanceToInProgress(ctx, &mockTx{readOnly: true}, o), txn.ErrReadOnly)
	assert.Equal(t, StatusValidated, o.Status)
	assert.Zero(t, repo.updates)
}

func TestFinder_MarkReady(t *testing.T) {
	o := newTestOrder(t)
	o.Status = StatusInProgress
	repo := newMockRepo(o)
	f := NewFinder(mockTxManager{}, repo, NewKitchen(repo))
	ctx := context.Background()

	ready, err := f.MarkReady(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ready.Status)

	status, err := f.Status(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, status)

	_, err = f.MarkReady(ctx, o.ID)
	require.ErrorIs(t, err, ErrNotInProgress)
}

func TestFinder_MarkReady_Validated(t *testing.T) {
	o := newTestOrder(t)
	repo := newMockRepo(o)
	f := NewFinder(mockTxManager{}, repo, NewKitchen(repo))

	_, err := f.MarkReady(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrNotInProgress)
	assert.Zero(t, repo.updates)
}

func TestFinder_Queries(t *testing.T) {
	o1 := newTestOrder(t)
	o2 := newTestOrder(t)
	o2.CustomerID = "kate"
	o2.CreatedAt = o1.CreatedAt.Add(1)
	f := NewFinder(mockTxManager{}, newMockRepo(o1, o2), nil)
	ctx := context.Background()

	all, err := f.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, o1.ID, all[0].ID)

	mine, err := f.ListByCustomer(ctx, "kate")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, o2.ID, mine[0].ID)

	_, err = f.Retrieve(ctx, "missing")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.ID)
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusValidated.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusReady.Valid())
	assert.False(t, Status("CANCELLED").Valid())
}
