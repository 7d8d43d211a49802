package customer

import (
	"context"
	"sort"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cookie-factory/internal/txn"
)

// --- Mock implementations ---

type mockTx struct {
	readOnly bool
}

func (t *mockTx) Active() bool   { return t != nil }
func (t *mockTx) ReadOnly() bool { return t != nil && t.readOnly }

type mockTxManager struct {
	commits   int
	rollbacks int
}

func (m *mockTxManager) run(ctx context.Context, readOnly bool, fn txn.Func) error {
	if err := fn(ctx, &mockTx{readOnly: readOnly}); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func (m *mockTxManager) InTx(ctx context.Context, fn txn.Func) error {
	return m.run(ctx, false, fn)
}

func (m *mockTxManager) InReadTx(ctx context.Context, fn txn.Func) error {
	return m.run(ctx, true, fn)
}

type mockRepo struct {
	byID      map[string]Customer
	createErr error
	deleted   []string
}

func newMockRepo(customers ...Customer) *mockRepo {
	m := &mockRepo{byID: make(map[string]Customer)}
	for _, c := range customers {
		m.byID[c.ID] = c
	}
	return m
}

func (m *mockRepo) Create(_ context.Context, tx txn.Tx, c *Customer) error {
	if err := txn.RequireWrite(tx); err != nil {
		return err
	}
	if m.createErr != nil {
		return m.createErr
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *mockRepo) Get(_ context.Context, tx txn.Tx, id string) (*Customer, error) {
	if err := txn.Require(tx); err != nil {
		return nil, err
	}
	c, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return &c, nil
}

func (m *mockRepo) Lock(ctx context.Context, tx txn.Tx, id string) (*Customer, error) {
	if err := txn.RequireWrite(tx); err != nil {
		return nil, err
	}
	return m.Get(ctx, tx, id)
}

func (m *mockRepo) FindByName(_ context.Context, tx txn.Tx, name string) (*Customer, error) {
	if err := txn.Require(tx); err != nil {
		return nil, err
	}
	for _, c := range m.byID {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, &NotFoundError{Name: name}
}

func (m *mockRepo) List(_ context.Context, _ txn.Tx) ([]Customer, error) {
	out := make([]Customer, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, tx txn.Tx, id string) error {
	if err := txn.RequireWrite(tx); err != nil {
		return err
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Tests ---

func TestRegister(t *testing.T) {
	repo := newMockRepo()
	reg := NewRegistry(&mockTxManager{}, repo)

	c, err := reg.Register(context.Background(), "  john ", "1234896983")
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "john", c.Name)
	assert.Equal(t, "1234896983", c.CreditCard)
	assert.Contains(t, repo.byID, c.ID)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name       string
		custName   string
		creditCard string
		wantErr    error
	}{
		{name: "blank name", custName: "   ", creditCard: "1234567890", wantErr: ErrInvalidName},
		{name: "short card", custName: "kate", creditCard: "123456789", wantErr: ErrInvalidCreditCard},
		{name: "long card", custName: "kate", creditCard: "12345678901", wantErr: ErrInvalidCreditCard},
		{name: "letters in card", custName: "kate", creditCard: "12345abcde", wantErr: ErrInvalidCreditCard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			reg := NewRegistry(&mockTxManager{}, repo)

			_, err := reg.Register(context.Background(), tt.custName, tt.creditCard)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.byID)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	tm := &mockTxManager{}
	repo := newMockRepo(Customer{ID: "c1", Name: "john", CreditCard: "1234896983"})
	reg := NewRegistry(tm, repo)

	_, err := reg.Register(context.Background(), "john", "0000000000")

	var aeErr *AlreadyExistsError
	require.ErrorAs(t, err, &aeErr)
	assert.Equal(t, "john", aeErr.Name)
	assert.Len(t, repo.byID, 1)
	assert.Equal(t, 1, tm.rollbacks)
}

func TestRegister_StoreError(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.New("connection reset")
	reg := NewRegistry(&mockTxManager{}, repo)

	_, err := reg.Register(context.Background(), "john", "1234896983")
	require.ErrorIs(t, err, repo.createErr)
}

func TestRetrieve(t *testing.T) {
	reg := NewRegistry(&mockTxManager{}, newMockRepo(Customer{ID: "c1", Name: "john"}))

	c, err := reg.Retrieve(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "john", c.Name)

	_, err = reg.Retrieve(context.Background(), "missing")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.ID)
}

func TestFindByName(t *testing.T) {
	reg := NewRegistry(&mockTxManager{}, newMockRepo(Customer{ID: "c1", Name: "john"}))

	c, err := reg.FindByName(context.Background(), "john")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ID)

	_, err = reg.FindByName(context.Background(), "kate")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, `customer named "kate" not found`, nfErr.Error())
}

func TestList(t *testing.T) {
	reg := NewRegistry(&mockTxManager{}, newMockRepo(
		Customer{ID: "c2", Name: "kate"},
		Customer{ID: "c1", Name: "john"},
	))

	list, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "john", list[0].Name)
	assert.Equal(t, "kate", list[1].Name)
}

func TestDelete(t *testing.T) {
	repo := newMockRepo(Customer{ID: "c1", Name: "john"})
	reg := NewRegistry(&mockTxManager{}, repo)

	require.NoError(t, reg.Delete(context.Background(), "c1"))
	assert.Equal(t, []string{"c1"}, repo.deleted)

	err := reg.Delete(context.Background(), "c1")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
}
