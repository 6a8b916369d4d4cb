package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrderStore struct {
	nextID  int64
	orders  map[int64]*models.PaymentOrder
	listing struct {
		offset, limit int
		desc          bool
	}
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[int64]*models.PaymentOrder{}}
}

func (s *fakeOrderStore) NextOrderID(context.Context) (int64, error) {
	s.nextID++
	return s.nextID, nil
}

func (s *fakeOrderStore) CreateOrder(_ context.Context, order *models.PaymentOrder) error {
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *fakeOrderStore) GetOrder(_ context.Context, id int64) (*models.PaymentOrder, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, errors.New("no rows")
	}
	copied := *order
	return &copied, nil
}

func (s *fakeOrderStore) ListOrders(_ context.Context, payer string, offset, limit int, desc bool) (int64, []*models.PaymentOrder, error) {
	s.listing.offset = offset
	s.listing.limit = limit
	s.listing.desc = desc

	var matched []*models.PaymentOrder
	for _, order := range s.orders {
		if order.Payer == payer {
			matched = append(matched, order)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return total, nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return total, matched[offset:end], nil
}

var testPayer = ledger.Principal([]byte{0x01, 0x02, 0x03})

func newService(store *fakeOrderStore) *OrderService {
	return &OrderService{
		Store: store,
		Prices: map[models.PaymentType]int64{
			models.PaymentDaoCreation:  200_000_000,
			models.PaymentSubscription: 100_000_000,
		},
		Now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newService(newFakeOrderStore())

	_, err := svc.CreateOrder(context.Background(), nil, "dao-7", ledger.TokenICP, models.PaymentDaoCreation)
	assert.ErrorIs(t, err, ErrMissingPayer)

	_, err = svc.CreateOrder(context.Background(), testPayer, "", ledger.TokenICP, models.PaymentDaoCreation)
	assert.ErrorIs(t, err, ErrMissingSource)

	_, err = svc.CreateOrder(context.Background(), testPayer, "dao-7", ledger.TokenICP, models.PaymentType("unknown"))
	assert.ErrorIs(t, err, ErrUnpricedType)
}

func TestCreateOrderAssignsPriceAndRecipient(t *testing.T) {
	store := newFakeOrderStore()
	svc := newService(store)

	info, err := svc.CreateOrder(context.Background(), testPayer, "dao-7", ledger.TokenICP, models.PaymentDaoCreation)
	require.NoError(t, err)

	assert.Equal(t, int64(1), info.ID)
	assert.Equal(t, int64(200_000_000), info.Amount)
	assert.Equal(t, string(ledger.TokenICP), info.Token)

	// The returned deposit address is the derived collection subaccount.
	want := ledger.OrderSubaccount(testPayer, uint64(info.ID))
	assert.Equal(t, want[:], info.Recipient)

	stored := store.orders[1]
	require.NotNil(t, stored)
	assert.Equal(t, models.OrderUnpaid, stored.Status)
	assert.Equal(t, testPayer.String(), stored.Payer)
}

func TestGetOrderOnlyForPayer(t *testing.T) {
	store := newFakeOrderStore()
	svc := newService(store)

	info, err := svc.CreateOrder(context.Background(), testPayer, "dao-7", ledger.TokenICP, models.PaymentDaoCreation)
	require.NoError(t, err)

	order, err := svc.GetOrder(context.Background(), testPayer, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, order.ID)

	_, err = svc.GetOrder(context.Background(), ledger.Principal([]byte{0x99}), info.ID)
	assert.ErrorIs(t, err, ErrNotOrderViewer)

	_, err = svc.GetOrder(context.Background(), testPayer, 404)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCheckPaid(t *testing.T) {
	store := newFakeOrderStore()
	svc := newService(store)

	info, err := svc.CreateOrder(context.Background(), testPayer, "dao-7", ledger.TokenICP, models.PaymentDaoCreation)
	require.NoError(t, err)

	assert.False(t, svc.CheckPaid(context.Background(), testPayer, info.ID))

	store.orders[info.ID].Status = models.OrderPaid
	assert.True(t, svc.CheckPaid(context.Background(), testPayer, info.ID))

	// A settled order is still invisible to anyone but its payer.
	assert.False(t, svc.CheckPaid(context.Background(), ledger.Principal([]byte{0x99}), info.ID))
	assert.False(t, svc.CheckPaid(context.Background(), testPayer, 404))
}

func TestListOrdersClampsPaging(t *testing.T) {
	store := newFakeOrderStore()
	svc := newService(store)

	_, _, _, err := svc.ListOrders(context.Background(), testPayer, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 0, store.listing.offset)
	assert.Equal(t, 10, store.listing.limit)

	_, _, _, err = svc.ListOrders(context.Background(), testPayer, 3, 500, false)
	require.NoError(t, err)
	assert.Equal(t, 20, store.listing.offset)
	assert.Equal(t, 10, store.listing.limit)
	assert.False(t, store.listing.desc)
}

func TestListOrdersRecomputesRecipients(t *testing.T) {
	store := newFakeOrderStore()
	svc := newService(store)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), testPayer, "dao-7", ledger.TokenICP, models.PaymentSubscription)
		require.NoError(t, err)
	}

	total, hasMore, orders, err := svc.ListOrders(context.Background(), testPayer, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.True(t, hasMore)
	require.Len(t, orders, 2)

	for _, order := range orders {
		want := ledger.OrderSubaccount(testPayer, uint64(order.ID))
		assert.Equal(t, want[:], order.Recipient)
	}

	_, hasMore, _, err = svc.ListOrders(context.Background(), testPayer, 2, 2, false)
	require.NoError(t, err)
	assert.False(t, hasMore)
}
