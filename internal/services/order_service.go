package services

import (
	"context"
	"errors"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"
)

var (
	ErrMissingPayer   = errors.New("missing payer")
	ErrMissingSource  = errors.New("missing source")
	ErrUnpricedType   = errors.New("no price configured for payment type")
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotOrderViewer = errors.New("caller may not view this order")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// OrderStore is the slice of the store the order service needs. *store.Store
// implements it.
type OrderStore interface {
	NextOrderID(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.PaymentOrder) error
	GetOrder(ctx context.Context, id int64) (*models.PaymentOrder, error)
	ListOrders(ctx context.Context, payer string, offset, limit int, desc bool) (int64, []*models.PaymentOrder, error)
}

type OrderService struct {
	Store OrderStore

	// Prices maps each payment type to its required amount in the token's
	// base units.
	Prices map[models.PaymentType]int64

	Now func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *OrderService) CreateOrder(ctx context.Context, payer ledger.Principal, source string, token ledger.Token, paymentType models.PaymentType) (*models.PaymentInfo, error) {
	if payer.Empty() {
		return nil, ErrMissingPayer
	}
	if source == "" {
		return nil, ErrMissingSource
	}

	price, ok := s.Prices[paymentType]
	if !ok || price <= 0 {
		return nil, ErrUnpricedType
	}

	id, err := s.Store.NextOrderID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.PaymentOrder{
		ID:          id,
		Payer:       payer.String(),
		Amount:      price,
		Token:       string(token),
		PaymentType: paymentType,
		Source:      source,
		Status:      models.OrderUnpaid,
		CreatedTime: now,
	}
	if err := s.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	recipient := ledger.OrderSubaccount(payer, uint64(id))
	return &models.PaymentInfo{
		ID:          id,
		Recipient:   recipient[:],
		Token:       string(token),
		Amount:      price,
		PaymentType: paymentType,
		CreatedTime: now,
	}, nil
}

// GetOrder returns the order only to its payer.
func (s *OrderService) GetOrder(ctx context.Context, caller ledger.Principal, id int64) (*models.PaymentOrder, error) {
	order, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	if order.Payer != caller.String() {
		return nil, ErrNotOrderViewer
	}
	return order, nil
}

// CheckPaid reports whether the order exists, belongs to payer, and settled.
func (s *OrderService) CheckPaid(ctx context.Context, payer ledger.Principal, id int64) bool {
	order, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return false
	}
	return order.Status == models.OrderPaid && order.Payer == payer.String()
}

// ListOrders pages through the caller's own orders. Page and size are
// clamped: page defaults to 1, size to 10 with a hard cap of 100.
func (s *OrderService) ListOrders(ctx context.Context, payer ledger.Principal, page, size int, desc bool) (int64, bool, []models.QueryOrder, error) {
	page, size = clampPage(page, size)
	offset := (page - 1) * size

	total, orders, err := s.Store.ListOrders(ctx, payer.String(), offset, size, desc)
	if err != nil {
		return 0, false, nil, err
	}

	out := make([]models.QueryOrder, 0, len(orders))
	for _, order := range orders {
		recipient := ledger.OrderSubaccount(payer, uint64(order.ID))
		out = append(out, models.QueryOrder{
			PaymentOrder: *order,
			Recipient:    recipient[:],
		})
	}

	hasMore := total > int64(page*size)
	return total, hasMore, out, nil
}

func clampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}
