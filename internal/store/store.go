package store

import (
	"context"
	"database/sql"
	"time"

	"govhub/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) NextOrderID(ctx context.Context) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, "SELECT nextval('payment_order_id_seq')").Scan(&id)
	return id, err
}

func (s *Store) CreateOrder(ctx context.Context, order *models.PaymentOrder) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO payment_orders (
			id, payer, amount, amount_paid, token, payment_type,
			source, status, created_time, verified_time, shared_time
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID,
		order.Payer,
		order.Amount,
		order.AmountPaid,
		order.Token,
		order.PaymentType,
		order.Source,
		order.Status,
		order.CreatedTime,
		order.VerifiedTime,
		order.SharedTime,
	)
	return err
}

const orderColumns = `
	id, payer, amount, amount_paid, token, payment_type,
	source, status, created_time, verified_time, shared_time`

func (s *Store) GetOrder(ctx context.Context, id int64) (*models.PaymentOrder, error) {
	row := s.Pool.QueryRow(ctx, `SELECT`+orderColumns+` FROM payment_orders WHERE id=$1`, id)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	var verifiedTime, sharedTime sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.Payer,
		&order.Amount,
		&order.AmountPaid,
		&order.Token,
		&order.PaymentType,
		&order.Source,
		&order.Status,
		&order.CreatedTime,
		&verifiedTime,
		&sharedTime,
	)
	if err != nil {
		return nil, err
	}
	if verifiedTime.Valid {
		order.VerifiedTime = &verifiedTime.Time
	}
	if sharedTime.Valid {
		order.SharedTime = &sharedTime.Time
	}
	return &order, nil
}

// BeginVerifying is the re-entrancy guard: exactly one caller wins the
// unpaid -> verifying transition; everyone else sees false.
func (s *Store) BeginVerifying(ctx context.Context, id int64) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET status=$2 WHERE id=$1 AND status=$3
	`, id, models.OrderVerifying, models.OrderUnpaid)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// RevertUnpaid puts an order back into the retry-eligible state after a
// failed verification, recording the balance observed on the way. Only the
// claim holder's verifying status is reverted.
func (s *Store) RevertUnpaid(ctx context.Context, id int64, amountPaid int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET status=$2, amount_paid=$3 WHERE id=$1 AND status=$4
	`, id, models.OrderUnpaid, amountPaid, models.OrderVerifying)
	return err
}

func (s *Store) MarkTimedOut(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET status=$2 WHERE id=$1 AND status=$3
	`, id, models.OrderTimedOut, models.OrderVerifying)
	return err
}

// MarkPaid settles a verification the caller still holds the claim on.
// Returns false if the claim was lost, e.g. to the stale-verifying sweep.
func (s *Store) MarkPaid(ctx context.Context, id int64, amountPaid int64, verifiedAt time.Time) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET status=$2, amount_paid=$3, verified_time=$4
		WHERE id=$1 AND status=$5
	`, id, models.OrderPaid, amountPaid, verifiedAt, models.OrderVerifying)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// TimeOutStaleVerifying moves orders stuck in verifying past their payment
// window to timed_out. A process that dies between claiming an order and
// finishing verification would otherwise leave it unconfirmable forever.
func (s *Store) TimeOutStaleVerifying(ctx context.Context, createdBefore time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET status=$1
		WHERE status=$2 AND created_time < $3
	`, models.OrderTimedOut, models.OrderVerifying, createdBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) MarkShared(ctx context.Context, id int64, sharedAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET shared_time=$2 WHERE id=$1
	`, id, sharedAt)
	return err
}

func (s *Store) SetAmountPaid(ctx context.Context, id int64, amountPaid int64) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders SET amount_paid=$2 WHERE id=$1
	`, id, amountPaid)
	return err
}

// MarkRefunded settles the refund, guarded so a paid or already-refunded
// order can never flip to refunded underneath a concurrent settlement.
func (s *Store) MarkRefunded(ctx context.Context, id int64, amountPaid int64, resolvedAt time.Time) (bool, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE payment_orders
		SET status=$2, amount_paid=$3, verified_time=$4
		WHERE id=$1 AND status NOT IN ($5, $6)
	`, id, models.OrderRefunded, amountPaid, resolvedAt, models.OrderPaid, models.OrderRefunded)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (s *Store) ListOrders(ctx context.Context, payer string, offset, limit int, desc bool) (int64, []*models.PaymentOrder, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM payment_orders WHERE payer=$1`, payer,
	).Scan(&total); err != nil {
		return 0, nil, err
	}

	direction := "ASC"
	if desc {
		direction = "DESC"
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT`+orderColumns+`
		FROM payment_orders
		WHERE payer=$1
		ORDER BY id `+direction+`
		OFFSET $2 LIMIT $3
	`, payer, offset, limit)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var orders []*models.PaymentOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return 0, nil, err
		}
		orders = append(orders, order)
	}
	return total, orders, rows.Err()
}

// ListUnpaidOrders feeds the deposit-notification matcher; unpaid orders are
// the only ones whose collection subaccounts are still live.
func (s *Store) ListUnpaidOrders(ctx context.Context) ([]*models.PaymentOrder, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT`+orderColumns+` FROM payment_orders WHERE status=$1
	`, models.OrderUnpaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.PaymentOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}
