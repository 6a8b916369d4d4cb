// Package settlement drives the payment-order state machine: verifying that
// funds arrived at an order's collection subaccount, forwarding the
// platform's cut to the treasury, and refunding unsettled orders.
package settlement

import (
	"context"
	"errors"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/models"

	"go.uber.org/zap"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotPayable        = errors.New("order is not payable")
	ErrTimedOut          = errors.New("order verification window elapsed")
	ErrInsufficientFunds = errors.New("insufficient funds received")
	ErrNotOrderOwner     = errors.New("caller is not the order owner")
	ErrNotRefundable     = errors.New("order is not refundable")
	ErrNothingToRefund   = errors.New("order amount is zero")
	ErrBalanceBelowFee   = errors.New("balance below transfer fee")
	ErrRefundFailed      = errors.New("refund transfer failed")
)

// OrderStore is the slice of the store the engine needs. *store.Store
// implements it.
type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (*models.PaymentOrder, error)
	BeginVerifying(ctx context.Context, id int64) (bool, error)
	RevertUnpaid(ctx context.Context, id int64, amountPaid int64) error
	MarkTimedOut(ctx context.Context, id int64) error
	MarkPaid(ctx context.Context, id int64, amountPaid int64, verifiedAt time.Time) (bool, error)
	MarkShared(ctx context.Context, id int64, sharedAt time.Time) error
	SetAmountPaid(ctx context.Context, id int64, amountPaid int64) error
	MarkRefunded(ctx context.Context, id int64, amountPaid int64, resolvedAt time.Time) (bool, error)
}

// TokenGateway is the transfer surface the engine needs. *ledger.Gateway
// implements it.
type TokenGateway interface {
	Balance(ctx context.Context, token ledger.Token, account ledger.Account) uint64
	Transfer(ctx context.Context, token ledger.Token, from *[32]byte, to []byte, amount uint64) (uint64, error)
}

type Engine struct {
	Store   OrderStore
	Gateway TokenGateway

	// HubOwner owns every collection subaccount on the ledgers; Treasury
	// receives the platform's share of settled payments.
	HubOwner ledger.Principal
	Treasury ledger.Principal

	// BaseFee is the platform cut retained out of each settled payment.
	BaseFee uint64

	// ConfirmTTL bounds how long an order may wait for payment.
	ConfirmTTL time.Duration

	Log *zap.Logger
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Confirm verifies that the order's collection subaccount holds the required
// amount and settles the order. Idempotent: confirming a paid order is a
// no-op success. Insufficient funds put the order back to unpaid so the
// caller can retry once the payer has actually sent tokens.
func (e *Engine) Confirm(ctx context.Context, orderID int64) (bool, error) {
	order, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return false, ErrOrderNotFound
	}
	if order.Status == models.OrderPaid {
		return true, nil
	}

	// Claim the order before the first ledger call. Any concurrent confirm,
	// refund, or a terminal status loses here.
	claimed, err := e.Store.BeginVerifying(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, ErrNotPayable
	}

	token, err := ledger.ParseToken(order.Token)
	if err != nil {
		if revertErr := e.Store.RevertUnpaid(ctx, orderID, order.AmountPaid); revertErr != nil {
			e.Log.Error("revert after token parse failure", zap.Int64("order", orderID), zap.Error(revertErr))
		}
		return false, err
	}

	// Strict <: a confirmation at exactly created+TTL is still in time.
	if e.now().After(order.CreatedTime.Add(e.ConfirmTTL)) {
		if err := e.Store.MarkTimedOut(ctx, orderID); err != nil {
			return false, err
		}
		return false, ErrTimedOut
	}

	payer, err := ledger.DecodePrincipal(order.Payer)
	if err != nil {
		if revertErr := e.Store.RevertUnpaid(ctx, orderID, order.AmountPaid); revertErr != nil {
			e.Log.Error("revert after payer decode failure", zap.Int64("order", orderID), zap.Error(revertErr))
		}
		return false, err
	}

	subaccount := ledger.OrderSubaccount(payer, uint64(orderID))
	collection := ledger.Account{Owner: e.HubOwner, Subaccount: &subaccount}
	amountPaid := e.Gateway.Balance(ctx, token, collection)

	if amountPaid == 0 || amountPaid < uint64(order.Amount) {
		if err := e.Store.RevertUnpaid(ctx, orderID, int64(amountPaid)); err != nil {
			return false, err
		}
		return false, ErrInsufficientFunds
	}

	settled, err := e.Store.MarkPaid(ctx, orderID, int64(amountPaid), e.now())
	if err != nil {
		return false, err
	}
	if !settled {
		// The claim was lost while awaiting the balance query.
		return false, ErrNotPayable
	}

	e.share(ctx, orderID, token, &subaccount, amountPaid)
	return true, nil
}

// share forwards amountPaid minus the base fee to the treasury. Failure is
// soft: the payment stays settled, shared_time stays null, and the operator
// reconciles unshared orders out of band.
func (e *Engine) share(ctx context.Context, orderID int64, token ledger.Token, from *[32]byte, amountPaid uint64) {
	if amountPaid <= e.BaseFee {
		if err := e.Store.MarkShared(ctx, orderID, e.now()); err != nil {
			e.Log.Error("mark shared", zap.Int64("order", orderID), zap.Error(err))
		}
		return
	}

	shareAmount := amountPaid - e.BaseFee
	if _, err := e.Gateway.Transfer(ctx, token, from, e.treasuryDestination(token), shareAmount); err != nil {
		e.Log.Warn("revenue share failed",
			zap.Int64("order", orderID),
			zap.Uint64("amount", shareAmount),
			zap.Error(err))
		return
	}
	if err := e.Store.MarkShared(ctx, orderID, e.now()); err != nil {
		e.Log.Error("mark shared", zap.Int64("order", orderID), zap.Error(err))
	}
}

// treasuryDestination matches the gateway's per-token destination format: a
// legacy account identifier for ICP, a raw principal for ICRC ledgers.
func (e *Engine) treasuryDestination(token ledger.Token) []byte {
	if token == ledger.TokenICP {
		id := ledger.AccountID(e.Treasury, nil)
		return id[:]
	}
	return e.Treasury
}

// Refund returns whatever sits at the order's collection subaccount, minus
// the ledger fee, to a caller-supplied destination. Only the payer may
// refund; paid and already-refunded orders never are. Timed-out orders stay
// refundable so late-arriving funds are recoverable.
func (e *Engine) Refund(ctx context.Context, orderID int64, caller ledger.Principal, to []byte) (bool, error) {
	order, err := e.Store.GetOrder(ctx, orderID)
	if err != nil {
		return false, ErrOrderNotFound
	}
	if order.Payer != caller.String() {
		return false, ErrNotOrderOwner
	}
	if order.Status == models.OrderPaid || order.Status == models.OrderRefunded {
		return false, ErrNotRefundable
	}
	if order.Amount == 0 {
		return false, ErrNothingToRefund
	}

	token, err := ledger.ParseToken(order.Token)
	if err != nil {
		return false, err
	}

	subaccount := ledger.OrderSubaccount(caller, uint64(orderID))
	collection := ledger.Account{Owner: e.HubOwner, Subaccount: &subaccount}
	balance := e.Gateway.Balance(ctx, token, collection)
	if err := e.Store.SetAmountPaid(ctx, orderID, int64(balance)); err != nil {
		return false, err
	}

	fee := token.Fee()
	if balance < fee {
		return false, ErrBalanceBelowFee
	}

	if _, err := e.Gateway.Transfer(ctx, token, &subaccount, to, balance-fee); err != nil {
		// State unchanged: the caller retries the same refund later.
		e.Log.Warn("refund transfer failed", zap.Int64("order", orderID), zap.Error(err))
		return false, ErrRefundFailed
	}

	refunded, err := e.Store.MarkRefunded(ctx, orderID, int64(balance), e.now())
	if err != nil {
		return false, err
	}
	if !refunded {
		return false, ErrNotRefundable
	}
	return true, nil
}
