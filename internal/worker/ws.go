package worker

import (
	"context"
	"errors"
	"time"

	"govhub/internal/ledger"
	"govhub/internal/settlement"

	"go.uber.org/zap"
)

// RunWS listens for pushed deposit notifications and tries to confirm the
// matching pending order immediately, instead of waiting for the payer to
// poll confirm. Confirmation semantics are unchanged: Confirm is still the
// only path that settles an order.
func (w *Worker) RunWS(ctx context.Context) {
	if w.WSEndpoint == "" {
		w.Log.Info("ws disabled: ws_endpoint is empty")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client := ledger.NewWSClient(w.WSEndpoint)
		if err := client.Connect(ctx); err != nil {
			w.Log.Warn("ws connect failed", zap.Error(err))
			time.Sleep(3 * time.Second)
			continue
		}
		w.Log.Info("ws connected", zap.String("endpoint", w.WSEndpoint))

		if err := client.Subscribe(ctx, "transfers"); err != nil {
			w.Log.Warn("ws subscribe failed", zap.Error(err))
			client.Close()
			time.Sleep(3 * time.Second)
			continue
		}

		for {
			msg, err := client.Read(ctx)
			if err != nil {
				w.Log.Warn("ws read failed", zap.Error(err))
				client.Close()
				break
			}

			deposit, ok, err := ledger.ParseWSDeposit(msg)
			if err != nil {
				w.Log.Warn("ws parse failed", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			w.matchDeposit(ctx, deposit)
		}

		time.Sleep(2 * time.Second)
	}
}

// matchDeposit finds the unpaid order whose derived collection subaccount
// received the deposit. Subaccounts are recomputed, never stored, so the
// match walks pending orders.
func (w *Worker) matchDeposit(ctx context.Context, deposit *ledger.Deposit) {
	if deposit.To.Subaccount == nil || !deposit.To.Owner.Equal(w.HubOwner) {
		return
	}

	orders, err := w.Store.ListUnpaidOrders(ctx)
	if err != nil {
		w.Log.Error("list unpaid orders", zap.Error(err))
		return
	}

	for _, order := range orders {
		payer, err := ledger.DecodePrincipal(order.Payer)
		if err != nil {
			continue
		}
		sub := ledger.OrderSubaccount(payer, uint64(order.ID))
		if sub != *deposit.To.Subaccount {
			continue
		}

		confirmed, err := w.Engine.Confirm(ctx, order.ID)
		switch {
		case confirmed:
			w.Log.Info("order confirmed after deposit", zap.Int64("order", order.ID))
		case errors.Is(err, settlement.ErrInsufficientFunds):
			// Partial payment arrived; the order stays retry-eligible.
			w.Log.Info("deposit below order amount", zap.Int64("order", order.ID))
		case err != nil:
			w.Log.Warn("confirm after deposit failed", zap.Int64("order", order.ID), zap.Error(err))
		}
		return
	}
}
