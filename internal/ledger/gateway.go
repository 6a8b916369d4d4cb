package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// Client is the ledger call surface the gateway drives. *RPCClient and
// *MultiRPCClient both implement it.
type Client interface {
	BalanceOf(ctx context.Context, canisterID string, account Account) (uint64, error)
	ICRC1Transfer(ctx context.Context, canisterID string, arg ICRC1TransferArg) (uint64, error)
	LegacyTransfer(ctx context.Context, canisterID string, arg LegacyTransferArg) (uint64, error)
}

// Gateway is the uniform token-transfer surface: balance queries and
// transfers against symbol-resolved ledgers, plus direct ICRC transfers for
// explicitly addressed token canisters.
type Gateway struct {
	Client   Client
	Resolver Resolver
	Log      *zap.Logger
}

// Balance returns the balance at account on the token's ledger, absorbing
// every failure into 0. Callers poll for payment arrival; a transient call
// failure must read the same as "not yet paid".
func (g *Gateway) Balance(ctx context.Context, token Token, account Account) uint64 {
	canisterID, err := g.Resolver.CanisterID(token)
	if err != nil {
		g.Log.Warn("balance query skipped", zap.String("token", string(token)), zap.Error(err))
		return 0
	}
	balance, err := g.Client.BalanceOf(ctx, canisterID, account)
	if err != nil {
		g.Log.Warn("balance query failed",
			zap.String("token", string(token)),
			zap.String("owner", account.Owner.String()),
			zap.Error(err))
		return 0
	}
	return balance
}

// Transfer moves amount out of the given subaccount to a token-specific
// destination: a 32-byte account identifier for the ICP legacy ledger, a raw
// principal for ICRC ledgers. Returns the ledger height on success.
func (g *Gateway) Transfer(ctx context.Context, token Token, from *[32]byte, to []byte, amount uint64) (uint64, error) {
	canisterID, err := g.Resolver.CanisterID(token)
	if err != nil {
		return 0, err
	}

	switch token {
	case TokenICP:
		if len(to) != 32 {
			return 0, fmt.Errorf("invalid account identifier length %d", len(to))
		}
		var dest [32]byte
		copy(dest[:], to)
		return g.Client.LegacyTransfer(ctx, canisterID, LegacyTransferArg{
			From:   from,
			To:     dest,
			Amount: amount,
			Fee:    token.Fee(),
		})
	default:
		return g.Client.ICRC1Transfer(ctx, canisterID, ICRC1TransferArg{
			From:   from,
			To:     Account{Owner: Principal(to)},
			Amount: new(big.Int).SetUint64(amount),
			Fee:    token.Fee(),
		})
	}
}

// ICRC1TransferTo sends on an explicitly addressed ICRC ledger. The
// distribution scheduler uses this with the canister id held by the model.
func (g *Gateway) ICRC1TransferTo(ctx context.Context, canisterID string, from *[32]byte, to Account, amount *big.Int) (uint64, error) {
	return g.Client.ICRC1Transfer(ctx, canisterID, ICRC1TransferArg{
		From:   from,
		To:     to,
		Amount: amount,
		Fee:    0,
	})
}
