package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RPCClient talks to an IC ledger gateway: an HTTP front that proxies
// balance and transfer calls to ledger canisters.
type RPCClient struct {
	baseURL string
	client  *http.Client
}

func NewRPCClient(baseURL string) *RPCClient {
	return &RPCClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type ICRC1TransferArg struct {
	From   *[32]byte
	To     Account
	Amount *big.Int
	Fee    uint64
}

type LegacyTransferArg struct {
	From   *[32]byte
	To     [32]byte
	Amount uint64
	Fee    uint64
}

func (c *RPCClient) BalanceOf(ctx context.Context, canisterID string, account Account) (uint64, error) {
	endpoint := c.baseURL + "/canister/" + canisterID + "/icrc1_balance_of"
	var resp balanceResponse
	if err := c.postJSON(ctx, endpoint, wireAccount(account), &resp); err != nil {
		return 0, err
	}
	return parseUint64(resp.Balance)
}

func (c *RPCClient) ICRC1Transfer(ctx context.Context, canisterID string, arg ICRC1TransferArg) (uint64, error) {
	endpoint := c.baseURL + "/canister/" + canisterID + "/icrc1_transfer"
	req := icrc1TransferRequest{
		To:     wireAccount(arg.To),
		Amount: arg.Amount.String(),
	}
	// A zero fee means "ledger default": omit it from the request.
	if arg.Fee > 0 {
		req.Fee = strconv.FormatUint(arg.Fee, 10)
	}
	if arg.From != nil {
		req.FromSubaccount = hex.EncodeToString(arg.From[:])
	}

	var resp transferResponse
	if err := c.postJSON(ctx, endpoint, req, &resp); err != nil {
		return 0, fmt.Errorf("ledger call failed: %w", err)
	}
	if resp.TransferError != nil {
		return 0, fmt.Errorf("ledger transfer error: %s: %s", resp.TransferError.Kind, resp.TransferError.Message)
	}
	return parseUint64(resp.Height)
}

func (c *RPCClient) LegacyTransfer(ctx context.Context, canisterID string, arg LegacyTransferArg) (uint64, error) {
	endpoint := c.baseURL + "/canister/" + canisterID + "/transfer"
	req := legacyTransferRequest{
		To:     hex.EncodeToString(arg.To[:]),
		Amount: strconv.FormatUint(arg.Amount, 10),
		Fee:    strconv.FormatUint(arg.Fee, 10),
		Memo:   "0",
	}
	if arg.From != nil {
		req.FromSubaccount = hex.EncodeToString(arg.From[:])
	}

	var resp transferResponse
	if err := c.postJSON(ctx, endpoint, req, &resp); err != nil {
		return 0, fmt.Errorf("ledger call failed: %w", err)
	}
	if resp.TransferError != nil {
		return 0, fmt.Errorf("ledger transfer error: %s: %s", resp.TransferError.Kind, resp.TransferError.Message)
	}
	return parseUint64(resp.Height)
}

func (c *RPCClient) postJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(data))
		if msg != "" {
			return fmt.Errorf("gateway http status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("gateway http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func parseUint64(v string) (uint64, error) {
	if v == "" {
		return 0, errors.New("empty uint string")
	}
	return strconv.ParseUint(v, 10, 64)
}

// Wire types

type rpcAccount struct {
	Owner      string `json:"owner"`
	Subaccount string `json:"subaccount,omitempty"`
}

func wireAccount(a Account) rpcAccount {
	out := rpcAccount{Owner: a.Owner.String()}
	if a.Subaccount != nil {
		out.Subaccount = hex.EncodeToString(a.Subaccount[:])
	}
	return out
}

type icrc1TransferRequest struct {
	FromSubaccount string     `json:"from_subaccount,omitempty"`
	To             rpcAccount `json:"to"`
	Amount         string     `json:"amount"`
	Fee            string     `json:"fee,omitempty"`
}

type legacyTransferRequest struct {
	FromSubaccount string `json:"from_subaccount,omitempty"`
	To             string `json:"to"`
	Amount         string `json:"amount"`
	Fee            string `json:"fee"`
	Memo           string `json:"memo"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type transferResponse struct {
	Height        string            `json:"height"`
	TransferError *rpcTransferError `json:"transfer_error"`
}

type rpcTransferError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
