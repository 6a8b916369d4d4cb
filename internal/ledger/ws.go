package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

// WSClient subscribes to a ledger gateway's transfer notification stream.
type WSClient struct {
	Endpoint string
	Conn     *websocket.Conn
}

func NewWSClient(endpoint string) *WSClient {
	return &WSClient{Endpoint: endpoint}
}

func (c *WSClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{}
	conn, _, err := dialer.DialContext(ctx, c.Endpoint, nil)
	if err != nil {
		return err
	}
	c.Conn = conn
	return nil
}

func (c *WSClient) Close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *WSClient) Subscribe(ctx context.Context, topic string) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "subscribe",
		"params": map[string]any{
			"topic": topic,
		},
	}
	return c.Conn.WriteJSON(payload)
}

func (c *WSClient) Read(ctx context.Context) ([]byte, error) {
	_, msg, err := c.Conn.ReadMessage()
	return msg, err
}

// Deposit is a pushed transfer notification: funds arrived at To on the
// given ledger canister.
type Deposit struct {
	CanisterID string
	To         Account
	Amount     string
}

func ParseWSDeposit(msg []byte) (*Deposit, bool, error) {
	var env struct {
		Result struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		return nil, false, err
	}
	if env.Error != nil {
		return nil, false, errors.New(env.Error.Message)
	}
	if len(env.Result.Data) == 0 {
		return nil, false, nil
	}

	var data struct {
		Type  string `json:"type"`
		Value struct {
			Ledger string `json:"ledger"`
			To     struct {
				Owner      string `json:"owner"`
				Subaccount string `json:"subaccount"`
			} `json:"to"`
			Amount string `json:"amount"`
		} `json:"value"`
	}
	if err := json.Unmarshal(env.Result.Data, &data); err != nil {
		return nil, false, err
	}
	if data.Type != "transfer" {
		return nil, false, nil
	}

	owner, err := DecodePrincipal(data.Value.To.Owner)
	if err != nil {
		return nil, false, err
	}

	account := Account{Owner: owner}
	if data.Value.To.Subaccount != "" {
		raw, err := hex.DecodeString(data.Value.To.Subaccount)
		if err != nil || len(raw) != 32 {
			return nil, false, errors.New("malformed deposit subaccount")
		}
		var sub [32]byte
		copy(sub[:], raw)
		account.Subaccount = &sub
	}

	return &Deposit{
		CanisterID: data.Value.Ledger,
		To:         account,
		Amount:     data.Value.Amount,
	}, true, nil
}
