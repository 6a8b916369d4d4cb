package ledger

import (
	"errors"
	"fmt"
	"strings"
)

type Token string

const (
	TokenICP   Token = "ICP"
	TokenCKBTC Token = "CKBTC"
)

var ErrUnsupportedToken = errors.New("unsupported token")

func ParseToken(s string) (Token, error) {
	switch Token(strings.ToUpper(strings.TrimSpace(s))) {
	case TokenICP:
		return TokenICP, nil
	case TokenCKBTC:
		return TokenCKBTC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedToken, s)
	}
}

// Fee is the ledger transfer fee in the token's base units. Static table,
// not fetched from the ledger at call time.
func (t Token) Fee() uint64 {
	switch t {
	case TokenICP:
		return 10_000
	case TokenCKBTC:
		return 10
	default:
		return 0
	}
}

type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "production"
)

const (
	icpLedgerCanisterID   = "ryjl3-tyaaa-aaaaa-aaaba-cai"
	ckbtcLedgerCanisterID = "mxzaz-hqaaa-aaaar-qaada-cai"

	testLedgerCanisterID      = "s57im-oyaaa-aaaas-akwma-cai"
	testCkbtcLedgerCanisterID = "s57im-oyaaa-aaaas-akwma-cai"
)

// Resolver maps a token symbol to its ledger canister id for a deployment
// environment. Overrides win over the built-in table.
type Resolver struct {
	Env       Environment
	Overrides map[Token]string
}

func (r Resolver) CanisterID(t Token) (string, error) {
	if id, ok := r.Overrides[t]; ok && id != "" {
		return id, nil
	}
	switch r.Env {
	case EnvProduction:
		switch t {
		case TokenICP:
			return icpLedgerCanisterID, nil
		case TokenCKBTC:
			return ckbtcLedgerCanisterID, nil
		}
	default:
		switch t {
		case TokenICP:
			return testLedgerCanisterID, nil
		case TokenCKBTC:
			return testCkbtcLedgerCanisterID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedToken, t)
}
