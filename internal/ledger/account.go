package ledger

import "fmt"

// Account designates a logical ledger account: an owner principal plus an
// optional 32-byte subaccount.
type Account struct {
	Owner      Principal
	Subaccount *[32]byte
}

// AccountFromText parses a bare principal string into an account with the
// default subaccount. Distribution allocation maps key recipients this way.
func AccountFromText(text string) (Account, error) {
	owner, err := DecodePrincipal(text)
	if err != nil {
		return Account{}, fmt.Errorf("invalid recipient %q: %w", text, err)
	}
	return Account{Owner: owner}, nil
}
