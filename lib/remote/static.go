package remote

import (
	"context"

	"github.com/ValentinKolb/flipcache/lib/partition"
)

// StaticToken is a partition.TokenProvider returning a fixed token
type StaticToken string

func (t StaticToken) IDToken(context.Context) (string, error) {
	return string(t), nil
}

// StaticAccounts is a partition.AccountsProvider returning the same connected accounts
// for every user
type StaticAccounts []string

func (a StaticAccounts) ConnectedAccounts(context.Context, string) ([]partition.Account, error) {
	accounts := make([]partition.Account, 0, len(a))
	for _, name := range a {
		accounts = append(accounts, partition.Account{Name: name})
	}
	return accounts, nil
}
