package ledger

import (
	"github.com/google/uuid"
)

// AccountType classifies an account on the balance sheet.
type AccountType uint8

const (
	AccountAsset AccountType = iota
	AccountLiability
	AccountEquity
)

func (t AccountType) String() string {
	switch t {
	case AccountAsset:
		return "asset"
	case AccountLiability:
		return "liability"
	case AccountEquity:
		return "equity"
	default:
		return "unknown"
	}
}

// Account is one balance-sheet account: a running balance plus the set of
// contract IDs recorded against it. Cash and equity accounts carry no
// contracts.
type Account struct {
	name        string
	accountType AccountType
	balance     float64
	contracts   map[uuid.UUID]struct{}
}

func NewAccount(name string, accountType AccountType) *Account {
	return &Account{
		name:        name,
		accountType: accountType,
		contracts:   make(map[uuid.UUID]struct{}),
	}
}

func (a *Account) Name() string      { return a.name }
func (a *Account) Type() AccountType { return a.accountType }
func (a *Account) Balance() float64  { return a.balance }

func (a *Account) addContract(id uuid.UUID)    { a.contracts[id] = struct{}{} }
func (a *Account) removeContract(id uuid.UUID) { delete(a.contracts, id) }

func (a *Account) contractIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.contracts))
	for id := range a.contracts {
		ids = append(ids, id)
	}
	return ids
}
