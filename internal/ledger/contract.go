package ledger

import (
	"github.com/google/uuid"
)

// Kind is the closed set of contract types. Dispatch over contracts is by
// kind, not by open-ended subtyping: the variant set is fixed.
type Kind uint8

const (
	KindLoan Kind = iota
	KindAsset
	KindShares
	KindBond
	KindRepo
	KindOther
	KindGoods
)

func (k Kind) String() string {
	switch k {
	case KindLoan:
		return "loan"
	case KindAsset:
		return "asset"
	case KindShares:
		return "shares"
	case KindBond:
		return "bond"
	case KindRepo:
		return "repo"
	case KindOther:
		return "other"
	case KindGoods:
		return "goods"
	default:
		return "unknown"
	}
}

// Party is the narrow view of an agent that contracts and obligations need.
// Using an interface here keeps the ledger free of a dependency on the agent
// package while still letting contracts reach both counterparties' books.
type Party interface {
	Name() string
	Book() *Book
	Alive() bool
}

// ShareIssuer is the capability required of the liability party of a Shares
// contract: it must quote a per-share net asset value and shrink its
// outstanding share count when shares are redeemed.
type ShareIssuer interface {
	Party
	NetAssetValue() float64
	ReduceSharesOutstanding(n int)
}

// Contract is a bilateral financial instrument. It is recorded as an asset
// entry in exactly the asset party's book and as a liability entry in exactly
// the liability party's book; both sides see the same Value at any instant
// because they share the one contract instance held by the registry.
//
// Either party may be nil for externally-held obligations (e.g. a loan from
// an unmodelled outside lender).
type Contract interface {
	ID() uuid.UUID
	Kind() Kind
	AssetParty() Party
	LiabilityParty() Party

	// Value is the current recorded value of the contract, identical for
	// both sides.
	Value() float64

	// AvailableActions returns the zero or more actions the querying party
	// may legally perform against this contract. Enumerating actions has no
	// side effects.
	AvailableActions(me Party) []Action

	// Describe renders the contract from the querying party's perspective.
	Describe(me Party) string
}

// Action is a bounded operation against a single contract. Amount defaults
// to zero and must be set before Perform. Perform mutates exactly the books
// of the contract's two counterparties (and, for market-facing actions,
// places an order on the asset market), nothing else.
//
// Performing with an amount above Max is a caller contract violation and
// returns an error; callers must validate before invoking.
type Action interface {
	Amount() float64
	SetAmount(amount float64)
	Max() float64
	Perform() error
	Describe() string
}
