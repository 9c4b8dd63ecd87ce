package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
)

// MaturityType classifies a bond's maturity bucket.
type MaturityType uint8

const (
	MaturityShortTerm MaturityType = iota
	MaturityLongTerm
	MaturityPerpetual
)

func (t MaturityType) String() string {
	switch t {
	case MaturityShortTerm:
		return "short-term"
	case MaturityLongTerm:
		return "long-term"
	case MaturityPerpetual:
		return "perpetual"
	default:
		return "unknown"
	}
}

// Bond is a principal-and-rate instrument between two agents. It holds
// balance-sheet value but offers no elective actions: secondary bond trading
// is not modelled.
type Bond struct {
	id           uuid.UUID
	holder       ledger.Party
	issuer       ledger.Party
	maturityType MaturityType
	principal    float64
	rate         float64
}

func NewBond(holder, issuer ledger.Party, maturityType MaturityType, principal, rate float64) *Bond {
	return &Bond{
		id:           uuid.New(),
		holder:       holder,
		issuer:       issuer,
		maturityType: maturityType,
		principal:    principal,
		rate:         rate,
	}
}

func (b *Bond) Start() error {
	if b.holder == nil || b.issuer == nil {
		return fmt.Errorf("bond %s: holder and issuer are required", b.id)
	}
	if b.principal < 0 {
		return fmt.Errorf("bond %s: negative principal %f", b.id, b.principal)
	}
	if err := b.holder.Book().Registry().Add(b); err != nil {
		return err
	}
	b.holder.Book().AddAsset(b)
	b.issuer.Book().AddLiability(b)
	return nil
}

func (b *Bond) ID() uuid.UUID                { return b.id }
func (b *Bond) Kind() ledger.Kind            { return ledger.KindBond }
func (b *Bond) AssetParty() ledger.Party     { return b.holder }
func (b *Bond) LiabilityParty() ledger.Party { return b.issuer }
func (b *Bond) Value() float64               { return b.principal }
func (b *Bond) Principal() float64           { return b.principal }
func (b *Bond) Rate() float64                { return b.rate }
func (b *Bond) Maturity() MaturityType       { return b.maturityType }

func (b *Bond) AvailableActions(me ledger.Party) []ledger.Action {
	return nil
}

func (b *Bond) Describe(me ledger.Party) string {
	if me == b.issuer {
		return fmt.Sprintf("%s bond of %.2f issued to %s", b.maturityType, b.principal, b.holder.Name())
	}
	return fmt.Sprintf("%s bond of %.2f issued by %s", b.maturityType, b.principal, b.issuer.Name())
}
