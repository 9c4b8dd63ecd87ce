package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
)

// Other is a generic bilateral obligation with a fixed amount and no
// elective actions. Either party may be nil for externally-held positions,
// but not both.
type Other struct {
	id             uuid.UUID
	assetParty     ledger.Party
	liabilityParty ledger.Party
	amount         float64
}

func NewOther(assetParty, liabilityParty ledger.Party, amount float64) *Other {
	return &Other{
		id:             uuid.New(),
		assetParty:     assetParty,
		liabilityParty: liabilityParty,
		amount:         amount,
	}
}

func (o *Other) Start() error {
	if o.assetParty == nil && o.liabilityParty == nil {
		return fmt.Errorf("other %s: at least one counterparty is required", o.id)
	}
	registryHolder := o.assetParty
	if registryHolder == nil {
		registryHolder = o.liabilityParty
	}
	if err := registryHolder.Book().Registry().Add(o); err != nil {
		return err
	}
	if o.assetParty != nil {
		o.assetParty.Book().AddAsset(o)
	}
	if o.liabilityParty != nil {
		o.liabilityParty.Book().AddLiability(o)
	}
	return nil
}

func (o *Other) ID() uuid.UUID                { return o.id }
func (o *Other) Kind() ledger.Kind            { return ledger.KindOther }
func (o *Other) AssetParty() ledger.Party     { return o.assetParty }
func (o *Other) LiabilityParty() ledger.Party { return o.liabilityParty }
func (o *Other) Value() float64               { return o.amount }

func (o *Other) AvailableActions(me ledger.Party) []ledger.Action {
	return nil
}

func (o *Other) Describe(me ledger.Party) string {
	return fmt.Sprintf("other obligation of %.2f", o.amount)
}
