package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
	"RiskLedger/internal/market"
)

// Asset is a marketable holding: a quantity of one asset type, valued at a
// cached market price. Devaluation and appreciation are applied as explicit
// deltas against the owner's book rather than recomputed from the price, so
// realized shock magnitude is tracked separately from mark-to-market; the
// cached price is refreshed explicitly via UpdatePrice.
//
// An Asset has no liability party: the issuer is outside the simulated
// system.
type Asset struct {
	id         uuid.UUID
	owner      ledger.Party
	assetType  market.AssetType
	quantity   float64
	market     *market.Market
	price      float64
	encumbered float64
}

func NewAsset(owner ledger.Party, assetType market.AssetType, m *market.Market, quantity float64) *Asset {
	return &Asset{
		id:        uuid.New(),
		owner:     owner,
		assetType: assetType,
		market:    m,
		quantity:  quantity,
		price:     m.Price(assetType),
	}
}

func (a *Asset) Start() error {
	if a.owner == nil {
		return fmt.Errorf("asset %s: owner is required", a.id)
	}
	if a.quantity < 0 {
		return fmt.Errorf("asset %s: negative quantity %f", a.id, a.quantity)
	}
	if err := a.owner.Book().Registry().Add(a); err != nil {
		return err
	}
	a.owner.Book().AddAsset(a)
	return nil
}

func (a *Asset) ID() uuid.UUID                { return a.id }
func (a *Asset) Kind() ledger.Kind            { return ledger.KindAsset }
func (a *Asset) AssetParty() ledger.Party     { return a.owner }
func (a *Asset) LiabilityParty() ledger.Party { return nil }

func (a *Asset) Value() float64 { return a.quantity * a.price }

func (a *Asset) AssetType() market.AssetType { return a.assetType }
func (a *Asset) Quantity() float64           { return a.quantity }
func (a *Asset) Price() float64              { return a.price }

// UnencumberedQuantity is the quantity not pledged as repo collateral, hence
// eligible for sale.
func (a *Asset) UnencumberedQuantity() float64 { return a.quantity - a.encumbered }

// Encumber pledges quantity as collateral, removing it from the sellable
// pool.
func (a *Asset) Encumber(quantity float64) error {
	if quantity > a.UnencumberedQuantity()+valueEpsilon {
		return fmt.Errorf("asset %s: cannot encumber %f, only %f unencumbered",
			a.id, quantity, a.UnencumberedQuantity())
	}
	a.encumbered += quantity
	return nil
}

func (a *Asset) Unencumber(quantity float64) error {
	if quantity > a.encumbered+valueEpsilon {
		return fmt.Errorf("asset %s: cannot unencumber %f, only %f encumbered",
			a.id, quantity, a.encumbered)
	}
	a.encumbered -= quantity
	if a.encumbered < 0 {
		a.encumbered = 0
	}
	return nil
}

// UpdatePrice refreshes the cached price from the market.
func (a *Asset) UpdatePrice() {
	a.price = a.market.Price(a.assetType)
}

// ClearSale settles a filled order: the sold quantity leaves the holding and
// the owner's book swaps its recorded value for cash at the post-clearing
// price. Any price fall was already realized through the devaluation
// broadcast before settlement.
func (a *Asset) ClearSale(quantity float64) error {
	if quantity > a.quantity+valueEpsilon {
		return fmt.Errorf("asset %s: settling %f exceeds held quantity %f", a.id, quantity, a.quantity)
	}
	value := quantity * a.market.Price(a.assetType)
	if err := a.owner.Book().SellAssetForValue(value, ledger.KindAsset); err != nil {
		return err
	}
	a.quantity -= quantity
	if a.quantity < 0 {
		a.quantity = 0
	}
	if a.quantity <= valueEpsilon {
		a.owner.Book().RemoveAsset(a)
		a.owner.Book().Registry().Remove(a.id)
	}
	return nil
}

func (a *Asset) AvailableActions(me ledger.Party) []ledger.Action {
	if me != a.owner || a.UnencumberedQuantity() <= 0 || a.price <= 0 {
		return nil
	}
	return []ledger.Action{NewSellAsset(a)}
}

func (a *Asset) Describe(me ledger.Party) string {
	return fmt.Sprintf("%.2f units of %s at price %.4f", a.quantity, a.assetType, a.price)
}
