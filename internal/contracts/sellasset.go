package contracts

import (
	"fmt"
)

// SellAsset places part of a marketable holding for sale. The amount is in
// value terms; Perform only registers the order. Settlement, price feedback
// and contagion happen when the market clears.
type SellAsset struct {
	amount float64
	asset  *Asset
}

func NewSellAsset(asset *Asset) *SellAsset {
	return &SellAsset{asset: asset}
}

func (s *SellAsset) Amount() float64          { return s.amount }
func (s *SellAsset) SetAmount(amount float64) { s.amount = amount }

// Max is the value of the unencumbered holding at the current cached price.
func (s *SellAsset) Max() float64 {
	return s.asset.UnencumberedQuantity() * s.asset.Price()
}

func (s *SellAsset) Perform() error {
	if s.amount > s.Max()+valueEpsilon {
		return fmt.Errorf("sell asset: amount %f exceeds sellable value %f", s.amount, s.Max())
	}
	if s.amount <= 0 {
		return nil
	}
	quantity := s.amount / s.asset.Price()
	return s.asset.market.PutForSale(s.asset, quantity)
}

func (s *SellAsset) Describe() string {
	return fmt.Sprintf("SellAsset %s by %s: value %.2f of %.2f",
		s.asset.AssetType(), s.asset.owner.Name(), s.amount, s.Max())
}
