package contracts

import (
	"fmt"
	"math"
)

// RedeemShares redeems part of a shareholding for cash at the current NAV.
// The amount is in value terms and is converted to a whole share count.
type RedeemShares struct {
	amount float64
	shares *Shares
}

func NewRedeemShares(shares *Shares) *RedeemShares {
	return &RedeemShares{shares: shares}
}

func (r *RedeemShares) Amount() float64          { return r.amount }
func (r *RedeemShares) SetAmount(amount float64) { r.amount = amount }

// IssuerCash is the cash the issuer can pay redemptions from; callers cap
// their amount by it before Perform.
func (r *RedeemShares) IssuerCash() float64 {
	return r.shares.Issuer().Book().Cash()
}

// Max is the value of the shares not already pending redemption.
func (r *RedeemShares) Max() float64 {
	return float64(r.shares.NShares()-r.shares.PendingToRedeem()) * r.shares.NAV()
}

func (r *RedeemShares) Perform() error {
	if r.amount > r.Max()+valueEpsilon {
		return fmt.Errorf("redeem shares: amount %f exceeds redeemable value %f", r.amount, r.Max())
	}
	nav := r.shares.NAV()
	if nav <= 0 {
		return fmt.Errorf("redeem shares: issuer %s has non-positive NAV %f",
			r.shares.issuer.Name(), nav)
	}
	n := int(math.Floor(r.amount/nav + valueEpsilon))
	return r.shares.Redeem(n)
}

func (r *RedeemShares) Describe() string {
	return fmt.Sprintf("RedeemShares by %s against %s: value %.2f of %.2f",
		r.shares.owner.Name(), r.shares.issuer.Name(), r.amount, r.Max())
}
