package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
	"RiskLedger/internal/market"
)

// MarginCallError is a modeled financial event, not a bug: the borrower on a
// repo could not cover the collateral shortfall. It is recoverable at the
// scheduler level; the caller decides whether to escalate to default,
// attempt liquidity raising, or ignore.
type MarginCallError struct {
	ContractID uuid.UUID
	Borrower   string
	Shortfall  float64
}

func (e *MarginCallError) Error() string {
	return fmt.Sprintf("margin call failed on repo %s: %s short by %.2f",
		e.ContractID, e.Borrower, e.Shortfall)
}

// cashPledger is the slice of the borrowing agent the margin-call machinery
// needs: unencumbered cash and the ability to encumber it.
type cashPledger interface {
	Cash() float64
	EncumberCash(amount float64) error
}

type pledge struct {
	asset    *Asset
	quantity float64
}

// Repo is a repurchase agreement: the borrower owes principal in cash,
// secured by pledged collateral assets subject to the market's per-type
// haircut. Rising haircuts or falling collateral prices erode the eligible
// collateral value and can trigger margin calls, which is the haircut
// contagion channel.
type Repo struct {
	id        uuid.UUID
	lender    ledger.Party
	borrower  ledger.Party
	principal float64
	market    *market.Market

	collateral     []pledge
	encumberedCash float64
}

func NewRepo(lender, borrower ledger.Party, principal float64, m *market.Market) *Repo {
	return &Repo{
		id:        uuid.New(),
		lender:    lender,
		borrower:  borrower,
		principal: principal,
		market:    m,
	}
}

func (r *Repo) Start() error {
	if r.lender == nil || r.borrower == nil {
		return fmt.Errorf("repo %s: lender and borrower are required", r.id)
	}
	if r.principal < 0 {
		return fmt.Errorf("repo %s: negative principal %f", r.id, r.principal)
	}
	if err := r.borrower.Book().Registry().Add(r); err != nil {
		return err
	}
	r.lender.Book().AddAsset(r)
	r.borrower.Book().AddLiability(r)
	return nil
}

func (r *Repo) ID() uuid.UUID                { return r.id }
func (r *Repo) Kind() ledger.Kind            { return ledger.KindRepo }
func (r *Repo) AssetParty() ledger.Party     { return r.lender }
func (r *Repo) LiabilityParty() ledger.Party { return r.borrower }
func (r *Repo) Value() float64               { return r.principal }
func (r *Repo) Principal() float64           { return r.principal }

// PledgeCollateral encumbers quantity of the borrower's asset against this
// repo, removing it from the sellable pool.
func (r *Repo) PledgeCollateral(asset *Asset, quantity float64) error {
	if asset.AssetParty() != r.borrower {
		return fmt.Errorf("repo %s: collateral must belong to borrower %s", r.id, r.borrower.Name())
	}
	if err := asset.Encumber(quantity); err != nil {
		return err
	}
	r.collateral = append(r.collateral, pledge{asset: asset, quantity: quantity})
	return nil
}

// EligibleCollateralValue is the haircut-discounted market value of all
// pledged collateral plus any cash pledged by earlier margin calls.
func (r *Repo) EligibleCollateralValue() float64 {
	total := r.encumberedCash
	for _, p := range r.collateral {
		assetType := p.asset.AssetType()
		price := r.market.Price(assetType)
		haircut := r.market.Haircut(assetType)
		total += p.quantity * price * (1.0 - haircut)
	}
	return total
}

// MarginCall checks collateral sufficiency and tops up the pledge with the
// borrower's unencumbered cash when the haircut-discounted collateral no
// longer covers the principal. Failure to cover the shortfall is signalled
// as a MarginCallError; the repo itself never defaults the borrower.
func (r *Repo) MarginCall() error {
	eligible := r.EligibleCollateralValue()
	if eligible+valueEpsilon >= r.principal {
		return nil
	}
	shortfall := r.principal - eligible

	if pledger, ok := r.borrower.(cashPledger); ok && pledger.Cash() >= shortfall {
		if err := pledger.EncumberCash(shortfall); err == nil {
			r.encumberedCash += shortfall
			return nil
		}
	}

	return &MarginCallError{
		ContractID: r.id,
		Borrower:   r.borrower.Name(),
		Shortfall:  shortfall,
	}
}

func (r *Repo) AvailableActions(me ledger.Party) []ledger.Action {
	return nil
}

func (r *Repo) Describe(me ledger.Party) string {
	if me == r.borrower {
		return fmt.Sprintf("repo of %.2f owed to %s, eligible collateral %.2f",
			r.principal, r.lender.Name(), r.EligibleCollateralValue())
	}
	return fmt.Sprintf("repo of %.2f due from %s", r.principal, r.borrower.Name())
}
