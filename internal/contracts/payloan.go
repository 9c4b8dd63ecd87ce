package contracts

import (
	"fmt"
)

// PayLoan pays down a loan on the borrower's liability side. The borrower's
// cash and liability fall together; if a lender exists, its loan asset is
// converted back to cash in the same operation, keeping the two recorded
// values mirrored.
type PayLoan struct {
	amount float64
	loan   *Loan
}

func NewPayLoan(loan *Loan) *PayLoan {
	return &PayLoan{loan: loan}
}

func (p *PayLoan) Amount() float64          { return p.amount }
func (p *PayLoan) SetAmount(amount float64) { p.amount = amount }

// Max is the outstanding principal.
func (p *PayLoan) Max() float64 { return p.loan.Value() }

func (p *PayLoan) Perform() error {
	if p.amount > p.Max()+valueEpsilon {
		return fmt.Errorf("pay loan: amount %f exceeds outstanding principal %f", p.amount, p.Max())
	}

	borrower := p.loan.LiabilityParty()
	if err := borrower.Book().PayLiability(p.amount, p.loan); err != nil {
		return fmt.Errorf("pay loan: %w", err)
	}

	if lender := p.loan.AssetParty(); lender != nil {
		if err := lender.Book().PullFunding(p.amount, p.loan); err != nil {
			return fmt.Errorf("pay loan: %w", err)
		}
	}

	if err := p.loan.ReducePrincipal(p.amount); err != nil {
		return err
	}

	if p.loan.Value() <= valueEpsilon {
		borrower.Book().RemoveLiability(p.loan)
		if lender := p.loan.AssetParty(); lender != nil {
			lender.Book().RemoveAsset(p.loan)
		}
		borrower.Book().Registry().Remove(p.loan.ID())
	}
	return nil
}

func (p *PayLoan) Describe() string {
	return fmt.Sprintf("PayLoan by %s: amount %.2f of %.2f",
		p.loan.LiabilityParty().Name(), p.amount, p.Max())
}
