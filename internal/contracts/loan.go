// Package contracts holds the closed set of contract variants and the
// actions they make available. Variants and actions share one package:
// a contract constructs its own actions, and an action mutates only the
// books of the contract's two counterparties.
package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
)

// Loan is a bilateral loan: an asset for the lender, a liability for the
// borrower. The lender may be nil for loans owed to an unmodelled external
// party.
type Loan struct {
	id        uuid.UUID
	lender    ledger.Party
	borrower  ledger.Party
	principal float64
	rate      float64
}

func NewLoan(lender, borrower ledger.Party, principal, rate float64) *Loan {
	return &Loan{
		id:        uuid.New(),
		lender:    lender,
		borrower:  borrower,
		principal: principal,
		rate:      rate,
	}
}

// Start validates the contract structure, registers it in the arena and
// records it on both parties' books.
func (l *Loan) Start() error {
	if l.borrower == nil {
		return fmt.Errorf("loan %s: borrower is required", l.id)
	}
	if l.principal < 0 {
		return fmt.Errorf("loan %s: negative principal %f", l.id, l.principal)
	}
	if err := l.borrower.Book().Registry().Add(l); err != nil {
		return err
	}
	if l.lender != nil {
		l.lender.Book().AddAsset(l)
	}
	l.borrower.Book().AddLiability(l)
	return nil
}

func (l *Loan) ID() uuid.UUID                { return l.id }
func (l *Loan) Kind() ledger.Kind            { return ledger.KindLoan }
func (l *Loan) AssetParty() ledger.Party     { return l.lender }
func (l *Loan) LiabilityParty() ledger.Party { return l.borrower }
func (l *Loan) Value() float64               { return l.principal }
func (l *Loan) Principal() float64           { return l.principal }
func (l *Loan) Rate() float64                { return l.rate }

// ReducePrincipal is the only legal mutator of principal. Driving the
// principal negative is a precondition violation.
func (l *Loan) ReducePrincipal(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("loan %s: negative principal reduction %f", l.id, amount)
	}
	if amount > l.principal+valueEpsilon {
		return fmt.Errorf("loan %s: reduction %f exceeds principal %f", l.id, amount, l.principal)
	}
	l.principal -= amount
	if l.principal < 0 {
		l.principal = 0
	}
	return nil
}

func (l *Loan) AvailableActions(me ledger.Party) []ledger.Action {
	if me != l.borrower || l.principal <= 0 {
		return nil
	}
	return []ledger.Action{NewPayLoan(l)}
}

func (l *Loan) Describe(me ledger.Party) string {
	switch {
	case me == l.borrower && l.lender != nil:
		return fmt.Sprintf("loan of %.2f owed to %s", l.principal, l.lender.Name())
	case me == l.borrower:
		return fmt.Sprintf("loan of %.2f owed externally", l.principal)
	case me == l.lender:
		return fmt.Sprintf("loan of %.2f due from %s", l.principal, l.borrower.Name())
	default:
		return fmt.Sprintf("loan of %.2f", l.principal)
	}
}

// valueEpsilon absorbs floating-point residue when deciding whether a
// contract has been fully depleted.
const valueEpsilon = 1e-9
