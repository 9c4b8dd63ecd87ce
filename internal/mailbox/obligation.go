package mailbox

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
)

// Obligation is a deferred payment commitment: the from party promises to
// pay the to party an amount at or after the maturity time.
type Obligation struct {
	id        uuid.UUID
	from      ledger.Party
	to        ledger.Party
	amount    float64
	openedAt  int64
	maturity  int64
	fulfilled bool
}

func NewObligation(from, to ledger.Party, amount float64, openedAt, maturity int64) *Obligation {
	return &Obligation{
		id:       uuid.New(),
		from:     from,
		to:       to,
		amount:   amount,
		openedAt: openedAt,
		maturity: maturity,
	}
}

func (o *Obligation) ID() uuid.UUID      { return o.id }
func (o *Obligation) From() ledger.Party { return o.from }
func (o *Obligation) To() ledger.Party   { return o.to }
func (o *Obligation) Amount() float64    { return o.amount }
func (o *Obligation) Maturity() int64    { return o.maturity }
func (o *Obligation) Fulfilled() bool    { return o.fulfilled }

// MaturedAt reports whether the obligation is due at the given time.
func (o *Obligation) MaturedAt(now int64) bool {
	return now >= o.maturity
}

// Fulfil settles the obligation by moving cash between the two books. The
// payer's cash position is the precondition: callers must raise liquidity
// before settlement, this never clamps.
func (o *Obligation) Fulfil() error {
	if o.fulfilled {
		return nil
	}
	if err := o.from.Book().SubtractCash(o.amount); err != nil {
		return fmt.Errorf("fulfil obligation %s: %w", o.id, err)
	}
	o.to.Book().AddCash(o.amount)
	o.fulfilled = true
	return nil
}
