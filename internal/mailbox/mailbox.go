// Package mailbox implements the per-agent deferred-settlement queue:
// obligations with maturities, plus goods and plain-message inboxes drained
// at the start of each step.
package mailbox

import (
	"sort"

	"RiskLedger/internal/ledger"
)

// GoodsMessage is a delivery of valued goods, applied to the recipient's
// book on its next step.
type GoodsMessage struct {
	Name      string
	Quantity  float64
	UnitValue float64
}

// Message is a non-financial message between agents.
type Message struct {
	From    ledger.Party
	Payload any
}

// Mailbox tracks an agent's outstanding obligations and inbound deliveries.
// The inbox holds obligations this agent must pay; the outbox mirrors
// obligations it expects to be paid. All queues are drained deterministically
// in arrival order.
type Mailbox struct {
	time int64

	inbox  []*Obligation
	outbox []*Obligation

	goodsInbox   []GoodsMessage
	messageInbox []Message
}

func New() *Mailbox {
	return &Mailbox{}
}

func (m *Mailbox) Time() int64 { return m.time }

// Step advances the mailbox clock. Obligation maturities are evaluated
// against this clock.
func (m *Mailbox) Step() {
	m.time++
}

func (m *Mailbox) ReceiveObligation(o *Obligation) {
	m.inbox = append(m.inbox, o)
}

// AddToOutbox records an obligation this agent sent to a counterparty, so
// expected inflows can be planned.
func (m *Mailbox) AddToOutbox(o *Obligation) {
	m.outbox = append(m.outbox, o)
}

func (m *Mailbox) ReceiveGoodsMessage(g GoodsMessage) {
	m.goodsInbox = append(m.goodsInbox, g)
}

func (m *Mailbox) ReceiveMessage(msg Message) {
	m.messageInbox = append(m.messageInbox, msg)
}

// DrainGoods returns the accumulated goods deliveries and clears the inbox.
func (m *Mailbox) DrainGoods() []GoodsMessage {
	goods := m.goodsInbox
	m.goodsInbox = nil
	return goods
}

// DrainMessages returns the accumulated messages and clears the inbox.
func (m *Mailbox) DrainMessages() []Message {
	msgs := m.messageInbox
	m.messageInbox = nil
	return msgs
}

// ============================================================================
// Settlement
// ============================================================================

// FulfilMaturedRequests settles every unfulfilled obligation due at the
// current time. This is the routine settlement pass each step.
func (m *Mailbox) FulfilMaturedRequests() error {
	for _, o := range m.inbox {
		if o.Fulfilled() || !o.MaturedAt(m.time) {
			continue
		}
		if err := o.Fulfil(); err != nil {
			return err
		}
	}
	return nil
}

// FulfilAllRequests force-settles every obligation regardless of maturity,
// used for wind-down.
func (m *Mailbox) FulfilAllRequests() error {
	for _, o := range m.inbox {
		if o.Fulfilled() {
			continue
		}
		if err := o.Fulfil(); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Liquidity aggregates
// ============================================================================

// MaturedObligations sums unfulfilled obligations due now or earlier.
func (m *Mailbox) MaturedObligations() float64 {
	total := 0.0
	for _, o := range m.inbox {
		if !o.Fulfilled() && o.MaturedAt(m.time) {
			total += o.Amount()
		}
	}
	return total
}

// AllPendingObligations sums unfulfilled obligations due later, for forward
// liquidity planning.
func (m *Mailbox) AllPendingObligations() float64 {
	total := 0.0
	for _, o := range m.inbox {
		if !o.Fulfilled() && !o.MaturedAt(m.time) {
			total += o.Amount()
		}
	}
	return total
}

// PendingPaymentsToMe sums unfulfilled obligations other agents owe this one.
func (m *Mailbox) PendingPaymentsToMe() float64 {
	total := 0.0
	for _, o := range m.outbox {
		if !o.Fulfilled() {
			total += o.Amount()
		}
	}
	return total
}

// CashCommitments returns the outgoing amounts of unfulfilled obligations,
// ordered by maturity, for liquidity-ratio computation.
func (m *Mailbox) CashCommitments() []float64 {
	return amountsByMaturity(m.inbox)
}

// CashInflows returns the incoming amounts of unfulfilled obligations owed
// to this agent, ordered by maturity.
func (m *Mailbox) CashInflows() []float64 {
	return amountsByMaturity(m.outbox)
}

func amountsByMaturity(obligations []*Obligation) []float64 {
	open := make([]*Obligation, 0, len(obligations))
	for _, o := range obligations {
		if !o.Fulfilled() {
			open = append(open, o)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].Maturity() < open[j].Maturity()
	})
	amounts := make([]float64, len(open))
	for i, o := range open {
		amounts[i] = o.Amount()
	}
	return amounts
}

// ============================================================================
// Reporting view
// ============================================================================

// ObligationLine is one obligation row in a mailbox dump.
type ObligationLine struct {
	Counterparty string
	Amount       float64
	Maturity     int64
	Matured      bool
	Fulfilled    bool
}

// Dump is a read-only snapshot of the mailbox, for reporting.
type Dump struct {
	Time     int64
	Owed     []ObligationLine
	Expected []ObligationLine
}

func (m *Mailbox) Dump() Dump {
	d := Dump{Time: m.time}
	for _, o := range m.inbox {
		name := ""
		if o.To() != nil {
			name = o.To().Name()
		}
		d.Owed = append(d.Owed, ObligationLine{
			Counterparty: name,
			Amount:       o.Amount(),
			Maturity:     o.Maturity(),
			Matured:      o.MaturedAt(m.time),
			Fulfilled:    o.Fulfilled(),
		})
	}
	for _, o := range m.outbox {
		name := ""
		if o.From() != nil {
			name = o.From().Name()
		}
		d.Expected = append(d.Expected, ObligationLine{
			Counterparty: name,
			Amount:       o.Amount(),
			Maturity:     o.Maturity(),
			Matured:      o.MaturedAt(m.time),
			Fulfilled:    o.Fulfilled(),
		})
	}
	return d
}
