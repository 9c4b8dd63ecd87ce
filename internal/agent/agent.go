// Package agent ties a ledger book and a mailbox to the alive/defaulted
// state machine of one simulated institution.
package agent

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"RiskLedger/internal/contracts"
	"RiskLedger/internal/ledger"
	"RiskLedger/internal/mailbox"
	"RiskLedger/internal/market"
)

// Agent is a simulated institution owning exactly one book and one mailbox.
// The alive flag is monotone: once TriggerDefault flips it, equity and
// liquidity queries return the values frozen at that moment, regardless of
// later book mutations.
type Agent struct {
	name    string
	log     zerolog.Logger
	book    *ledger.Book
	mailbox *mailbox.Mailbox

	alive          bool
	encumberedCash float64

	equityAtDefault float64
	lcrAtDefault    float64

	sharesIssued int
}

func New(name string, registry *ledger.Registry, log zerolog.Logger) *Agent {
	return &Agent{
		name:    name,
		log:     log.With().Str("agent", name).Logger(),
		book:    ledger.NewBook(registry),
		mailbox: mailbox.New(),
		alive:   true,
	}
}

// Name, Book and Alive implement ledger.Party.
func (a *Agent) Name() string       { return a.name }
func (a *Agent) Book() *ledger.Book { return a.book }
func (a *Agent) Alive() bool        { return a.alive }

func (a *Agent) Mailbox() *mailbox.Mailbox { return a.mailbox }

// SetSharesIssued declares the agent a share issuer with n outstanding
// shares, enabling NetAssetValue.
func (a *Agent) SetSharesIssued(n int) {
	a.sharesIssued = n
}

func (a *Agent) SharesIssued() int { return a.sharesIssued }

// ReduceSharesOutstanding shrinks the outstanding share count after a
// redemption, keeping the per-share NAV stable across the cancellation.
func (a *Agent) ReduceSharesOutstanding(n int) {
	a.sharesIssued -= n
	if a.sharesIssued < 0 {
		a.sharesIssued = 0
	}
}

// NetAssetValue is the per-share value of the issuer's net assets. The
// shares liability itself is excluded from the netting: it is what the NAV
// prices, not a claim senior to it. Implements ledger.ShareIssuer for agents
// that have issued shares.
func (a *Agent) NetAssetValue() float64 {
	if a.sharesIssued <= 0 {
		return 0
	}
	liabilities := a.book.LiabilityValue() -
		a.book.AccountBalance(ledger.KindShares, ledger.AccountLiability)
	return (a.book.AssetValue() - liabilities) / float64(a.sharesIssued)
}

// ============================================================================
// Balance-sheet plumbing
// ============================================================================

func (a *Agent) AddCash(amount float64) {
	a.book.AddCash(amount)
}

// Cash is the unencumbered cash position.
func (a *Agent) Cash() float64 {
	return a.book.Cash() - a.encumberedCash
}

func (a *Agent) TotalCash() float64 {
	return a.book.Cash()
}

func (a *Agent) EncumberedCash() float64 {
	return a.encumberedCash
}

func (a *Agent) EncumberCash(amount float64) error {
	if a.Cash() < amount {
		return fmt.Errorf("%s: cannot encumber %f, only %f unencumbered", a.name, amount, a.Cash())
	}
	a.encumberedCash += amount
	return nil
}

func (a *Agent) UnencumberCash(amount float64) error {
	if a.encumberedCash < amount {
		return fmt.Errorf("%s: cannot unencumber %f, only %f encumbered", a.name, amount, a.encumberedCash)
	}
	a.encumberedCash -= amount
	return nil
}

// PayLiability pays down a liability contract. The unencumbered cash
// position is the precondition; callers must raise liquidity first.
func (a *Agent) PayLiability(amount float64, c ledger.Contract) error {
	if a.Cash() < amount {
		return fmt.Errorf("%s: insufficient unencumbered cash %f for payment %f", a.name, a.Cash(), amount)
	}
	return a.book.PayLiability(amount, c)
}

func (a *Agent) PullFunding(amount float64, c ledger.Contract) error {
	return a.book.PullFunding(amount, c)
}

func (a *Agent) SellAssetForValue(value float64, kind ledger.Kind) error {
	return a.book.SellAssetForValue(value, kind)
}

func (a *Agent) DevalueAsset(c ledger.Contract, valueLost float64) {
	a.book.DevalueAsset(c, valueLost)
}

func (a *Agent) AppreciateAsset(c ledger.Contract, valueGained float64) {
	a.book.AppreciateAsset(c, valueGained)
}

func (a *Agent) DevalueLiability(c ledger.Contract, valueLost float64) {
	a.book.DevalueLiability(c, valueLost)
}

func (a *Agent) AppreciateLiability(c ledger.Contract, valueGained float64) {
	a.book.AppreciateLiability(c, valueGained)
}

// ============================================================================
// Shocks and contagion
// ============================================================================

// DevalueAssetOfType devalues every holding of the given type by held
// quantity times the price fall and refreshes the cached prices. This is the
// market.Holder implementation: it runs when a fire-sale broadcast arrives,
// whether or not this agent sold anything.
func (a *Agent) DevalueAssetOfType(assetType market.AssetType, priceFall float64) {
	for _, c := range a.book.AssetContractsOfKind(ledger.KindAsset) {
		asset, ok := c.(*contracts.Asset)
		if !ok || asset.AssetType() != assetType {
			continue
		}
		a.book.DevalueAsset(asset, asset.Quantity()*priceFall)
		asset.UpdatePrice()
	}
}

// ReceiveShockToAsset applies an exogenous devaluation: every holding of the
// type loses fractionLost of its value.
func (a *Agent) ReceiveShockToAsset(assetType market.AssetType, fractionLost float64) {
	shocked := false
	for _, c := range a.book.AssetContractsOfKind(ledger.KindAsset) {
		asset, ok := c.(*contracts.Asset)
		if !ok || asset.AssetType() != assetType {
			continue
		}
		a.book.DevalueAsset(asset, asset.Value()*fractionLost)
		asset.UpdatePrice()
		shocked = true
	}
	if shocked {
		a.log.Info().
			Str("asset_type", string(assetType)).
			Float64("fraction_lost", fractionLost).
			Msg("received shock to asset")
	}
}

// ============================================================================
// Action discovery and liquidity
// ============================================================================

// AvailableActions enumerates the actions this agent may perform against its
// held contracts. This is the single discovery point for behaviours.
func (a *Agent) AvailableActions() []ledger.Action {
	return a.book.AvailableActions(a)
}

// RaiseLiquidity sweeps the available SellAsset actions, selling each
// holding proportionally until the needed amount is covered.
func (a *Agent) RaiseLiquidity(needed float64) error {
	if needed <= 0 {
		return nil
	}

	var sellable float64
	var sells []*contracts.SellAsset
	for _, action := range a.AvailableActions() {
		if sell, ok := action.(*contracts.SellAsset); ok {
			sellable += sell.Max()
			sells = append(sells, sell)
		}
	}
	if sellable <= 0 {
		return fmt.Errorf("%s: no marketable assets to raise %f", a.name, needed)
	}

	fraction := needed / sellable
	if fraction > 1 {
		fraction = 1
	}
	for _, sell := range sells {
		sell.SetAmount(sell.Max() * fraction)
		a.log.Info().Str("action", sell.Describe()).Msg("raising liquidity")
		if err := sell.Perform(); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// Valuation
// ============================================================================

func (a *Agent) AssetValue() float64     { return a.book.AssetValue() }
func (a *Agent) LiabilityValue() float64 { return a.book.LiabilityValue() }

// EquityValue returns live equity while alive, the frozen snapshot after
// default.
func (a *Agent) EquityValue() float64 {
	if !a.alive {
		return a.equityAtDefault
	}
	return a.book.EquityValue()
}

// LCR is the liquidity coverage proxy: unencumbered cash while alive, the
// frozen snapshot after default.
func (a *Agent) LCR() float64 {
	if !a.alive {
		return a.lcrAtDefault
	}
	return a.Cash()
}

func (a *Agent) Leverage() float64 {
	assets := a.AssetValue()
	if assets == 0 {
		return 0
	}
	return a.EquityValue() / assets
}

// EquityLoss is the fractional equity change against the initial snapshot.
func (a *Agent) EquityLoss() float64 {
	initial := a.book.InitialEquity()
	if initial == 0 {
		return 0
	}
	return (a.EquityValue() - initial) / initial
}

func (a *Agent) SetInitialValues() {
	a.book.SetInitialValues()
}

// ============================================================================
// Default and margin calls
// ============================================================================

// TriggerDefault moves the agent to the terminal defaulted state. Equity and
// liquidity are captured before the flag flips, so queries keep returning
// the values from the moment of default. Calling it again has no effect.
func (a *Agent) TriggerDefault() {
	if !a.alive {
		return
	}
	a.equityAtDefault = a.book.EquityValue()
	a.lcrAtDefault = a.Cash()
	a.alive = false
	a.log.Warn().
		Float64("equity_at_default", a.equityAtDefault).
		Float64("lcr_at_default", a.lcrAtDefault).
		Msg("default triggered")
}

func (a *Agent) EquityAtDefault() float64 { return a.equityAtDefault }
func (a *Agent) LCRAtDefault() float64    { return a.lcrAtDefault }

// RunMarginCalls checks every repo on the liability side. A
// *contracts.MarginCallError is a modeled financial event for the caller to
// escalate or absorb; the agent never defaults itself here.
func (a *Agent) RunMarginCalls() error {
	for _, c := range a.book.LiabilityContractsOfKind(ledger.KindRepo) {
		repo, ok := c.(*contracts.Repo)
		if !ok {
			continue
		}
		if err := repo.MarginCall(); err != nil {
			return err
		}
	}
	return nil
}

// IsMarginCallFailure reports whether an error from RunMarginCalls is the
// recoverable margin-call event rather than a precondition violation.
func IsMarginCallFailure(err error) (*contracts.MarginCallError, bool) {
	var mce *contracts.MarginCallError
	if errors.As(err, &mce) {
		return mce, true
	}
	return nil, false
}

// ============================================================================
// Mailbox plumbing
// ============================================================================

// Step applies accumulated goods deliveries to the book and advances the
// mailbox clock.
func (a *Agent) Step() {
	for _, g := range a.mailbox.DrainGoods() {
		a.book.AddGoods(g.Name, g.Quantity, g.UnitValue)
	}
	a.mailbox.Step()
}

// SendObligation delivers a payment request to the counterparty that owes it
// and mirrors it in this agent's outbox.
func (a *Agent) SendObligation(payer *Agent, amount float64, maturity int64) *mailbox.Obligation {
	o := mailbox.NewObligation(payer, a, amount, a.mailbox.Time(), maturity)
	payer.ReceiveObligation(o)
	a.mailbox.AddToOutbox(o)
	return o
}

func (a *Agent) ReceiveObligation(o *mailbox.Obligation) {
	a.mailbox.ReceiveObligation(o)
}

func (a *Agent) ReceiveGoodsMessage(g mailbox.GoodsMessage) {
	a.mailbox.ReceiveGoodsMessage(g)
}

func (a *Agent) ReceiveMessage(msg mailbox.Message) {
	a.mailbox.ReceiveMessage(msg)
}

func (a *Agent) FulfilMaturedRequests() error { return a.mailbox.FulfilMaturedRequests() }
func (a *Agent) FulfilAllRequests() error     { return a.mailbox.FulfilAllRequests() }

func (a *Agent) MaturedObligations() float64    { return a.mailbox.MaturedObligations() }
func (a *Agent) AllPendingObligations() float64 { return a.mailbox.AllPendingObligations() }
func (a *Agent) PendingPaymentsToMe() float64   { return a.mailbox.PendingPaymentsToMe() }
func (a *Agent) CashCommitments() []float64     { return a.mailbox.CashCommitments() }
func (a *Agent) CashInflows() []float64         { return a.mailbox.CashInflows() }

// ============================================================================
// Reporting
// ============================================================================

func (a *Agent) BalanceSheet() ledger.BalanceSheet {
	return a.book.BalanceSheet()
}

func (a *Agent) MailboxDump() mailbox.Dump {
	return a.mailbox.Dump()
}

// LogBalanceSheet writes the balance sheet as one structured log event.
func (a *Agent) LogBalanceSheet() {
	sheet := a.book.BalanceSheet()
	evt := a.log.Info().
		Float64("assets", sheet.AssetValue).
		Float64("liabilities", sheet.LiabilityValue).
		Float64("equity", sheet.EquityValue).
		Float64("cash", sheet.Cash).
		Bool("alive", a.alive)
	for _, line := range sheet.Lines {
		evt = evt.Float64(line.Side+":"+line.Account, line.Balance)
	}
	evt.Msg("balance sheet")
}
