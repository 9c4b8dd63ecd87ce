package sim_test

import (
	"testing"

	"github.com/rs/zerolog"

	"RiskLedger/internal/agent"
	"RiskLedger/internal/contracts"
	"RiskLedger/internal/ledger"
	"RiskLedger/internal/market"
	"RiskLedger/internal/sim"
	"RiskLedger/internal/testutil"
)

func newTestMarket(t *testing.T, cfg market.Config) *market.Market {
	t.Helper()
	m, err := market.New(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("building market: %v", err)
	}
	return m
}

// sellOnce places a single fixed-value sell order on its first act.
type sellOnce struct {
	asset  *contracts.Asset
	amount float64
	done   bool
}

func (s *sellOnce) Act() error {
	if s.done {
		return nil
	}
	s.done = true
	sell := contracts.NewSellAsset(s.asset)
	sell.SetAmount(s.amount)
	return sell.Perform()
}

// ============================================================================
// Test: fire-sale contagion
// ============================================================================

func TestEngine_FireSaleReachesNonSellers(t *testing.T) {
	m := newTestMarket(t, market.Config{
		InitialPrices:     map[market.AssetType]float64{"A1": 1.0},
		PriceImpacts:      map[market.AssetType]float64{"A1": 0.005},
		FireSaleContagion: true,
	})
	registry := ledger.NewRegistry()
	engine := sim.New(m, zerolog.Nop(), nil)

	seller := agent.New("seller", registry, zerolog.Nop())
	seller.AddCash(5)
	sellerAsset := contracts.NewAsset(seller, "A1", m, 40)
	if err := sellerAsset.Start(); err != nil {
		t.Fatal(err)
	}

	bystander := agent.New("bystander", registry, zerolog.Nop())
	bystander.AddCash(10)
	if err := contracts.NewAsset(bystander, "A1", m, 20).Start(); err != nil {
		t.Fatal(err)
	}

	engine.AddAgent(seller, &sellOnce{asset: sellerAsset, amount: 8})
	engine.AddAgent(bystander, nil)

	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}

	// 8 sold at impact 0.005: price falls to 0.96.
	testutil.AssertApprox(t, "price", m.Price("A1"), 0.96)

	// The bystander sold nothing, yet its 20 units lose 20 * 0.04.
	testutil.AssertApprox(t, "bystander equity", bystander.EquityValue(), 30-0.8)
	testutil.AssertApprox(t, "bystander asset account",
		bystander.Book().AccountBalance(ledger.KindAsset, ledger.AccountAsset), 19.2)

	// The seller's remaining 32 units were devalued before settlement and the
	// sold 8 settled at the post-clearing price.
	testutil.AssertApprox(t, "seller cash", seller.Cash(), 5+8*0.96)
	testutil.AssertApprox(t, "seller quantity", sellerAsset.Quantity(), 32)
	testutil.AssertApprox(t, "seller equity", seller.EquityValue(), 45-1.6)

	testutil.AssertBalanced(t, "seller", seller.Book())
	testutil.AssertBalanced(t, "bystander", bystander.Book())
}

// ============================================================================
// Test: margin-call escalation
// ============================================================================

func repoEngine(t *testing.T, borrowerCash float64) (*sim.Engine, *agent.Agent) {
	t.Helper()
	m := newTestMarket(t, market.Config{
		InitialPrices:   map[market.AssetType]float64{"A1": 1.0},
		InitialHaircuts: map[market.AssetType]float64{"A1": 0.2},
	})
	registry := ledger.NewRegistry()
	engine := sim.New(m, zerolog.Nop(), nil)

	lender := agent.New("lender", registry, zerolog.Nop())
	borrower := agent.New("borrower", registry, zerolog.Nop())
	borrower.AddCash(borrowerCash)

	collateral := contracts.NewAsset(borrower, "A1", m, 10)
	if err := collateral.Start(); err != nil {
		t.Fatal(err)
	}
	repo := contracts.NewRepo(lender, borrower, 7, m)
	if err := repo.Start(); err != nil {
		t.Fatal(err)
	}
	if err := repo.PledgeCollateral(collateral, 10); err != nil {
		t.Fatal(err)
	}

	engine.AddAgent(lender, nil)
	engine.AddAgent(borrower, nil)
	return engine, borrower
}

func TestEngine_MarginCallFailureDefaultsBorrower(t *testing.T) {
	engine, borrower := repoEngine(t, 2)

	// Collateral halves: eligible 10*0.5*0.8 = 4 against principal 7, and
	// cash 2 cannot cover the shortfall of 3.
	if err := engine.ShockAssetType("A1", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}

	if borrower.Alive() {
		t.Fatal("borrower survived a failed margin call")
	}
	// Snapshots carry the post-shock position: 2 + 5 - 7 equity, cash 2.
	testutil.AssertApprox(t, "equity at default", borrower.EquityAtDefault(), 0)
	testutil.AssertApprox(t, "lcr at default", borrower.LCRAtDefault(), 2)
}

func TestEngine_MarginCallEscalationDisabled(t *testing.T) {
	engine, borrower := repoEngine(t, 2)
	engine.DefaultOnMarginCallFailure = false

	if err := engine.ShockAssetType("A1", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}

	if !borrower.Alive() {
		t.Fatal("borrower defaulted despite escalation being disabled")
	}
}

func TestEngine_MarginCallCoveredByCashPledge(t *testing.T) {
	engine, borrower := repoEngine(t, 5)

	if err := engine.ShockAssetType("A1", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}

	if !borrower.Alive() {
		t.Fatal("borrower defaulted despite covering the shortfall")
	}
	testutil.AssertApprox(t, "encumbered cash", borrower.EncumberedCash(), 3)
}

// ============================================================================
// Test: obligations in the step loop
// ============================================================================

// raiseForDue sells just enough holdings to cover obligations due this step.
type raiseForDue struct {
	me *agent.Agent
}

func (b *raiseForDue) Act() error {
	shortfall := b.me.MaturedObligations() - b.me.Cash()
	if shortfall <= 0 {
		return nil
	}
	return b.me.RaiseLiquidity(shortfall)
}

func TestEngine_SaleProceedsFundSameStepObligations(t *testing.T) {
	m := newTestMarket(t, market.Config{
		InitialPrices: map[market.AssetType]float64{"A1": 1.0},
	})
	registry := ledger.NewRegistry()
	engine := sim.New(m, zerolog.Nop(), nil)

	payer := agent.New("payer", registry, zerolog.Nop())
	payee := agent.New("payee", registry, zerolog.Nop())
	holding := contracts.NewAsset(payer, "A1", m, 50)
	if err := holding.Start(); err != nil {
		t.Fatal(err)
	}
	engine.AddAgent(payer, &raiseForDue{me: payer})
	engine.AddAgent(payee, nil)

	payee.SendObligation(payer, 10, 1)

	// The payer starts with zero cash: the obligation due this step can only
	// be funded by sale proceeds, which land at clearing. Settlement runs
	// after the market clears, so the step must succeed.
	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}

	testutil.AssertApprox(t, "payee cash", payee.Cash(), 10)
	testutil.AssertApprox(t, "payer cash", payer.Cash(), 0)
	testutil.AssertApprox(t, "payer holding", holding.Quantity(), 40)
	testutil.AssertBalanced(t, "payer", payer.Book())
	testutil.AssertBalanced(t, "payee", payee.Book())
}

func TestEngine_ObligationsSettleAtMaturity(t *testing.T) {
	m := newTestMarket(t, market.Config{
		InitialPrices: map[market.AssetType]float64{"A1": 1.0},
	})
	registry := ledger.NewRegistry()
	engine := sim.New(m, zerolog.Nop(), nil)

	payer := agent.New("payer", registry, zerolog.Nop())
	payee := agent.New("payee", registry, zerolog.Nop())
	payer.AddCash(50)
	engine.AddAgent(payer, nil)
	engine.AddAgent(payee, nil)

	payee.SendObligation(payer, 10, 2)

	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertApprox(t, "unpaid before maturity", payee.Cash(), 0)

	if err := engine.RunStep(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertApprox(t, "paid at maturity", payee.Cash(), 10)
	testutil.AssertApprox(t, "payer cash", payer.Cash(), 40)
}
