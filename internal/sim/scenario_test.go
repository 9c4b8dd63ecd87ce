package sim_test

import (
	"testing"

	"github.com/rs/zerolog"

	"RiskLedger/internal/config"
	"RiskLedger/internal/sim"
	"RiskLedger/internal/testutil"
)

func demoConfig() *config.Config {
	return &config.Config{
		Steps:        3,
		SellFraction: 0.2,
		Market: config.MarketConfig{
			Prices: map[string]float64{
				"E": 1.0, "A1": 1.0, "A2": 1.0, "A3": 1.0,
			},
			PriceImpacts: map[string]float64{
				"A1": 0.005, "A2": 0.005, "A3": 0.005,
			},
			InitialHaircuts: map[string]float64{
				"A1": 0.1, "A2": 0.1, "A3": 0.1,
			},
			FireSaleContagion:         true,
			HaircutContagion:          true,
			HaircutSlope:              0.5,
			HaircutPriceFallThreshold: 0.05,
		},
		Agents: []config.AgentConfig{
			{
				Name: "Bank 1",
				Cash: 20,
				Holdings: []config.HoldingConfig{
					{Type: "E", Quantity: 17},
					{Type: "A1", Quantity: 40},
				},
			},
			{
				Name: "Bank 2",
				Cash: 20,
				Holdings: []config.HoldingConfig{
					{Type: "A2", Quantity: 40},
					{Type: "A3", Quantity: 17},
				},
			},
			{
				Name: "HedgeFund 1",
				Cash: 100,
				Holdings: []config.HoldingConfig{
					{Type: "A1", Quantity: 20},
					{Type: "A2", Quantity: 20},
				},
			},
		},
		Loans: []config.LoanConfig{
			{Lender: "Bank 1", Borrower: "HedgeFund 1", Principal: 23},
			{Lender: "Bank 2", Borrower: "HedgeFund 1", Principal: 23},
			{Borrower: "Bank 1", Principal: 95},
			{Borrower: "Bank 2", Principal: 95},
		},
		Shocks: []config.ShockConfig{
			{Step: 0, AssetType: "E", FractionLost: 2.0 / 17.0},
		},
	}
}

// ============================================================================
// Test: building
// ============================================================================

func TestBuild_WiresAgentsAndContracts(t *testing.T) {
	scenario, err := sim.Build(demoConfig(), zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(scenario.Agents) != 3 {
		t.Fatalf("built %d agents, want 3", len(scenario.Agents))
	}

	bank1 := scenario.Agents["Bank 1"]
	// cash 20 + E 17 + A1 40, funded by an external 95 loan.
	testutil.AssertApprox(t, "bank 1 assets", bank1.AssetValue(), 77)
	testutil.AssertApprox(t, "bank 1 equity", bank1.EquityValue(), -18)

	fund := scenario.Agents["HedgeFund 1"]
	// cash 100 + A1 20 + A2 20, owing two 23 loans.
	testutil.AssertApprox(t, "fund equity", fund.EquityValue(), 94)
	for name, a := range scenario.Agents {
		testutil.AssertBalanced(t, name, a.Book())
	}
}

func TestBuild_RejectsMissingRepoCollateral(t *testing.T) {
	cfg := demoConfig()
	cfg.Repos = []config.RepoConfig{
		{Lender: "Bank 1", Borrower: "Bank 2", Principal: 5, Collateral: map[string]float64{"A1": 5}},
	}
	// Bank 2 holds no A1 to pledge.
	if _, err := sim.Build(cfg, zerolog.Nop(), nil); err == nil {
		t.Fatal("expected build to fail on unpledgeable collateral")
	}
}

// ============================================================================
// Test: full demo run
// ============================================================================

func TestScenario_DemoRunPropagatesContagion(t *testing.T) {
	scenario, err := sim.Build(demoConfig(), zerolog.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}

	bank1 := scenario.Agents["Bank 1"]
	fund := scenario.Agents["HedgeFund 1"]
	fundAssetsBefore := fund.AssetValue()

	if err := scenario.Run(); err != nil {
		t.Fatal(err)
	}

	m := scenario.Engine.Market()

	// Bank 1's shock forced sales; the hedge fund's behaviour sold too. The
	// aggregate A1 sales must have moved the price.
	if m.TotalAmountSold("A1") <= 0 {
		t.Fatal("no A1 was sold during the run")
	}
	if m.Price("A1") >= 1.0 {
		t.Fatalf("A1 price %f did not fall under fire sales", m.Price("A1"))
	}

	// Contagion: the hedge fund never held E, yet it ends the run with less
	// equity than it started with, purely through the market channel.
	if fund.EquityValue() >= 94 {
		t.Fatalf("fund equity %f did not fall below its initial 94", fund.EquityValue())
	}
	if fund.AssetValue() >= fundAssetsBefore {
		t.Fatalf("fund assets %f did not fall from %f", fund.AssetValue(), fundAssetsBefore)
	}

	// Bank 1 lost the shock value on top of fire-sale losses.
	if bank1.EquityValue() >= -18 {
		t.Fatalf("bank 1 equity %f did not fall below its initial -18", bank1.EquityValue())
	}

	if scenario.Engine.Step() != 3 {
		t.Fatalf("engine ran %d steps, want 3", scenario.Engine.Step())
	}
	for name, a := range scenario.Agents {
		testutil.AssertBalanced(t, name, a.Book())
		if !a.Alive() {
			t.Fatalf("%s defaulted in the demo scenario", name)
		}
	}
}
