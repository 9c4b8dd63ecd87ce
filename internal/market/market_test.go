package market_test

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"RiskLedger/internal/market"
	"RiskLedger/internal/testutil"
)

// ============================================================================
// Stubs
// ============================================================================

type stubSellable struct {
	assetType market.AssetType
	cleared   float64
}

func (s *stubSellable) AssetType() market.AssetType { return s.assetType }

func (s *stubSellable) ClearSale(quantity float64) error {
	s.cleared += quantity
	return nil
}

type stubHolder struct {
	name  string
	falls map[market.AssetType]float64
}

func newStubHolder(name string) *stubHolder {
	return &stubHolder{name: name, falls: make(map[market.AssetType]float64)}
}

func (h *stubHolder) Name() string { return h.name }

func (h *stubHolder) DevalueAssetOfType(assetType market.AssetType, priceFall float64) {
	h.falls[assetType] += priceFall
}

func newMarket(t *testing.T, cfg market.Config) *market.Market {
	t.Helper()
	m, err := market.New(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("building market: %v", err)
	}
	return m
}

func defaultConfig() market.Config {
	return market.Config{
		InitialPrices:             map[market.AssetType]float64{"A1": 1.0, "A2": 1.0},
		PriceImpacts:              map[market.AssetType]float64{"A1": 0.005, "A2": 0.005},
		InitialHaircuts:           map[market.AssetType]float64{"A1": 0.1, "A2": 0.1},
		FireSaleContagion:         true,
		HaircutContagion:          true,
		HaircutSlope:              0.5,
		HaircutPriceFallThreshold: 0.05,
	}
}

// ============================================================================
// Test: configuration validation
// ============================================================================

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  market.Config
	}{
		{
			name: "negative price",
			cfg: market.Config{
				InitialPrices: map[market.AssetType]float64{"A1": -1},
			},
		},
		{
			name: "negative impact",
			cfg: market.Config{
				InitialPrices: map[market.AssetType]float64{"A1": 1},
				PriceImpacts:  map[market.AssetType]float64{"A1": -0.1},
			},
		},
		{
			name: "impact for unknown type",
			cfg: market.Config{
				InitialPrices: map[market.AssetType]float64{"A1": 1},
				PriceImpacts:  map[market.AssetType]float64{"A9": 0.1},
			},
		},
		{
			name: "haircut above one",
			cfg: market.Config{
				InitialPrices:   map[market.AssetType]float64{"A1": 1},
				InitialHaircuts: map[market.AssetType]float64{"A1": 1.5},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := market.New(tc.cfg, zerolog.Nop(), nil); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}

// ============================================================================
// Test: order placement and clearing
// ============================================================================

func TestPutForSale_RejectsNonPositiveAndUnknown(t *testing.T) {
	m := newMarket(t, defaultConfig())
	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 0); err == nil {
		t.Fatal("expected error for zero quantity")
	}
	if err := m.PutForSale(&stubSellable{assetType: "A9"}, 5); err == nil {
		t.Fatal("expected error for unknown asset type")
	}
}

func TestClearTheMarket_AppliesPriceImpact(t *testing.T) {
	m := newMarket(t, defaultConfig())
	asset := &stubSellable{assetType: "A1"}
	if err := m.PutForSale(asset, 10); err != nil {
		t.Fatal(err)
	}

	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	// p' = 1.0 * (1 - 10*0.005)
	testutil.AssertApprox(t, "price A1", m.Price("A1"), 0.95)
	testutil.AssertApprox(t, "price A2 untouched", m.Price("A2"), 1.0)
	testutil.AssertApprox(t, "settled quantity", asset.cleared, 10)
}

func TestClearTheMarket_AggregatesOrdersBeforePricing(t *testing.T) {
	// Two orders of 5 in one step must clear at the same price as one order
	// of 10: feedback is computed from the step aggregate, not per order.
	split := newMarket(t, defaultConfig())
	if err := split.PutForSale(&stubSellable{assetType: "A1"}, 5); err != nil {
		t.Fatal(err)
	}
	if err := split.PutForSale(&stubSellable{assetType: "A1"}, 5); err != nil {
		t.Fatal(err)
	}
	if err := split.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	single := newMarket(t, defaultConfig())
	if err := single.PutForSale(&stubSellable{assetType: "A1"}, 10); err != nil {
		t.Fatal(err)
	}
	if err := single.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	testutil.AssertApprox(t, "split vs single price", split.Price("A1"), single.Price("A1"))
}

func TestClearTheMarket_BroadcastsToEveryHolder(t *testing.T) {
	m := newMarket(t, defaultConfig())
	seller := newStubHolder("seller")
	bystander := newStubHolder("bystander")
	m.RegisterHolder(seller)
	m.RegisterHolder(bystander)

	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 10); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	// The fall reaches holders regardless of who sold.
	testutil.AssertApprox(t, "seller fall", seller.falls["A1"], 0.05)
	testutil.AssertApprox(t, "bystander fall", bystander.falls["A1"], 0.05)
	if _, ok := seller.falls["A2"]; ok {
		t.Fatal("A2 did not fall, holders must not hear about it")
	}
}

func TestClearTheMarket_NegativePriceIsConfigError(t *testing.T) {
	m := newMarket(t, defaultConfig())
	// 300 * 0.005 = 1.5 > 1, which would push the price below zero.
	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 300); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err == nil {
		t.Fatal("expected clearing to abort on negative price")
	}
}

func TestClearTheMarket_ResetsStepStateAndAccumulatesTotals(t *testing.T) {
	m := newMarket(t, defaultConfig())
	for step := 0; step < 2; step++ {
		if err := m.PutForSale(&stubSellable{assetType: "A1"}, 4); err != nil {
			t.Fatal(err)
		}
		testutil.AssertApprox(t, "sold this step", m.AmountSoldThisStep("A1"), 4)
		if err := m.ClearTheMarket(); err != nil {
			t.Fatal(err)
		}
		testutil.AssertApprox(t, "sold cleared", m.AmountSoldThisStep("A1"), 0)
		if m.OpenOrders() != 0 {
			t.Fatalf("orderbook not drained: %d open orders", m.OpenOrders())
		}
	}
	testutil.AssertApprox(t, "total sold", m.TotalAmountSold("A1"), 8)
}

// ============================================================================
// Test: haircut feedback
// ============================================================================

func TestClearTheMarket_HaircutRisesWithPriceFall(t *testing.T) {
	m := newMarket(t, defaultConfig())
	// 30 * 0.005 = 0.15 price fall, above the 0.05 threshold:
	// h = 0.1 + 0.5*(0.15 - 0.05) = 0.15
	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 30); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	testutil.AssertApprox(t, "price", m.Price("A1"), 0.85)
	testutil.AssertApprox(t, "haircut", m.Haircut("A1"), 0.15)
}

func TestClearTheMarket_HaircutClampedToFloor(t *testing.T) {
	m := newMarket(t, defaultConfig())
	// 2 * 0.005 = 0.01 price fall, below the threshold: haircut stays at h0.
	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 2); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertApprox(t, "haircut", m.Haircut("A1"), 0.1)
}

func TestClearTheMarket_HaircutClampedToOne(t *testing.T) {
	cfg := defaultConfig()
	cfg.HaircutSlope = 100
	m := newMarket(t, cfg)
	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 30); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}
	testutil.AssertApprox(t, "haircut", m.Haircut("A1"), 1.0)
}

// ============================================================================
// Test: contagion switches
// ============================================================================

func TestClearTheMarket_ContagionDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.FireSaleContagion = false
	cfg.HaircutContagion = false
	m := newMarket(t, cfg)
	holder := newStubHolder("holder")
	m.RegisterHolder(holder)

	if err := m.PutForSale(&stubSellable{assetType: "A1"}, 30); err != nil {
		t.Fatal(err)
	}
	if err := m.ClearTheMarket(); err != nil {
		t.Fatal(err)
	}

	testutil.AssertApprox(t, "price", m.Price("A1"), 1.0)
	testutil.AssertApprox(t, "haircut", m.Haircut("A1"), 0.1)
	if len(holder.falls) != 0 {
		t.Fatal("holders must not be devalued with fire-sale contagion off")
	}
}

// ============================================================================
// Test: shocks
// ============================================================================

func TestSetPrice_Bounds(t *testing.T) {
	m := newMarket(t, defaultConfig())
	if err := m.SetPrice("A1", -0.5); err == nil {
		t.Fatal("expected error for negative price")
	}
	if err := m.SetPrice("A9", 0.5); err == nil {
		t.Fatal("expected error for unknown asset type")
	}
	if err := m.SetPrice("A1", 0.5); err != nil {
		t.Fatal(err)
	}
	if math.Abs(m.Price("A1")-0.5) > testutil.Tolerance {
		t.Fatalf("price %f, want 0.5", m.Price("A1"))
	}
}
