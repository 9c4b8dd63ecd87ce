package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"RiskLedger/internal/config"
)

const validScenario = `
steps: 3
sell_fraction: 0.2
market:
  prices:
    E: 1.0
    A1: 1.0
  price_impacts:
    A1: 0.005
  initial_haircuts:
    A1: 0.1
  fire_sale_contagion: true
  haircut_contagion: true
  haircut_slope: 0.5
  haircut_price_fall_threshold: 0.05
agents:
  - name: Bank 1
    cash: 20
    holdings:
      - type: E
        quantity: 17
      - type: A1
        quantity: 40
loans:
  - borrower: Bank 1
    principal: 95
shocks:
  - step: 0
    asset_type: E
    fraction_lost: 0.117
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================================
// Test: loading
// ============================================================================

func TestLoad_ValidScenario(t *testing.T) {
	cfg, err := config.Load(writeScenario(t, validScenario))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Steps != 3 {
		t.Fatalf("steps %d, want 3", cfg.Steps)
	}
	if cfg.SellFraction != 0.2 {
		t.Fatalf("sell_fraction %f, want 0.2", cfg.SellFraction)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Name != "Bank 1" {
		t.Fatalf("unexpected agents: %+v", cfg.Agents)
	}
	if cfg.Market.PriceImpacts["A1"] != 0.005 {
		t.Fatalf("price impact %f, want 0.005", cfg.Market.PriceImpacts["A1"])
	}
	if !cfg.Market.FireSaleContagion || !cfg.Market.HaircutContagion {
		t.Fatal("contagion switches not parsed")
	}
	if len(cfg.Shocks) != 1 || cfg.Shocks[0].AssetType != "E" {
		t.Fatalf("unexpected shocks: %+v", cfg.Shocks)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeScenario(t, `
market:
  prices:
    E: 1.0
agents:
  - name: a
    cash: 1
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Steps != 1 {
		t.Fatalf("default steps %d, want 1", cfg.Steps)
	}
	if cfg.SellFraction != 0.1 {
		t.Fatalf("default sell_fraction %f, want 0.1", cfg.SellFraction)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := config.Load(writeScenario(t, "agents: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

// ============================================================================
// Test: validation
// ============================================================================

func TestValidate_Rejections(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Steps:        1,
			SellFraction: 0.1,
			Market: config.MarketConfig{
				Prices: map[string]float64{"E": 1.0},
			},
			Agents: []config.AgentConfig{{Name: "a", Cash: 1}},
		}
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "no agents",
			mutate: func(c *config.Config) { c.Agents = nil },
		},
		{
			name: "duplicate agent name",
			mutate: func(c *config.Config) {
				c.Agents = append(c.Agents, config.AgentConfig{Name: "a"})
			},
		},
		{
			name: "holding of unknown asset type",
			mutate: func(c *config.Config) {
				c.Agents[0].Holdings = []config.HoldingConfig{{Type: "A9", Quantity: 1}}
			},
		},
		{
			name: "loan without borrower",
			mutate: func(c *config.Config) {
				c.Loans = []config.LoanConfig{{Principal: 5}}
			},
		},
		{
			name: "loan to unknown agent",
			mutate: func(c *config.Config) {
				c.Loans = []config.LoanConfig{{Borrower: "ghost", Principal: 5}}
			},
		},
		{
			name: "repo collateral of unknown type",
			mutate: func(c *config.Config) {
				c.Repos = []config.RepoConfig{{
					Lender: "a", Borrower: "a", Principal: 1,
					Collateral: map[string]float64{"A9": 1},
				}}
			},
		},
		{
			name: "shock to unknown asset type",
			mutate: func(c *config.Config) {
				c.Shocks = []config.ShockConfig{{AssetType: "A9", FractionLost: 0.1}}
			},
		},
		{
			name: "shock fraction above one",
			mutate: func(c *config.Config) {
				c.Shocks = []config.ShockConfig{{AssetType: "E", FractionLost: 1.5}}
			},
		},
		{
			name:   "sell fraction above one",
			mutate: func(c *config.Config) { c.SellFraction = 1.5 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base config must validate: %v", err)
	}
}
