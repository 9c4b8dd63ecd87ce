// Package config loads YAML scenario files: market parameters, agents with
// their initial holdings, and the contracts and shocks wiring them together.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk scenario shape (YAML).
type Config struct {
	Steps  int            `yaml:"steps"`
	Market MarketConfig   `yaml:"market"`
	Agents []AgentConfig  `yaml:"agents"`
	Loans  []LoanConfig   `yaml:"loans"`
	Bonds  []BondConfig   `yaml:"bonds"`
	Repos  []RepoConfig   `yaml:"repos"`
	Shares []SharesConfig `yaml:"shares"`
	Shocks []ShockConfig  `yaml:"shocks"`

	// SellFraction parameterizes the reference proportional behaviour.
	SellFraction float64 `yaml:"sell_fraction"`
}

type MarketConfig struct {
	Prices          map[string]float64 `yaml:"prices"`
	PriceImpacts    map[string]float64 `yaml:"price_impacts"`
	InitialHaircuts map[string]float64 `yaml:"initial_haircuts"`

	FireSaleContagion bool `yaml:"fire_sale_contagion"`
	HaircutContagion  bool `yaml:"haircut_contagion"`

	HaircutSlope              float64 `yaml:"haircut_slope"`
	HaircutPriceFallThreshold float64 `yaml:"haircut_price_fall_threshold"`
}

type AgentConfig struct {
	Name         string          `yaml:"name"`
	Cash         float64         `yaml:"cash"`
	SharesIssued int             `yaml:"shares_issued"`
	Passive      bool            `yaml:"passive"`
	Holdings     []HoldingConfig `yaml:"holdings"`
}

type HoldingConfig struct {
	Type     string  `yaml:"type"`
	Quantity float64 `yaml:"quantity"`
}

// LoanConfig wires a loan between named agents. An empty lender means the
// loan is owed to an unmodelled external party.
type LoanConfig struct {
	Lender    string  `yaml:"lender"`
	Borrower  string  `yaml:"borrower"`
	Principal float64 `yaml:"principal"`
	Rate      float64 `yaml:"rate"`
}

type BondConfig struct {
	Holder    string  `yaml:"holder"`
	Issuer    string  `yaml:"issuer"`
	Maturity  string  `yaml:"maturity"` // short-term | long-term | perpetual
	Principal float64 `yaml:"principal"`
	Rate      float64 `yaml:"rate"`
}

type RepoConfig struct {
	Lender     string             `yaml:"lender"`
	Borrower   string             `yaml:"borrower"`
	Principal  float64            `yaml:"principal"`
	Collateral map[string]float64 `yaml:"collateral"` // asset type -> pledged quantity
}

type SharesConfig struct {
	Owner       string  `yaml:"owner"`
	Issuer      string  `yaml:"issuer"`
	Count       int     `yaml:"count"`
	OriginalNAV float64 `yaml:"original_nav"`
}

type ShockConfig struct {
	Step         int     `yaml:"step"` // 0 = before the first step
	AssetType    string  `yaml:"asset_type"`
	FractionLost float64 `yaml:"fraction_lost"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Steps == 0 {
		c.Steps = 1
	}
	if c.SellFraction == 0 {
		c.SellFraction = 0.1
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}
	names := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if names[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		names[a.Name] = true
		for _, h := range a.Holdings {
			if _, ok := c.Market.Prices[h.Type]; !ok {
				return fmt.Errorf("agent %s holds unknown asset type %q", a.Name, h.Type)
			}
			if h.Quantity < 0 {
				return fmt.Errorf("agent %s: negative quantity for %s", a.Name, h.Type)
			}
		}
	}

	requireAgent := func(role, name string) error {
		if name != "" && !names[name] {
			return fmt.Errorf("unknown %s %q", role, name)
		}
		return nil
	}
	for _, l := range c.Loans {
		if l.Borrower == "" {
			return fmt.Errorf("loan without borrower")
		}
		if err := requireAgent("lender", l.Lender); err != nil {
			return err
		}
		if err := requireAgent("borrower", l.Borrower); err != nil {
			return err
		}
	}
	for _, b := range c.Bonds {
		if err := requireAgent("bond holder", b.Holder); err != nil {
			return err
		}
		if err := requireAgent("bond issuer", b.Issuer); err != nil {
			return err
		}
	}
	for _, r := range c.Repos {
		if err := requireAgent("repo lender", r.Lender); err != nil {
			return err
		}
		if err := requireAgent("repo borrower", r.Borrower); err != nil {
			return err
		}
		for assetType := range r.Collateral {
			if _, ok := c.Market.Prices[assetType]; !ok {
				return fmt.Errorf("repo collateral of unknown asset type %q", assetType)
			}
		}
	}
	for _, s := range c.Shares {
		if err := requireAgent("shares owner", s.Owner); err != nil {
			return err
		}
		if err := requireAgent("shares issuer", s.Issuer); err != nil {
			return err
		}
	}
	for _, s := range c.Shocks {
		if _, ok := c.Market.Prices[s.AssetType]; !ok {
			return fmt.Errorf("shock to unknown asset type %q", s.AssetType)
		}
		if s.FractionLost < 0 || s.FractionLost > 1 {
			return fmt.Errorf("shock fraction %f outside [0,1]", s.FractionLost)
		}
	}

	if c.SellFraction < 0 || c.SellFraction > 1 {
		return fmt.Errorf("sell_fraction %f outside [0,1]", c.SellFraction)
	}
	return nil
}
