package sim

import (
	"fmt"

	"github.com/rs/zerolog"

	"RiskLedger/internal/agent"
	"RiskLedger/internal/config"
	"RiskLedger/internal/contracts"
	"RiskLedger/internal/ledger"
	"RiskLedger/internal/market"
	"RiskLedger/internal/observability"
)

// Scenario is a fully wired simulation: engine, agents by name, and the
// shock schedule from the config.
type Scenario struct {
	Engine *Engine
	Agents map[string]*agent.Agent
	Shocks []config.ShockConfig
	Steps  int
}

// Build wires a scenario config into agents, contracts, market and engine.
// Structural contract errors surface here, at start time.
func Build(cfg *config.Config, log zerolog.Logger, metrics *observability.Metrics) (*Scenario, error) {
	marketCfg := market.Config{
		InitialPrices:             make(map[market.AssetType]float64),
		PriceImpacts:              make(map[market.AssetType]float64),
		InitialHaircuts:           make(map[market.AssetType]float64),
		FireSaleContagion:         cfg.Market.FireSaleContagion,
		HaircutContagion:          cfg.Market.HaircutContagion,
		HaircutSlope:              cfg.Market.HaircutSlope,
		HaircutPriceFallThreshold: cfg.Market.HaircutPriceFallThreshold,
	}
	for t, p := range cfg.Market.Prices {
		marketCfg.InitialPrices[market.AssetType(t)] = p
	}
	for t, impact := range cfg.Market.PriceImpacts {
		marketCfg.PriceImpacts[market.AssetType(t)] = impact
	}
	for t, h := range cfg.Market.InitialHaircuts {
		marketCfg.InitialHaircuts[market.AssetType(t)] = h
	}

	m, err := market.New(marketCfg, log, metrics)
	if err != nil {
		return nil, err
	}

	registry := ledger.NewRegistry()
	engine := New(m, log, metrics)
	agents := make(map[string]*agent.Agent, len(cfg.Agents))

	// Agents and their outright holdings first; bilateral contracts need
	// both parties to exist.
	for _, ac := range cfg.Agents {
		a := agent.New(ac.Name, registry, log)
		a.AddCash(ac.Cash)
		if ac.SharesIssued > 0 {
			a.SetSharesIssued(ac.SharesIssued)
		}
		for _, h := range ac.Holdings {
			asset := contracts.NewAsset(a, market.AssetType(h.Type), m, h.Quantity)
			if err := asset.Start(); err != nil {
				return nil, err
			}
		}
		agents[ac.Name] = a

		var b Behaviour
		if !ac.Passive {
			b = NewProportionalBehaviour(a, cfg.SellFraction, log)
		}
		engine.AddAgent(a, b)
	}

	lookup := func(name string) ledger.Party {
		if name == "" {
			return nil
		}
		return agents[name]
	}

	for _, lc := range cfg.Loans {
		loan := contracts.NewLoan(lookup(lc.Lender), agents[lc.Borrower], lc.Principal, lc.Rate)
		if err := loan.Start(); err != nil {
			return nil, err
		}
	}

	for _, bc := range cfg.Bonds {
		maturity, err := parseMaturity(bc.Maturity)
		if err != nil {
			return nil, err
		}
		bond := contracts.NewBond(agents[bc.Holder], agents[bc.Issuer], maturity, bc.Principal, bc.Rate)
		if err := bond.Start(); err != nil {
			return nil, err
		}
	}

	for _, rc := range cfg.Repos {
		borrower := agents[rc.Borrower]
		repo := contracts.NewRepo(agents[rc.Lender], borrower, rc.Principal, m)
		if err := repo.Start(); err != nil {
			return nil, err
		}
		for assetType, quantity := range rc.Collateral {
			pledged := false
			for _, c := range borrower.Book().AssetContractsOfKind(ledger.KindAsset) {
				asset, ok := c.(*contracts.Asset)
				if !ok || asset.AssetType() != market.AssetType(assetType) {
					continue
				}
				if err := repo.PledgeCollateral(asset, quantity); err != nil {
					return nil, err
				}
				pledged = true
				break
			}
			if !pledged {
				return nil, fmt.Errorf("repo collateral: %s holds no %s", rc.Borrower, assetType)
			}
		}
	}

	for _, sc := range cfg.Shares {
		issuer := agents[sc.Issuer]
		shares := contracts.NewShares(agents[sc.Owner], issuer, sc.Count, sc.OriginalNAV)
		if err := shares.Start(); err != nil {
			return nil, err
		}
	}

	// Contracts are all in place: snapshot baselines for equity-loss
	// reporting.
	for _, a := range agents {
		a.SetInitialValues()
	}

	return &Scenario{
		Engine: engine,
		Agents: agents,
		Shocks: cfg.Shocks,
		Steps:  cfg.Steps,
	}, nil
}

// Run plays the shock schedule and steps the engine to completion.
func (s *Scenario) Run() error {
	for step := 0; step < s.Steps; step++ {
		for _, shock := range s.Shocks {
			if shock.Step != step {
				continue
			}
			if err := s.Engine.ShockAssetType(market.AssetType(shock.AssetType), shock.FractionLost); err != nil {
				return err
			}
		}
		if err := s.Engine.RunStep(); err != nil {
			return err
		}
	}
	return nil
}

func parseMaturity(s string) (contracts.MaturityType, error) {
	switch s {
	case "short-term", "":
		return contracts.MaturityShortTerm, nil
	case "long-term":
		return contracts.MaturityLongTerm, nil
	case "perpetual":
		return contracts.MaturityPerpetual, nil
	default:
		return 0, fmt.Errorf("unknown maturity type %q", s)
	}
}
