// Command riskledger runs a contagion scenario: it loads a YAML scenario (or
// the built-in demo), wires agents, contracts and the asset market, plays
// the shock schedule through the step scheduler, and logs every agent's
// balance sheet along the way.
package main

import (
	"flag"
	"net/http"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"RiskLedger/internal/config"
	"RiskLedger/internal/observability"
	"RiskLedger/internal/sim"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to a YAML scenario; empty runs the built-in demo")
		metricsAddr = flag.String("metrics-addr", "", "address to serve Prometheus metrics on; empty disables")
	)
	flag.Parse()

	log := observability.NewLogger("riskledger")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", *metricsAddr).Msg("serving metrics")
	}

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error().Err(err).Str("path", *configPath).Msg("loading scenario")
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = demoScenario()
	}

	scenario, err := sim.Build(cfg, log, metrics)
	if err != nil {
		log.Error().Err(err).Msg("building scenario")
		os.Exit(1)
	}

	logBalanceSheets(scenario)

	if err := scenario.Run(); err != nil {
		log.Error().Err(err).Msg("simulation aborted")
		os.Exit(1)
	}

	log.Info().Int64("steps", scenario.Engine.Step()).Msg("simulation finished")
	logBalanceSheets(scenario)
}

func logBalanceSheets(s *sim.Scenario) {
	names := make([]string, 0, len(s.Agents))
	for name := range s.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Agents[name].LogBalanceSheet()
	}
}

// demoScenario is the built-in short simulation: Bank 1 takes a shock to its
// external asset E, raises liquidity by selling A1, and the fire sale drags
// down every other A1 holder.
func demoScenario() *config.Config {
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
