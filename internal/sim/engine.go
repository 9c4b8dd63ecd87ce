// Package sim drives the discrete-time simulation: a single-threaded,
// cooperative step loop in which agents act in a fixed order, the market
// clears exactly once per step, and margin-call failures are escalated by
// the scheduler rather than inside the core.
package sim

import (
	"fmt"

	"github.com/rs/zerolog"

	"RiskLedger/internal/agent"
	"RiskLedger/internal/market"
	"RiskLedger/internal/observability"
)

type participant struct {
	agent     *agent.Agent
	behaviour Behaviour
}

// Engine owns the market and the agents in their caller-determined acting
// order. Every action's side effects are immediately visible to
// subsequently-processed agents within the same step; there is no isolation
// boundary between agents.
type Engine struct {
	log     zerolog.Logger
	metrics *observability.Metrics

	market       *market.Market
	participants []participant
	step         int64

	// DefaultOnMarginCallFailure controls escalation: when true (the
	// default), a failed margin call defaults the agent.
	DefaultOnMarginCallFailure bool
}

// New builds an engine around a market. Metrics may be nil.
func New(m *market.Market, log zerolog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		log:                        log,
		metrics:                    metrics,
		market:                     m,
		DefaultOnMarginCallFailure: true,
	}
}

// AddAgent appends an agent in acting order and registers it for fire-sale
// broadcasts. A nil behaviour means the agent only reacts to contagion.
func (e *Engine) AddAgent(a *agent.Agent, b Behaviour) {
	if b == nil {
		b = PassiveBehaviour{}
	}
	e.participants = append(e.participants, participant{agent: a, behaviour: b})
	e.market.RegisterHolder(a)
	a.SetInitialValues()
}

func (e *Engine) Market() *market.Market { return e.market }

func (e *Engine) Agents() []*agent.Agent {
	agents := make([]*agent.Agent, len(e.participants))
	for i, p := range e.participants {
		agents[i] = p.agent
	}
	return agents
}

func (e *Engine) Step() int64 { return e.step }

// ShockAssetType is the external shock entry point: the market price of the
// type drops by fractionLost and every agent devalues its holdings by the
// same fraction.
func (e *Engine) ShockAssetType(assetType market.AssetType, fractionLost float64) error {
	newPrice := e.market.Price(assetType) * (1.0 - fractionLost)
	if err := e.market.SetPrice(assetType, newPrice); err != nil {
		return err
	}
	e.log.Info().
		Str("asset_type", string(assetType)).
		Float64("fraction_lost", fractionLost).
		Msg("shock arrives")
	for _, p := range e.participants {
		p.agent.ReceiveShockToAsset(assetType, fractionLost)
	}
	return nil
}

// RunStep executes one simulation step:
//  1. agents apply goods deliveries and advance their mailbox clocks,
//  2. live agents' behaviours act, possibly placing market orders,
//  3. the market clears exactly once,
//  4. matured obligations settle, funded by the sale proceeds that landed
//     at clearing,
//  5. margin calls run, with failures escalated per engine policy.
//
// Any error other than a margin-call failure is a precondition or
// configuration violation and aborts the run.
func (e *Engine) RunStep() error {
	e.step++
	e.log.Info().Int64("step", e.step).Msg("step begins")

	for _, p := range e.participants {
		if !p.agent.Alive() {
			continue
		}
		p.agent.Step()
	}

	for _, p := range e.participants {
		if !p.agent.Alive() {
			continue
		}
		if err := p.behaviour.Act(); err != nil {
			return fmt.Errorf("step %d: %s acting: %w", e.step, p.agent.Name(), err)
		}
	}

	if err := e.market.ClearTheMarket(); err != nil {
		return fmt.Errorf("step %d: clearing: %w", e.step, err)
	}

	for _, p := range e.participants {
		if !p.agent.Alive() {
			continue
		}
		due := p.agent.MaturedObligations()
		if err := p.agent.FulfilMaturedRequests(); err != nil {
			return fmt.Errorf("step %d: %s settling obligations: %w", e.step, p.agent.Name(), err)
		}
		if e.metrics != nil && due > 0 {
			e.metrics.ObligationsSettled.Add(due)
		}
	}

	for _, p := range e.participants {
		if !p.agent.Alive() {
			continue
		}
		if e.metrics != nil {
			e.metrics.MarginCallsRun.Inc()
		}
		err := p.agent.RunMarginCalls()
		if err == nil {
			continue
		}
		failure, ok := agent.IsMarginCallFailure(err)
		if !ok {
			return fmt.Errorf("step %d: %s margin calls: %w", e.step, p.agent.Name(), err)
		}
		e.log.Warn().
			Str("agent", p.agent.Name()).
			Float64("shortfall", failure.Shortfall).
			Msg("margin call failed")
		if e.metrics != nil {
			e.metrics.MarginCallFailures.Inc()
		}
		if e.DefaultOnMarginCallFailure {
			p.agent.TriggerDefault()
			if e.metrics != nil {
				e.metrics.DefaultsTotal.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.StepsTotal.Inc()
		alive := 0
		for _, p := range e.participants {
			if p.agent.Alive() {
				alive++
			}
		}
		e.metrics.AgentsAlive.Set(float64(alive))
	}
	return nil
}

// Run executes n steps.
func (e *Engine) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := e.RunStep(); err != nil {
			return err
		}
	}
	return nil
}
