package sim

import (
	"github.com/rs/zerolog"

	"RiskLedger/internal/agent"
	"RiskLedger/internal/contracts"
)

// Behaviour is a decision policy acting on behalf of one agent. Behaviours
// are the only callers allowed to invoke Action.Perform; the core exposes
// discovery via AvailableActions and nothing else.
type Behaviour interface {
	Act() error
}

// ProportionalBehaviour performs every available pay-down and sale action at
// a fixed fraction of its maximum, selling and repaying proportionally to
// holdings.
type ProportionalBehaviour struct {
	me       *agent.Agent
	fraction float64
	log      zerolog.Logger
}

func NewProportionalBehaviour(me *agent.Agent, fraction float64, log zerolog.Logger) *ProportionalBehaviour {
	return &ProportionalBehaviour{
		me:       me,
		fraction: fraction,
		log:      log.With().Str("agent", me.Name()).Logger(),
	}
}

func (b *ProportionalBehaviour) Act() error {
	if b.fraction <= 0 {
		return nil
	}
	for _, action := range b.me.AvailableActions() {
		amount := action.Max() * b.fraction
		switch act := action.(type) {
		case *contracts.PayLoan:
			// A payment is only legal with the cash in hand; sale proceeds
			// land at clearing, after this step's actions.
			if cash := b.me.Cash(); amount > cash {
				amount = cash
			}
		case *contracts.RedeemShares:
			// Redemptions are paid from the issuer's cash; same precondition.
			if cash := act.IssuerCash(); amount > cash {
				amount = cash
			}
		case *contracts.SellAsset:
		default:
			continue
		}
		action.SetAmount(amount)
		if action.Amount() <= 0 {
			continue
		}
		b.log.Info().Str("action", action.Describe()).Msg("performing action")
		if err := action.Perform(); err != nil {
			return err
		}
	}
	return nil
}

// PassiveBehaviour takes no actions; useful for agents that only react to
// contagion.
type PassiveBehaviour struct{}

func (PassiveBehaviour) Act() error { return nil }
