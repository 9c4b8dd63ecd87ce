package contracts

import (
	"fmt"

	"github.com/google/uuid"

	"RiskLedger/internal/ledger"
)

// Shares is a holding of shares in an agent that can issue them. Value is
// share count times the issuer's current per-share net asset value; the
// recorded book values are marked to NAV explicitly via UpdateValue.
type Shares struct {
	id              uuid.UUID
	owner           ledger.Party
	issuer          ledger.ShareIssuer
	nShares         int
	originalNAV     float64
	previousValue   float64
	pendingToRedeem int
}

func NewShares(owner ledger.Party, issuer ledger.ShareIssuer, nShares int, originalNAV float64) *Shares {
	return &Shares{
		id:          uuid.New(),
		owner:       owner,
		issuer:      issuer,
		nShares:     nShares,
		originalNAV: originalNAV,
	}
}

func (s *Shares) Start() error {
	if s.owner == nil || s.issuer == nil {
		return fmt.Errorf("shares %s: owner and issuer are required", s.id)
	}
	if s.nShares < 0 {
		return fmt.Errorf("shares %s: negative share count %d", s.id, s.nShares)
	}
	if err := s.owner.Book().Registry().Add(s); err != nil {
		return err
	}
	s.previousValue = s.Value()
	s.owner.Book().AddAsset(s)
	s.issuer.Book().AddLiability(s)
	return nil
}

func (s *Shares) ID() uuid.UUID                { return s.id }
func (s *Shares) Kind() ledger.Kind            { return ledger.KindShares }
func (s *Shares) AssetParty() ledger.Party     { return s.owner }
func (s *Shares) LiabilityParty() ledger.Party { return s.issuer }

func (s *Shares) Value() float64 {
	return float64(s.nShares) * s.issuer.NetAssetValue()
}

func (s *Shares) Issuer() ledger.ShareIssuer { return s.issuer }

func (s *Shares) NShares() int         { return s.nShares }
func (s *Shares) NAV() float64         { return s.issuer.NetAssetValue() }
func (s *Shares) OriginalNAV() float64 { return s.originalNAV }
func (s *Shares) PendingToRedeem() int { return s.pendingToRedeem }

func (s *Shares) AddPendingToRedeem(n int) { s.pendingToRedeem += n }

// UpdateValue marks both sides' recorded values to the current NAV, routing
// the change through equity on each book.
func (s *Shares) UpdateValue() {
	change := s.Value() - s.previousValue
	s.previousValue = s.Value()

	if change > 0 {
		s.owner.Book().AppreciateAsset(s, change)
		s.issuer.Book().AppreciateLiability(s, change)
	} else if change < 0 {
		s.owner.Book().DevalueAsset(s, -change)
		s.issuer.Book().DevalueLiability(s, -change)
	}
}

// Redeem cancels n shares against the issuer for cash at the current NAV.
// Both books update atomically with the transfer: the issuer pays cash and
// sheds the liability, the owner swaps the asset for cash. The issuer's cash
// position is the precondition; nothing moves if it fails.
func (s *Shares) Redeem(n int) error {
	if n <= 0 {
		return nil
	}
	if n > s.nShares {
		return fmt.Errorf("shares %s: redeeming %d exceeds held %d", s.id, n, s.nShares)
	}

	s.UpdateValue()

	nav := s.issuer.NetAssetValue()
	value := float64(n) * nav
	if err := s.issuer.Book().PayLiability(value, s); err != nil {
		return fmt.Errorf("redeem shares: %w", err)
	}
	if err := s.owner.Book().SellAssetForValue(value, ledger.KindShares); err != nil {
		return fmt.Errorf("redeem shares: %w", err)
	}

	s.nShares -= n
	s.issuer.ReduceSharesOutstanding(n)
	s.previousValue = s.Value()
	if s.pendingToRedeem > 0 {
		s.pendingToRedeem -= n
		if s.pendingToRedeem < 0 {
			s.pendingToRedeem = 0
		}
	}

	if s.nShares == 0 {
		s.owner.Book().RemoveAsset(s)
		s.issuer.Book().RemoveLiability(s)
		s.owner.Book().Registry().Remove(s.id)
	}
	return nil
}

func (s *Shares) AvailableActions(me ledger.Party) []ledger.Action {
	if me != s.owner || s.nShares <= 0 {
		return nil
	}
	return []ledger.Action{NewRedeemShares(s)}
}

func (s *Shares) Describe(me ledger.Party) string {
	if me == s.owner {
		return fmt.Sprintf("%d shares of %s at NAV %.4f", s.nShares, s.issuer.Name(), s.NAV())
	}
	return fmt.Sprintf("%d shares held by %s", s.nShares, s.owner.Name())
}
