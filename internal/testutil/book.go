package testutil

import (
	"testing"

	"RiskLedger/internal/ledger"
)

// AssertBalanced fails the test when a book violates the double-entry
// identity assets = liabilities + equity.
func AssertBalanced(t *testing.T, name string, b *ledger.Book) {
	t.Helper()
	assets := b.AssetValue()
	liabilities := b.LiabilityValue()
	equity := b.EquityValue()
	if !ApproxEqual(assets, liabilities+equity) {
		t.Errorf("%s: book unbalanced: assets %v != liabilities %v + equity %v",
			name, assets, liabilities, equity)
	}
}
