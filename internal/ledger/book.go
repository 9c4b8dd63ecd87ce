package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// accountKey routes a contract into an account by its kind and by which side
// of the balance sheet it sits on for this book's owner.
type accountKey struct {
	kind Kind
	side AccountType
}

// Book is a per-agent double-entry accounting store. It is the single source
// of truth for the agent's financial position.
//
// Invariant, preserved by every operation: total assets = total liabilities
// + equity. Equity is a stored residual account; each mutation adjusts it in
// the same operation that moves the primary account, so the identity never
// transiently breaks between operations.
type Book struct {
	registry *Registry
	accounts map[accountKey]*Account
	cash     *Account
	goods    *Account
	equity   *Account

	goodsQuantities map[string]float64
	initialEquity   float64
}

func NewBook(registry *Registry) *Book {
	return &Book{
		registry:        registry,
		accounts:        make(map[accountKey]*Account),
		cash:            NewAccount("cash", AccountAsset),
		goods:           NewAccount("goods", AccountAsset),
		equity:          NewAccount("equity", AccountEquity),
		goodsQuantities: make(map[string]float64),
	}
}

func (b *Book) Registry() *Registry { return b.registry }

// account returns the account for a kind and side, creating it lazily when
// the kind is new to this book.
func (b *Book) account(kind Kind, side AccountType) *Account {
	key := accountKey{kind: kind, side: side}
	acct, ok := b.accounts[key]
	if !ok {
		name := kind.String()
		if kind == KindLoan {
			if side == AccountAsset {
				name = "loans (lending)"
			} else {
				name = "loans (borrowing)"
			}
		}
		acct = NewAccount(name, side)
		b.accounts[key] = acct
	}
	return acct
}

// ============================================================================
// Contract recording
// ============================================================================

// AddAsset records a contract on the asset side. The contract's value raises
// equity by the same amount in the same operation.
func (b *Book) AddAsset(c Contract) {
	value := c.Value()
	acct := b.account(c.Kind(), AccountAsset)
	acct.balance += value
	acct.addContract(c.ID())
	b.equity.balance += value
}

// AddLiability records a contract on the liability side.
func (b *Book) AddLiability(c Contract) {
	value := c.Value()
	acct := b.account(c.Kind(), AccountLiability)
	acct.balance += value
	acct.addContract(c.ID())
	b.equity.balance -= value
}

// RemoveAsset drops a fully depleted contract from its asset account. The
// account balance is untouched: repayments and devaluations have already
// driven the contract's recorded share of it to zero.
func (b *Book) RemoveAsset(c Contract) {
	b.account(c.Kind(), AccountAsset).removeContract(c.ID())
}

// RemoveLiability drops a fully depleted contract from its liability account.
func (b *Book) RemoveLiability(c Contract) {
	b.account(c.Kind(), AccountLiability).removeContract(c.ID())
}

// ============================================================================
// Payments and funding
// ============================================================================

// PayLiability pays down a liability contract with cash. Insufficient cash is
// a precondition violation: the caller must raise liquidity first, never
// rely on this operation clamping.
func (b *Book) PayLiability(amount float64, c Contract) error {
	if amount < 0 {
		return fmt.Errorf("pay liability: negative amount %f", amount)
	}
	if b.cash.balance < amount {
		return fmt.Errorf("pay liability %s: insufficient cash %f < %f",
			c.Kind(), b.cash.balance, amount)
	}
	b.cash.balance -= amount
	b.account(c.Kind(), AccountLiability).balance -= amount
	return nil
}

// PullFunding is the lender-side mirror of PayLiability: a loan asset is
// called in, converting part of it back into cash.
func (b *Book) PullFunding(amount float64, c Contract) error {
	acct := b.account(c.Kind(), AccountAsset)
	if acct.balance < amount {
		return fmt.Errorf("pull funding %s: recorded %f < %f", c.Kind(), acct.balance, amount)
	}
	acct.balance -= amount
	b.cash.balance += amount
	return nil
}

// SellAssetForValue converts part of an asset account into cash at the given
// value. Equity is unchanged: any loss was already realized through
// devaluation before settlement.
func (b *Book) SellAssetForValue(value float64, kind Kind) error {
	acct := b.account(kind, AccountAsset)
	if acct.balance+floatSlack < value {
		return fmt.Errorf("sell %s for %f: recorded only %f", kind, value, acct.balance)
	}
	acct.balance -= value
	b.cash.balance += value
	return nil
}

// ============================================================================
// Revaluations: equity absorbs every value change elsewhere
// ============================================================================

func (b *Book) DevalueAsset(c Contract, valueLost float64) {
	b.account(c.Kind(), AccountAsset).balance -= valueLost
	b.equity.balance -= valueLost
}

func (b *Book) AppreciateAsset(c Contract, valueGained float64) {
	b.account(c.Kind(), AccountAsset).balance += valueGained
	b.equity.balance += valueGained
}

func (b *Book) DevalueLiability(c Contract, valueLost float64) {
	b.account(c.Kind(), AccountLiability).balance -= valueLost
	b.equity.balance += valueLost
}

func (b *Book) AppreciateLiability(c Contract, valueGained float64) {
	b.account(c.Kind(), AccountLiability).balance += valueGained
	b.equity.balance -= valueGained
}

// ============================================================================
// Cash and goods
// ============================================================================

func (b *Book) AddCash(amount float64) {
	b.cash.balance += amount
	b.equity.balance += amount
}

// SubtractCash removes cash, e.g. to settle an obligation. Insufficient cash
// is a precondition violation.
func (b *Book) SubtractCash(amount float64) error {
	if b.cash.balance < amount {
		return fmt.Errorf("subtract cash: insufficient cash %f < %f", b.cash.balance, amount)
	}
	b.cash.balance -= amount
	b.equity.balance -= amount
	return nil
}

func (b *Book) Cash() float64 {
	return b.cash.balance
}

// AddGoods records a goods delivery (quantity at unit value) on the asset
// side.
func (b *Book) AddGoods(name string, quantity, unitValue float64) {
	b.goodsQuantities[name] += quantity
	value := quantity * unitValue
	b.goods.balance += value
	b.equity.balance += value
}

func (b *Book) GoodsQuantity(name string) float64 {
	return b.goodsQuantities[name]
}

// ============================================================================
// Valuation
// ============================================================================

func (b *Book) AssetValue() float64 {
	total := b.cash.balance + b.goods.balance
	for key, acct := range b.accounts {
		if key.side == AccountAsset {
			total += acct.balance
		}
	}
	return total
}

func (b *Book) LiabilityValue() float64 {
	total := 0.0
	for key, acct := range b.accounts {
		if key.side == AccountLiability {
			total += acct.balance
		}
	}
	return total
}

// AccountBalance returns the balance recorded for one kind and side; zero if
// the account was never created.
func (b *Book) AccountBalance(kind Kind, side AccountType) float64 {
	if acct, ok := b.accounts[accountKey{kind: kind, side: side}]; ok {
		return acct.balance
	}
	return 0
}

// EquityValue returns the stored residual equity. The double-entry invariant
// guarantees it equals AssetValue() - LiabilityValue() at every operation
// boundary.
func (b *Book) EquityValue() float64 {
	return b.equity.balance
}

// SetInitialValues snapshots the current equity as the baseline for
// equity-loss reporting.
func (b *Book) SetInitialValues() {
	b.initialEquity = b.equity.balance
}

func (b *Book) InitialEquity() float64 {
	return b.initialEquity
}

// ============================================================================
// Contract queries and action discovery
// ============================================================================

// AssetContractsOfKind resolves the live contracts recorded on the asset side
// for a kind, in deterministic (ID) order.
func (b *Book) AssetContractsOfKind(kind Kind) []Contract {
	return b.contractsOf(kind, AccountAsset)
}

// LiabilityContractsOfKind resolves the live contracts recorded on the
// liability side for a kind, in deterministic (ID) order.
func (b *Book) LiabilityContractsOfKind(kind Kind) []Contract {
	return b.contractsOf(kind, AccountLiability)
}

func (b *Book) contractsOf(kind Kind, side AccountType) []Contract {
	key := accountKey{kind: kind, side: side}
	acct, ok := b.accounts[key]
	if !ok {
		return nil
	}
	ids := acct.contractIDs()
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	contracts := make([]Contract, 0, len(ids))
	for _, id := range ids {
		if c, ok := b.registry.Get(id); ok {
			contracts = append(contracts, c)
		}
	}
	return contracts
}

// AvailableActions unions the actions every currently-held, non-zero-value
// contract offers to the querying party. This is the single discovery point
// external behaviours use; enumeration has no side effects.
func (b *Book) AvailableActions(me Party) []Action {
	keys := make([]accountKey, 0, len(b.accounts))
	for key := range b.accounts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].side < keys[j].side
	})

	var actions []Action
	seen := make(map[uuid.UUID]struct{})
	for _, key := range keys {
		for _, c := range b.contractsOf(key.kind, key.side) {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			if c.Value() <= 0 {
				continue
			}
			actions = append(actions, c.AvailableActions(me)...)
		}
	}
	return actions
}

// ============================================================================
// Reporting view
// ============================================================================

// BalanceSheetLine is one account row in a balance-sheet dump.
type BalanceSheetLine struct {
	Account string
	Side    string
	Balance float64
}

// BalanceSheet is a read-only snapshot of the book, for reporting.
type BalanceSheet struct {
	Lines          []BalanceSheetLine
	Cash           float64
	AssetValue     float64
	LiabilityValue float64
	EquityValue    float64
}

func (b *Book) BalanceSheet() BalanceSheet {
	sheet := BalanceSheet{
		Cash:           b.cash.balance,
		AssetValue:     b.AssetValue(),
		LiabilityValue: b.LiabilityValue(),
		EquityValue:    b.EquityValue(),
	}

	sheet.Lines = append(sheet.Lines, BalanceSheetLine{Account: "cash", Side: AccountAsset.String(), Balance: b.cash.balance})
	if b.goods.balance != 0 {
		sheet.Lines = append(sheet.Lines, BalanceSheetLine{Account: "goods", Side: AccountAsset.String(), Balance: b.goods.balance})
	}

	keys := make([]accountKey, 0, len(b.accounts))
	for key := range b.accounts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].side != keys[j].side {
			return keys[i].side < keys[j].side
		}
		return keys[i].kind < keys[j].kind
	})
	for _, key := range keys {
		acct := b.accounts[key]
		sheet.Lines = append(sheet.Lines, BalanceSheetLine{
			Account: acct.Name(),
			Side:    key.side.String(),
			Balance: acct.Balance(),
		})
	}
	sheet.Lines = append(sheet.Lines, BalanceSheetLine{Account: "equity", Side: AccountEquity.String(), Balance: b.equity.balance})
	return sheet
}

// floatSlack absorbs accumulated floating-point error when comparing recorded
// balances against requested amounts.
const floatSlack = 1e-9
