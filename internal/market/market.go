// Package market implements the shared clearing venue: it collects sell
// orders placed during a simulation step, aggregates them per asset type,
// updates prices and haircuts through the configured feedback functions, and
// settles orders. Price falls are broadcast to every registered holder of the
// affected asset type: the fire-sale contagion channel, deliberately
// decoupled from whoever sold.
package market

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"RiskLedger/internal/observability"
)

// AssetType tags a class of marketable assets sharing one price and haircut.
type AssetType string

// Sellable is the slice of an asset contract the market needs: its type for
// aggregation and a settlement hook that reduces the holding.
type Sellable interface {
	AssetType() AssetType
	ClearSale(quantity float64) error
}

// Holder receives fire-sale devaluation broadcasts. Every agent holding
// marketable assets registers as a holder.
type Holder interface {
	Name() string
	DevalueAssetOfType(assetType AssetType, priceFall float64)
}

// Config carries the externally supplied market parameters.
type Config struct {
	// InitialPrices per asset type; types absent here are unknown to the
	// market. Baseline price p0 for haircut computation is 1.0.
	InitialPrices map[AssetType]float64

	// PriceImpacts holds the per-type price-impact coefficient applied at
	// clearing: p' = p * (1 - amountSold * impact). Types without a
	// coefficient clear without price movement.
	PriceImpacts map[AssetType]float64

	// InitialHaircuts holds the per-type haircut floor h0.
	InitialHaircuts map[AssetType]float64

	FireSaleContagion bool
	HaircutContagion  bool

	HaircutSlope              float64
	HaircutPriceFallThreshold float64
}

type order struct {
	asset    Sellable
	quantity float64
}

// Market is process-wide shared mutable state, passed as an explicit handle
// into every component that needs it. All agents append orders to the one
// order book during a step; ClearTheMarket must run exactly once per step,
// after all order placement and before the next step's valuations are read.
type Market struct {
	log     zerolog.Logger
	metrics *observability.Metrics

	cfg Config

	prices           map[AssetType]float64
	priceImpacts     map[AssetType]float64
	haircuts         map[AssetType]float64
	initialHaircuts  map[AssetType]float64
	amountsSold      map[AssetType]float64
	totalAmountsSold map[AssetType]float64

	orderbook []order
	holders   []Holder
}

// New validates the configuration and builds a market. Metrics may be nil.
func New(cfg Config, log zerolog.Logger, metrics *observability.Metrics) (*Market, error) {
	m := &Market{
		log:              log,
		metrics:          metrics,
		cfg:              cfg,
		prices:           make(map[AssetType]float64),
		priceImpacts:     make(map[AssetType]float64),
		haircuts:         make(map[AssetType]float64),
		initialHaircuts:  make(map[AssetType]float64),
		amountsSold:      make(map[AssetType]float64),
		totalAmountsSold: make(map[AssetType]float64),
	}

	for assetType, price := range cfg.InitialPrices {
		if price < 0 {
			return nil, fmt.Errorf("market config: initial price for %s is negative: %f", assetType, price)
		}
		m.prices[assetType] = price
	}
	for assetType, impact := range cfg.PriceImpacts {
		if impact < 0 {
			return nil, fmt.Errorf("market config: price impact for %s is negative: %f", assetType, impact)
		}
		if _, ok := m.prices[assetType]; !ok {
			return nil, fmt.Errorf("market config: price impact for unknown asset type %s", assetType)
		}
		m.priceImpacts[assetType] = impact
	}
	for assetType, haircut := range cfg.InitialHaircuts {
		if haircut < 0 || haircut > 1 {
			return nil, fmt.Errorf("market config: initial haircut for %s outside [0,1]: %f", assetType, haircut)
		}
		if _, ok := m.prices[assetType]; !ok {
			return nil, fmt.Errorf("market config: haircut for unknown asset type %s", assetType)
		}
		m.haircuts[assetType] = haircut
		m.initialHaircuts[assetType] = haircut
	}

	m.publishGauges()
	return m, nil
}

// RegisterHolder subscribes a holder to fire-sale devaluation broadcasts.
func (m *Market) RegisterHolder(h Holder) {
	m.holders = append(m.holders, h)
}

// PutForSale registers a sell order for the current step and accumulates the
// per-type sold quantity. Settlement and price feedback happen at clearing.
func (m *Market) PutForSale(asset Sellable, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("put for sale: non-positive quantity %f", quantity)
	}
	assetType := asset.AssetType()
	if _, ok := m.prices[assetType]; !ok {
		return fmt.Errorf("put for sale: unknown asset type %s", assetType)
	}

	m.orderbook = append(m.orderbook, order{asset: asset, quantity: quantity})
	m.amountsSold[assetType] += quantity

	m.log.Debug().
		Str("asset_type", string(assetType)).
		Float64("quantity", quantity).
		Msg("order placed")
	if m.metrics != nil {
		m.metrics.OrdersPlaced.WithLabelValues(string(assetType)).Inc()
	}
	return nil
}

// ClearTheMarket runs the per-step clearing round. For every asset type with
// nonzero sales it recomputes price and haircut from the step's aggregate
// sold amount (never order-by-order, to avoid path dependence), broadcasts
// price falls to all holders when fire-sale contagion is enabled, folds the
// step totals into the all-time counters, and settles every open order.
//
// A price driven negative by the impact formula is a configuration error in
// the impact coefficient and aborts clearing; it is never silently clamped.
func (m *Market) ClearTheMarket() error {
	if len(m.amountsSold) > 0 {
		m.log.Info().Int("orders", len(m.orderbook)).Msg("market clearing")
	}

	oldPrices := make(map[AssetType]float64, len(m.prices))
	for assetType, price := range m.prices {
		oldPrices[assetType] = price
	}

	for _, assetType := range m.soldTypes() {
		amountSold := m.amountsSold[assetType]

		if m.cfg.FireSaleContagion {
			if err := m.computePriceImpact(assetType, amountSold); err != nil {
				return err
			}
		}
		if m.cfg.HaircutContagion {
			m.computeHaircut(assetType)
		}

		m.totalAmountsSold[assetType] += amountSold
		if m.metrics != nil {
			m.metrics.AmountSoldTotal.WithLabelValues(string(assetType)).Add(amountSold)
		}
	}

	if m.cfg.FireSaleContagion {
		m.broadcastPriceFalls(oldPrices)
	}

	m.amountsSold = make(map[AssetType]float64)

	for _, o := range m.orderbook {
		if err := o.asset.ClearSale(o.quantity); err != nil {
			return fmt.Errorf("settle order for %s: %w", o.asset.AssetType(), err)
		}
	}
	m.orderbook = nil

	m.publishGauges()
	if m.metrics != nil {
		m.metrics.MarketClearings.Inc()
	}
	return nil
}

func (m *Market) computePriceImpact(assetType AssetType, amountSold float64) error {
	impact, ok := m.priceImpacts[assetType]
	if !ok {
		return nil
	}
	newPrice := m.prices[assetType] * (1.0 - amountSold*impact)
	if newPrice < 0 {
		return fmt.Errorf("price impact drives %s price negative (%f): impact coefficient %f is misconfigured",
			assetType, newPrice, impact)
	}
	m.prices[assetType] = newPrice
	return nil
}

// computeHaircut applies h = h0 + slope * ((p0 - p)/p0 - threshold), clamped
// to [h0, 1.0]. Baseline price p0 is 1.0.
func (m *Market) computeHaircut(assetType AssetType) {
	h0, ok := m.initialHaircuts[assetType]
	if !ok {
		return
	}
	const p0 = 1.0

	haircut := h0 + m.cfg.HaircutSlope*((p0-m.prices[assetType])/p0-m.cfg.HaircutPriceFallThreshold)
	if haircut < h0 {
		haircut = h0
	}
	if haircut > 1.0 {
		haircut = 1.0
	}
	m.haircuts[assetType] = haircut
}

// broadcastPriceFalls tells every holder of a fallen asset type to devalue
// its holdings by quantity * fall and refresh its cached price, regardless of
// whether that holder sold anything.
func (m *Market) broadcastPriceFalls(oldPrices map[AssetType]float64) {
	for _, assetType := range m.assetTypesSorted() {
		fall := oldPrices[assetType] - m.prices[assetType]
		if fall <= 0 {
			continue
		}
		m.log.Info().
			Str("asset_type", string(assetType)).
			Float64("price_fall", fall).
			Msg("fire-sale devaluation broadcast")
		if m.metrics != nil {
			m.metrics.FireSaleFalls.WithLabelValues(string(assetType)).Inc()
		}
		for _, h := range m.holders {
			h.DevalueAssetOfType(assetType, fall)
		}
	}
}

// SetPrice overrides a price directly; this is the external shock entry
// point.
func (m *Market) SetPrice(assetType AssetType, newPrice float64) error {
	if newPrice < 0 {
		return fmt.Errorf("set price: negative price %f for %s", newPrice, assetType)
	}
	if _, ok := m.prices[assetType]; !ok {
		return fmt.Errorf("set price: unknown asset type %s", assetType)
	}
	m.prices[assetType] = newPrice
	m.publishGauges()
	return nil
}

func (m *Market) Price(assetType AssetType) float64 {
	return m.prices[assetType]
}

func (m *Market) Haircut(assetType AssetType) float64 {
	return m.haircuts[assetType]
}

func (m *Market) TotalAmountSold(assetType AssetType) float64 {
	return m.totalAmountsSold[assetType]
}

func (m *Market) AmountSoldThisStep(assetType AssetType) float64 {
	return m.amountsSold[assetType]
}

func (m *Market) OpenOrders() int {
	return len(m.orderbook)
}

// AssetTypes returns all known asset types in deterministic order.
func (m *Market) AssetTypes() []AssetType {
	return m.assetTypesSorted()
}

func (m *Market) assetTypesSorted() []AssetType {
	types := make([]AssetType, 0, len(m.prices))
	for assetType := range m.prices {
		types = append(types, assetType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (m *Market) soldTypes() []AssetType {
	types := make([]AssetType, 0, len(m.amountsSold))
	for assetType := range m.amountsSold {
		types = append(types, assetType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (m *Market) publishGauges() {
	if m.metrics == nil {
		return
	}
	for assetType, price := range m.prices {
		m.metrics.AssetPrice.WithLabelValues(string(assetType)).Set(price)
	}
	for assetType, haircut := range m.haircuts {
		m.metrics.AssetHaircut.WithLabelValues(string(assetType)).Set(haircut)
	}
}
