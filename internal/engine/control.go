// internal/engine/control.go
package engine

import (
	"errors"
	"sort"

	"go.uber.org/zap"
)

// settings are the mutable trading defaults. They apply to future buys
// only: every open position keeps the parameters snapshotted at entry.
type settings struct {
	buyAmountSOL     float64
	targetMultiplier float64
	sellFraction     float64
	autoTrade        bool
}

// PositionSummary is the read-only view handed to the control surface.
type PositionSummary struct {
	Symbol        string
	Address       string
	HeldAmount    float64
	CurrentValue  float64
	ProfitPercent float64
}

// Settings is the read-only view of the current trading defaults.
type Settings struct {
	BuyAmountSOL     float64
	TargetMultiplier float64
	SellFraction     float64
	AutoTrade        bool
}

// Snapshot returns copies of all open positions, ordered by symbol.
func (e *Engine) Snapshot() []PositionSummary {
	e.mu.RLock()
	out := make([]PositionSummary, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, PositionSummary{
			Symbol:        p.Symbol,
			Address:       p.Address,
			HeldAmount:    p.HeldAmount,
			CurrentValue:  p.CurrentValue,
			ProfitPercent: p.ProfitPercent,
		})
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// CurrentSettings returns the trading defaults in effect for future buys.
func (e *Engine) CurrentSettings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Settings{
		BuyAmountSOL:     e.settings.buyAmountSOL,
		TargetMultiplier: e.settings.targetMultiplier,
		SellFraction:     e.settings.sellFraction,
		AutoTrade:        e.settings.autoTrade,
	}
}

// SetBuyAmount updates the SOL amount spent per buy.
func (e *Engine) SetBuyAmount(amount float64) error {
	if amount <= 0 {
		return errors.New("buy amount must be positive")
	}
	e.mu.Lock()
	e.settings.buyAmountSOL = amount
	e.mu.Unlock()

	e.logger.Info("buy amount updated", zap.Float64("amount_sol", amount))
	return nil
}

// SetTargetMultiplier updates the profit multiple that triggers an exit.
func (e *Engine) SetTargetMultiplier(multiplier float64) error {
	if multiplier <= 1 {
		return errors.New("target multiplier must be greater than 1")
	}
	e.mu.Lock()
	e.settings.targetMultiplier = multiplier
	e.mu.Unlock()

	e.logger.Info("target multiplier updated", zap.Float64("multiplier", multiplier))
	return nil
}

// SetSellFraction updates the percentage of a holding sold at target.
func (e *Engine) SetSellFraction(fraction float64) error {
	if fraction <= 0 || fraction > 100 {
		return errors.New("sell fraction must be between 0 and 100")
	}
	e.mu.Lock()
	e.settings.sellFraction = fraction
	e.mu.Unlock()

	e.logger.Info("sell fraction updated", zap.Float64("fraction", fraction))
	return nil
}

// SetAutoTrade toggles automatic buying of incoming candidates.
func (e *Engine) SetAutoTrade(enabled bool) {
	e.mu.Lock()
	e.settings.autoTrade = enabled
	e.mu.Unlock()

	e.logger.Info("auto-trading toggled", zap.Bool("enabled", enabled))
}
