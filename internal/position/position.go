// internal/position/position.go
package position

import "time"

// Status is the lifecycle state of a position.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Position is an open, partially liquidatable holding of one token with a
// tracked cost basis and a target exit policy. TargetMultiplier and
// SellFraction are snapshotted from the engine settings at entry and never
// change afterwards.
type Position struct {
	Symbol  string
	Address string

	HeldAmount    float64
	EntryPrice    float64
	CurrentPrice  float64
	EntryValue    float64
	CurrentValue  float64
	ProfitPercent float64

	TargetMultiplier float64
	SellFraction     float64

	Status        Status
	OpenedAt      time.Time
	LastUpdatedAt time.Time
}

// New creates an active position from a confirmed buy.
func New(symbol, address string, amount, entryPrice, targetMultiplier, sellFraction float64) *Position {
	now := time.Now()
	return &Position{
		Symbol:           symbol,
		Address:          address,
		HeldAmount:       amount,
		EntryPrice:       entryPrice,
		CurrentPrice:     entryPrice,
		EntryValue:       entryPrice * amount,
		CurrentValue:     entryPrice * amount,
		ProfitPercent:    0,
		TargetMultiplier: targetMultiplier,
		SellFraction:     sellFraction,
		Status:           StatusActive,
		OpenedAt:         now,
		LastUpdatedAt:    now,
	}
}

// UpdatePrice refreshes the valuation at the given price. A non-positive
// price is ignored; callers validate upstream and a stale valuation is
// better than a corrupted one.
func (p *Position) UpdatePrice(newPrice float64) {
	if newPrice <= 0 {
		return
	}
	p.CurrentPrice = newPrice
	p.CurrentValue = p.HeldAmount * newPrice
	if p.EntryValue > 0 {
		p.ProfitPercent = (p.CurrentValue/p.EntryValue - 1) * 100
	}
	p.LastUpdatedAt = time.Now()
}

// TargetReached reports whether the profit target holds at the current
// valuation. Pure; it keeps returning true while the condition holds, so
// the monitor loop must act at most once per evaluation.
func (p *Position) TargetReached() bool {
	return p.ProfitPercent >= (p.TargetMultiplier-1)*100
}

// ExitAmount is the quantity a triggered exit should liquidate.
func (p *Position) ExitAmount() float64 {
	return p.HeldAmount * (p.SellFraction / 100)
}

// ApplyPartialExit records a confirmed sale of soldAmount tokens. The cost
// basis is re-based to the current price of the remaining holding, so the
// profit target resets relative to the post-exit valuation. When the
// holding is exhausted the position completes; completed is terminal.
func (p *Position) ApplyPartialExit(soldAmount float64) {
	if p.Status == StatusCompleted {
		return
	}
	p.HeldAmount -= soldAmount
	if p.HeldAmount <= 0 {
		p.HeldAmount = 0
		p.Status = StatusCompleted
	}
	p.EntryValue = p.CurrentPrice * p.HeldAmount
	p.CurrentValue = p.CurrentPrice * p.HeldAmount
	p.ProfitPercent = 0
	p.LastUpdatedAt = time.Now()
}

// Clone returns a copy safe to hand outside the owning loop.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}
