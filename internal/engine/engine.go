// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solfi-labs/trenchbot/internal/events"
	"github.com/solfi-labs/trenchbot/internal/jupiter"
	"github.com/solfi-labs/trenchbot/internal/position"
)

// Venue is the quoting surface the engine trades through.
type Venue interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*jupiter.Quote, error)
	GetSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error)
	GetPrice(ctx context.Context, mint string) (float64, error)
	HumanAmount(ctx context.Context, mint, raw string) (float64, error)
}

// Executor signs and submits swap payloads and confirms holdings.
type Executor interface {
	PublicKeyString() string
	SignAndSend(ctx context.Context, payloadBase64 string) (string, error)
	TokenBalance(ctx context.Context, mint string) (float64, uint8, error)
}

// Candidate is a tradable token reported by a signal source.
type Candidate struct {
	Symbol  string
	Address string
	Source  string
}

// Config carries the engine's initial settings.
type Config struct {
	BuyAmountSOL     float64
	TargetMultiplier float64
	SellFraction     float64
	AutoTrade        bool
	MonitorInterval  time.Duration
	SlippageBps      int
}

func (c *Config) setDefaults() {
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 30 * time.Second
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 50
	}
}

// Engine owns the set of open positions and runs the monitor loop that
// re-prices them, fires partial exits at the profit target and evicts
// completed positions. Buys are triggered externally (signal intake or the
// control surface); the position map is mutated only by engine code, and
// external readers always receive copies.
type Engine struct {
	venue  Venue
	exec   Executor
	bus    *events.Bus
	logger *zap.Logger

	mu        sync.RWMutex
	settings  settings
	positions map[string]*position.Position
	buying    map[string]bool

	// sweepMu serializes whole sweeps. The monitor loop and the control
	// surface may request one concurrently; overlapping sweeps could both
	// see TargetReached before either applies its exit.
	sweepMu sync.Mutex

	candidates chan Candidate
	interval   time.Duration
	slippage   int
}

// New creates an engine. bus may be nil when nothing listens.
func New(cfg Config, venue Venue, exec Executor, bus *events.Bus, logger *zap.Logger) *Engine {
	cfg.setDefaults()
	return &Engine{
		venue:  venue,
		exec:   exec,
		bus:    bus,
		logger: logger.Named("engine"),
		settings: settings{
			buyAmountSOL:     cfg.BuyAmountSOL,
			targetMultiplier: cfg.TargetMultiplier,
			sellFraction:     cfg.SellFraction,
			autoTrade:        cfg.AutoTrade,
		},
		positions:  make(map[string]*position.Position),
		buying:     make(map[string]bool),
		candidates: make(chan Candidate, 64),
		interval:   cfg.MonitorInterval,
		slippage:   cfg.SlippageBps,
	}
}

// Run starts the monitor loop and the candidate intake loop and blocks
// until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.monitorLoop(gCtx) })
	g.Go(func() error { return e.intakeLoop(gCtx) })
	return g.Wait()
}

// OnCandidate accepts a fire-and-forget notification about a newly
// discovered token. The engine decides internally whether to buy.
func (e *Engine) OnCandidate(c Candidate) {
	e.publish(events.CandidateDetectedEvent{
		BaseEvent: events.NewBase(events.CandidateDetected),
		Symbol:    c.Symbol,
		Address:   c.Address,
		Source:    c.Source,
	})

	select {
	case e.candidates <- c:
	default:
		e.logger.Warn("candidate queue full, dropping signal",
			zap.String("symbol", c.Symbol))
	}
}

func (e *Engine) intakeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-e.candidates:
			ok, reason := e.TriggerBuy(ctx, c.Symbol, c.Address)
			if !ok {
				e.logger.Info("candidate not bought",
					zap.String("symbol", c.Symbol),
					zap.String("reason", reason))
			}
		}
	}
}

func (e *Engine) monitorLoop(ctx context.Context) error {
	e.logger.Info("position monitor started", zap.Duration("interval", e.interval))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("position monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

// sweep runs one monitor cycle: re-price every active position, trigger
// exits where the target holds, then evict completed positions. A single
// position's failure never halts the rest of the sweep.
func (e *Engine) sweep(ctx context.Context) {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	e.mu.RLock()
	actives := make([]*position.Position, 0, len(e.positions))
	for _, p := range e.positions {
		if p.Status == position.StatusActive {
			actives = append(actives, p)
		}
	}
	e.mu.RUnlock()

	for _, pos := range actives {
		if ctx.Err() != nil {
			return
		}
		e.checkPosition(ctx, pos)
	}

	e.evictCompleted()
}

func (e *Engine) checkPosition(ctx context.Context, pos *position.Position) {
	price, err := e.venue.GetPrice(ctx, pos.Address)
	if err != nil {
		// Non-fatal: the next cycle retries naturally.
		e.logger.Warn("price unavailable, skipping position this cycle",
			zap.String("symbol", pos.Symbol), zap.Error(err))
		return
	}

	e.mu.Lock()
	pos.UpdatePrice(price)
	reached := pos.Status == position.StatusActive && pos.TargetReached()
	profit := pos.ProfitPercent
	exitAmount := pos.ExitAmount()
	e.mu.Unlock()

	e.logger.Debug("position re-priced",
		zap.String("symbol", pos.Symbol),
		zap.Float64("price_sol", price),
		zap.Float64("profit_percent", profit))

	if !reached {
		return
	}

	e.logger.Info("profit target reached",
		zap.String("symbol", pos.Symbol),
		zap.Float64("profit_percent", profit))
	e.publish(events.TargetReachedEvent{
		BaseEvent:     events.NewBase(events.TargetReached),
		Symbol:        pos.Symbol,
		ProfitPercent: profit,
	})

	sold, err := e.sell(ctx, pos.Address, exitAmount)
	if err != nil {
		// A failed sell must not mutate the holding; retry next cycle.
		e.logger.Error("sell attempt failed, position left intact",
			zap.String("symbol", pos.Symbol), zap.Error(err))
		e.publish(events.TradeFailedEvent{
			BaseEvent: events.NewBase(events.TradeFailed),
			Symbol:    pos.Symbol,
			Operation: "sell",
			Reason:    err.Error(),
		})
		return
	}

	e.mu.Lock()
	pos.ApplyPartialExit(sold)
	remaining := pos.HeldAmount
	e.mu.Unlock()

	e.logger.Info("partial exit executed",
		zap.String("symbol", pos.Symbol),
		zap.Float64("sold", sold),
		zap.Float64("remaining", remaining))
	e.publish(events.PartialExitEvent{
		BaseEvent:  events.NewBase(events.PartialExit),
		Symbol:     pos.Symbol,
		SoldAmount: sold,
		Remaining:  remaining,
	})
}

func (e *Engine) evictCompleted() {
	var closed []string

	e.mu.Lock()
	for symbol, p := range e.positions {
		if p.Status == position.StatusCompleted {
			delete(e.positions, symbol)
			closed = append(closed, symbol)
		}
	}
	e.mu.Unlock()

	for _, symbol := range closed {
		e.logger.Info("position closed", zap.String("symbol", symbol))
		e.publish(events.PositionClosedEvent{
			BaseEvent: events.NewBase(events.PositionClosed),
			Symbol:    symbol,
		})
	}
}

// sell liquidates amount tokens for SOL and returns the actually executed
// amount derived from the quote, never the requested one.
func (e *Engine) sell(ctx context.Context, mint string, amount float64) (float64, error) {
	quote, err := e.venue.GetQuote(ctx, mint, jupiter.SOL, amount, e.slippage)
	if err != nil {
		return 0, fmt.Errorf("sell quote failed: %w", err)
	}

	payload, err := e.venue.GetSwapTransaction(ctx, quote, e.exec.PublicKeyString())
	if err != nil {
		return 0, fmt.Errorf("sell swap transaction failed: %w", err)
	}

	if _, err := e.exec.SignAndSend(ctx, payload); err != nil {
		return 0, fmt.Errorf("sell submission failed: %w", err)
	}

	sold, err := e.venue.HumanAmount(ctx, mint, quote.InAmount)
	if err != nil || sold <= 0 {
		// Executed but unparsable: fall back to the requested size rather
		// than leaving the holding unreduced and re-selling next cycle.
		e.logger.Warn("could not derive executed sell size from quote, using requested",
			zap.String("mint", mint), zap.Error(err))
		sold = amount
	}
	return sold, nil
}

// TriggerBuy attempts to open a position for the given token with the
// current buy amount. Returns ok=false with a human-readable reason when
// the buy is rejected or fails; a duplicate symbol is a no-op, not an
// error. No Position is created unless every step succeeds and post-trade
// holdings are confirmed positive.
func (e *Engine) TriggerBuy(ctx context.Context, symbol, address string) (bool, string) {
	e.mu.Lock()
	if !e.settings.autoTrade {
		e.mu.Unlock()
		return false, "auto-trading is disabled"
	}
	if _, open := e.positions[symbol]; open || e.buying[symbol] {
		e.mu.Unlock()
		return false, fmt.Sprintf("already trading %s", symbol)
	}
	e.buying[symbol] = true
	buyAmount := e.settings.buyAmountSOL
	multiplier := e.settings.targetMultiplier
	fraction := e.settings.sellFraction
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.buying, symbol)
		e.mu.Unlock()
	}()

	e.logger.Info("buying token",
		zap.String("symbol", symbol),
		zap.String("address", address),
		zap.Float64("amount_sol", buyAmount))

	pos, err := e.buy(ctx, symbol, address, buyAmount, multiplier, fraction)
	if err != nil {
		e.logger.Error("buy failed", zap.String("symbol", symbol), zap.Error(err))
		e.publish(events.TradeFailedEvent{
			BaseEvent: events.NewBase(events.TradeFailed),
			Symbol:    symbol,
			Operation: "buy",
			Reason:    err.Error(),
		})
		return false, fmt.Sprintf("buy failed: %v", err)
	}

	e.mu.Lock()
	e.positions[symbol] = pos
	e.mu.Unlock()

	e.logger.Info("position opened",
		zap.String("symbol", symbol),
		zap.Float64("held", pos.HeldAmount),
		zap.Float64("entry_price", pos.EntryPrice))
	e.publish(events.PositionOpenedEvent{
		BaseEvent:  events.NewBase(events.PositionOpened),
		Symbol:     symbol,
		Address:    address,
		HeldAmount: pos.HeldAmount,
		EntryPrice: pos.EntryPrice,
		SpentSOL:   buyAmount,
	})
	return true, ""
}

func (e *Engine) buy(ctx context.Context, symbol, address string, buyAmount, multiplier, fraction float64) (*position.Position, error) {
	quote, err := e.venue.GetQuote(ctx, jupiter.SOL, address, buyAmount, e.slippage)
	if err != nil {
		return nil, fmt.Errorf("buy quote failed: %w", err)
	}

	payload, err := e.venue.GetSwapTransaction(ctx, quote, e.exec.PublicKeyString())
	if err != nil {
		return nil, fmt.Errorf("buy swap transaction failed: %w", err)
	}

	if _, err := e.exec.SignAndSend(ctx, payload); err != nil {
		return nil, fmt.Errorf("buy submission failed: %w", err)
	}

	held, _, err := e.exec.TokenBalance(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("could not confirm post-trade holdings: %w", err)
	}
	if held <= 0 {
		return nil, fmt.Errorf("post-trade holdings not confirmed for %s", symbol)
	}

	solIn, err := e.venue.HumanAmount(ctx, jupiter.SOL, quote.InAmount)
	if err != nil {
		return nil, fmt.Errorf("could not parse executed in-amount: %w", err)
	}
	tokensOut, err := e.venue.HumanAmount(ctx, address, quote.OutAmount)
	if err != nil || tokensOut <= 0 {
		return nil, fmt.Errorf("could not parse executed out-amount: %w", err)
	}

	entryPrice := solIn / tokensOut
	return position.New(symbol, address, held, entryPrice, multiplier, fraction), nil
}

// Sweep runs a single monitor cycle immediately, outside the ticker.
func (e *Engine) Sweep(ctx context.Context) { e.sweep(ctx) }

func (e *Engine) publish(event events.Event) {
	if e.bus == nil {
		return
	}
	_ = e.bus.Publish(event)
}
