// internal/notify/telegram_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/solfi-labs/trenchbot/internal/engine"
)

type fakeController struct {
	positions []engine.PositionSummary
	settings  engine.Settings

	buyAmount  float64
	multiplier float64
	fraction   float64
	auto       *bool
	setErr     error

	buySymbol  string
	buyAddress string
	buyOK      bool
	buyReason  string

	sweeps int
}

func (c *fakeController) Snapshot() []engine.PositionSummary { return c.positions }
func (c *fakeController) CurrentSettings() engine.Settings   { return c.settings }

func (c *fakeController) SetBuyAmount(v float64) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.buyAmount = v
	return nil
}

func (c *fakeController) SetTargetMultiplier(v float64) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.multiplier = v
	return nil
}

func (c *fakeController) SetSellFraction(v float64) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.fraction = v
	return nil
}

func (c *fakeController) SetAutoTrade(enabled bool) { c.auto = &enabled }

func (c *fakeController) TriggerBuy(ctx context.Context, symbol, address string) (bool, string) {
	c.buySymbol, c.buyAddress = symbol, address
	return c.buyOK, c.buyReason
}

func (c *fakeController) Sweep(ctx context.Context) { c.sweeps++ }

func newTestSurface(t *testing.T, c *fakeController) *Telegram {
	return &Telegram{controller: c, logger: zaptest.NewLogger(t)}
}

func TestDispatchStatus(t *testing.T) {
	ctrl := &fakeController{positions: []engine.PositionSummary{
		{Symbol: "FOO", HeldAmount: 50, CurrentValue: 0.2, ProfitPercent: 100},
	}}
	tg := newTestSurface(t, ctrl)

	reply := tg.dispatch(context.Background(), "status", nil)
	assert.Contains(t, reply, "FOO")
	assert.Contains(t, reply, "+100.0%")

	ctrl.positions = nil
	assert.Equal(t, "No open positions", tg.dispatch(context.Background(), "status", nil))
}

func TestDispatchSetters(t *testing.T) {
	ctrl := &fakeController{}
	tg := newTestSurface(t, ctrl)
	ctx := context.Background()

	assert.Contains(t, tg.dispatch(ctx, "setbuy", []string{"0.25"}), "0.2500")
	assert.Equal(t, 0.25, ctrl.buyAmount)

	assert.Contains(t, tg.dispatch(ctx, "setmultiplier", []string{"3"}), "x3.00")
	assert.Equal(t, 3.0, ctrl.multiplier)

	assert.Contains(t, tg.dispatch(ctx, "setsell", []string{"50"}), "50.0%")
	assert.Equal(t, 50.0, ctrl.fraction)

	assert.Equal(t, "usage: /setbuy <sol>", tg.dispatch(ctx, "setbuy", nil))
	assert.Contains(t, tg.dispatch(ctx, "setbuy", []string{"abc"}), "not a number")
}

func TestDispatchSetterRejection(t *testing.T) {
	ctrl := &fakeController{setErr: errors.New("buy amount must be positive")}
	tg := newTestSurface(t, ctrl)

	reply := tg.dispatch(context.Background(), "setbuy", []string{"-1"})
	assert.Equal(t, "buy amount must be positive", reply)
	assert.Zero(t, ctrl.buyAmount)
}

func TestDispatchAutoToggle(t *testing.T) {
	ctrl := &fakeController{}
	tg := newTestSurface(t, ctrl)
	ctx := context.Background()

	assert.Equal(t, "Auto-trading enabled", tg.dispatch(ctx, "auto", []string{"on"}))
	assert.True(t, *ctrl.auto)

	assert.Equal(t, "Auto-trading disabled", tg.dispatch(ctx, "auto", []string{"off"}))
	assert.False(t, *ctrl.auto)

	assert.Equal(t, "usage: /auto on|off", tg.dispatch(ctx, "auto", []string{"maybe"}))
}

func TestDispatchBuy(t *testing.T) {
	ctrl := &fakeController{buyOK: true}
	tg := newTestSurface(t, ctrl)
	ctx := context.Background()

	reply := tg.dispatch(ctx, "buy", []string{"FOO", "addrFOO"})
	assert.Equal(t, "Buying FOO...", reply)
	assert.Equal(t, "FOO", ctrl.buySymbol)
	assert.Equal(t, "addrFOO", ctrl.buyAddress)

	ctrl.buyOK = false
	ctrl.buyReason = "already trading FOO"
	assert.Equal(t, "already trading FOO", tg.dispatch(ctx, "buy", []string{"FOO", "addrFOO"}))

	assert.Equal(t, "usage: /buy SYMBOL ADDRESS", tg.dispatch(ctx, "buy", []string{"FOO"}))
}

func TestDispatchCheck(t *testing.T) {
	ctrl := &fakeController{}
	tg := newTestSurface(t, ctrl)

	reply := tg.dispatch(context.Background(), "check", nil)
	assert.Equal(t, 1, ctrl.sweeps)
	assert.Equal(t, "No open positions", reply)
}

func TestDispatchUnknownAndHelp(t *testing.T) {
	tg := newTestSurface(t, &fakeController{})
	ctx := context.Background()

	assert.Contains(t, tg.dispatch(ctx, "frobnicate", nil), "unknown command")
	help := tg.dispatch(ctx, "help", nil)
	assert.Contains(t, help, "/status")
	assert.Contains(t, help, "/setbuy")
}

func TestSettingsText(t *testing.T) {
	ctrl := &fakeController{settings: engine.Settings{
		BuyAmountSOL:     0.1,
		TargetMultiplier: 2,
		SellFraction:     80,
		AutoTrade:        true,
	}}
	tg := newTestSurface(t, ctrl)

	reply := tg.dispatch(context.Background(), "settings", nil)
	assert.Contains(t, reply, "0.1000 SOL")
	assert.Contains(t, reply, "x2.00")
	assert.Contains(t, reply, "80.0%")
	assert.Contains(t, reply, "Auto-trade: on")
}
