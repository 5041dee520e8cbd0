// internal/notify/telegram.go
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/solfi-labs/trenchbot/internal/engine"
	"github.com/solfi-labs/trenchbot/internal/events"
)

// Controller is the slice of the engine the Telegram surface drives.
type Controller interface {
	Snapshot() []engine.PositionSummary
	CurrentSettings() engine.Settings
	SetBuyAmount(amount float64) error
	SetTargetMultiplier(multiplier float64) error
	SetSellFraction(fraction float64) error
	SetAutoTrade(enabled bool)
	TriggerBuy(ctx context.Context, symbol, address string) (bool, string)
	Sweep(ctx context.Context)
}

// Telegram is the operator surface: it pushes trade lifecycle events to
// the admin chat and accepts control commands from it. Messages from any
// other chat are ignored.
type Telegram struct {
	bot        *bot.Bot
	controller Controller
	bus        *events.Bus
	adminID    int64
	logger     *zap.Logger

	subs []events.Subscription
}

// New creates the Telegram surface. It does not start polling; call Run.
func New(token string, adminID int64, controller Controller, bus *events.Bus, logger *zap.Logger) (*Telegram, error) {
	t := &Telegram{
		controller: controller,
		bus:        bus,
		adminID:    adminID,
		logger:     logger.Named("telegram"),
	}

	b, err := bot.New(token, bot.WithDefaultHandler(t.handle))
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	t.bot = b
	return t, nil
}

var commands = []models.BotCommand{
	{Command: "status", Description: "List open positions"},
	{Command: "settings", Description: "Show trading defaults"},
	{Command: "setbuy", Description: "Set SOL spent per buy"},
	{Command: "setmultiplier", Description: "Set profit target multiple"},
	{Command: "setsell", Description: "Set percent sold at target"},
	{Command: "auto", Description: "Toggle auto-trading on/off"},
	{Command: "buy", Description: "Buy a token: /buy SYMBOL ADDRESS"},
	{Command: "check", Description: "Re-price all positions now"},
	{Command: "help", Description: "List commands"},
}

// Run subscribes to engine events and polls for updates until the context
// is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	if ok, err := t.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to register bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("telegram rejected bot commands")
	}

	if t.bus != nil {
		for _, et := range []events.EventType{
			events.CandidateDetected,
			events.PositionOpened,
			events.TargetReached,
			events.PartialExit,
			events.PositionClosed,
			events.TradeFailed,
		} {
			t.subs = append(t.subs, t.bus.SubscribeFunc(et, t.onEvent))
		}
	}
	defer func() {
		for _, s := range t.subs {
			s.Unsubscribe()
		}
	}()

	t.logger.Info("telegram surface started", zap.Int64("admin_id", t.adminID))
	t.bot.Start(ctx)
	return ctx.Err()
}

func (t *Telegram) onEvent(ctx context.Context, event events.Event) error {
	var text string
	switch e := event.(type) {
	case events.CandidateDetectedEvent:
		text = fmt.Sprintf("🔍 New token: %s (%s) via %s", e.Symbol, shorten(e.Address), e.Source)
	case events.PositionOpenedEvent:
		text = fmt.Sprintf("🟢 Bought %s: %.4f tokens for %.4f SOL @ %.9f", e.Symbol, e.HeldAmount, e.SpentSOL, e.EntryPrice)
	case events.TargetReachedEvent:
		text = fmt.Sprintf("🎯 %s hit target at %+.1f%%", e.Symbol, e.ProfitPercent)
	case events.PartialExitEvent:
		text = fmt.Sprintf("💰 Sold %.4f %s, %.4f remaining", e.SoldAmount, e.Symbol, e.Remaining)
	case events.PositionClosedEvent:
		text = fmt.Sprintf("✅ Position %s fully closed", e.Symbol)
	case events.TradeFailedEvent:
		text = fmt.Sprintf("⚠️ %s %s failed: %s", e.Symbol, e.Operation, e.Reason)
	default:
		return nil
	}
	t.send(ctx, text)
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) {
	if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.adminID,
		Text:   text,
	}); err != nil {
		t.logger.Error("failed to send notification", zap.Error(err))
	}
}

func (t *Telegram) handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.Chat.ID != t.adminID {
		t.logger.Warn("message from unauthorized chat ignored",
			zap.Int64("chat_id", update.Message.Chat.ID))
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	args := fields[1:]

	reply := t.dispatch(ctx, cmd, args)
	if reply != "" {
		t.send(ctx, reply)
	}
}

func (t *Telegram) dispatch(ctx context.Context, cmd string, args []string) string {
	switch cmd {
	case "status":
		return t.statusText()
	case "settings":
		return t.settingsText()
	case "setbuy":
		return t.applyFloat(args, "usage: /setbuy <sol>", t.controller.SetBuyAmount, "Buy amount set to %.4f SOL")
	case "setmultiplier":
		return t.applyFloat(args, "usage: /setmultiplier <x>", t.controller.SetTargetMultiplier, "Target multiplier set to x%.2f")
	case "setsell":
		return t.applyFloat(args, "usage: /setsell <percent>", t.controller.SetSellFraction, "Sell fraction set to %.1f%%")
	case "auto":
		return t.toggleAuto(args)
	case "buy":
		if len(args) != 2 {
			return "usage: /buy SYMBOL ADDRESS"
		}
		started, reason := t.controller.TriggerBuy(ctx, args[0], args[1])
		if !started {
			return reason
		}
		return fmt.Sprintf("Buying %s...", args[0])
	case "check":
		t.controller.Sweep(ctx)
		return t.statusText()
	case "help":
		var sb strings.Builder
		for _, c := range commands {
			fmt.Fprintf(&sb, "/%s - %s\n", c.Command, c.Description)
		}
		return sb.String()
	default:
		return fmt.Sprintf("unknown command /%s, try /help", cmd)
	}
}

func (t *Telegram) applyFloat(args []string, usage string, set func(float64) error, okFormat string) string {
	if len(args) != 1 {
		return usage
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Sprintf("not a number: %s", args[0])
	}
	if err := set(v); err != nil {
		return err.Error()
	}
	return fmt.Sprintf(okFormat, v)
}

func (t *Telegram) toggleAuto(args []string) string {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return "usage: /auto on|off"
	}
	enabled := args[0] == "on"
	t.controller.SetAutoTrade(enabled)
	if enabled {
		return "Auto-trading enabled"
	}
	return "Auto-trading disabled"
}

func (t *Telegram) statusText() string {
	positions := t.controller.Snapshot()
	if len(positions) == 0 {
		return "No open positions"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Open positions (%d):\n", len(positions))
	for _, p := range positions {
		fmt.Fprintf(&sb, "%s: %.4f tokens, %.4f SOL, %+.1f%%\n",
			p.Symbol, p.HeldAmount, p.CurrentValue, p.ProfitPercent)
	}
	return sb.String()
}

func (t *Telegram) settingsText() string {
	s := t.controller.CurrentSettings()
	auto := "off"
	if s.AutoTrade {
		auto = "on"
	}
	return fmt.Sprintf("Buy amount: %.4f SOL\nTarget: x%.2f\nSell fraction: %.1f%%\nAuto-trade: %s",
		s.BuyAmountSOL, s.TargetMultiplier, s.SellFraction, auto)
}

func shorten(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
