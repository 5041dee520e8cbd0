// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solfi-labs/trenchbot/internal/config"
	"github.com/solfi-labs/trenchbot/internal/engine"
	"github.com/solfi-labs/trenchbot/internal/events"
	"github.com/solfi-labs/trenchbot/internal/jupiter"
	"github.com/solfi-labs/trenchbot/internal/logger"
	"github.com/solfi-labs/trenchbot/internal/notify"
	"github.com/solfi-labs/trenchbot/internal/resilience"
	"github.com/solfi-labs/trenchbot/internal/scout"
	"github.com/solfi-labs/trenchbot/internal/wallet"
)

// Runner wires the trading stack together and supervises its loops.
type Runner struct {
	cfg        *config.Config
	log        *logger.Logger
	appLog     *zap.Logger
	shutdownCh chan os.Signal
}

func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		log:        log,
		appLog:     log.WithComponent("app"),
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Run builds every component from the configuration and blocks until a
// shutdown signal arrives or a supervised loop fails.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-r.shutdownCh:
			r.appLog.Info("signal received, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-runCtx.Done():
		}
	}()

	// Startup logs share one correlation id so a boot can be traced as a
	// unit in the JSON log.
	boot := r.log.WithOperation("startup")

	w, err := wallet.New(r.cfg.PrivateKey, r.cfg.RPCURL, r.log.Logger)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	boot.Info("wallet loaded", zap.String("public_key", w.PublicKeyString()))

	limiter := resilience.NewLimiter(
		r.cfg.RateLimit,
		time.Duration(r.cfg.RatePeriodSeconds)*time.Second,
		r.log.Logger,
	)
	retrier := resilience.NewRetrier(resilience.Policy{
		MaxAttempts: uint(r.cfg.RetryMaxAttempts),
		BaseDelay:   time.Duration(r.cfg.RetryBaseDelay) * time.Second,
	}, r.log.Logger)

	venue := jupiter.NewClient(jupiter.Config{
		BaseURL:     r.cfg.JupiterBaseURL,
		SlippageBps: r.cfg.SlippageBps,
		Resolver:    w.Decimals,
	}, limiter, retrier, r.log.Logger)

	bus := events.NewBus(r.log.Logger, 128)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := bus.Shutdown(shutdownCtx); err != nil {
			r.appLog.Warn("event bus shutdown incomplete", zap.Error(err))
		}
	}()

	eng := engine.New(engine.Config{
		BuyAmountSOL:     r.cfg.BuyAmountSOL,
		TargetMultiplier: r.cfg.TargetMultiplier,
		SellFraction:     r.cfg.SellFraction,
		AutoTrade:        r.cfg.AutoTrade,
		MonitorInterval:  time.Duration(r.cfg.MonitorInterval) * time.Second,
		SlippageBps:      r.cfg.SlippageBps,
	}, venue, w, bus, r.log.Logger)

	g, gCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return eng.Run(gCtx) })

	if r.cfg.ScoutURL != "" {
		source := scout.NewTokenListSource("tokenlist", r.cfg.ScoutURL, limiter, retrier, r.log.Logger)
		driver := scout.NewDriver(
			source,
			time.Duration(r.cfg.ScoutInterval)*time.Second,
			func(c scout.Candidate) {
				eng.OnCandidate(engine.Candidate{
					Symbol:  c.Symbol,
					Address: c.Address,
					Source:  c.Source,
				})
			},
			r.log.Logger,
		)
		g.Go(func() error { return driver.Run(gCtx) })
	} else {
		r.appLog.Warn("scout_url not set, no automatic token discovery")
	}

	if r.cfg.TelegramToken != "" {
		surface, err := notify.New(r.cfg.TelegramToken, r.cfg.TelegramAdminID, eng, bus, r.log.Logger)
		if err != nil {
			return fmt.Errorf("failed to start telegram surface: %w", err)
		}
		g.Go(func() error { return surface.Run(gCtx) })
	}

	boot.Info("trenchbot started",
		zap.Float64("buy_amount_sol", r.cfg.BuyAmountSOL),
		zap.Float64("target_multiplier", r.cfg.TargetMultiplier),
		zap.Float64("sell_fraction", r.cfg.SellFraction),
		zap.Bool("auto_trade", r.cfg.AutoTrade))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown flushes the logs.
func (r *Runner) Shutdown() {
	r.appLog.Info("trenchbot stopped")
	if err := r.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
	}
}
