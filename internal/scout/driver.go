// internal/scout/driver.go
package scout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sink receives newly detected candidates. Must not block for long; the
// driver calls it inline between polls.
type Sink func(Candidate)

// Driver polls a single source on a fixed interval and forwards tokens
// that were not visible on the previous poll. A failed poll is logged and
// the loop continues; only cancellation stops it.
type Driver struct {
	source   Source
	interval time.Duration
	sink     Sink
	logger   *zap.Logger

	known map[string]bool
}

// NewDriver creates a polling driver for one source.
func NewDriver(source Source, interval time.Duration, sink Sink, logger *zap.Logger) *Driver {
	return &Driver{
		source:   source,
		interval: interval,
		sink:     sink,
		logger:   logger.Named("scout").With(zap.String("source", source.Name())),
		known:    make(map[string]bool),
	}
}

// Run polls until the context is cancelled. Initialize failures abort;
// per-cycle extract failures do not.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.source.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize source %s: %w", d.source.Name(), err)
	}
	defer func() {
		if err := d.source.Teardown(); err != nil {
			d.logger.Warn("source teardown failed", zap.Error(err))
		}
	}()

	d.logger.Info("signal source started", zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// First poll immediately; later polls on the ticker.
	d.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("signal source stopped")
			return ctx.Err()
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Driver) poll(ctx context.Context) {
	candidates, err := d.source.Extract(ctx)
	if err != nil {
		d.logger.Error("extract failed, will retry next cycle", zap.Error(err))
		return
	}

	fresh := d.detectNew(candidates)
	for _, c := range fresh {
		d.logger.Info("new token detected",
			zap.String("symbol", c.Symbol),
			zap.String("address", c.Address))
		if d.sink != nil {
			d.sink(c)
		}
	}
}

// detectNew returns candidates whose symbol was not seen on the previous
// poll and replaces the known set with the current one, so a token that
// disappears and comes back is reported again.
func (d *Driver) detectNew(candidates []Candidate) []Candidate {
	var fresh []Candidate
	current := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		if c.Symbol == "" {
			continue
		}
		current[c.Symbol] = true
		if !d.known[c.Symbol] {
			if c.DetectedAt.IsZero() {
				c.DetectedAt = time.Now()
			}
			fresh = append(fresh, c)
		}
	}

	d.known = current
	return fresh
}
