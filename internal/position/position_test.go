// internal/position/position_test.go
package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPosition(t *testing.T) {
	p := New("FOO", "addrFOO", 50, 0.002, 2.0, 80)

	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, 50.0, p.HeldAmount)
	assert.InDelta(t, 0.1, p.EntryValue, 1e-12)
	assert.InDelta(t, 0.1, p.CurrentValue, 1e-12)
	assert.Zero(t, p.ProfitPercent)
	assert.False(t, p.OpenedAt.IsZero())
}

func TestUpdatePrice(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)

	p.UpdatePrice(0.15)
	assert.InDelta(t, 1.5, p.CurrentValue, 1e-9)
	assert.InDelta(t, 50.0, p.ProfitPercent, 1e-9)
}

func TestUpdatePriceIgnoresNonPositive(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)
	p.UpdatePrice(0)
	p.UpdatePrice(-1)

	assert.Equal(t, 0.1, p.CurrentPrice)
	assert.Zero(t, p.ProfitPercent)
}

func TestTargetReached(t *testing.T) {
	// entryValue=1.0, multiplier 2.0, fraction 50: doubling the value
	// reaches the target and half of the holding exits.
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)

	p.UpdatePrice(0.19)
	assert.False(t, p.TargetReached())

	p.UpdatePrice(0.2)
	assert.InDelta(t, 100.0, p.ProfitPercent, 1e-9)
	assert.True(t, p.TargetReached())
	assert.InDelta(t, 5.0, p.ExitAmount(), 1e-9)
}

func TestTargetReachedMonotonicInPrice(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)

	p.UpdatePrice(0.2)
	require.True(t, p.TargetReached())

	// Increasing price never turns a reached target back off.
	for _, price := range []float64{0.21, 0.3, 1.0, 50.0} {
		p.UpdatePrice(price)
		assert.True(t, p.TargetReached(), "price %v", price)
	}
}

func TestApplyPartialExit(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)
	p.UpdatePrice(0.2)

	sold := p.ExitAmount()
	p.ApplyPartialExit(sold)

	assert.Equal(t, StatusActive, p.Status, "nonzero remainder stays active")
	assert.InDelta(t, 5.0, p.HeldAmount, 1e-9)
	// Cost basis re-bases to the post-exit valuation at the current price.
	assert.InDelta(t, 1.0, p.EntryValue, 1e-9)
	assert.InDelta(t, 2.5, p.ExitAmount(), 1e-9, "exit amount reflects the reduced holding")
}

func TestFullExitCompletesPosition(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 100)
	p.UpdatePrice(0.2)

	p.ApplyPartialExit(p.ExitAmount())

	assert.Equal(t, StatusCompleted, p.Status)
	assert.Zero(t, p.HeldAmount)

	// Completed is terminal: no further mutation.
	p.ApplyPartialExit(1)
	p.ApplyPartialExit(-5)
	assert.Zero(t, p.HeldAmount)
	assert.Equal(t, StatusCompleted, p.Status)
}

func TestSoldAmountsConserveOriginalHolding(t *testing.T) {
	const bought = 16.0
	p := New("FOO", "addrFOO", bought, 0.1, 2.0, 50)

	var totalSold float64
	for p.Status == StatusActive && p.ExitAmount() > 1e-6 {
		p.UpdatePrice(p.CurrentPrice * 2)
		require.True(t, p.TargetReached())
		sold := p.ExitAmount()
		p.ApplyPartialExit(sold)
		totalSold += sold
		require.GreaterOrEqual(t, p.HeldAmount, 0.0)
	}

	assert.InDelta(t, bought, totalSold+p.HeldAmount, 1e-9)

	// Liquidate the tail in one final full exit; the books must still
	// balance once the position completes.
	remainder := p.HeldAmount
	p.ApplyPartialExit(remainder)
	totalSold += remainder

	assert.Equal(t, StatusCompleted, p.Status)
	assert.Zero(t, p.HeldAmount)
	assert.InDelta(t, bought, totalSold, 1e-9)
}

func TestCloneIsIndependent(t *testing.T) {
	p := New("FOO", "addrFOO", 10, 0.1, 2.0, 50)
	c := p.Clone()

	p.UpdatePrice(0.5)
	assert.Equal(t, 0.1, c.CurrentPrice)
}
