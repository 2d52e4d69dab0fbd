package clockwork

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeAdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	clk.Advance(90 * time.Second)

	assert.Equal(t, start.Add(90*time.Second), clk.Now())
}

func TestFakeTickerFiresPerPeriod(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ticker := clk.NewTicker(time.Second)
	defer ticker.Stop()

	clk.Advance(3 * time.Second)

	require.Len(t, ticker.Chan(), 3)
	first := <-ticker.Chan()
	second := <-ticker.Chan()
	assert.Equal(t, time.Second, second.Sub(first))
}

func TestFakeStoppedTickerStaysQuiet(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ticker := clk.NewTicker(time.Second)
	ticker.Stop()

	clk.Advance(5 * time.Second)

	assert.Empty(t, ticker.Chan())
}

func TestFakeSleepIsInstantAndInterruptible(t *testing.T) {
	clk := NewFake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	require.True(t, clk.Sleep(10*time.Second, done))
	assert.Equal(t, 10*time.Second, clk.Now().Sub(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)))

	close(done)
	assert.False(t, clk.Sleep(time.Second, done))
}
