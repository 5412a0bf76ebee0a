package bot

import (
	"bytes"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfeed/internal/config"
	"botfeed/internal/indicator"
	"botfeed/internal/market"
	"botfeed/internal/model"
	"botfeed/internal/position"
	"botfeed/internal/sched"
	"botfeed/internal/strategy"
	"botfeed/internal/venue"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, seed int64) (*Engine, *sched.Scheduler) {
	t.Helper()
	venues, err := venue.NewRegistry(map[string]config.VenueConfig{
		"binance": {TakerFeePercent: 0.1},
		"bybit":   {TakerFeePercent: 0.055},
		"curve":   {TakerFeePercent: 0.04},
	})
	require.NoError(t, err)

	clock := sched.New(epoch)
	engine := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Clock:  clock,
		Prices: market.NewPriceTable(market.DefaultInstruments(), rand.New(rand.NewSource(seed+1))),
		Venues: venues,
		Rand:   rand.New(rand.NewSource(seed)),
	})
	return engine, clock
}

func collect(e *Engine) *[]model.LogEntry {
	var entries []model.LogEntry
	e.OnLog(func(entry model.LogEntry) {
		entries = append(entries, entry)
	})
	return &entries
}

func TestComposeKeepsInvariants(t *testing.T) {
	engine, _ := newTestEngine(t, 11)
	engine.Start(StartOptions{IDs: []string{"scalper-x"}})
	b := engine.bots["scalper-x"]
	require.NotNil(t, b)

	for i := 0; i < 2000; i++ {
		plan := engine.compose(b)
		steps := plan.Steps()
		require.NotEmpty(t, steps)
		assert.Equal(t, model.CategoryScan, steps[0].Value.category)
		for j := 1; j < len(steps); j++ {
			require.GreaterOrEqual(t, steps[j].Offset, steps[j-1].Offset)
		}

		require.LessOrEqual(t, b.book.Len(), position.MaxOpen)
		require.GreaterOrEqual(t, b.book.WinRate(), position.WinRateMin)
		require.LessOrEqual(t, b.book.WinRate(), position.WinRateMax)
		require.GreaterOrEqual(t, b.state.Indicators.RSI, indicator.RSIMin)
		require.LessOrEqual(t, b.state.Indicators.RSI, indicator.RSIMax)
		require.GreaterOrEqual(t, b.state.Confidence, 0.0)
		require.LessOrEqual(t, b.state.Confidence, strategy.MaxConfidence)
	}
	assert.Positive(t, b.state.Trades)
}

func TestCycleEmitsOrderedEntries(t *testing.T) {
	engine, clock := newTestEngine(t, 3)
	entries := collect(engine)

	engine.Start(StartOptions{})
	clock.Advance(5 * time.Minute)

	require.NotEmpty(t, *entries)
	last := map[string]time.Time{}
	for _, entry := range *entries {
		require.False(t, entry.Timestamp.Before(last[entry.EntityID]), "entry %s out of order", entry.ID)
		last[entry.EntityID] = entry.Timestamp
		assert.NotEmpty(t, entry.EntityLabel)
		assert.Contains(t, []model.Importance{model.ImportanceLow, model.ImportanceMedium, model.ImportanceHigh}, entry.Importance)
	}
	assert.Len(t, last, len(DefaultProfiles()))
}

func TestStopThenAdvanceEmitsNothing(t *testing.T) {
	engine, clock := newTestEngine(t, 5)
	entries := collect(engine)

	engine.EmitBootSequence()
	engine.Start(StartOptions{})
	clock.Advance(40 * time.Second)
	require.NotEmpty(t, *entries)

	engine.Stop()
	emitted := len(*entries)
	assert.Zero(t, clock.Pending(""))

	clock.Advance(10 * time.Minute)
	assert.Len(t, *entries, emitted)
	assert.False(t, engine.IsRunning())
}

func TestStopSelectedBot(t *testing.T) {
	engine, clock := newTestEngine(t, 9)
	entries := collect(engine)

	engine.Start(StartOptions{})
	clock.Advance(30 * time.Second)
	engine.Stop("scalper-x")
	stoppedAt := clock.Now()

	assert.Zero(t, clock.Pending(ownerOf("scalper-x")))
	clock.Advance(3 * time.Minute)

	others := 0
	for _, entry := range *entries {
		if !entry.Timestamp.After(stoppedAt) {
			continue
		}
		require.NotEqual(t, "scalper-x", entry.EntityID)
		others++
	}
	assert.Positive(t, others)
	assert.True(t, engine.IsRunning())

	state, ok := engine.State("scalper-x")
	require.True(t, ok)
	assert.False(t, state.Running)
}

func TestStartTwiceKeepsSingleChain(t *testing.T) {
	engine, clock := newTestEngine(t, 13)
	entries := collect(engine)

	engine.Start(StartOptions{IDs: []string{"momentum-alpha"}})
	engine.Start(StartOptions{IDs: []string{"momentum-alpha"}})
	assert.Equal(t, 1, clock.Pending(ownerOf("momentum-alpha")))

	clock.Advance(5 * time.Minute)

	var scans []time.Time
	for _, entry := range *entries {
		if entry.Category == model.CategoryScan {
			scans = append(scans, entry.Timestamp)
		}
	}
	require.Greater(t, len(scans), 2)
	interval := DefaultProfiles()[0].ScanIntervalMin
	for i := 1; i < len(scans); i++ {
		assert.GreaterOrEqual(t, scans[i].Sub(scans[i-1]), interval)
	}
}

func TestSeededRunsAreIdentical(t *testing.T) {
	run := func() []model.LogEntry {
		engine, clock := newTestEngine(t, 42)
		entries := collect(engine)
		engine.EmitBootSequence()
		engine.Start(StartOptions{})
		clock.Advance(3 * time.Minute)
		return *entries
	}

	first := run()
	second := run()

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestBootSequence(t *testing.T) {
	engine, clock := newTestEngine(t, 1)
	entries := collect(engine)

	engine.EmitBootSequence()
	clock.Advance(3 * time.Second)

	require.Len(t, *entries, 5)
	for i, entry := range *entries {
		assert.Equal(t, model.CategorySystem, entry.Category)
		assert.Equal(t, "system", entry.EntityID)
		if i > 0 {
			assert.True(t, entry.Timestamp.After((*entries)[i-1].Timestamp))
		}
	}
}

func TestStartFilters(t *testing.T) {
	engine, clock := newTestEngine(t, 21)
	entries := collect(engine)

	engine.Start(StartOptions{
		IDs:         []string{"scalper-x", "grid-master"},
		Instruments: []string{"XRP/USDT"},
		Venues:      []string{"bybit"},
	})
	clock.Advance(10 * time.Minute)

	orders := 0
	for _, entry := range *entries {
		assert.Contains(t, []string{"scalper-x", "grid-master"}, entry.EntityID)
		switch entry.Category {
		case model.CategoryScan:
			instrument, _ := entry.String("instrument")
			assert.Equal(t, "XRP/USDT", instrument)
		case model.CategoryOrder:
			orders++
			v, _ := entry.String("venue")
			assert.Equal(t, "bybit", v)
		}
	}
	assert.Positive(t, orders)
	assert.Len(t, engine.States(), 2)
}

func TestStartWarnsOnUnknownVenue(t *testing.T) {
	venues, err := venue.NewRegistry(map[string]config.VenueConfig{"bybit": {TakerFeePercent: 0.055}})
	require.NoError(t, err)
	var logs bytes.Buffer
	engine := NewEngine(slog.New(slog.NewTextHandler(&logs, nil)), Options{
		Clock:  sched.New(epoch),
		Venues: venues,
		Rand:   rand.New(rand.NewSource(1)),
	})

	engine.Start(StartOptions{IDs: []string{"scalper-x"}, Venues: []string{"BYBIT", "mtgox"}})

	assert.Contains(t, logs.String(), "Unknown venue in filter")
	assert.Contains(t, logs.String(), "venue=mtgox")
	assert.NotContains(t, logs.String(), "venue=BYBIT")
}

func TestStateReturnsCopy(t *testing.T) {
	engine, clock := newTestEngine(t, 17)
	engine.Start(StartOptions{IDs: []string{"scalper-x"}})
	clock.Advance(10 * time.Minute)

	state, ok := engine.State("scalper-x")
	require.True(t, ok)
	require.NotEmpty(t, state.Positions)

	state.Positions[0].EntryPrice = -1
	again, _ := engine.State("scalper-x")
	assert.NotEqual(t, -1.0, again.Positions[0].EntryPrice)

	_, ok = engine.State("nobody")
	assert.False(t, ok)
}

func TestOnLogUnsubscribe(t *testing.T) {
	engine, clock := newTestEngine(t, 2)
	count := 0
	unsubscribe := engine.OnLog(func(model.LogEntry) { count++ })

	engine.EmitBootSequence()
	clock.Advance(500 * time.Millisecond)
	require.Equal(t, 2, count)

	unsubscribe()
	unsubscribe()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, count)
}
