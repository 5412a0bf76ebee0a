package fx

import (
	"io"
	"log/slog"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfeed/internal/config"
	"botfeed/internal/ledger"
	"botfeed/internal/market"
	"botfeed/internal/model"
	"botfeed/internal/position"
	"botfeed/internal/sched"
	"botfeed/internal/strategy"
	"botfeed/internal/venue"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	engine  *Engine
	clock   *sched.Scheduler
	ledger  *ledger.Generator
	entries []model.LogEntry
	txs     []model.PoolTransaction
}

func newHarness(t *testing.T, seed int64, agents []Agent) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	venues, err := venue.NewRegistry(map[string]config.VenueConfig{
		"stablefx": {TakerFeePercent: 0.01},
		"curve":    {TakerFeePercent: 0.04},
		"uniswap":  {TakerFeePercent: 0.05},
		"kraken":   {TakerFeePercent: 0.26},
		"bitso":    {TakerFeePercent: 0.065},
		"binance":  {TakerFeePercent: 0.1},
	})
	require.NoError(t, err)

	h := &harness{clock: sched.New(epoch)}
	h.ledger = ledger.NewGenerator(logger, config.LedgerConfig{
		Pools: map[string]float64{
			PoolClearing:   1e9,
			PoolLiquidity:  1e9,
			PoolSettlement: 1e9,
		},
		HistorySize: 50,
	}, h.clock.Now)
	h.engine = NewEngine(logger, Options{
		Clock:  h.clock,
		Prices: market.NewPriceTable(market.DefaultPairs(), rand.New(rand.NewSource(seed+1))),
		Venues: venues,
		Rand:   rand.New(rand.NewSource(seed)),
		Agents: agents,
		Ledger: h.ledger,
	})
	h.engine.OnLog(func(entry model.LogEntry) { h.entries = append(h.entries, entry) })
	h.engine.OnPoolTransaction(func(tx model.PoolTransaction) { h.txs = append(h.txs, tx) })
	return h
}

func TestSettlementClassEntriesTriggerLedger(t *testing.T) {
	h := newHarness(t, 7, nil)

	var checked int
	h.engine.OnPoolTransaction(func(tx model.PoolTransaction) {
		last := h.entries[len(h.entries)-1]
		switch last.Category {
		case model.CategorySettle:
			pnl, _ := last.Float("pnl")
			assert.Equal(t, PoolClearing, tx.PoolID)
			assert.Equal(t, TxFeeCollection, tx.Type)
			amount := tx.Amount.InexactFloat64()
			assert.GreaterOrEqual(t, amount, math.Abs(pnl)*0.001-1e-6)
			assert.LessOrEqual(t, amount, math.Abs(pnl)*0.003+1e-6)
		case model.CategoryHedge:
			assert.Equal(t, PoolLiquidity, tx.PoolID)
			assert.Equal(t, TxRebalance, tx.Type)
			side, _ := last.String("side")
			assert.Equal(t, side == string(Buy), tx.Amount.IsPositive())
		case model.CategoryClear:
			pnl, _ := last.Float("pnl")
			assert.Equal(t, PoolSettlement, tx.PoolID)
			assert.Equal(t, TxNetSettlement, tx.Type)
			assert.InDelta(t, pnl, tx.Amount.InexactFloat64(), 1e-6)
		default:
			t.Fatalf("pool transaction after %s entry", last.Category)
		}
		checked++
	})

	h.engine.Start(StartOptions{})
	h.clock.Advance(10 * time.Minute)

	settles := 0
	for _, entry := range h.entries {
		if entry.Category == model.CategorySettle || entry.Category == model.CategoryClear {
			settles++
		}
	}
	require.Positive(t, settles)
	assert.Equal(t, len(h.txs), checked)
	assert.GreaterOrEqual(t, checked, settles)
	assert.NotEmpty(t, h.ledger.Recent(PoolClearing, 0))
}

func TestCycleFollowsRFQWorkflow(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.engine.Start(StartOptions{IDs: []string{"stable-maker"}})
	h.clock.Advance(10 * time.Minute)

	rank := map[model.Category]int{
		model.CategoryRFQ:    0,
		model.CategoryQuote:  1,
		model.CategoryMatch:  2,
		model.CategorySettle: 3,
		model.CategoryPvP:    4,
		model.CategoryHedge:  5,
		model.CategoryClear:  6,
	}
	quotes := 0
	prev := -1
	for _, entry := range h.entries {
		r, ok := rank[entry.Category]
		if !ok {
			continue
		}
		if entry.Category == model.CategoryRFQ {
			if prev >= 0 {
				assert.True(t, quotes >= minQuotes && quotes <= maxQuotes, "%d quotes", quotes)
			}
			quotes = 0
			prev = r
			continue
		}
		require.GreaterOrEqual(t, r, prev, "%s after rank %d", entry.Category, prev)
		if entry.Category == model.CategoryQuote {
			quotes++
		}
		prev = r
	}
	state, ok := h.engine.State("stable-maker")
	require.True(t, ok)
	assert.Positive(t, state.Trades)
	assert.LessOrEqual(t, len(state.Positions), position.MaxOpen)
}

func TestComposeOnlyTradesOnExecutedDecisions(t *testing.T) {
	h := newHarness(t, 3, nil)
	h.engine.Start(StartOptions{IDs: []string{"stable-maker"}})
	d := h.engine.desks["stable-maker"]
	require.NotNil(t, d)

	settlement := map[model.Category]bool{
		model.CategoryRFQ:    true,
		model.CategorySettle: true,
		model.CategoryHedge:  true,
		model.CategoryClear:  true,
	}
	var holds, fullBook, unwound int
	for i := 0; i < 2000; i++ {
		openBefore := d.book.Len()
		steps := h.engine.compose(d).Steps()
		require.NotEmpty(t, steps)

		traded := steps[0].Value.category == model.CategoryRFQ
		if d.state.LastSignal == strategy.Hold {
			holds++
			for _, step := range steps {
				require.False(t, settlement[step.Value.category], "%s on a HOLD signal", step.Value.category)
			}
		}
		if openBefore >= position.MaxOpen {
			require.False(t, traded, "RFQ with a full book")
			if d.state.LastSignal != strategy.Hold {
				reason, _ := steps[0].Value.data["reason"].(string)
				require.Contains(t, reason, "Max positions reached")
				fullBook++
			}
		}
		for _, step := range steps {
			if _, ok := step.Value.data["positionId"]; ok {
				unwound++
			}
		}
		require.LessOrEqual(t, d.book.Len(), position.MaxOpen)
	}

	assert.Positive(t, holds)
	assert.Positive(t, fullBook)
	assert.Equal(t, d.state.Trades, d.book.Len()+unwound, "every closed position is narrated")
}

func TestRFQsFollowDirectionalSignals(t *testing.T) {
	h := newHarness(t, 3, nil)
	rfqs := 0
	h.engine.OnLog(func(entry model.LogEntry) {
		if entry.Category != model.CategoryRFQ {
			return
		}
		rfqs++
		state, ok := h.engine.State(entry.EntityID)
		require.True(t, ok)
		side, _ := entry.String("side")
		switch state.LastSignal {
		case strategy.Long:
			assert.Equal(t, string(Buy), side)
		case strategy.Short:
			assert.Equal(t, string(Sell), side)
		default:
			t.Errorf("RFQ %s emitted on a %s signal", entry.ID, state.LastSignal)
		}
	})

	h.engine.Start(StartOptions{})
	h.clock.Advance(30 * time.Minute)

	assert.Positive(t, rfqs)
	assert.NotEmpty(t, h.txs)
}

func TestGatedAgentOnlyMonitors(t *testing.T) {
	idle := DefaultAgents()[0]
	idle.TradeFrequency = 0
	h := newHarness(t, 5, []Agent{idle})

	h.engine.Start(StartOptions{})
	h.clock.Advance(5 * time.Minute)

	require.NotEmpty(t, h.entries)
	for _, entry := range h.entries {
		assert.Equal(t, model.CategoryPosition, entry.Category)
		assert.Equal(t, model.ImportanceLow, entry.Importance)
		assert.Contains(t, entry.Message, "Monitoring")
	}
	assert.Empty(t, h.txs)
}

func TestNoMatchEndsCycle(t *testing.T) {
	strict := DefaultAgents()[1]
	strict.TradeFrequency = 1
	strict.MaxSlippageBps = 0
	h := newHarness(t, 6, []Agent{strict})

	h.engine.Start(StartOptions{})
	h.clock.Advance(15 * time.Minute)

	matches := 0
	for _, entry := range h.entries {
		assert.NotEqual(t, model.CategorySettle, entry.Category)
		if entry.Category == model.CategoryMatch {
			matches++
			assert.Contains(t, entry.Message, "No match")
		}
	}
	assert.Positive(t, matches)
	assert.Empty(t, h.txs)
}

func TestStopThenAdvanceEmitsNothing(t *testing.T) {
	h := newHarness(t, 8, nil)
	h.engine.EmitBootSequence()
	h.engine.Start(StartOptions{})
	h.clock.Advance(45 * time.Second)
	require.NotEmpty(t, h.entries)

	h.engine.Stop()
	entries, txs := len(h.entries), len(h.txs)
	assert.Zero(t, h.clock.Pending(""))

	h.clock.Advance(10 * time.Minute)
	assert.Len(t, h.entries, entries)
	assert.Len(t, h.txs, txs)
	assert.False(t, h.engine.IsRunning())
}

func TestStartTwiceKeepsSingleChain(t *testing.T) {
	h := newHarness(t, 4, nil)
	h.engine.Start(StartOptions{IDs: []string{"treasury-desk"}})
	h.engine.Start(StartOptions{IDs: []string{"treasury-desk", "unknown-desk"}})

	assert.Equal(t, 1, h.clock.Pending(ownerOf("treasury-desk")))
	assert.Len(t, h.engine.States(), 1)
}

func TestStartFilters(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.engine.Start(StartOptions{
		IDs:         []string{"remittance-router"},
		Instruments: []string{"USDC/BRLA"},
		Venues:      []string{"stablefx", "curve"},
	})
	h.clock.Advance(10 * time.Minute)

	require.NotEmpty(t, h.entries)
	for _, entry := range h.entries {
		switch entry.Category {
		case model.CategoryRFQ:
			pair, _ := entry.String("pair")
			assert.Equal(t, "USDC/BRLA", pair)
		case model.CategoryQuote:
			v, _ := entry.String("venue")
			assert.Contains(t, []string{"stablefx", "curve"}, v)
		}
	}
}

func TestSeededRunsAreIdentical(t *testing.T) {
	run := func() ([]model.LogEntry, []model.PoolTransaction) {
		h := newHarness(t, 99, nil)
		h.engine.EmitBootSequence()
		h.engine.Start(StartOptions{})
		h.clock.Advance(4 * time.Minute)
		return h.entries, h.txs
	}

	entries1, txs1 := run()
	entries2, txs2 := run()

	require.NotEmpty(t, entries1)
	assert.Equal(t, entries1, entries2)
	assert.Equal(t, txs1, txs2)
}

func TestWithoutLedgerNoPoolTransactions(t *testing.T) {
	engine := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Clock: sched.New(epoch),
		Rand:  rand.New(rand.NewSource(1)),
	})
	var txs int
	engine.OnPoolTransaction(func(model.PoolTransaction) { txs++ })
	var boot []string
	engine.OnLog(func(entry model.LogEntry) {
		if entry.Category == model.CategorySystem {
			boot = append(boot, entry.Message)
		}
	})

	engine.EmitBootSequence()
	engine.Start(StartOptions{})
	engine.clock.Advance(5 * time.Minute)

	assert.Zero(t, txs)
	assert.Contains(t, boot, "Pool ledger bridge not configured")
}
