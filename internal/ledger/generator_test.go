package ledger

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfeed/internal/config"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGenerator(history int) *Generator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.LedgerConfig{
		Pools:       map[string]float64{"clearing": 1000, "liquidity": 50},
		HistorySize: history,
	}
	return NewGenerator(logger, cfg, func() time.Time { return fixedNow })
}

func TestCreateLiveTransactionMovesBalance(t *testing.T) {
	g := newTestGenerator(10)

	tx, ok := g.CreateLiveTransaction("clearing", "fee_collection", 0.2412345678, "fee on RFQ-1")
	require.True(t, ok)

	assert.Equal(t, "ptx-000001", tx.ID)
	assert.Equal(t, "clearing", tx.PoolID)
	assert.Equal(t, "fee_collection", tx.Type)
	assert.True(t, decimal.RequireFromString("0.241235").Equal(tx.Amount))
	assert.True(t, decimal.NewFromInt(1000).Equal(tx.BalanceBefore))
	assert.True(t, decimal.RequireFromString("1000.241235").Equal(tx.BalanceAfter))
	assert.Equal(t, fixedNow, tx.Timestamp)
	assert.Len(t, tx.ReferenceHash, 66)

	balance, ok := g.Balance("clearing")
	require.True(t, ok)
	assert.True(t, tx.BalanceAfter.Equal(balance))
}

func TestCreateLiveTransactionChainsBalances(t *testing.T) {
	g := newTestGenerator(10)

	first, ok := g.CreateLiveTransaction("clearing", "net_settlement", 25, "")
	require.True(t, ok)
	second, ok := g.CreateLiveTransaction("clearing", "net_settlement", -10.5, "")
	require.True(t, ok)

	assert.True(t, first.BalanceAfter.Equal(second.BalanceBefore))
	assert.True(t, decimal.RequireFromString("1014.5").Equal(second.BalanceAfter))
	assert.NotEqual(t, first.ReferenceHash, second.ReferenceHash)
}

func TestCreateLiveTransactionRejects(t *testing.T) {
	g := newTestGenerator(10)

	_, ok := g.CreateLiveTransaction("insurance", "rebalance", 1, "")
	assert.False(t, ok)

	_, ok = g.CreateLiveTransaction("liquidity", "rebalance", -51, "")
	assert.False(t, ok)

	balance, _ := g.Balance("liquidity")
	assert.True(t, decimal.NewFromInt(50).Equal(balance))
}

func TestRecentIsBounded(t *testing.T) {
	g := newTestGenerator(3)
	for i := 0; i < 5; i++ {
		_, ok := g.CreateLiveTransaction("clearing", "fee_collection", 1, "")
		require.True(t, ok)
	}

	all := g.Recent("clearing", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "ptx-000003", all[0].ID)
	assert.Equal(t, "ptx-000005", all[2].ID)

	last := g.Recent("clearing", 1)
	require.Len(t, last, 1)
	assert.Equal(t, "ptx-000005", last[0].ID)

	assert.Nil(t, g.Recent("missing", 1))
	assert.Equal(t, []string{"clearing", "liquidity"}, g.Pools())
}
