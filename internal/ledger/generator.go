package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"botfeed/internal/config"
	"botfeed/internal/model"
)

const amountPlaces = 6

type pool struct {
	balance decimal.Decimal
	recent  []model.PoolTransaction
}

// Generator keeps pool balances and turns live events into ledger
// transactions consistent with them.
type Generator struct {
	logger      *slog.Logger
	now         func() time.Time
	historySize int

	mu    sync.Mutex
	seq   uint64
	pools map[string]*pool
}

// NewGenerator seeds every configured pool with its opening balance.
func NewGenerator(logger *slog.Logger, cfg config.LedgerConfig, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	g := &Generator{
		logger:      logger,
		now:         now,
		historySize: cfg.HistorySize,
		pools:       make(map[string]*pool, len(cfg.Pools)),
	}
	for id, balance := range cfg.Pools {
		g.pools[id] = &pool{balance: decimal.NewFromFloat(balance).Round(amountPlaces)}
	}
	return g
}

// CreateLiveTransaction applies a signed amount to poolID and returns the
// resulting transaction. It answers false for unknown pools and for
// movements that would overdraw the pool.
func (g *Generator) CreateLiveTransaction(poolID, txType string, amount float64, description string) (model.PoolTransaction, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pools[poolID]
	if !ok {
		g.logger.Warn("Ledger transaction for unknown pool", "pool", poolID, "type", txType)
		return model.PoolTransaction{}, false
	}

	delta := decimal.NewFromFloat(amount).Round(amountPlaces)
	after := p.balance.Add(delta)
	if after.IsNegative() {
		g.logger.Warn("Ledger transaction would overdraw pool",
			"pool", poolID,
			"type", txType,
			"amount", delta.String(),
			"balance", p.balance.String(),
		)
		return model.PoolTransaction{}, false
	}

	g.seq++
	tx := model.PoolTransaction{
		ID:            fmt.Sprintf("ptx-%06d", g.seq),
		PoolID:        poolID,
		Type:          txType,
		Amount:        delta,
		BalanceBefore: p.balance,
		BalanceAfter:  after,
		ReferenceHash: referenceHash(poolID, txType, delta, g.seq),
		Timestamp:     g.now(),
		Description:   description,
	}
	p.balance = after
	p.recent = append(p.recent, tx)
	if g.historySize > 0 && len(p.recent) > g.historySize {
		p.recent = append(p.recent[:0:0], p.recent[len(p.recent)-g.historySize:]...)
	}
	return tx, true
}

// Balance returns the current balance of poolID.
func (g *Generator) Balance(poolID string) (decimal.Decimal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pools[poolID]
	if !ok {
		return decimal.Zero, false
	}
	return p.balance, true
}

// Recent returns up to n of the latest transactions on poolID, oldest
// first. n <= 0 returns all retained transactions.
func (g *Generator) Recent(poolID string, n int) []model.PoolTransaction {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pools[poolID]
	if !ok {
		return nil
	}
	start := 0
	if n > 0 && len(p.recent) > n {
		start = len(p.recent) - n
	}
	out := make([]model.PoolTransaction, len(p.recent)-start)
	copy(out, p.recent[start:])
	return out
}

// Pools lists the pool ids in lexical order.
func (g *Generator) Pools() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.pools))
	for id := range g.pools {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func referenceHash(poolID, txType string, amount decimal.Decimal, seq uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", poolID, txType, amount.String(), seq)))
	return "0x" + hex.EncodeToString(sum[:])
}
