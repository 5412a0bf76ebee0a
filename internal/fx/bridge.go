package fx

import (
	"fmt"
	"math"
	"math/rand"

	"botfeed/internal/model"
)

// Pool ids and transaction types written by the bridge.
const (
	PoolClearing   = "clearing"
	PoolLiquidity  = "liquidity"
	PoolSettlement = "settlement"

	TxFeeCollection = "fee_collection"
	TxRebalance     = "rebalance"
	TxNetSettlement = "net_settlement"
)

// LedgerTransactionFactory produces one live pool transaction. It answers
// false when no transaction was created.
type LedgerTransactionFactory interface {
	CreateLiveTransaction(poolID, txType string, amount float64, description string) (model.PoolTransaction, bool)
}

type noopFactory struct{}

func (noopFactory) CreateLiveTransaction(string, string, float64, string) (model.PoolTransaction, bool) {
	return model.PoolTransaction{}, false
}

// Bridge turns settlement-class FX entries into pool ledger transactions.
type Bridge struct {
	factory LedgerTransactionFactory
	rng     *rand.Rand
}

// NewBridge wraps factory. A nil factory never produces transactions.
func NewBridge(factory LedgerTransactionFactory, rng *rand.Rand) *Bridge {
	if factory == nil {
		factory = noopFactory{}
	}
	return &Bridge{factory: factory, rng: rng}
}

// Handle applies the triggering rule to entry:
//
//	settle -> clearing   / fee_collection  |pnl| * U[0.001, 0.003]
//	hedge  -> liquidity  / rebalance       ±hedgeNotional * U[0.0005, 0.0015]
//	clear  -> settlement / net_settlement  pnl
//
// Other categories, and entries missing the payload the rule reads, are
// ignored.
func (b *Bridge) Handle(entry model.LogEntry) (model.PoolTransaction, bool) {
	switch entry.Category {
	case model.CategorySettle:
		pnl, ok := entry.Float("pnl")
		if !ok {
			return model.PoolTransaction{}, false
		}
		amount := math.Abs(pnl) * uniform(b.rng, 0.001, 0.003)
		return b.factory.CreateLiveTransaction(PoolClearing, TxFeeCollection, amount,
			fmt.Sprintf("Clearing fee on %s", reference(entry)))

	case model.CategoryHedge:
		notional, ok := entry.Float("hedgeNotional")
		if !ok {
			return model.PoolTransaction{}, false
		}
		amount := notional * uniform(b.rng, 0.0005, 0.0015)
		if side, _ := entry.String("side"); side == string(Sell) {
			amount = -amount
		}
		return b.factory.CreateLiveTransaction(PoolLiquidity, TxRebalance, amount,
			fmt.Sprintf("Hedge rebalance for %s", reference(entry)))

	case model.CategoryClear:
		pnl, ok := entry.Float("pnl")
		if !ok {
			return model.PoolTransaction{}, false
		}
		return b.factory.CreateLiveTransaction(PoolSettlement, TxNetSettlement, pnl,
			fmt.Sprintf("Net settlement of %s", reference(entry)))
	}
	return model.PoolTransaction{}, false
}

func reference(entry model.LogEntry) string {
	if id, ok := entry.String("rfqId"); ok {
		return fmt.Sprintf("RFQ %s (%s)", id, entry.EntityID)
	}
	return entry.EntityID
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
