package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category tags a log entry with the stage of the cycle that produced it.
type Category string

// Bot engine categories.
const (
	CategoryScan      Category = "scan"
	CategoryThinking  Category = "thinking"
	CategoryIndicator Category = "indicator"
	CategoryNews      Category = "news"
	CategoryAnalysis  Category = "analysis"
	CategoryStrategy  Category = "strategy"
	CategorySignal    Category = "signal"
	CategoryDecision  Category = "decision"
	CategoryOrder     Category = "order"
	CategoryFilled    Category = "filled"
	CategoryPnL       Category = "pnl"
	CategoryRisk      Category = "risk"
	CategorySystem    Category = "system"
)

// FX engine categories. pnl and system are shared with the bot engine.
const (
	CategoryRFQ      Category = "rfq"
	CategoryQuote    Category = "quote"
	CategoryMatch    Category = "match"
	CategorySettle   Category = "settle"
	CategoryPvP      Category = "pvp"
	CategoryHedge    Category = "hedge"
	CategoryClear    Category = "clear"
	CategoryPosition Category = "position"
)

// Importance is the display tier of a log entry.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// LogEntry is a single line of the activity feed. It is never modified after
// it has been emitted.
type LogEntry struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	EntityID    string         `json:"entityId"`
	EntityLabel string         `json:"entityLabel"`
	Category    Category       `json:"category"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	Importance  Importance     `json:"importance"`
}

// Float returns a numeric payload value, accepting the numeric kinds the
// engines store.
func (e LogEntry) Float(key string) (float64, bool) {
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String returns a string payload value.
func (e LogEntry) String(key string) (string, bool) {
	v, ok := e.Data[key].(string)
	return v, ok
}

// PoolTransaction is a ledger movement on a liquidity pool, produced in
// response to a settlement-class FX entry.
type PoolTransaction struct {
	ID            string          `json:"id"`
	PoolID        string          `json:"poolId"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	ReferenceHash string          `json:"referenceHash"`
	Timestamp     time.Time       `json:"timestamp"`
	Description   string          `json:"description"`
}
