package market

import (
	"math/rand"
	"sort"
	"strconv"
	"sync"
)

// Instrument is a tradable symbol with its starting price and per-step
// volatility.
type Instrument struct {
	Symbol     string
	BasePrice  float64
	Volatility float64
}

// DefaultInstruments is the crypto universe scanned by the bots.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Symbol: "BTC/USDT", BasePrice: 67250, Volatility: 0.004},
		{Symbol: "ETH/USDT", BasePrice: 3420, Volatility: 0.005},
		{Symbol: "SOL/USDT", BasePrice: 145.8, Volatility: 0.008},
		{Symbol: "BNB/USDT", BasePrice: 592.4, Volatility: 0.005},
		{Symbol: "XRP/USDT", BasePrice: 0.524, Volatility: 0.007},
		{Symbol: "DOGE/USDT", BasePrice: 0.1235, Volatility: 0.010},
		{Symbol: "AVAX/USDT", BasePrice: 35.6, Volatility: 0.008},
		{Symbol: "LINK/USDT", BasePrice: 14.2, Volatility: 0.007},
		{Symbol: "ARB/USDT", BasePrice: 1.08, Volatility: 0.009},
	}
}

// DefaultPairs is the stablecoin FX universe quoted by the FX agents.
func DefaultPairs() []Instrument {
	return []Instrument{
		{Symbol: "USDC/EURC", BasePrice: 0.9215, Volatility: 0.0004},
		{Symbol: "USDT/USDC", BasePrice: 1.0002, Volatility: 0.0001},
		{Symbol: "USDC/XSGD", BasePrice: 1.3420, Volatility: 0.0006},
		{Symbol: "EURC/USDT", BasePrice: 1.0848, Volatility: 0.0004},
		{Symbol: "USDC/BRLA", BasePrice: 5.4200, Volatility: 0.0015},
		{Symbol: "USDC/JPYC", BasePrice: 149.80, Volatility: 0.0008},
	}
}

type quote struct {
	price      float64
	volatility float64
}

// PriceTable holds the last known price of every instrument and moves it by a
// bounded random walk. Each Advance is a single locked read-modify-write.
type PriceTable struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]*quote
}

// NewPriceTable seeds the table with each instrument's base price.
func NewPriceTable(instruments []Instrument, rng *rand.Rand) *PriceTable {
	t := &PriceTable{
		rng:    rng,
		prices: make(map[string]*quote, len(instruments)),
	}
	for _, inst := range instruments {
		t.prices[inst.Symbol] = &quote{price: inst.BasePrice, volatility: inst.Volatility}
	}
	return t
}

// Advance applies price *= 1 + U(-v, v) to the stored price and returns it.
// Unknown symbols return 0.
func (t *PriceTable) Advance(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.prices[symbol]
	if !ok {
		return 0
	}
	q.price *= 1 + (t.rng.Float64()*2-1)*q.volatility
	return q.price
}

// Price returns the stored price without moving it.
func (t *PriceTable) Price(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.prices[symbol]; ok {
		return q.price
	}
	return 0
}

// Volatility returns the per-step volatility of symbol.
func (t *PriceTable) Volatility(symbol string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.prices[symbol]; ok {
		return q.volatility
	}
	return 0
}

// Symbols lists the known symbols in lexical order.
func (t *PriceTable) Symbols() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.prices))
	for s := range t.prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FormatPrice renders a price with precision suited to its magnitude.
func FormatPrice(price float64) string {
	switch {
	case price >= 1000:
		return strconv.FormatFloat(price, 'f', 2, 64)
	case price >= 1:
		return strconv.FormatFloat(price, 'f', 4, 64)
	default:
		return strconv.FormatFloat(price, 'f', 6, 64)
	}
}
