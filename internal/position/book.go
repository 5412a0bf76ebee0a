package position

import (
	"math"
	"math/rand"
	"time"
)

// Side is the direction of an open position.
type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Book limits and win-rate smoothing.
const (
	MaxOpen      = 3
	WinRateMin   = 0.35
	WinRateMax   = 0.75
	winRateDecay = 0.95
	closeChance  = 0.3
)

// Position is an open simulated position.
type Position struct {
	ID           string    `json:"id"`
	Instrument   string    `json:"instrument"`
	Side         Side      `json:"side"`
	EntryPrice   float64   `json:"entryPrice"`
	CurrentPrice float64   `json:"currentPrice"`
	Size         float64   `json:"size"`
	Leverage     int       `json:"leverage"`
	PnLPercent   float64   `json:"pnlPercent"`
	OpenedAt     time.Time `json:"openedAt"`
}

// Mark recomputes the position's P&L against price.
func (p *Position) Mark(price float64) {
	if price <= 0 || p.EntryPrice <= 0 {
		return
	}
	p.CurrentPrice = price
	sign := 1.0
	if p.Side == Short {
		sign = -1
	}
	lev := float64(p.Leverage)
	if lev < 1 {
		lev = 1
	}
	p.PnLPercent = (price - p.EntryPrice) / p.EntryPrice * 100 * lev * sign
}

// Book is the open-position list of a single entity together with its
// smoothed win rate.
type Book struct {
	open    []Position
	winRate float64
}

// NewBook creates an empty book with the given starting win rate.
func NewBook(winRate float64) *Book {
	return &Book{winRate: clampWinRate(winRate)}
}

// Open adds p. When the book is already full the oldest position is closed
// first and returned.
func (b *Book) Open(p Position) []Position {
	var evicted []Position
	b.open = append(b.open, p)
	for len(b.open) > MaxOpen {
		evicted = append(evicted, b.CloseOldest())
	}
	return evicted
}

// MarkToMarket re-prices every open position with the price returned by
// lookup for its instrument.
func (b *Book) MarkToMarket(lookup func(instrument string) float64) {
	for i := range b.open {
		b.open[i].Mark(lookup(b.open[i].Instrument))
	}
}

// CloseOldest removes the oldest position and folds its result into the win
// rate. It must not be called on an empty book.
func (b *Book) CloseOldest() Position {
	closed := b.open[0]
	b.open = append(b.open[:0:0], b.open[1:]...)
	b.record(closed.PnLPercent)
	return closed
}

// MaybeClose closes the oldest position with a 30% chance, only when more
// than one position is open.
func (b *Book) MaybeClose(rng *rand.Rand) (Position, bool) {
	if len(b.open) <= 1 {
		return Position{}, false
	}
	if rng.Float64() >= closeChance {
		return Position{}, false
	}
	return b.CloseOldest(), true
}

// Positions returns a copy of the open positions, oldest first.
func (b *Book) Positions() []Position {
	out := make([]Position, len(b.open))
	copy(out, b.open)
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	return len(b.open)
}

// WinRate returns the smoothed win rate.
func (b *Book) WinRate() float64 {
	return b.winRate
}

// UnrealizedPnL returns the size-weighted unrealized P&L in percent of
// position size.
func (b *Book) UnrealizedPnL() float64 {
	total := 0.0
	size := 0.0
	for _, p := range b.open {
		total += p.PnLPercent * p.Size
		size += p.Size
	}
	if size == 0 {
		return 0
	}
	return total / size
}

// Exposure returns the sum of size times leverage over open positions.
func (b *Book) Exposure() float64 {
	total := 0.0
	for _, p := range b.open {
		total += p.Size * float64(p.Leverage)
	}
	return total
}

func (b *Book) record(pnl float64) {
	w := b.winRate * winRateDecay
	if pnl > 0 {
		w += 1 - winRateDecay
	}
	b.winRate = clampWinRate(w)
}

func clampWinRate(w float64) float64 {
	return math.Max(WinRateMin, math.Min(WinRateMax, w))
}
