package indicator

import (
	"math"
	"math/rand"
)

// Bounds and smoothing constants of the synthesized indicators.
const (
	RSIMin = 8.0
	RSIMax = 95.0

	TrendLimit = 2.0

	FastAlpha = 0.1
	SlowAlpha = 0.05
)

// Crossover is the edge event produced when the fast average crosses the slow
// one during a single update.
type Crossover string

const (
	CrossoverNone   Crossover = "none"
	CrossoverGolden Crossover = "golden"
	CrossoverDeath  Crossover = "death"
)

// MACD is the trend indicator. Signal is always Value - Histogram.
type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MovingAverages holds the fast/slow exponential averages.
type MovingAverages struct {
	Fast      float64   `json:"fast"`
	Slow      float64   `json:"slow"`
	Crossover Crossover `json:"crossover"`
}

// Bands is a Bollinger-style envelope. Position is where the price sits
// inside the envelope, 0 at the lower band and 100 at the upper band.
type Bands struct {
	Upper    float64 `json:"upper"`
	Middle   float64 `json:"middle"`
	Lower    float64 `json:"lower"`
	Width    float64 `json:"width"`
	Position float64 `json:"position"`
}

// Snapshot is the full indicator picture of one instrument at one cycle.
type Snapshot struct {
	RSI         float64        `json:"rsi"`
	MACD        MACD           `json:"macd"`
	EMA         MovingAverages `json:"ema"`
	Bollinger   Bands          `json:"bollinger"`
	VolumeRatio float64        `json:"volumeRatio"`
}

// Seed builds a starting snapshot around price. The fast average starts
// slightly off the slow one so the first update cannot invent a crossover
// from two equal values.
func Seed(bias, price float64, rng *rand.Rand) Snapshot {
	fast := price * (1 + uniform(rng, -0.01, 0.01))
	snap := Snapshot{
		RSI:         clamp(bias+uniform(rng, -10, 10), RSIMin, RSIMax),
		EMA:         MovingAverages{Fast: fast, Slow: price, Crossover: CrossoverNone},
		VolumeRatio: 1,
	}
	hist := clamp(uniform(rng, -0.2, 0.2), -TrendLimit, TrendLimit)
	value := clamp(uniform(rng, -0.3, 0.3), -TrendLimit, TrendLimit)
	snap.MACD = MACD{Value: value, Signal: value - hist, Histogram: hist}
	snap.Bollinger = bands(price, rng)
	return snap
}

// Synthesize derives the next snapshot from prev and the new price. Values
// evolve from the previous snapshot rather than being drawn fresh, so a
// feed of snapshots reads like a real chart.
func Synthesize(bias, price float64, prev Snapshot, rng *rand.Rand) Snapshot {
	var next Snapshot

	rsi := prev.RSI + (bias-prev.RSI)*0.1 + uniform(rng, -8, 8)
	next.RSI = clamp(rsi, RSIMin, RSIMax)

	tilt := 0.0
	switch {
	case next.RSI > 65:
		tilt = 0.35
	case next.RSI < 35:
		tilt = -0.35
	}
	hist := clamp(prev.MACD.Histogram*0.6+uniform(rng, -0.4, 0.4)+tilt, -TrendLimit, TrendLimit)
	value := clamp(prev.MACD.Value*0.8+hist*0.5+uniform(rng, -0.1, 0.1), -TrendLimit, TrendLimit)
	next.MACD = MACD{Value: value, Signal: value - hist, Histogram: hist}

	next.EMA = updateAverages(prev.EMA, price)
	next.Bollinger = bands(price, rng)
	next.VolumeRatio = uniform(rng, 0.4, 2.8)
	return next
}

func updateAverages(prev MovingAverages, price float64) MovingAverages {
	if prev.Fast == 0 || prev.Slow == 0 {
		return MovingAverages{Fast: price, Slow: price, Crossover: CrossoverNone}
	}
	fast := prev.Fast + FastAlpha*(price-prev.Fast)
	slow := prev.Slow + SlowAlpha*(price-prev.Slow)
	return MovingAverages{Fast: fast, Slow: slow, Crossover: DetectCrossover(prev.Fast, prev.Slow, fast, slow)}
}

// DetectCrossover reports golden when fast moves from at-or-below slow to
// above it, death for the reverse, and none otherwise.
func DetectCrossover(prevFast, prevSlow, fast, slow float64) Crossover {
	switch {
	case prevFast <= prevSlow && fast > slow:
		return CrossoverGolden
	case prevFast >= prevSlow && fast < slow:
		return CrossoverDeath
	default:
		return CrossoverNone
	}
}

func bands(price float64, rng *rand.Rand) Bands {
	width := uniform(rng, 0.02, 0.06)
	half := width / 2
	middle := price * (1 + uniform(rng, -0.9*half, 0.9*half))
	upper := middle * (1 + half)
	lower := middle * (1 - half)
	position := 50.0
	if upper > lower {
		position = clamp((price-lower)/(upper-lower)*100, 0, 100)
	}
	return Bands{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Width:    width * 100,
		Position: position,
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
