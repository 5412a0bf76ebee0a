package strategy

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"botfeed/internal/indicator"
)

// RiskTolerance sets how much evidence an entity needs before acting.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

// SignalThreshold is the net score |bull-bear| must exceed to emit a
// direction.
func (r RiskTolerance) SignalThreshold() float64 {
	switch r {
	case RiskLow:
		return 2.5
	case RiskHigh:
		return 1.5
	default:
		return 2.0
	}
}

// MinConfidence is the confidence a signal needs before it is executed.
func (r RiskTolerance) MinConfidence() float64 {
	switch r {
	case RiskLow:
		return 0.6
	case RiskHigh:
		return 0.3
	default:
		return 0.45
	}
}

// Direction is the side a signal points to.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Hold  Direction = "HOLD"
)

// MaxConfidence caps every confidence score.
const MaxConfidence = 0.95

// Profile is the part of an entity the evaluator reads.
type Profile struct {
	TradeFrequency float64
	Risk           RiskTolerance
}

// Signal is the outcome of one evaluation.
type Signal struct {
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
	Bull       float64   `json:"bull"`
	Bear       float64   `json:"bear"`
	Gated      bool      `json:"gated"`
	Reason     string    `json:"reason"`
}

// Net returns bull minus bear evidence.
func (s Signal) Net() float64 {
	return s.Bull - s.Bear
}

// Evaluate scores the snapshot and decides a direction. With probability
// 1 - TradeFrequency the entity stands aside regardless of the score.
func Evaluate(p Profile, snap indicator.Snapshot, rng *rand.Rand) Signal {
	bull, bear, reasons := score(snap)
	net := bull - bear
	sig := Signal{
		Direction:  Hold,
		Confidence: math.Min(math.Abs(net)/6, MaxConfidence),
		Bull:       bull,
		Bear:       bear,
	}

	if rng.Float64() >= p.TradeFrequency {
		sig.Gated = true
		sig.Reason = "standing aside this cycle"
		return sig
	}

	threshold := p.Risk.SignalThreshold()
	switch {
	case net > threshold:
		sig.Direction = Long
	case net < -threshold:
		sig.Direction = Short
	default:
		sig.Reason = fmt.Sprintf("net score %+.1f inside ±%.1f threshold", net, threshold)
		return sig
	}
	sig.Reason = strings.Join(reasons, ", ")
	return sig
}

func score(snap indicator.Snapshot) (bull, bear float64, reasons []string) {
	switch {
	case snap.RSI < 25:
		bull += 2
		reasons = append(reasons, "RSI deeply oversold")
	case snap.RSI < 35:
		bull++
		reasons = append(reasons, "RSI oversold")
	case snap.RSI > 75:
		bear += 2
		reasons = append(reasons, "RSI deeply overbought")
	case snap.RSI > 65:
		bear++
		reasons = append(reasons, "RSI overbought")
	}

	switch {
	case snap.MACD.Histogram > 0.3:
		bull += 1.5
		reasons = append(reasons, "MACD momentum up")
	case snap.MACD.Histogram < -0.3:
		bear += 1.5
		reasons = append(reasons, "MACD momentum down")
	}

	switch {
	case snap.EMA.Crossover == indicator.CrossoverGolden:
		bull += 2.5
		reasons = append(reasons, "EMA golden cross")
	case snap.EMA.Crossover == indicator.CrossoverDeath:
		bear += 2.5
		reasons = append(reasons, "EMA death cross")
	case snap.EMA.Fast > snap.EMA.Slow:
		bull += 0.5
	case snap.EMA.Fast < snap.EMA.Slow:
		bear += 0.5
	}

	switch {
	case snap.Bollinger.Position < 15:
		bull++
		reasons = append(reasons, "price at lower band")
	case snap.Bollinger.Position > 85:
		bear++
		reasons = append(reasons, "price at upper band")
	}

	if snap.VolumeRatio > 1.5 {
		switch {
		case bull > bear:
			bull++
			reasons = append(reasons, "volume confirms")
		case bear > bull:
			bear++
			reasons = append(reasons, "volume confirms")
		}
	}
	return bull, bear, reasons
}
