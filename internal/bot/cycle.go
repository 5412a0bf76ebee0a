package bot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"botfeed/internal/indicator"
	"botfeed/internal/market"
	"botfeed/internal/model"
	"botfeed/internal/position"
	"botfeed/internal/sched"
	"botfeed/internal/strategy"
	"botfeed/internal/venue"
)

// Cycle probabilities.
const (
	newsChance     = 0.10
	analysisChance = 0.35
	pnlChance      = 0.50
	riskChance     = 0.20
	maxSlippage    = 0.0005
)

const ms = time.Millisecond

type draft struct {
	category   model.Category
	importance model.Importance
	message    string
	data       map[string]any
}

// compose runs one cycle of b against the current market and returns the
// entries it produces. State changes happen here; the entries are only
// narration of them.
func (e *Engine) compose(b *bot) *sched.Plan[draft] {
	rng := e.rng
	p := b.profile
	plan := sched.NewPlan[draft](rng)

	symbol := b.instruments[rng.Intn(len(b.instruments))]
	price := e.prices.Advance(symbol)
	snap := e.synthesize(b, symbol, price)
	b.state.Instrument = symbol
	b.state.Price = price
	b.state.Indicators = snap

	plan.Add(0, 0, draft{
		category:   model.CategoryScan,
		importance: model.ImportanceLow,
		message:    fmt.Sprintf("Scanning %s at %s", symbol, market.FormatPrice(price)),
		data:       map[string]any{"instrument": symbol, "price": price},
	})

	for i, n := 0, 1+rng.Intn(3); i < n; i++ {
		plan.Add(300*ms, 900*ms, draft{
			category:   model.CategoryThinking,
			importance: model.ImportanceLow,
			message:    pick(rng, thinkingLines),
		})
	}

	plan.Add(400*ms, 800*ms, indicatorDraft(snap))

	if rng.Float64() < newsChance {
		plan.Add(300*ms, 700*ms, draft{
			category:   model.CategoryNews,
			importance: model.ImportanceMedium,
			message:    pick(rng, newsLines),
		})
	}
	if rng.Float64() < analysisChance {
		plan.Add(400*ms, 900*ms, draft{
			category:   model.CategoryAnalysis,
			importance: model.ImportanceLow,
			message:    pick(rng, analysisLines[p.Style]),
			data:       map[string]any{"style": p.Style},
		})
	}

	sig := strategy.Evaluate(p.evaluator(), snap, rng)
	b.state.LastSignal = sig.Direction
	b.state.Confidence = sig.Confidence

	if sig.Direction == strategy.Hold {
		plan.Add(300*ms, 700*ms, holdDraft(sig))
	} else {
		e.composeTrade(plan, b, symbol, price, sig)
	}

	if b.book.Len() > 0 && rng.Float64() < pnlChance {
		e.composePnL(plan, b)
	}
	if rng.Float64() < riskChance {
		plan.Add(300*ms, 600*ms, riskDraft(b))
	}
	return plan
}

func (e *Engine) synthesize(b *bot, symbol string, price float64) indicator.Snapshot {
	prev, ok := b.snapshots[symbol]
	var snap indicator.Snapshot
	if ok {
		snap = indicator.Synthesize(b.profile.OscillatorBias, price, prev, e.rng)
	} else {
		snap = indicator.Seed(b.profile.OscillatorBias, price, e.rng)
	}
	b.snapshots[symbol] = snap
	return snap
}

func (e *Engine) composeTrade(plan *sched.Plan[draft], b *bot, symbol string, price float64, sig strategy.Signal) {
	rng := e.rng
	p := b.profile

	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryStrategy,
		importance: model.ImportanceMedium,
		message:    fmt.Sprintf("%s playbook: %s", p.Style, sig.Reason),
		data:       map[string]any{"style": p.Style, "bull": sig.Bull, "bear": sig.Bear},
	})
	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategorySignal,
		importance: model.ImportanceHigh,
		message:    fmt.Sprintf("%s %s, confidence %.0f%%", sig.Direction, symbol, sig.Confidence*100),
		data: map[string]any{
			"instrument": symbol,
			"direction":  string(sig.Direction),
			"confidence": sig.Confidence,
		},
	})

	dec := strategy.Decide(p.sizing(), sig, b.book.Len(), rng)
	if !dec.Execute {
		plan.Add(300*ms, 600*ms, draft{
			category:   model.CategoryDecision,
			importance: model.ImportanceMedium,
			message:    "SKIP: " + dec.Reason,
			data:       map[string]any{"execute": false, "reason": dec.Reason},
		})
		return
	}
	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryDecision,
		importance: model.ImportanceHigh,
		message: fmt.Sprintf("EXECUTE %s: size %.1f%%, %dx leverage, R/R %.1f",
			sig.Direction, dec.PositionSize, dec.Leverage, dec.RiskReward),
		data: map[string]any{
			"execute":      true,
			"positionSize": dec.PositionSize,
			"leverage":     dec.Leverage,
			"riskReward":   dec.RiskReward,
		},
	})

	v := e.pickVenue(b)
	side := position.Long
	slip := rng.Float64() * maxSlippage
	fill := price * (1 + slip)
	if sig.Direction == strategy.Short {
		side = position.Short
		fill = price * (1 - slip)
	}
	notional := e.capital * dec.PositionSize / 100 * float64(dec.Leverage)
	fee := v.Fee(notional)
	orderID := e.orderID()

	plan.Add(200*ms, 500*ms, draft{
		category:   model.CategoryOrder,
		importance: model.ImportanceMedium,
		message:    fmt.Sprintf("Routing %s market order %s to %s", side, orderID[:8], v.Label),
		data: map[string]any{
			"orderId":  orderID,
			"venue":    v.Name,
			"side":     string(side),
			"notional": notional,
		},
	})
	plan.Add(200*ms, 600*ms, draft{
		category:   model.CategoryFilled,
		importance: model.ImportanceHigh,
		message: fmt.Sprintf("Filled %s %s @ %s, slippage %.3f%%, fee $%.2f",
			side, symbol, market.FormatPrice(fill), slip*100, fee),
		data: map[string]any{
			"orderId":     orderID,
			"fillPrice":   fill,
			"slippagePct": slip * 100,
			"fee":         fee,
		},
	})

	b.opened++
	evicted := b.book.Open(position.Position{
		ID:           fmt.Sprintf("%s-%d", p.ID, b.opened),
		Instrument:   symbol,
		Side:         side,
		EntryPrice:   fill,
		CurrentPrice: fill,
		Size:         dec.PositionSize,
		Leverage:     dec.Leverage,
		OpenedAt:     e.clock.Now(),
	})
	b.state.Trades++
	b.state.PnL -= fee
	for _, closed := range evicted {
		b.state.PnL += e.realized(closed)
	}
}

func (e *Engine) composePnL(plan *sched.Plan[draft], b *bot) {
	b.book.MarkToMarket(e.prices.Price)

	if closed, ok := b.book.MaybeClose(e.rng); ok {
		pnl := e.realized(closed)
		b.state.PnL += pnl
		plan.Add(300*ms, 700*ms, draft{
			category:   model.CategoryPnL,
			importance: model.ImportanceHigh,
			message: fmt.Sprintf("Closed %s %s %+.2f%% ($%+.2f)",
				closed.Side, closed.Instrument, closed.PnLPercent, pnl),
			data: map[string]any{
				"positionId": closed.ID,
				"pnlPercent": closed.PnLPercent,
				"realized":   pnl,
				"winRate":    b.book.WinRate(),
			},
		})
		return
	}
	plan.Add(300*ms, 700*ms, draft{
		category:   model.CategoryPnL,
		importance: model.ImportanceMedium,
		message: fmt.Sprintf("Unrealized %+.2f%% across %d open positions",
			b.book.UnrealizedPnL(), b.book.Len()),
		data: map[string]any{
			"unrealizedPct": b.book.UnrealizedPnL(),
			"open":          b.book.Len(),
		},
	})
}

func (e *Engine) pickVenue(b *bot) venue.Venue {
	if len(b.venues) == 0 {
		return venue.Venue{Name: "paper", Label: "Paper", Kind: venue.KindCrypto}
	}
	return b.venues[e.rng.Intn(len(b.venues))]
}

// orderID draws a UUID from the engine's seeded source so runs repeat.
func (e *Engine) orderID() string {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		return fmt.Sprintf("%032x", e.rng.Int63())
	}
	return id.String()
}

func (e *Engine) realized(p position.Position) float64 {
	return e.capital * p.Size / 100 * p.PnLPercent / 100
}

func indicatorDraft(snap indicator.Snapshot) draft {
	ema := "fast<slow"
	switch {
	case snap.EMA.Crossover == indicator.CrossoverGolden:
		ema = "golden cross"
	case snap.EMA.Crossover == indicator.CrossoverDeath:
		ema = "death cross"
	case snap.EMA.Fast > snap.EMA.Slow:
		ema = "fast>slow"
	}
	importance := model.ImportanceLow
	if snap.EMA.Crossover != indicator.CrossoverNone || snap.RSI < 30 || snap.RSI > 70 {
		importance = model.ImportanceMedium
	}
	return draft{
		category:   model.CategoryIndicator,
		importance: importance,
		message: fmt.Sprintf("RSI %.1f | MACD %+.2f | EMA %s | BB %.0f%% | Vol %.2fx",
			snap.RSI, snap.MACD.Histogram, ema, snap.Bollinger.Position, snap.VolumeRatio),
		data: map[string]any{
			"rsi":         snap.RSI,
			"macd":        snap.MACD.Value,
			"histogram":   snap.MACD.Histogram,
			"emaFast":     snap.EMA.Fast,
			"emaSlow":     snap.EMA.Slow,
			"crossover":   string(snap.EMA.Crossover),
			"bbPosition":  snap.Bollinger.Position,
			"volumeRatio": snap.VolumeRatio,
		},
	}
}

func holdDraft(sig strategy.Signal) draft {
	msg := "Holding: " + sig.Reason
	if sig.Gated {
		msg = "Standing aside this cycle, nothing here forces a trade"
	}
	return draft{
		category:   model.CategoryThinking,
		importance: model.ImportanceLow,
		message:    msg,
		data:       map[string]any{"gated": sig.Gated, "confidence": sig.Confidence},
	}
}

func riskDraft(b *bot) draft {
	return draft{
		category:   model.CategoryRisk,
		importance: model.ImportanceLow,
		message: fmt.Sprintf("Risk check: %d/%d positions, exposure %.1f%%, win rate %.0f%%",
			b.book.Len(), position.MaxOpen, b.book.Exposure(), b.book.WinRate()*100),
		data: map[string]any{
			"open":     b.book.Len(),
			"exposure": b.book.Exposure(),
			"winRate":  b.book.WinRate(),
		},
	}
}
