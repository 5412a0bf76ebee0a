package fx

import (
	"fmt"
	"math"
	"strings"
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

// Side is the direction of an RFQ on the base currency.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

func (s Side) opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

const (
	minQuotes = 2
	maxQuotes = 4
	pnlChance = 0.5
)

const ms = time.Millisecond

type draft struct {
	category   model.Category
	importance model.Importance
	message    string
	data       map[string]any
}

type quote struct {
	venue     venue.Venue
	rate      float64
	spreadBps float64
}

func (q quote) costBps() float64 {
	return q.spreadBps + q.venue.FeeBps()
}

// compose runs one RFQ cycle of d and returns the entries it produces.
func (e *Engine) compose(d *agent) *sched.Plan[draft] {
	rng := e.rng
	a := d.profile
	plan := sched.NewPlan[draft](rng)

	pair := d.pairs[rng.Intn(len(d.pairs))]
	mid := e.prices.Advance(pair)
	snap := e.synthesize(d, pair, mid)
	d.state.Pair = pair
	d.state.Rate = mid
	d.state.Indicators = snap

	sig := strategy.Evaluate(a.evaluator(), snap, rng)
	d.state.LastSignal = sig.Direction
	d.state.Confidence = sig.Confidence

	if sig.Gated || sig.Direction == strategy.Hold {
		plan.Add(0, 0, draft{
			category:   model.CategoryPosition,
			importance: model.ImportanceLow,
			message:    fmt.Sprintf("Monitoring %s @ %s, no flow this cycle", pair, market.FormatPrice(mid)),
			data:       map[string]any{"pair": pair, "rate": mid, "open": d.book.Len()},
		})
		e.maybePnL(plan, d)
		return plan
	}

	dec := strategy.Decide(a.sizing(), sig, d.book.Len(), rng)
	if !dec.Execute {
		plan.Add(0, 0, draft{
			category:   model.CategoryPosition,
			importance: model.ImportanceMedium,
			message:    fmt.Sprintf("SKIP %s %s: %s", sig.Direction, pair, dec.Reason),
			data: map[string]any{
				"pair":       pair,
				"execute":    false,
				"reason":     dec.Reason,
				"confidence": sig.Confidence,
				"open":       d.book.Len(),
			},
		})
		e.maybePnL(plan, d)
		return plan
	}

	side := Buy
	if sig.Direction == strategy.Short {
		side = Sell
	}
	notional := math.Max(1000, math.Round(dec.PositionSize/1000)*1000)
	rfqID := e.rfqID()
	short := strings.ToUpper(rfqID[:8])

	plan.Add(0, 0, draft{
		category:   model.CategoryRFQ,
		importance: model.ImportanceMedium,
		message:    fmt.Sprintf("RFQ %s: %s %s %s", short, side, formatNotional(notional), pair),
		data: map[string]any{
			"rfqId":    rfqID,
			"pair":     pair,
			"side":     string(side),
			"notional": notional,
		},
	})

	var best quote
	for i, v := range e.quotingVenues(d) {
		spread := uniform(rng, 0.5, 4)
		rate := mid * (1 + spread/1e4)
		if side == Sell {
			rate = mid * (1 - spread/1e4)
		}
		q := quote{venue: v, rate: rate, spreadBps: spread}
		if i == 0 || q.costBps() < best.costBps() {
			best = q
		}
		plan.Add(150*ms, 450*ms, draft{
			category:   model.CategoryQuote,
			importance: model.ImportanceLow,
			message: fmt.Sprintf("%s quotes %s @ %s (%.1f bps spread, %.1f bps fee)",
				v.Label, pair, market.FormatPrice(rate), spread, v.FeeBps()),
			data: map[string]any{
				"rfqId":     rfqID,
				"venue":     v.Name,
				"rate":      rate,
				"spreadBps": spread,
				"feeBps":    v.FeeBps(),
			},
		})
	}

	slippage := uniform(rng, 0, 1.5)
	allIn := best.costBps() + slippage
	if allIn > a.MaxSlippageBps {
		plan.Add(300*ms, 600*ms, draft{
			category:   model.CategoryMatch,
			importance: model.ImportanceMedium,
			message: fmt.Sprintf("No match for RFQ %s: best all-in %.1f bps exceeds %.1f bps tolerance",
				short, allIn, a.MaxSlippageBps),
			data: map[string]any{
				"rfqId":        rfqID,
				"matched":      false,
				"allInBps":     allIn,
				"toleranceBps": a.MaxSlippageBps,
			},
		})
		return plan
	}
	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryMatch,
		importance: model.ImportanceHigh,
		message: fmt.Sprintf("Matched RFQ %s with %s @ %s, all-in %.1f bps",
			short, best.venue.Label, market.FormatPrice(best.rate), allIn),
		data: map[string]any{
			"rfqId":    rfqID,
			"matched":  true,
			"venue":    best.venue.Name,
			"rate":     best.rate,
			"allInBps": allIn,
		},
	})

	fee := best.venue.Fee(notional)
	gross := notional * uniform(rng, -2, 6) / 1e4
	pnl := gross - fee
	e.logger.Debug("RFQ matched",
		"agent", a.ID,
		"pair", pair,
		"venue", best.venue.Name,
		"notional", notional,
		"gross", gross,
		"fee", fee,
		"pnl", pnl,
	)
	d.state.PnL += pnl
	d.state.Volume += notional
	d.state.Trades++

	plan.Add(400*ms, 800*ms, draft{
		category:   model.CategorySettle,
		importance: model.ImportanceHigh,
		message:    fmt.Sprintf("Settled RFQ %s: %s notional, P&L $%+.2f", short, formatNotional(notional), pnl),
		data: map[string]any{
			"rfqId":    rfqID,
			"venue":    best.venue.Name,
			"notional": notional,
			"fee":      fee,
			"pnl":      pnl,
		},
	})

	base, counter, _ := strings.Cut(pair, "/")
	baseAmount, counterAmount := notional, notional*best.rate
	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryPvP,
		importance: model.ImportanceMedium,
		message: fmt.Sprintf("PvP complete: %.2f %s against %.2f %s, both legs final",
			baseAmount, base, counterAmount, counter),
		data: map[string]any{
			"rfqId":         rfqID,
			"baseAmount":    baseAmount,
			"counterAmount": counterAmount,
		},
	})

	if rng.Float64() < a.HedgeProbability {
		hedgeSide := side.opposite()
		hedgeNotional := notional * a.HedgeRatio
		plan.Add(300*ms, 700*ms, draft{
			category:   model.CategoryHedge,
			importance: model.ImportanceMedium,
			message: fmt.Sprintf("Hedging %.0f%% of exposure: %s %s %s",
				a.HedgeRatio*100, hedgeSide, formatNotional(hedgeNotional), pair),
			data: map[string]any{
				"rfqId":         rfqID,
				"side":          string(hedgeSide),
				"hedgeNotional": hedgeNotional,
			},
		})
	}

	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryClear,
		importance: model.ImportanceMedium,
		message:    fmt.Sprintf("Cleared RFQ %s, net %+.2f to settlement", short, pnl),
		data:       map[string]any{"rfqId": rfqID, "pnl": pnl},
	})

	bookSide := position.Long
	if side == Sell {
		bookSide = position.Short
	}
	d.opened++
	d.book.Open(position.Position{
		ID:           fmt.Sprintf("%s-%d", a.ID, d.opened),
		Instrument:   pair,
		Side:         bookSide,
		EntryPrice:   best.rate,
		CurrentPrice: best.rate,
		Size:         notional,
		Leverage:     1,
		OpenedAt:     e.clock.Now(),
	})

	plan.Add(200*ms, 500*ms, draft{
		category:   model.CategoryPosition,
		importance: model.ImportanceLow,
		message: fmt.Sprintf("Book: %d/%d open, gross exposure %s",
			d.book.Len(), position.MaxOpen, formatNotional(d.book.Exposure())),
		data: map[string]any{"open": d.book.Len(), "exposure": d.book.Exposure()},
	})

	e.maybePnL(plan, d)
	return plan
}

func (e *Engine) maybePnL(plan *sched.Plan[draft], d *agent) {
	if d.book.Len() > 0 && e.rng.Float64() < pnlChance {
		e.composePnL(plan, d)
	}
}

func (e *Engine) synthesize(d *agent, pair string, rate float64) indicator.Snapshot {
	prev, ok := d.snapshots[pair]
	var snap indicator.Snapshot
	if ok {
		snap = indicator.Synthesize(d.profile.OscillatorBias, rate, prev, e.rng)
	} else {
		snap = indicator.Seed(d.profile.OscillatorBias, rate, e.rng)
	}
	d.snapshots[pair] = snap
	return snap
}

func (e *Engine) composePnL(plan *sched.Plan[draft], d *agent) {
	d.book.MarkToMarket(e.prices.Price)

	if closed, ok := d.book.MaybeClose(e.rng); ok {
		pnl := realized(closed)
		d.state.PnL += pnl
		plan.Add(300*ms, 600*ms, draft{
			category:   model.CategoryPnL,
			importance: model.ImportanceHigh,
			message:    fmt.Sprintf("Unwound %s %s, realized $%+.2f", closed.Side, closed.Instrument, pnl),
			data: map[string]any{
				"positionId": closed.ID,
				"realized":   pnl,
				"winRate":    d.book.WinRate(),
			},
		})
		return
	}
	plan.Add(300*ms, 600*ms, draft{
		category:   model.CategoryPnL,
		importance: model.ImportanceMedium,
		message:    fmt.Sprintf("Mark-to-market %+.4f%% on %d open positions", d.book.UnrealizedPnL(), d.book.Len()),
		data:       map[string]any{"unrealizedPct": d.book.UnrealizedPnL(), "open": d.book.Len()},
	})
}

// quotingVenues draws between two and four distinct venues to answer an RFQ.
func (e *Engine) quotingVenues(d *agent) []venue.Venue {
	n := minQuotes + e.rng.Intn(maxQuotes-minQuotes+1)
	if n > len(d.venues) {
		n = len(d.venues)
	}
	out := make([]venue.Venue, 0, n)
	for _, i := range e.rng.Perm(len(d.venues))[:n] {
		out = append(out, d.venues[i])
	}
	return out
}

func (e *Engine) rfqID() string {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		return fmt.Sprintf("%032x", e.rng.Int63())
	}
	return id.String()
}

func realized(p position.Position) float64 {
	return p.Size * p.PnLPercent / 100
}

func formatNotional(v float64) string {
	switch {
	case math.Abs(v) >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case math.Abs(v) >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
