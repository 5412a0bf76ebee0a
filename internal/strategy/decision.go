package strategy

import (
	"fmt"
	"math/rand"
)

// MaxOpenPositions is the per-entity cap on concurrently open positions.
const MaxOpenPositions = 3

// Risk/reward bounds drawn for every executed decision.
const (
	MinRiskReward = 1.2
	MaxRiskReward = 3.5
)

// Sizing is the part of an entity profile the decision maker reads.
type Sizing struct {
	Risk            RiskTolerance
	PositionSizeMin float64
	PositionSizeMax float64
	LeverageMin     int
	LeverageMax     int
}

// Decision turns a signal into an executable order, or explains why not.
type Decision struct {
	Execute      bool    `json:"execute"`
	PositionSize float64 `json:"positionSize"`
	Leverage     int     `json:"leverage"`
	RiskReward   float64 `json:"riskReward"`
	Reason       string  `json:"reason"`
}

// Decide applies the position-count and confidence gates in that order.
// A rejected decision is final for the cycle.
func Decide(s Sizing, sig Signal, openPositions int, rng *rand.Rand) Decision {
	if openPositions >= MaxOpenPositions {
		return Decision{Reason: fmt.Sprintf("Max positions reached (%d/%d)", openPositions, MaxOpenPositions)}
	}
	if sig.Direction == Hold {
		return Decision{Reason: "no directional signal"}
	}
	if floor := s.Risk.MinConfidence(); sig.Confidence < floor {
		return Decision{Reason: fmt.Sprintf("Confidence %.0f%% below %.0f%% minimum", sig.Confidence*100, floor*100)}
	}

	size := s.PositionSizeMin + rng.Float64()*(s.PositionSizeMax-s.PositionSizeMin)
	leverage := s.LeverageMin
	if s.LeverageMax > s.LeverageMin {
		leverage += rng.Intn(s.LeverageMax - s.LeverageMin + 1)
	}
	if leverage < 1 {
		leverage = 1
	}
	rr := MinRiskReward + rng.Float64()*(MaxRiskReward-MinRiskReward)

	return Decision{
		Execute:      true,
		PositionSize: size,
		Leverage:     leverage,
		RiskReward:   rr,
		Reason:       fmt.Sprintf("%s confidence %.0f%% clears %s-risk gate", sig.Direction, sig.Confidence*100, s.Risk),
	}
}
