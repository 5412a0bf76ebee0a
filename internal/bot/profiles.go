package bot

import (
	"time"

	"botfeed/internal/strategy"
)

// Profile is the fixed personality of a strategy bot.
type Profile struct {
	ID                   string                 `json:"id"`
	Name                 string                 `json:"name"`
	Label                string                 `json:"label"`
	Color                string                 `json:"color"`
	Style                string                 `json:"style"`
	ScanIntervalMin      time.Duration          `json:"scanIntervalMin"`
	ScanIntervalMax      time.Duration          `json:"scanIntervalMax"`
	TradeFrequency       float64                `json:"tradeFrequency"`
	PositionSizeMin      float64                `json:"positionSizeMin"`
	PositionSizeMax      float64                `json:"positionSizeMax"`
	LeverageMin          int                    `json:"leverageMin"`
	LeverageMax          int                    `json:"leverageMax"`
	PreferredInstruments []string               `json:"preferredInstruments"`
	Risk                 strategy.RiskTolerance `json:"risk"`
	OscillatorBias       float64                `json:"oscillatorBias"`
}

func (p Profile) evaluator() strategy.Profile {
	return strategy.Profile{TradeFrequency: p.TradeFrequency, Risk: p.Risk}
}

func (p Profile) sizing() strategy.Sizing {
	return strategy.Sizing{
		Risk:            p.Risk,
		PositionSizeMin: p.PositionSizeMin,
		PositionSizeMax: p.PositionSizeMax,
		LeverageMin:     p.LeverageMin,
		LeverageMax:     p.LeverageMax,
	}
}

// DefaultProfiles returns the built-in bot roster.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			ID:                   "momentum-alpha",
			Name:                 "Momentum Alpha",
			Label:                "MOMENTUM-α",
			Color:                "#22d3ee",
			Style:                "momentum",
			ScanIntervalMin:      9 * time.Second,
			ScanIntervalMax:      14 * time.Second,
			TradeFrequency:       0.7,
			PositionSizeMin:      2,
			PositionSizeMax:      6,
			LeverageMin:          3,
			LeverageMax:          10,
			PreferredInstruments: []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"},
			Risk:                 strategy.RiskMedium,
			OscillatorBias:       58,
		},
		{
			ID:                   "mean-reverter",
			Name:                 "Mean Reverter",
			Label:                "MEAN-REV",
			Color:                "#a78bfa",
			Style:                "mean-reversion",
			ScanIntervalMin:      12 * time.Second,
			ScanIntervalMax:      20 * time.Second,
			TradeFrequency:       0.5,
			PositionSizeMin:      1,
			PositionSizeMax:      4,
			LeverageMin:          1,
			LeverageMax:          5,
			PreferredInstruments: []string{"ETH/USDT", "BNB/USDT", "LINK/USDT"},
			Risk:                 strategy.RiskLow,
			OscillatorBias:       50,
		},
		{
			ID:                   "scalper-x",
			Name:                 "Scalper X",
			Label:                "SCALPER-X",
			Color:                "#f97316",
			Style:                "scalping",
			ScanIntervalMin:      8 * time.Second,
			ScanIntervalMax:      11 * time.Second,
			TradeFrequency:       0.85,
			PositionSizeMin:      0.5,
			PositionSizeMax:      2,
			LeverageMin:          5,
			LeverageMax:          20,
			PreferredInstruments: []string{"BTC/USDT", "DOGE/USDT", "XRP/USDT"},
			Risk:                 strategy.RiskHigh,
			OscillatorBias:       50,
		},
		{
			ID:                   "trend-rider",
			Name:                 "Trend Rider",
			Label:                "TREND",
			Color:                "#4ade80",
			Style:                "trend-following",
			ScanIntervalMin:      15 * time.Second,
			ScanIntervalMax:      25 * time.Second,
			TradeFrequency:       0.45,
			PositionSizeMin:      3,
			PositionSizeMax:      8,
			LeverageMin:          2,
			LeverageMax:          6,
			PreferredInstruments: []string{"BTC/USDT", "ETH/USDT", "AVAX/USDT"},
			Risk:                 strategy.RiskMedium,
			OscillatorBias:       62,
		},
		{
			ID:                   "breakout-hunter",
			Name:                 "Breakout Hunter",
			Label:                "BREAKOUT",
			Color:                "#facc15",
			Style:                "breakout",
			ScanIntervalMin:      10 * time.Second,
			ScanIntervalMax:      18 * time.Second,
			TradeFrequency:       0.6,
			PositionSizeMin:      2,
			PositionSizeMax:      5,
			LeverageMin:          3,
			LeverageMax:          12,
			PreferredInstruments: []string{"SOL/USDT", "ARB/USDT", "AVAX/USDT"},
			Risk:                 strategy.RiskHigh,
			OscillatorBias:       55,
		},
		{
			ID:                   "grid-master",
			Name:                 "Grid Master",
			Label:                "GRID",
			Color:                "#f472b6",
			Style:                "grid",
			ScanIntervalMin:      11 * time.Second,
			ScanIntervalMax:      16 * time.Second,
			TradeFrequency:       0.55,
			PositionSizeMin:      1,
			PositionSizeMax:      3,
			LeverageMin:          1,
			LeverageMax:          3,
			PreferredInstruments: []string{"BNB/USDT", "XRP/USDT", "LINK/USDT"},
			Risk:                 strategy.RiskLow,
			OscillatorBias:       45,
		},
	}
}
