package fx

import (
	"time"

	"botfeed/internal/strategy"
)

// Agent is the fixed personality of an FX desk.
type Agent struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Label            string                 `json:"label"`
	Color            string                 `json:"color"`
	Desk             string                 `json:"desk"`
	ScanIntervalMin  time.Duration          `json:"scanIntervalMin"`
	ScanIntervalMax  time.Duration          `json:"scanIntervalMax"`
	TradeFrequency   float64                `json:"tradeFrequency"`
	NotionalMin      float64                `json:"notionalMin"`
	NotionalMax      float64                `json:"notionalMax"`
	PreferredPairs   []string               `json:"preferredPairs"`
	Risk             strategy.RiskTolerance `json:"risk"`
	OscillatorBias   float64                `json:"oscillatorBias"`
	MaxSlippageBps   float64                `json:"maxSlippageBps"`
	HedgeProbability float64                `json:"hedgeProbability"`
	HedgeRatio       float64                `json:"hedgeRatio"`
}

func (a Agent) evaluator() strategy.Profile {
	return strategy.Profile{TradeFrequency: a.TradeFrequency, Risk: a.Risk}
}

func (a Agent) sizing() strategy.Sizing {
	return strategy.Sizing{
		Risk:            a.Risk,
		PositionSizeMin: a.NotionalMin,
		PositionSizeMax: a.NotionalMax,
		LeverageMin:     1,
		LeverageMax:     1,
	}
}

// DefaultAgents returns the built-in FX desk roster.
func DefaultAgents() []Agent {
	return []Agent{
		{
			ID:               "treasury-desk",
			Name:             "Treasury Desk",
			Label:            "TREASURY",
			Color:            "#38bdf8",
			Desk:             "treasury",
			ScanIntervalMin:  12 * time.Second,
			ScanIntervalMax:  20 * time.Second,
			TradeFrequency:   0.6,
			NotionalMin:      250_000,
			NotionalMax:      2_000_000,
			PreferredPairs:   []string{"USDC/EURC", "EURC/USDT", "USDT/USDC"},
			Risk:             strategy.RiskLow,
			OscillatorBias:   50,
			MaxSlippageBps:   8,
			HedgeProbability: 0.7,
			HedgeRatio:       0.8,
		},
		{
			ID:               "remittance-router",
			Name:             "Remittance Router",
			Label:            "REMIT",
			Color:            "#34d399",
			Desk:             "payments",
			ScanIntervalMin:  9 * time.Second,
			ScanIntervalMax:  15 * time.Second,
			TradeFrequency:   0.8,
			NotionalMin:      20_000,
			NotionalMax:      300_000,
			PreferredPairs:   []string{"USDC/BRLA", "USDC/XSGD", "USDC/EURC"},
			Risk:             strategy.RiskMedium,
			OscillatorBias:   52,
			MaxSlippageBps:   12,
			HedgeProbability: 0.4,
			HedgeRatio:       0.5,
		},
		{
			ID:               "stable-maker",
			Name:             "Stable Maker",
			Label:            "MAKER",
			Color:            "#fbbf24",
			Desk:             "market-making",
			ScanIntervalMin:  8 * time.Second,
			ScanIntervalMax:  12 * time.Second,
			TradeFrequency:   0.9,
			NotionalMin:      100_000,
			NotionalMax:      1_000_000,
			PreferredPairs:   []string{"USDT/USDC", "EURC/USDT", "USDC/JPYC"},
			Risk:             strategy.RiskHigh,
			OscillatorBias:   50,
			MaxSlippageBps:   6,
			HedgeProbability: 0.85,
			HedgeRatio:       1,
		},
		{
			ID:               "asia-corridor",
			Name:             "Asia Corridor",
			Label:            "ASIA",
			Color:            "#f87171",
			Desk:             "corridor",
			ScanIntervalMin:  11 * time.Second,
			ScanIntervalMax:  18 * time.Second,
			TradeFrequency:   0.65,
			NotionalMin:      50_000,
			NotionalMax:      750_000,
			PreferredPairs:   []string{"USDC/JPYC", "USDC/XSGD"},
			Risk:             strategy.RiskMedium,
			OscillatorBias:   48,
			MaxSlippageBps:   10,
			HedgeProbability: 0.5,
			HedgeRatio:       0.6,
		},
	}
}
