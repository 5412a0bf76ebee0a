package bot

import "math/rand"

var thinkingLines = []string{
	"Cross-checking order book depth against recent prints",
	"Funding rate looks neutral, no crowding on either side",
	"Comparing current range to the 4h structure",
	"Liquidity clustered just above the last swing high",
	"Spread is tight, execution conditions are fine",
	"Open interest drifting higher with price flat",
	"Volatility compressing, watching for expansion",
	"Recent candles show absorption on the bid",
	"Correlation with BTC still elevated",
	"No major level within one ATR of price",
}

var newsLines = []string{
	"Macro desk: CPI print in line with consensus",
	"On-chain: large exchange outflow flagged by whale tracker",
	"Headline: spot ETF flows positive for the third session",
	"Derivatives: options skew flipping toward calls",
	"Headline: major exchange announces new listing batch",
	"Macro desk: dollar index softening into the close",
	"On-chain: stablecoin supply on exchanges rising",
}

var analysisLines = map[string][]string{
	"momentum": {
		"Momentum stack aligned across 15m and 1h",
		"Higher highs intact, pullbacks shallow",
	},
	"mean-reversion": {
		"Price stretched from the mean, reversion odds improving",
		"Z-score of the last move near two deviations",
	},
	"scalping": {
		"Micro-structure favors quick fades at the range edges",
		"Tape speed picking up, short holding time expected",
	},
	"trend-following": {
		"Trend filter still positive on the daily",
		"Slow average sloping, no reason to fight the trend",
	},
	"breakout": {
		"Range contracting for six sessions, breakout setup forming",
		"Volume building under resistance",
	},
	"grid": {
		"Range-bound conditions suit grid spacing",
		"Grid levels rebalanced around the new midpoint",
	},
}

func pick(rng *rand.Rand, lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[rng.Intn(len(lines))]
}
