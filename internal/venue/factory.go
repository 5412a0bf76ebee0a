package venue

import (
	"fmt"
	"strings"

	"botfeed/internal/config"
)

// New creates a venue based on the given name and configuration.
func New(name string, cfg config.VenueConfig) (Venue, error) {
	key := strings.ToLower(name)
	switch key {
	case "binance":
		return Venue{Name: key, Label: "Binance", Kind: KindCrypto, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "bybit":
		return Venue{Name: key, Label: "Bybit", Kind: KindCrypto, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "okx":
		return Venue{Name: key, Label: "OKX", Kind: KindCrypto, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "hyperliquid":
		return Venue{Name: key, Label: "Hyperliquid", Kind: KindCrypto, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "stablefx":
		return Venue{Name: key, Label: "StableFX", Kind: KindFX, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "curve":
		return Venue{Name: key, Label: "Curve", Kind: KindFX, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "uniswap":
		return Venue{Name: key, Label: "Uniswap", Kind: KindFX, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "kraken":
		return Venue{Name: key, Label: "Kraken", Kind: KindFX, TakerFeePercent: cfg.TakerFeePercent}, nil
	case "bitso":
		return Venue{Name: key, Label: "Bitso", Kind: KindFX, TakerFeePercent: cfg.TakerFeePercent}, nil
	default:
		return Venue{}, fmt.Errorf("unknown venue: %s", name)
	}
}
