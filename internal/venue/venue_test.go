package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botfeed/internal/config"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(map[string]config.VenueConfig{
		"binance":  {TakerFeePercent: 0.1},
		"bybit":    {TakerFeePercent: 0.055},
		"stablefx": {TakerFeePercent: 0.01},
		"kraken":   {TakerFeePercent: 0.26},
	})
	require.NoError(t, err)
	return r
}

func TestNewUnknownVenue(t *testing.T) {
	_, err := New("mtgox", config.VenueConfig{})
	assert.EqualError(t, err, "unknown venue: mtgox")

	_, err = NewRegistry(map[string]config.VenueConfig{"mtgox": {}})
	assert.Error(t, err)
}

func TestFee(t *testing.T) {
	v, err := New("Kraken", config.VenueConfig{TakerFeePercent: 0.26})
	require.NoError(t, err)

	assert.Equal(t, "kraken", v.Name)
	assert.InDelta(t, 2.6, v.Fee(1000), 1e-9)
	assert.InDelta(t, 26, v.FeeBps(), 1e-9)
}

func TestSelectByKindAndFilter(t *testing.T) {
	r := testRegistry(t)

	crypto := r.Select(KindCrypto, nil)
	require.Len(t, crypto, 2)
	assert.Equal(t, "binance", crypto[0].Name)
	assert.Equal(t, "bybit", crypto[1].Name)

	fx := r.Select(KindFX, []string{"Kraken", "binance"})
	require.Len(t, fx, 1)
	assert.Equal(t, "kraken", fx[0].Name)

	assert.Empty(t, r.Select(KindFX, []string{"curve"}))
}

func TestGet(t *testing.T) {
	r := testRegistry(t)

	v, ok := r.Get("STABLEFX")
	require.True(t, ok)
	assert.Equal(t, KindFX, v.Kind)

	_, ok = r.Get("curve")
	assert.False(t, ok)
	assert.Equal(t, []string{"binance", "bybit", "kraken", "stablefx"}, r.Names())
}
