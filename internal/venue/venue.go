package venue

import (
	"sort"
	"strings"

	"botfeed/internal/config"
)

// Kind tells which engine trades on a venue.
type Kind string

const (
	KindCrypto Kind = "crypto"
	KindFX     Kind = "fx"
)

// Venue is a simulated trading venue.
type Venue struct {
	Name            string
	Label           string
	Kind            Kind
	TakerFeePercent float64
}

// Fee returns the taker fee charged on notional.
func (v Venue) Fee(notional float64) float64 {
	return notional * (v.TakerFeePercent / 100)
}

// FeeBps returns the taker fee in basis points.
func (v Venue) FeeBps() float64 {
	return v.TakerFeePercent * 100
}

// Registry holds the configured venues by name.
type Registry struct {
	venues map[string]Venue
}

// NewRegistry builds a registry from the venues section of the config.
func NewRegistry(cfgs map[string]config.VenueConfig) (*Registry, error) {
	r := &Registry{venues: make(map[string]Venue, len(cfgs))}
	for name, cfg := range cfgs {
		v, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		r.venues[v.Name] = v
	}
	return r, nil
}

// Get returns the venue registered under name.
func (r *Registry) Get(name string) (Venue, bool) {
	v, ok := r.venues[strings.ToLower(name)]
	return v, ok
}

// Select returns the venues of kind whose names are in filter, sorted by
// name. An empty filter selects every venue of that kind.
func (r *Registry) Select(kind Kind, filter []string) []Venue {
	allowed := make(map[string]bool, len(filter))
	for _, name := range filter {
		allowed[strings.ToLower(name)] = true
	}
	var out []Venue
	for name, v := range r.venues {
		if v.Kind != kind {
			continue
		}
		if len(allowed) > 0 && !allowed[name] {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists every registered venue name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.venues))
	for name := range r.venues {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
