package gateway

import (
	"time"

	"voice-platform/internal/pricing"
	"voice-platform/internal/telephony"
)

func (g *Gateway) healthyNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.carriers))
	for _, c := range g.carriers {
		if g.health[c.Carrier.Name()] {
			out = append(out, string(c.Carrier.Name()))
		}
	}
	return out
}

// CheapestProvider returns the lowest per-minute carrier among healthy ones.
func (g *Gateway) CheapestProvider() (telephony.Provider, bool) {
	name, ok := g.prices.Cheapest(g.healthyNames())
	return telephony.Provider(name), ok
}

// ProviderCost is the per-minute rate of a configured carrier.
func (g *Gateway) ProviderCost(name telephony.Provider) (float64, bool) {
	if _, ok := g.byName[name]; !ok {
		return 0, false
	}
	return g.prices.Rate(string(name))
}

// EstimateCallCost prices a call of durationMinutes on every healthy carrier,
// cheapest first.
func (g *Gateway) EstimateCallCost(durationMinutes float64) []pricing.Estimate {
	d := time.Duration(durationMinutes * float64(time.Minute))
	return g.prices.EstimateAll(g.healthyNames(), d)
}
