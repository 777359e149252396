package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"voice-platform/internal/telephony"
)

// Start probes every carrier each HealthInterval until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.CheckHealth(ctx)
			}
		}
	}()
}

// CheckHealth runs one probe round concurrently and returns the new snapshot.
func (g *Gateway) CheckHealth(ctx context.Context) map[telephony.Provider]bool {
	carriers := g.all()
	var eg errgroup.Group
	eg.SetLimit(max(len(carriers), 1))
	for _, c := range carriers {
		eg.Go(func() error {
			ok := g.probe(ctx, c)
			if !ok {
				g.log.Warn("carrier health probe failed", "provider", string(c.Name()))
			}
			g.setHealth(c.Name(), ok)
			return nil
		})
	}
	_ = eg.Wait()
	return g.Health()
}

// probe treats a panicking health check as unhealthy.
func (g *Gateway) probe(ctx context.Context, c telephony.Carrier) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("carrier panicked during health probe", "provider", string(c.Name()), "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return c.IsHealthy(ctx)
}

// Health returns a copy of the last known health per carrier.
func (g *Gateway) Health() map[telephony.Provider]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[telephony.Provider]bool, len(g.health))
	for k, v := range g.health {
		out[k] = v
	}
	return out
}
