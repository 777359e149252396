package pricing

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	ErrUnknownProvider = errors.New("pricing: unknown provider")
	ErrInvalidDuration = errors.New("pricing: invalid duration")
)

// Table resolves carrier rates and computes call cost estimates.
//
// Contract:
// - Pure calculation, no carrier calls.
// - Billing is per started minute (60s increments, no minimum).
type Table struct {
	rates map[string]float64
}

// NewTable returns a table seeded with DefaultRates; overrides replace or add rates.
func NewTable(overrides map[string]float64) *Table {
	rates := make(map[string]float64, len(DefaultRates)+len(overrides))
	for k, v := range DefaultRates {
		rates[k] = v
	}
	for k, v := range overrides {
		if v >= 0 {
			rates[k] = v
		}
	}
	return &Table{rates: rates}
}

// Rate returns the per-minute rate of a carrier.
func (t *Table) Rate(provider string) (float64, bool) {
	r, ok := t.rates[provider]
	return r, ok
}

// Estimate computes the cost of a call of duration d on provider.
func (t *Table) Estimate(provider string, d time.Duration) (Estimate, error) {
	if d < 0 {
		return Estimate{}, ErrInvalidDuration
	}
	rate, ok := t.rates[provider]
	if !ok {
		return Estimate{}, ErrUnknownProvider
	}
	sec := int(math.Ceil(d.Seconds()))
	minutes := billableMinutesFromSeconds(billableSeconds(sec, 0, 60))
	return Estimate{
		Provider:        provider,
		RatePerMinute:   rate,
		BillableMinutes: minutes,
		Cost:            roundCost(rate * float64(minutes)),
	}, nil
}

// EstimateAll estimates d on every provider in providers, cheapest first.
// Providers without a known rate are skipped. Ties keep the input order.
func (t *Table) EstimateAll(providers []string, d time.Duration) []Estimate {
	out := make([]Estimate, 0, len(providers))
	for _, p := range providers {
		e, err := t.Estimate(p, d)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// Cheapest returns the lowest-rate provider among providers.
func (t *Table) Cheapest(providers []string) (string, bool) {
	best := ""
	bestRate := math.MaxFloat64
	for _, p := range providers {
		r, ok := t.rates[p]
		if !ok {
			continue
		}
		if r < bestRate {
			best, bestRate = p, r
		}
	}
	return best, best != ""
}

func billableSeconds(actualSec int, minSec int, incrementSec int) int {
	if actualSec < 0 {
		return 0
	}
	if minSec <= 0 {
		minSec = 0
	}
	if incrementSec <= 0 {
		incrementSec = 60
	}

	sec := actualSec
	if sec < minSec {
		sec = minSec
	}

	// round up to nearest increment
	q := sec / incrementSec
	r := sec % incrementSec
	if r != 0 {
		q++
	}
	return q * incrementSec
}

func billableMinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}

// roundCost keeps six decimal places so float noise does not leak into API output.
func roundCost(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
