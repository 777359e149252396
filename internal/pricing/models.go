package pricing

// Carrier rates are expressed in USD per billable minute.
// Keys are carrier names as reported by the telephony adapters.

// DefaultRates is the published per-minute cost of each supported carrier.
// Carriers without an adapter (bandwidth, vonage) are listed so cost
// comparisons stay meaningful when an adapter is added later.
var DefaultRates = map[string]float64{
	"plivo":      0.0085,
	"signalwire": 0.0085,
	"telnyx":     0.006,
	"bandwidth":  0.0065,
	"twilio":     0.013,
	"vonage":     0.012,
}

// Estimate is the projected cost of one call on one carrier.
type Estimate struct {
	Provider        string  `json:"provider"`
	RatePerMinute   float64 `json:"rate_per_minute"`
	BillableMinutes int     `json:"billable_minutes"`
	Cost            float64 `json:"cost"`
}
