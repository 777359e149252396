package business

import (
	"context"
	"errors"
	"strings"

	"voice-platform/internal/dialer"
	"voice-platform/internal/routing"
)

var (
	ErrUnknownNumber   = errors.New("business: number not assigned")
	ErrInvalidBusiness = errors.New("business: invalid business id")
)

// Source is everything the call flows read about a business.
// It satisfies routing.ConfigSource and dialer.ConfigSource.
type Source interface {
	BusinessConfig(ctx context.Context, businessID string) (routing.BusinessConfig, error)
	RoutingRules(ctx context.Context, businessID string) ([]routing.RoutingRule, error)
	OutboundConfig(ctx context.Context, businessID string) (dialer.OutboundConfig, error)
}

// Directory resolves a dialed number to its owning business.
type Directory interface {
	ResolveNumber(ctx context.Context, number string) (string, error)
}

const (
	DefaultTimezone        = "America/New_York"
	DefaultGreeting        = "Thank you for calling. How can I help you today?"
	DefaultVoicemailPrompt = "Please leave a message after the tone."
)

// DefaultConfig is the inbound configuration used until a business saves its own.
func DefaultConfig(businessID string) routing.BusinessConfig {
	weekday := []routing.TimeSlot{{Start: "09:00", End: "17:00"}}
	return routing.BusinessConfig{
		BusinessID: businessID,
		BusinessHours: routing.Schedule{
			Timezone: DefaultTimezone,
			Days: map[string][]routing.TimeSlot{
				"monday":    weekday,
				"tuesday":   weekday,
				"wednesday": weekday,
				"thursday":  weekday,
				"friday":    weekday,
			},
		},
		Routing: routing.RoutingConfig{
			DefaultAction:    routing.ActionAIAgent,
			OverflowHandling: routing.ActionQueue,
			MaxQueueTime:     300,
			MaxQueueLength:   10,
		},
		Voice: routing.VoiceSettings{
			Greeting:             DefaultGreeting,
			VoicemailPrompt:      DefaultVoicemailPrompt,
			MaxVoicemailDuration: 120,
		},
		Notifications: routing.Notifications{MissedCallAlert: true, VoicemailAlert: true},
	}
}

// NormalizeNumber strips formatting so "+1 (555) 010-0000" and "+15550100000" match.
func NormalizeNumber(n string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(n) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
