package routing

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var dayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// loadLocation resolves tz, falling back to fallback and then UTC.
func loadLocation(tz, fallback string) *time.Location {
	for _, name := range []string{tz, fallback} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// Within reports whether now falls into one of the schedule's windows for
// the current day. Boundaries are inclusive and compared as zero-padded
// HH:MM strings in the schedule's timezone (or fallbackTZ).
func (s Schedule) Within(now time.Time, fallbackTZ string) bool {
	local := now.In(loadLocation(s.Timezone, fallbackTZ))
	slots := s.Days[dayNames[local.Weekday()]]
	if len(slots) == 0 {
		return false
	}
	hhmm := fmt.Sprintf("%02d:%02d", local.Hour(), local.Minute())
	for _, slot := range slots {
		if hhmm >= slot.Start && hhmm <= slot.End {
			return true
		}
	}
	return false
}

// Configured reports whether any day carries a window.
func (s Schedule) Configured() bool {
	for _, slots := range s.Days {
		if len(slots) > 0 {
			return true
		}
	}
	return false
}

// globToRegexp turns a caller-id glob into an unanchored regexp.
// Only * is special; every other character matches literally.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile(strings.Join(parts, ".*"))
}

func matchCallerID(number string, patterns []string, matchType string) bool {
	matched := false
	for _, p := range patterns {
		re, err := globToRegexp(p)
		if err != nil {
			continue
		}
		if re.MatchString(number) {
			matched = true
			break
		}
	}
	if strings.EqualFold(matchType, "whitelist") {
		return matched
	}
	return !matched
}

// activeRules returns the active rules, highest priority first. Ties keep
// their input order.
func activeRules(rules []RoutingRule) []RoutingRule {
	out := make([]RoutingRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// normalizeAction lower-cases rule actions (admin surfaces store them upper-case).
func normalizeAction(a Action) Action {
	return Action(strings.ToLower(strings.TrimSpace(string(a))))
}

func stringsUpper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func sortCalls(cs []CallData) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].StartTime.Before(cs[j].StartTime) })
}
