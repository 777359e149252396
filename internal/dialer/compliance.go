package dialer

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	callingHourStart = 9
	callingHourEnd   = 21

	// scheduleHorizon bounds the search for the next allowed campaign window.
	scheduleHorizon = 7
)

var dayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

func loadLocation(names ...string) *time.Location {
	for _, name := range names {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// allowedCallTime reports whether now is within 09:00-21:00 in tz.
func allowedCallTime(now time.Time, tz ...string) bool {
	h := now.In(loadLocation(tz...)).Hour()
	return h >= callingHourStart && h < callingHourEnd
}

// personalize substitutes {name} and every {customField} in script.
func personalize(script string, r Recipient) string {
	if script == "" {
		return ""
	}
	out := script
	if r.Name != "" {
		out = strings.ReplaceAll(out, "{name}", r.Name)
	}
	for k, v := range r.CustomFields {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func hhmm(t time.Time) string { return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()) }

func (s *CallSchedule) location(fallback string) *time.Location {
	return loadLocation(s.Timezone, fallback)
}

func (s *CallSchedule) restrictsHours() bool {
	if s == nil {
		return false
	}
	for _, slots := range s.AllowedHours {
		if len(slots) > 0 {
			return true
		}
	}
	return false
}

func (s *CallSchedule) blackout(local time.Time) bool {
	d := local.Format("2006-01-02")
	for _, b := range s.BlackoutDates {
		if b == d {
			return true
		}
	}
	return false
}

// within reports whether now falls in an allowed window. A schedule without
// hours allows any time outside blackout dates.
func (s *CallSchedule) within(now time.Time, fallbackTZ string) bool {
	if s == nil {
		return true
	}
	local := now.In(s.location(fallbackTZ))
	if s.blackout(local) {
		return false
	}
	if !s.restrictsHours() {
		return true
	}
	cur := hhmm(local)
	for _, slot := range s.AllowedHours[dayNames[local.Weekday()]] {
		if cur >= slot.Start && cur <= slot.End {
			return true
		}
	}
	return false
}

// nextAllowed returns the first window start after now, searching up to a
// week ahead. ok=false when the schedule never opens in that horizon.
func (s *CallSchedule) nextAllowed(now time.Time, fallbackTZ string) (time.Time, bool) {
	loc := s.location(fallbackTZ)
	local := now.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	for i := 0; i <= scheduleHorizon; i++ {
		d := day.AddDate(0, 0, i)
		if s.blackout(d) {
			continue
		}
		slots := append([]TimeSlot(nil), s.AllowedHours[dayNames[d.Weekday()]]...)
		sort.Slice(slots, func(a, b int) bool { return slots[a].Start < slots[b].Start })
		for _, slot := range slots {
			h, m, ok := parseHHMM(slot.Start)
			if !ok {
				continue
			}
			start := time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc)
			if start.After(now) {
				return start, true
			}
		}
	}
	return time.Time{}, false
}

func parseHHMM(s string) (int, int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}
