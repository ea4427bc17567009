package ics

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/teambition/rrule-go"
)

// =============================================================================
// STATIC VTIMEZONE TABLE
// =============================================================================

// Observance is one STANDARD or DAYLIGHT sub-component of a VTIMEZONE.
type Observance struct {
	Kind       string // "DAYLIGHT" or "STANDARD"
	OffsetFrom string // "+0100"
	OffsetTo   string // "+0200"
	Name       string // "CEST"
	DTStart    string // local wall time, "19700329T020000"
	RRule      string // "FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU"
}

// Zone is a VTIMEZONE definition.
type Zone struct {
	ID          string
	Observances []Observance
}

// Lines renders the VTIMEZONE block.
func (z Zone) Lines() []string {
	lines := []string{
		"BEGIN:VTIMEZONE",
		"TZID:" + z.ID,
		"X-LIC-LOCATION:" + z.ID,
	}
	for _, o := range z.Observances {
		lines = append(lines,
			"BEGIN:"+o.Kind,
			"TZOFFSETFROM:"+o.OffsetFrom,
			"TZOFFSETTO:"+o.OffsetTo,
			"TZNAME:"+o.Name,
			"DTSTART:"+o.DTStart,
			"RRULE:"+o.RRule,
			"END:"+o.Kind,
		)
	}
	return append(lines, "END:VTIMEZONE")
}

// europeanRules builds a zone following the EU summer time rules: last
// Sunday of March at 01:00 UTC to last Sunday of October at 01:00 UTC.
func europeanRules(id, standard, daylight string, stdOffset int) Zone {
	std := formatOffset(stdOffset)
	dst := formatOffset(stdOffset + 1)
	// 01:00 UTC expressed in local wall time before each transition.
	springHour := 1 + stdOffset
	autumnHour := 1 + stdOffset + 1
	return Zone{
		ID: id,
		Observances: []Observance{
			{
				Kind: "DAYLIGHT", OffsetFrom: std, OffsetTo: dst, Name: daylight,
				DTStart: fmt.Sprintf("19700329T%02d0000", springHour),
				RRule:   "FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU",
			},
			{
				Kind: "STANDARD", OffsetFrom: dst, OffsetTo: std, Name: standard,
				DTStart: fmt.Sprintf("19701025T%02d0000", autumnHour),
				RRule:   "FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU",
			},
		},
	}
}

var zones = map[string]Zone{
	"Europe/Paris":      europeanRules("Europe/Paris", "CET", "CEST", 1),
	"Europe/Brussels":   europeanRules("Europe/Brussels", "CET", "CEST", 1),
	"Europe/Luxembourg": europeanRules("Europe/Luxembourg", "CET", "CEST", 1),
	"Europe/Berlin":     europeanRules("Europe/Berlin", "CET", "CEST", 1),
	"Europe/Madrid":     europeanRules("Europe/Madrid", "CET", "CEST", 1),
	"Europe/Rome":       europeanRules("Europe/Rome", "CET", "CEST", 1),
	"Europe/Zurich":     europeanRules("Europe/Zurich", "CET", "CEST", 1),
	"Europe/London":     europeanRules("Europe/London", "GMT", "BST", 0),
	"Europe/Lisbon":     europeanRules("Europe/Lisbon", "WET", "WEST", 0),
}

// LookupZone returns the VTIMEZONE definition of a zone id.
func LookupZone(id string) (Zone, bool) {
	z, ok := zones[id]
	return z, ok
}

// SupportedZones lists the zone ids with a VTIMEZONE definition, sorted.
func SupportedZones() []string {
	ids := make([]string, 0, len(zones))
	for id := range zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// VERIFICATION AGAINST THE IANA DATABASE
// =============================================================================

// Verify expands each observance's RRULE over [fromYear, toYear] and checks
// that the IANA database agrees on the offset on both sides of every
// transition.
func (z Zone) Verify(fromYear, toYear int) error {
	loc, err := time.LoadLocation(z.ID)
	if err != nil {
		return fmt.Errorf("load location %s: %w", z.ID, err)
	}

	from := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(toYear, time.December, 31, 23, 59, 59, 0, time.UTC)

	for _, o := range z.Observances {
		offFrom, err := parseOffset(o.OffsetFrom)
		if err != nil {
			return err
		}
		offTo, err := parseOffset(o.OffsetTo)
		if err != nil {
			return err
		}
		start, err := time.Parse("20060102T150405", o.DTStart)
		if err != nil {
			return fmt.Errorf("%s %s: bad DTSTART %q: %w", z.ID, o.Kind, o.DTStart, err)
		}

		opt, err := rrule.StrToROption(o.RRule)
		if err != nil {
			return fmt.Errorf("%s %s: bad RRULE %q: %w", z.ID, o.Kind, o.RRule, err)
		}
		opt.Dtstart = start
		rule, err := rrule.NewRRule(*opt)
		if err != nil {
			return fmt.Errorf("%s %s: %w", z.ID, o.Kind, err)
		}

		// Occurrences are local wall times under OffsetFrom.
		for _, wall := range rule.Between(from, to, true) {
			instant := wall.Add(-offFrom)
			if _, before := instant.Add(-time.Minute).In(loc).Zone(); before != int(offFrom.Seconds()) {
				return fmt.Errorf("%s %s on %s: offset before transition is %ds, table says %s",
					z.ID, o.Kind, wall.Format("2006-01-02"), before, o.OffsetFrom)
			}
			if _, after := instant.Add(time.Minute).In(loc).Zone(); after != int(offTo.Seconds()) {
				return fmt.Errorf("%s %s on %s: offset after transition is %ds, table says %s",
					z.ID, o.Kind, wall.Format("2006-01-02"), after, o.OffsetTo)
			}
		}
	}
	return nil
}

// formatOffset renders whole hours as "+HHMM".
func formatOffset(hours int) string {
	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	return fmt.Sprintf("%s%02d00", sign, hours)
}

// parseOffset parses "+HHMM" / "-HHMM".
func parseOffset(s string) (time.Duration, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("bad UTC offset %q", s)
	}
	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("bad UTC offset %q", s)
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("bad UTC offset %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if s[0] == '-' {
		d = -d
	}
	return d, nil
}
