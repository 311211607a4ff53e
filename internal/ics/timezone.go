package ics

import (
	"fmt"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
)

// ParisTZID is the only timezone the builder knows how to emit.
const ParisTZID = "Europe/Paris"

const icsLocalLayout = "20060102T150405"

// transition is one STANDARD or DAYLIGHT sub-rule: the clocks switch at
// Hour local time on the last Sunday of Month.
type transition struct {
	Daylight   bool
	Name       string
	OffsetFrom time.Duration
	OffsetTo   time.Duration
	Month      time.Month
	Hour       int
}

var parisTransitions = []transition{
	{Daylight: false, Name: "CET", OffsetFrom: 2 * time.Hour, OffsetTo: 1 * time.Hour, Month: time.October, Hour: 3},
	{Daylight: true, Name: "CEST", OffsetFrom: 1 * time.Hour, OffsetTo: 2 * time.Hour, Month: time.March, Hour: 2},
}

func (t transition) rule() string {
	return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYDAY=-1SU", int(t.Month))
}

// firstStart evaluates the transition rule once from 1970-01-01 to get the
// example DTSTART carried by the sub-rule.
func (t transition) firstStart() (time.Time, error) {
	opt, err := rrule.StrToROption(t.rule())
	if err != nil {
		return time.Time{}, err
	}
	opt.Dtstart = time.Date(1970, time.January, 1, t.Hour, 0, 0, 0, time.UTC)
	opt.Count = 1
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, err
	}
	all := r.All()
	if len(all) == 0 {
		return time.Time{}, fmt.Errorf("timezone rule %q has no occurrence", t.rule())
	}
	return all[0], nil
}

var parisStarts = sync.OnceValue(func() []string {
	out := make([]string, len(parisTransitions))
	for i, t := range parisTransitions {
		start, err := t.firstStart()
		if err != nil {
			// Static rules; a failure here is a programming error.
			panic(err)
		}
		out[i] = start.Format(icsLocalLayout)
	}
	return out
})

// ParisTimezone builds the VTIMEZONE block for Europe/Paris. Every call
// returns a fresh, identical tree.
func ParisTimezone() *ical.VTimezone {
	starts := parisStarts()

	tz := &ical.VTimezone{}
	tz.Properties = []ical.IANAProperty{
		newProperty("TZID", ParisTZID),
		newProperty("X-LIC-LOCATION", ParisTZID),
	}
	for i, t := range parisTransitions {
		base := ical.ComponentBase{
			Properties: []ical.IANAProperty{
				newProperty("TZOFFSETFROM", formatOffset(t.OffsetFrom)),
				newProperty("TZOFFSETTO", formatOffset(t.OffsetTo)),
				newProperty("TZNAME", t.Name),
				newProperty("DTSTART", starts[i]),
				newProperty("RRULE", t.rule()),
			},
		}
		if t.Daylight {
			tz.Components = append(tz.Components, &ical.Daylight{ComponentBase: base})
		} else {
			tz.Components = append(tz.Components, &ical.Standard{ComponentBase: base})
		}
	}
	return tz
}

// formatOffset renders d as an iCalendar UTC offset (+HHMM / -HHMM).
func formatOffset(d time.Duration) string {
	sign := '+'
	if d < 0 {
		sign = '-'
		d = -d
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%c%02d%02d", sign, h, m)
}

func newProperty(token, value string) ical.IANAProperty {
	return ical.IANAProperty{
		BaseProperty: ical.BaseProperty{
			IANAToken:      token,
			ICalParameters: map[string][]string{},
			Value:          value,
		},
	}
}
